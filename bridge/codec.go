package bridge

import (
	"fmt"
	"math/big"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teleportdao/teleswap-engine/types"
)

// structuredArgs is the versioned field list of the self-describing
// encoding. Unknown or malformed shapes are rejected on decode rather than
// best-effort parsed.
var structuredArgs abi.Arguments

func init() {
	mustType := func(sig string) abi.Type {
		t, err := abi.NewType(sig, "", nil)
		if err != nil {
			panic(err)
		}
		return t
	}

	structuredArgs = abi.Arguments{
		{Name: "purpose", Type: mustType("uint8")},
		{Name: "requestId", Type: mustType("bytes32")},
		{Name: "sourceDomain", Type: mustType("uint32")},
		{Name: "destDomain", Type: mustType("uint32")},
		{Name: "recipient", Type: mustType("bytes32")},
		{Name: "token", Type: mustType("address")},
		{Name: "amount", Type: mustType("uint256")},
		{Name: "quoteTime", Type: mustType("uint64")},
		{Name: "fillDeadline", Type: mustType("uint64")},
		{Name: "bridgeFeeRate", Type: mustType("uint64")},
		{Name: "path", Type: mustType("address[]")},
	}
}

// EncodeStructured serializes a message with the self-describing encoding.
func EncodeStructured(msg *types.BridgeMessage) ([]byte, error) {
	if !msg.Purpose.Valid() {
		return nil, fmt.Errorf("%w: invalid purpose %d", types.ErrMalformedMessage, msg.Purpose)
	}
	path := msg.Path
	if path == nil {
		path = []common.Address{}
	}
	return structuredArgs.Pack(
		uint8(msg.Purpose),
		msg.RequestID,
		uint32(msg.SourceDomain),
		uint32(msg.DestDomain),
		[32]byte(msg.Recipient),
		msg.Token,
		msg.Amount.BigInt(),
		msg.QuoteTime,
		msg.FillDeadline,
		msg.BridgeFeeRate,
		path,
	)
}

// DecodeStructured parses a self-describing message, validating the field
// list and the purpose discriminant.
func DecodeStructured(bz []byte) (*types.BridgeMessage, error) {
	values, err := structuredArgs.Unpack(bz)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedMessage, err)
	}
	if len(values) != len(structuredArgs) {
		return nil, fmt.Errorf("%w: want %d fields, got %d", types.ErrMalformedMessage, len(structuredArgs), len(values))
	}

	purpose := types.Purpose(values[0].(uint8))
	if !purpose.Valid() {
		return nil, fmt.Errorf("%w: unknown purpose %d", types.ErrMalformedMessage, purpose)
	}

	msg := &types.BridgeMessage{
		Purpose:       purpose,
		RequestID:     values[1].([32]byte),
		SourceDomain:  types.Domain(values[2].(uint32)),
		DestDomain:    types.Domain(values[3].(uint32)),
		Recipient:     types.RecipientID(values[4].([32]byte)),
		Token:         values[5].(common.Address),
		Amount:        math.NewIntFromBigInt(values[6].(*big.Int)),
		QuoteTime:     values[7].(uint64),
		FillDeadline:  values[8].(uint64),
		BridgeFeeRate: values[9].(uint64),
		Path:          values[10].([]common.Address),
	}
	return msg, nil
}
