package types

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Domain is the numeric identifier of a network. One route names up to three
// of them: the source the deposit happened on, the intermediary the engine
// runs on, and the destination the recipient lives on.
type Domain uint32

// IDSpace partitions request identifiers. Deposit-originated (forward)
// requests are keyed by the source transaction id, bridge-message-originated
// (reverse) requests by the 32-byte request id the origin engine assigned.
// The two spaces never collide.
type IDSpace string

const (
	IDSpaceDeposit IDSpace = "deposit"
	IDSpaceMessage IDSpace = "message"
)

// RecipientID is a fixed-width, network-agnostic recipient identifier. It
// holds both 32-byte native identifiers and 20-byte EVM addresses, the latter
// left-padded with zeros.
type RecipientID [32]byte

// RecipientFromBytes builds a RecipientID from a 20 or 32 byte slice.
func RecipientFromBytes(bz []byte) (RecipientID, error) {
	var id RecipientID
	switch len(bz) {
	case 32:
		copy(id[:], bz)
	case 20:
		copy(id[12:], bz)
	default:
		return id, fmt.Errorf("recipient must be 20 or 32 bytes, got %d", len(bz))
	}
	return id, nil
}

// RecipientFromAddress left-pads an EVM address into a RecipientID.
func RecipientFromAddress(addr common.Address) RecipientID {
	var id RecipientID
	copy(id[12:], addr.Bytes())
	return id
}

// EVMAddress returns the trailing 20 bytes as an EVM address.
func (r RecipientID) EVMAddress() common.Address {
	return common.BytesToAddress(r[12:])
}

func (r RecipientID) Bytes() []byte {
	return r[:]
}

func (r RecipientID) Hex() string {
	return "0x" + hex.EncodeToString(r[:])
}

// IsZero reports whether the identifier is all zeros.
func (r RecipientID) IsZero() bool {
	return r == RecipientID{}
}
