package types

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Purpose is the closed discriminant embedded in every bridge message. It is
// decoded once at the message boundary and matched exhaustively.
type Purpose uint8

const (
	// PurposeDeliver delivers an already-swapped asset to the recipient on
	// the receiving network.
	PurposeDeliver Purpose = iota + 1
	// PurposeSwapAndDeliver swaps on the receiving network, then delivers
	// locally.
	PurposeSwapAndDeliver
	// PurposeSwapAndBridge swaps on the receiving network, then hands off to
	// the bridge transport for the next hop.
	PurposeSwapAndBridge
	// PurposeRefund routes value back toward the original asset class.
	PurposeRefund
)

func (p Purpose) Valid() bool {
	return p >= PurposeDeliver && p <= PurposeRefund
}

func (p Purpose) String() string {
	switch p {
	case PurposeDeliver:
		return "deliver"
	case PurposeSwapAndDeliver:
		return "swap_and_deliver"
	case PurposeSwapAndBridge:
		return "swap_and_bridge"
	case PurposeRefund:
		return "refund"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// BinaryMessageVersion is the version byte carried in the binary purpose tag.
const BinaryMessageVersion uint8 = 1

// BinaryTagLength is the fixed-length prefix that identifies the binary
// encoding. Tag layout: 'T', 'S', version, purpose.
const BinaryTagLength = 4

// BinaryTag returns the 4-byte tag that prefixes a binary-encoded message for
// the given purpose.
func BinaryTag(p Purpose) [BinaryTagLength]byte {
	return [BinaryTagLength]byte{'T', 'S', BinaryMessageVersion, byte(p)}
}

// MatchBinaryTag reports the purpose encoded in a binary tag prefix, if the
// prefix matches a known tag.
func MatchBinaryTag(bz []byte) (Purpose, bool) {
	if len(bz) < BinaryTagLength {
		return 0, false
	}
	if bz[0] != 'T' || bz[1] != 'S' || bz[2] != BinaryMessageVersion {
		return 0, false
	}
	p := Purpose(bz[3])
	if !p.Valid() {
		return 0, false
	}
	return p, true
}

// BridgeMessage is the decoded form of one cross-network message,
// independent of which wire encoding carried it.
type BridgeMessage struct {
	Purpose       Purpose
	RequestID     [32]byte // identifier assigned by the origin engine, unique per source domain
	SourceDomain  Domain
	DestDomain    Domain
	Recipient     RecipientID
	Token         common.Address
	Amount        math.Int
	QuoteTime     uint64
	FillDeadline  uint64
	BridgeFeeRate uint64
	Path          []common.Address // swap path on the receiving network, may be empty
}

// Binary wire layout. All integers little-endian, variable-length path
// prefixed by a 2-byte element count of 32-byte entries.
const (
	tagIndex           = 0
	requestIDIndex     = 4
	sourceDomainIndex  = 36
	destDomainIndex    = 40
	recipientIndex     = 44
	tokenIndex         = 76
	amountIndex        = 108
	quoteTimeIndex     = 140
	fillDeadlineIndex  = 148
	bridgeFeeRateIndex = 156
	pathLenIndex       = 164
	binaryFixedLength  = 166
)

var ErrMalformedMessage = errors.New("malformed bridge message")

// EncodeBinary encodes the message in the fixed-width little-endian format
// used for networks without self-describing encoding support.
func (m *BridgeMessage) EncodeBinary() ([]byte, error) {
	if !m.Purpose.Valid() {
		return nil, fmt.Errorf("%w: invalid purpose %d", ErrMalformedMessage, m.Purpose)
	}
	if len(m.Path) > 0xffff {
		return nil, fmt.Errorf("%w: path too long", ErrMalformedMessage)
	}

	bz := make([]byte, binaryFixedLength+32*len(m.Path))
	tag := BinaryTag(m.Purpose)
	copy(bz[tagIndex:], tag[:])
	copy(bz[requestIDIndex:], m.RequestID[:])
	binary.LittleEndian.PutUint32(bz[sourceDomainIndex:], uint32(m.SourceDomain))
	binary.LittleEndian.PutUint32(bz[destDomainIndex:], uint32(m.DestDomain))
	copy(bz[recipientIndex:], m.Recipient[:])
	copy(bz[tokenIndex+12:], m.Token.Bytes())
	if err := putAmountLE(bz[amountIndex:amountIndex+32], m.Amount); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint64(bz[quoteTimeIndex:], m.QuoteTime)
	binary.LittleEndian.PutUint64(bz[fillDeadlineIndex:], m.FillDeadline)
	binary.LittleEndian.PutUint64(bz[bridgeFeeRateIndex:], m.BridgeFeeRate)
	binary.LittleEndian.PutUint16(bz[pathLenIndex:], uint16(len(m.Path)))
	for i, hop := range m.Path {
		copy(bz[binaryFixedLength+32*i+12:], hop.Bytes())
	}
	return bz, nil
}

// ParseBinary parses a fixed-width little-endian message. The caller is
// expected to have matched the tag prefix first.
func (m *BridgeMessage) ParseBinary(bz []byte) (*BridgeMessage, error) {
	if len(bz) < binaryFixedLength {
		return nil, fmt.Errorf("%w: %d bytes, want at least %d", ErrMalformedMessage, len(bz), binaryFixedLength)
	}
	purpose, ok := MatchBinaryTag(bz[tagIndex:requestIDIndex])
	if !ok {
		return nil, fmt.Errorf("%w: unknown binary tag", ErrMalformedMessage)
	}

	m.Purpose = purpose
	copy(m.RequestID[:], bz[requestIDIndex:sourceDomainIndex])
	m.SourceDomain = Domain(binary.LittleEndian.Uint32(bz[sourceDomainIndex:destDomainIndex]))
	m.DestDomain = Domain(binary.LittleEndian.Uint32(bz[destDomainIndex:recipientIndex]))
	copy(m.Recipient[:], bz[recipientIndex:tokenIndex])
	m.Token = common.BytesToAddress(bz[tokenIndex+12 : amountIndex])
	m.Amount = amountLE(bz[amountIndex : amountIndex+32])
	m.QuoteTime = binary.LittleEndian.Uint64(bz[quoteTimeIndex:fillDeadlineIndex])
	m.FillDeadline = binary.LittleEndian.Uint64(bz[fillDeadlineIndex:bridgeFeeRateIndex])
	m.BridgeFeeRate = binary.LittleEndian.Uint64(bz[bridgeFeeRateIndex:pathLenIndex])

	pathLen := int(binary.LittleEndian.Uint16(bz[pathLenIndex:binaryFixedLength]))
	if len(bz) != binaryFixedLength+32*pathLen {
		return nil, fmt.Errorf("%w: path length mismatch", ErrMalformedMessage)
	}
	m.Path = make([]common.Address, pathLen)
	for i := 0; i < pathLen; i++ {
		off := binaryFixedLength + 32*i
		m.Path[i] = common.BytesToAddress(bz[off+12 : off+32])
	}
	return m, nil
}

// putAmountLE writes a non-negative amount as 32 little-endian bytes.
func putAmountLE(dst []byte, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: amount must be non-negative", ErrMalformedMessage)
	}
	be := amount.BigInt().Bytes()
	if len(be) > 32 {
		return fmt.Errorf("%w: amount overflows 32 bytes", ErrMalformedMessage)
	}
	for i, b := range be {
		dst[len(be)-1-i] = b
	}
	return nil
}

// amountLE reads a 32-byte little-endian amount.
func amountLE(bz []byte) math.Int {
	be := make([]byte, len(bz))
	for i, b := range bz {
		be[len(bz)-1-i] = b
	}
	return math.NewIntFromBigInt(new(big.Int).SetBytes(be))
}
