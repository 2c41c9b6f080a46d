package bridge_test

import (
	"testing"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleportdao/teleswap-engine/bridge"
	"github.com/teleportdao/teleswap-engine/types"
)

var (
	trustedTransport = common.HexToAddress("0xf000000000000000000000000000000000000001")
	strangerAddr     = common.HexToAddress("0xf000000000000000000000000000000000000002")

	binaryDomain     = types.Domain(5)
	structuredDomain = types.Domain(1)
)

func testMessage() *types.BridgeMessage {
	return &types.BridgeMessage{
		Purpose:       types.PurposeDeliver,
		RequestID:     [32]byte{0x11},
		SourceDomain:  2,
		DestDomain:    binaryDomain,
		Recipient:     types.RecipientFromAddress(common.HexToAddress("0x1111111111111111111111111111111111111111")),
		Token:         common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Amount:        math.NewInt(98_998),
		QuoteTime:     1_700_000_000,
		FillDeadline:  1_700_000_600,
		BridgeFeeRate: 200,
		Path:          []common.Address{},
	}
}

func newMessenger() *bridge.Messenger {
	m := bridge.NewMessenger(trustedTransport, 50_000, log.NewNopLogger())
	m.SetBinaryEncoding(binaryDomain, true)
	return m
}

func TestStructuredRoundTrip(t *testing.T) {
	msg := testMessage()

	bz, err := bridge.EncodeStructured(msg)
	require.NoError(t, err)

	parsed, err := bridge.DecodeStructured(bz)
	require.NoError(t, err)
	assert.Equal(t, msg, parsed)
}

func TestEncodePicksPerDomainCodec(t *testing.T) {
	m := newMessenger()
	msg := testMessage()

	binBz, err := m.Encode(binaryDomain, msg)
	require.NoError(t, err)
	_, ok := types.MatchBinaryTag(binBz)
	assert.True(t, ok)

	structBz, err := m.Encode(structuredDomain, msg)
	require.NoError(t, err)
	_, ok = types.MatchBinaryTag(structBz)
	assert.False(t, ok)

	// both decode back to the same message
	fromBin, err := m.Decode(binBz)
	require.NoError(t, err)
	fromStruct, err := m.Decode(structBz)
	require.NoError(t, err)
	assert.Equal(t, fromBin, fromStruct)
}

func TestDecodeMatchesBinaryTagFirst(t *testing.T) {
	m := newMessenger()
	msg := testMessage()

	bz, err := msg.EncodeBinary()
	require.NoError(t, err)

	parsed, err := m.Decode(bz)
	require.NoError(t, err)
	assert.Equal(t, types.PurposeDeliver, parsed.Purpose)
	assert.Equal(t, msg.Amount, parsed.Amount)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	m := newMessenger()

	_, err := m.Decode([]byte{0x01, 0x02, 0x03})
	require.ErrorIs(t, err, bridge.ErrUndecodableMessage)
}

func TestDecodeStructuredRejectsUnknownPurpose(t *testing.T) {
	msg := testMessage()
	msg.Purpose = types.Purpose(99)
	_, err := bridge.EncodeStructured(msg)
	require.ErrorIs(t, err, types.ErrMalformedMessage)
}

func TestDispatchGuards(t *testing.T) {
	m := newMessenger()
	bz, err := bridge.EncodeStructured(testMessage())
	require.NoError(t, err)

	// untrusted caller
	_, err = m.Dispatch(strangerAddr, 100_000, bz)
	require.ErrorIs(t, err, bridge.ErrUntrustedCaller)

	// insufficient budget
	_, err = m.Dispatch(trustedTransport, 10_000, bz)
	require.ErrorIs(t, err, bridge.ErrInsufficientBudget)

	// both guards pass
	msg, err := m.Dispatch(trustedTransport, 100_000, bz)
	require.NoError(t, err)
	assert.Equal(t, types.PurposeDeliver, msg.Purpose)
}

func TestDispatchWithoutTrustedTransport(t *testing.T) {
	m := bridge.NewMessenger(common.Address{}, 0, log.NewNopLogger())
	_, err := m.Dispatch(trustedTransport, 100_000, []byte{})
	require.ErrorIs(t, err, bridge.ErrTransportNotTrusted)
}
