package filler_test

import (
	"context"
	"testing"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleportdao/teleswap-engine/filler"
	testutil "github.com/teleportdao/teleswap-engine/test_util"
	"github.com/teleportdao/teleswap-engine/types"
)

var (
	fillAsset     = common.HexToAddress("0x5000000000000000000000000000000000000000")
	wrappedNative = common.HexToAddress("0x6000000000000000000000000000000000000000")
	fillerAddr    = common.HexToAddress("0x7000000000000000000000000000000000000000")
	otherFiller   = common.HexToAddress("0x8000000000000000000000000000000000000000")
	recipient     = types.RecipientFromAddress(common.HexToAddress("0x9000000000000000000000000000000000000000"))

	localDomain = types.Domain(2)
)

func terms() filler.Terms {
	return filler.Terms{
		RequestID:       [32]byte{0x09},
		Recipient:       recipient,
		Asset:           fillAsset,
		RequestedAmount: math.NewInt(98_000),
		DestDomain:      5,
		BridgeFeeRate:   200,
	}
}

func newMarket(ledger types.AssetLedger) *filler.Market {
	return filler.NewMarket(ledger, localDomain, wrappedNative, log.NewNopLogger())
}

func TestFillRecordsAndTransfers(t *testing.T) {
	ledger := testutil.NewMockLedger()
	m := newMarket(ledger)

	// 100_000 * (1 - 200/10_000_000) = 99_998 >= 98_000
	require.NoError(t, m.Fill(context.Background(), fillerAddr, terms(), math.NewInt(100_000)))

	require.Len(t, ledger.Transfers, 1)
	assert.Equal(t, fillerAddr, ledger.Transfers[0].From)
	assert.Equal(t, recipient.EVMAddress(), ledger.Transfers[0].To)
	assert.Equal(t, math.NewInt(100_000), ledger.Transfers[0].Amount)
	assert.Empty(t, ledger.Unwraps)

	got, ok := m.FillerOf(terms())
	require.True(t, ok)
	assert.Equal(t, fillerAddr, got)
}

func TestFillRejectsUnderpayment(t *testing.T) {
	m := newMarket(testutil.NewMockLedger())

	tr := terms()
	tr.BridgeFeeRate = 5_000_000 // half the fill is eaten by the bridge fee
	err := m.Fill(context.Background(), fillerAddr, tr, math.NewInt(100_000))
	require.ErrorIs(t, err, filler.ErrUnderpaid)
}

func TestFillExclusivity(t *testing.T) {
	m := newMarket(testutil.NewMockLedger())

	require.NoError(t, m.Fill(context.Background(), fillerAddr, terms(), math.NewInt(100_000)))

	// identical terms: second filler always rejects, regardless of order
	err := m.Fill(context.Background(), otherFiller, terms(), math.NewInt(100_000))
	require.ErrorIs(t, err, filler.ErrAlreadyFilled)

	// different terms create an independent key
	tr := terms()
	tr.RequestedAmount = math.NewInt(97_000)
	require.NoError(t, m.Fill(context.Background(), otherFiller, tr, math.NewInt(100_000)))
}

func TestFillRecordWrittenBeforeTransfer(t *testing.T) {
	ledger := testutil.NewMockLedger()
	m := newMarket(ledger)

	var duringTransfer error
	ledger.OnTransfer = func() {
		// a reentrant fill with the same terms must already see the record
		duringTransfer = m.Fill(context.Background(), otherFiller, terms(), math.NewInt(100_000))
	}

	require.NoError(t, m.Fill(context.Background(), fillerAddr, terms(), math.NewInt(100_000)))
	require.ErrorIs(t, duringTransfer, filler.ErrAlreadyFilled)
	require.Len(t, ledger.Transfers, 1)
}

func TestFillLocalWrappedNativeUnwraps(t *testing.T) {
	ledger := testutil.NewMockLedger()
	m := newMarket(ledger)

	tr := terms()
	tr.Asset = wrappedNative
	tr.DestDomain = localDomain
	require.NoError(t, m.Fill(context.Background(), fillerAddr, tr, math.NewInt(100_000)))

	require.Len(t, ledger.Unwraps, 1)
	assert.Equal(t, wrappedNative, ledger.Unwraps[0].Wrapped)
	assert.Equal(t, recipient.EVMAddress(), ledger.Unwraps[0].Holder)
}

func TestRedeemOnce(t *testing.T) {
	m := newMarket(testutil.NewMockLedger())
	require.NoError(t, m.Fill(context.Background(), fillerAddr, terms(), math.NewInt(100_000)))

	addr, ok := m.Redeem(terms())
	require.True(t, ok)
	assert.Equal(t, fillerAddr, addr)

	_, ok = m.Redeem(terms())
	assert.False(t, ok)
}
