package engine_test

import (
	"context"
	"errors"
	"testing"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/teleportdao/teleswap-engine/bridge"
	"github.com/teleportdao/teleswap-engine/decimals"
	"github.com/teleportdao/teleswap-engine/engine"
	"github.com/teleportdao/teleswap-engine/fees"
	"github.com/teleportdao/teleswap-engine/filler"
	"github.com/teleportdao/teleswap-engine/registry"
	"github.com/teleportdao/teleswap-engine/swap"
	testutil "github.com/teleportdao/teleswap-engine/test_util"
	"github.com/teleportdao/teleswap-engine/types"
	"github.com/teleportdao/teleswap-engine/vault"
)

var (
	engineAddr     = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	treasuryAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	quarantineAddr = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	wrappedNative  = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	transportAddr  = common.HexToAddress("0x00000000000000000000000000000000000000a4")
	callerAddr     = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	recipientAddr  = common.HexToAddress("0x00000000000000000000000000000000000000d1")

	assetA = common.HexToAddress("0x0000000000000000000000000000000000000101")
	assetB = common.HexToAddress("0x0000000000000000000000000000000000000102")

	localDomain = types.Domain(2)
)

type fixture struct {
	orch      *engine.Orchestrator
	ledger    *testutil.MockLedger
	adapter   *testutil.MockExchangeAdapter
	transport *testutil.MockTransport
	verifier  *testutil.MockVerifier
	reg       *registry.Registry
	vlt       *vault.FailureVault
	market    *filler.Market
	messenger *bridge.Messenger
	norm      *decimals.Normalizer
	feeEngine *fees.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := log.NewNopLogger()

	f := &fixture{
		ledger:    testutil.NewMockLedger(),
		adapter:   testutil.NewMockExchangeAdapter(math.LegacyOneDec()),
		transport: testutil.NewMockTransport(),
		verifier:  testutil.NewMockVerifier(),
		reg:       registry.New(),
		vlt:       vault.New(),
		feeEngine: fees.NewEngine(30, 20, 200),
		norm:      decimals.NewNormalizer(localDomain),
	}
	f.market = filler.NewMarket(f.ledger, localDomain, wrappedNative, logger)
	f.messenger = bridge.NewMessenger(transportAddr, 100_000, logger)

	f.orch = engine.New(
		engine.Params{
			LocalDomain:   localDomain,
			EngineAddress: engineAddr,
			Treasury:      treasuryAddr,
			Quarantine:    quarantineAddr,
			WrappedNative: wrappedNative,
			FillWindow:    3600,
			BridgeFeeRate: 200,
		},
		logger,
		f.reg,
		f.feeEngine,
		swap.NewExecutor(f.adapter, logger),
		f.vlt,
		f.market,
		f.messenger,
		f.norm,
		engine.Collaborators{
			Ledger:    f.ledger,
			Transport: f.transport,
			Verifier:  f.verifier,
		},
		nil,
	)
	return f
}

func lockScript(addr common.Address) [32]byte {
	var id [32]byte
	copy(id[12:], addr.Bytes())
	return id
}

func localPayment() *types.DepositPayment {
	return &types.DepositPayment{
		TxID:         [32]byte{0x01},
		SourceDomain: 1,
		LockScriptID: lockScript(common.HexToAddress("0x00000000000000000000000000000000000000b1")),
		InputAsset:   assetA,
		Amount:       math.NewInt(100_000),
		Recipient:    types.RecipientFromAddress(recipientAddr),
		DestDomain:   localDomain,
		DestAsset:    assetB,
		NetworkFee:   math.NewInt(500),
		Path:         []common.Address{assetA, assetB},
	}
}

func TestHandleDepositLocalDelivery(t *testing.T) {
	f := newFixture(t)
	f.verifier.Seed([]byte("proof-1"), localPayment())

	req, err := f.orch.HandleDeposit(context.Background(), callerAddr, []byte("proof-1"))
	require.NoError(t, err)
	require.Equal(t, types.Completed, req.Status)
	require.NoError(t, req.CheckConservation())

	// 100_000 in, 500 network + 300 protocol + 200 locker + 2 bridge out
	require.Equal(t, math.NewInt(98_998), req.Remaining)

	require.Len(t, f.ledger.Mints, 1)
	require.Equal(t, engineAddr, f.ledger.Mints[0].To)

	lockerAddr := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	wantTransfers := []testutil.TransferCall{
		{Asset: assetA, From: engineAddr, To: callerAddr, Amount: math.NewInt(500)},
		{Asset: assetA, From: engineAddr, To: treasuryAddr, Amount: math.NewInt(300)},
		{Asset: assetA, From: engineAddr, To: lockerAddr, Amount: math.NewInt(200)},
		{Asset: assetA, From: engineAddr, To: treasuryAddr, Amount: math.NewInt(2)},
		{Asset: assetB, From: engineAddr, To: recipientAddr, Amount: math.NewInt(98_998)},
	}
	require.Equal(t, wantTransfers, f.ledger.Transfers)
}

func TestHandleDepositRegistersBeforeMint(t *testing.T) {
	f := newFixture(t)
	payment := localPayment()
	f.verifier.Seed([]byte("proof-1"), payment)

	var seenAtMint bool
	f.ledger.OnMint = func() {
		seenAtMint = f.reg.SeenDeposit(payment.TxID)
	}

	_, err := f.orch.HandleDeposit(context.Background(), callerAddr, []byte("proof-1"))
	require.NoError(t, err)
	require.True(t, seenAtMint)
}

func TestHandleDepositDuplicateIgnored(t *testing.T) {
	f := newFixture(t)
	f.verifier.Seed([]byte("proof-1"), localPayment())

	first, err := f.orch.HandleDeposit(context.Background(), callerAddr, []byte("proof-1"))
	require.NoError(t, err)
	require.Equal(t, types.Completed, first.Status)

	transfersBefore := len(f.ledger.Transfers)

	second, err := f.orch.HandleDeposit(context.Background(), callerAddr, []byte("proof-1"))
	require.NoError(t, err)
	require.Same(t, first, second)

	// a replayed proof carries no new source value: nothing is minted and
	// no ledger action runs
	require.Len(t, f.ledger.Mints, 1)
	require.Len(t, f.ledger.Transfers, transfersBefore)
}

func TestHandleDepositSwapFailureWithheld(t *testing.T) {
	f := newFixture(t)
	f.verifier.Seed([]byte("proof-1"), localPayment())
	f.adapter.FailNext()

	req, err := f.orch.HandleDeposit(context.Background(), callerAddr, []byte("proof-1"))
	require.NoError(t, err)
	require.Equal(t, types.Withheld, req.Status)

	// failed hops are not charged: fees rolled back, full amount withheld
	require.Equal(t, math.NewInt(100_000), req.Remaining)
	require.True(t, req.Fees.Total().IsZero())
	require.Empty(t, f.ledger.Transfers)

	rec, found := f.vlt.Peek(vault.Key{
		Beneficiary: req.Recipient,
		Domain:      req.DestDomain,
		RequestKey:  req.RequestKey(),
		Asset:       assetA,
	})
	require.True(t, found)
	require.Equal(t, math.NewInt(100_000), rec.Amount)
	require.Equal(t, []common.Address{assetA, assetB}, rec.Path)
}

func TestHandleDepositBridgesOnward(t *testing.T) {
	f := newFixture(t)
	payment := localPayment()
	payment.DestDomain = 3
	f.verifier.Seed([]byte("proof-1"), payment)

	req, err := f.orch.HandleDeposit(context.Background(), callerAddr, []byte("proof-1"))
	require.NoError(t, err)
	require.Equal(t, types.BridgedOnward, req.Status)

	require.Len(t, f.transport.Deposits, 1)
	dep := f.transport.Deposits[0]
	require.Equal(t, math.NewInt(98_998), dep.InputAmount)
	require.Equal(t, math.NewInt(98_998), dep.OutputAmount)
	require.Equal(t, dep.QuoteTime+3600, dep.FillDeadline)

	msg, err := f.messenger.Decode(dep.Message)
	require.NoError(t, err)
	require.Equal(t, types.PurposeDeliver, msg.Purpose)
	require.Equal(t, types.Domain(3), msg.DestDomain)
	require.Equal(t, math.NewInt(98_998), msg.Amount)
	require.Equal(t, req.DepositTxID, msg.RequestID)
}

func TestHandleDepositNormalizesOutboundAmount(t *testing.T) {
	f := newFixture(t)
	payment := localPayment()
	payment.DestDomain = 3
	f.verifier.Seed([]byte("proof-1"), payment)
	f.norm.SetAssetDecimals(assetB, decimals.AssetDecimals{Pivot: 8, Remote: 6})

	_, err := f.orch.HandleDeposit(context.Background(), callerAddr, []byte("proof-1"))
	require.NoError(t, err)

	require.Len(t, f.transport.Deposits, 1)
	dep := f.transport.Deposits[0]
	require.Equal(t, math.NewInt(98_998), dep.InputAmount)
	require.Equal(t, math.NewInt(989), dep.OutputAmount)
}

func TestHandleDepositTransportFailureWithheld(t *testing.T) {
	f := newFixture(t)
	payment := localPayment()
	payment.DestDomain = 3
	f.verifier.Seed([]byte("proof-1"), payment)
	f.transport.ErrNext(errors.New("transport down"))

	req, err := f.orch.HandleDeposit(context.Background(), callerAddr, []byte("proof-1"))
	require.NoError(t, err)
	require.Equal(t, types.Withheld, req.Status)

	// fees were already paid out; only the forwarded amount is withheld
	rec, found := f.vlt.Peek(vault.Key{
		Beneficiary: req.Recipient,
		Domain:      3,
		RequestKey:  req.RequestKey(),
		Asset:       assetB,
	})
	require.True(t, found)
	require.Equal(t, math.NewInt(98_998), rec.Amount)
	require.Empty(t, rec.Path)
}

func TestHandleDepositPathMismatchFails(t *testing.T) {
	f := newFixture(t)
	payment := localPayment()
	payment.Path = []common.Address{assetB, assetA} // endpoints reversed
	f.verifier.Seed([]byte("proof-1"), payment)

	_, err := f.orch.HandleDeposit(context.Background(), callerAddr, []byte("proof-1"))
	require.ErrorIs(t, err, swap.ErrPathMismatch)
}

func TestHandleDepositNoSwapPath(t *testing.T) {
	f := newFixture(t)
	payment := localPayment()
	payment.DestAsset = assetA
	payment.Path = nil
	f.verifier.Seed([]byte("proof-1"), payment)

	req, err := f.orch.HandleDeposit(context.Background(), callerAddr, []byte("proof-1"))
	require.NoError(t, err)
	require.Equal(t, types.Completed, req.Status)

	last := f.ledger.Transfers[len(f.ledger.Transfers)-1]
	require.Equal(t, assetA, last.Asset)
	require.Equal(t, recipientAddr, last.To)
	require.Equal(t, math.NewInt(98_998), last.Amount)
}

func TestHandleDepositThirdPartyFee(t *testing.T) {
	f := newFixture(t)
	beneficiary := common.HexToAddress("0x00000000000000000000000000000000000000f1")
	require.NoError(t, f.feeEngine.SetThirdPartyRate(9, 50))
	f.orch.SetThirdPartyBeneficiary(9, beneficiary)

	payment := localPayment()
	payment.ThirdPartyID = 9
	f.verifier.Seed([]byte("proof-1"), payment)

	req, err := f.orch.HandleDeposit(context.Background(), callerAddr, []byte("proof-1"))
	require.NoError(t, err)
	require.Equal(t, math.NewInt(500), req.Fees.ThirdPartyFee)

	var paid bool
	for _, tr := range f.ledger.Transfers {
		if tr.To == beneficiary && tr.Amount.Equal(math.NewInt(500)) {
			paid = true
		}
	}
	require.True(t, paid)
	require.NoError(t, req.CheckConservation())
}

func TestHandleDepositFillerSettled(t *testing.T) {
	f := newFixture(t)
	payment := localPayment()
	f.verifier.Seed([]byte("proof-1"), payment)

	fillerAddr := common.HexToAddress("0x00000000000000000000000000000000000000f2")
	terms := filler.Terms{
		RequestID:       payment.TxID,
		Recipient:       payment.Recipient,
		Asset:           assetB,
		RequestedAmount: math.NewInt(98_998),
		DestDomain:      localDomain,
		BridgeFeeRate:   200,
	}
	require.NoError(t, f.market.Fill(context.Background(), fillerAddr, terms, math.NewInt(99_100)))

	// the fill record must be consumed before the transfer that pays the
	// filler, so a reentrant redeem cannot double-pay
	var recordSeenAtPayout bool
	f.ledger.OnTransfer = func() {
		last := f.ledger.Transfers[len(f.ledger.Transfers)-1]
		if last.To != fillerAddr {
			return
		}
		if _, ok := f.market.FillerOf(terms); ok {
			recordSeenAtPayout = true
		}
	}

	req, err := f.orch.HandleDeposit(context.Background(), callerAddr, []byte("proof-1"))
	require.NoError(t, err)
	require.Equal(t, types.Completed, req.Status)
	require.False(t, recordSeenAtPayout)

	last := f.ledger.Transfers[len(f.ledger.Transfers)-1]
	require.Equal(t, fillerAddr, last.To)
	require.Equal(t, math.NewInt(98_998), last.Amount)
}

func TestHandleDepositRewardDistributor(t *testing.T) {
	f := newFixture(t)
	dist := testutil.NewMockDistributor()
	f.orch = rebuildEngine(t, f, dist, nil)

	payment := localPayment()
	f.verifier.Seed([]byte("proof-1"), payment)

	_, err := f.orch.HandleDeposit(context.Background(), callerAddr, []byte("proof-1"))
	require.NoError(t, err)

	require.Len(t, dist.Distributions, 1)
	require.Equal(t, payment.LockScriptID, dist.Distributions[0].LockScriptID)
	require.Equal(t, math.NewInt(200), dist.Distributions[0].Amount)
}

func TestPauseBlocksNewWork(t *testing.T) {
	f := newFixture(t)
	f.verifier.Seed([]byte("proof-1"), localPayment())

	f.orch.Pause()
	_, err := f.orch.HandleDeposit(context.Background(), callerAddr, []byte("proof-1"))
	require.ErrorIs(t, err, engine.ErrPaused)

	f.orch.Resume()
	_, err = f.orch.HandleDeposit(context.Background(), callerAddr, []byte("proof-1"))
	require.NoError(t, err)
}

func TestHandleDepositUnknownProof(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.HandleDeposit(context.Background(), callerAddr, []byte("no-such"))
	require.ErrorIs(t, err, testutil.ErrUnknownProof)
}

func rebuildEngine(t *testing.T, f *fixture, dist *testutil.MockDistributor, metrics *engine.PromMetrics) *engine.Orchestrator {
	t.Helper()
	logger := log.NewNopLogger()
	collab := engine.Collaborators{
		Ledger:    f.ledger,
		Transport: f.transport,
		Verifier:  f.verifier,
	}
	if dist != nil {
		collab.Distributor = dist
	}
	return engine.New(
		engine.Params{
			LocalDomain:   localDomain,
			EngineAddress: engineAddr,
			Treasury:      treasuryAddr,
			Quarantine:    quarantineAddr,
			WrappedNative: wrappedNative,
			FillWindow:    3600,
			BridgeFeeRate: 200,
		},
		logger,
		f.reg,
		f.feeEngine,
		swap.NewExecutor(f.adapter, logger),
		f.vlt,
		f.market,
		f.messenger,
		f.norm,
		collab,
		metrics,
	)
}

func TestWithheldMetricsHandleLargeAmounts(t *testing.T) {
	f := newFixture(t)
	f.orch = rebuildEngine(t, f, nil, engine.NewPromMetrics())

	payment := localPayment()
	payment.Amount = math.NewIntWithDecimal(1, 23) // above the int64 range
	f.verifier.Seed([]byte("proof-1"), payment)
	f.adapter.FailNext()

	req, err := f.orch.HandleDeposit(context.Background(), callerAddr, []byte("proof-1"))
	require.NoError(t, err)
	require.Equal(t, types.Withheld, req.Status)
	require.Equal(t, math.NewIntWithDecimal(1, 23), req.Remaining)

	key := vault.Key{
		Beneficiary: req.Recipient,
		Domain:      req.DestDomain,
		RequestKey:  req.RequestKey(),
		Asset:       assetA,
	}
	require.NoError(t, f.orch.RefundWithheld(context.Background(), key))
	require.Equal(t, types.Refunded, req.Status)
}
