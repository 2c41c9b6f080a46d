// Package engine hosts the route orchestrator: the per-request state
// machine that composes the registry, fee engine, swap executor, failure
// vault, filler market and bridge messenger into one settlement pipeline.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teleportdao/teleswap-engine/bridge"
	"github.com/teleportdao/teleswap-engine/decimals"
	"github.com/teleportdao/teleswap-engine/fees"
	"github.com/teleportdao/teleswap-engine/filler"
	"github.com/teleportdao/teleswap-engine/registry"
	"github.com/teleportdao/teleswap-engine/swap"
	"github.com/teleportdao/teleswap-engine/types"
	"github.com/teleportdao/teleswap-engine/vault"
)

var (
	ErrPaused         = errors.New("engine is paused")
	ErrUnknownRequest = errors.New("unknown settlement request")
	ErrNotWithheld    = errors.New("request is not withheld")
)

// Params is the static configuration of one orchestrator instance.
type Params struct {
	LocalDomain   types.Domain
	EngineAddress common.Address // holds in-flight value on the intermediary ledger
	Treasury      common.Address
	Quarantine    common.Address
	WrappedNative common.Address
	FillWindow    uint64 // seconds past quote time for the outbound fill deadline
	BridgeFeeRate uint64
}

// Collaborators are the external systems the orchestrator consumes.
type Collaborators struct {
	Ledger      types.AssetLedger
	Transport   types.BridgeTransport
	Verifier    types.ProofVerifier
	Distributor types.RewardDistributor // optional
}

// Orchestrator drives one settlement request per externally-triggered
// operation. Execution is single-threaded and atomic per operation: opMu is
// held for the whole invocation, and every "has this been processed" marker
// is written before the external call it protects.
type Orchestrator struct {
	opMu sync.Mutex

	params Params
	logger log.Logger

	state      *types.StateMap
	registry   *registry.Registry
	fees       *fees.Engine
	swaps      *swap.Executor
	vault      *vault.FailureVault
	market     *filler.Market
	messenger  *bridge.Messenger
	normalizer *decimals.Normalizer
	collab     Collaborators
	metrics    *PromMetrics

	mu           sync.Mutex
	paused       bool
	thirdParties map[uint32]common.Address

	now func() time.Time
}

func New(
	params Params,
	logger log.Logger,
	reg *registry.Registry,
	feeEngine *fees.Engine,
	swapExec *swap.Executor,
	failVault *vault.FailureVault,
	market *filler.Market,
	messenger *bridge.Messenger,
	normalizer *decimals.Normalizer,
	collab Collaborators,
	metrics *PromMetrics,
) *Orchestrator {
	return &Orchestrator{
		params:       params,
		logger:       logger,
		state:        types.NewStateMap(),
		registry:     reg,
		fees:         feeEngine,
		swaps:        swapExec,
		vault:        failVault,
		market:       market,
		messenger:    messenger,
		normalizer:   normalizer,
		collab:       collab,
		metrics:      metrics,
		thirdParties: map[uint32]common.Address{},
		now:          time.Now,
	}
}

// State exposes the request map for the status API.
func (o *Orchestrator) State() *types.StateMap {
	return o.state
}

// Pause stops accepting new deposits and bridge messages. Recovery entry
// points stay available.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = true
}

func (o *Orchestrator) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = false
}

func (o *Orchestrator) isPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

// SetThirdPartyBeneficiary maps an integrator id to its fee beneficiary.
func (o *Orchestrator) SetThirdPartyBeneficiary(id uint32, addr common.Address) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.thirdParties[id] = addr
}

func (o *Orchestrator) thirdPartyBeneficiary(id uint32) (common.Address, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	addr, ok := o.thirdParties[id]
	return addr, ok
}

// HandleDeposit settles a verified source-network deposit: dedup, fee
// computation, mint, optional swap, then local delivery or bridge hand-off.
// caller is the account that submitted the proof and receives the network
// fee.
func (o *Orchestrator) HandleDeposit(ctx context.Context, caller common.Address, proof []byte) (*types.SettlementRequest, error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	if o.isPaused() {
		return nil, ErrPaused
	}

	payment, err := o.collab.Verifier.VerifyDeposit(ctx, proof)
	if err != nil {
		return nil, fmt.Errorf("proof verification failed: %w", err)
	}

	// mark-as-used before minting
	if alreadyProcessed := o.registry.RegisterDeposit(payment.TxID); alreadyProcessed {
		return o.duplicateDeposit(payment)
	}

	req := types.NewDepositRequest(payment.TxID)
	req.SourceDomain = payment.SourceDomain
	req.IntermediaryDomain = o.params.LocalDomain
	req.DestDomain = payment.DestDomain
	req.InputAsset = payment.InputAsset
	req.InputAmount = payment.Amount
	req.DestAsset = payment.DestAsset
	req.Recipient = payment.Recipient
	req.ThirdPartyID = payment.ThirdPartyID
	req.BridgeFeeRate = o.params.BridgeFeeRate
	if len(payment.Path) > 0 {
		req.IntermediaryAsset = payment.Path[len(payment.Path)-1]
	} else {
		req.IntermediaryAsset = payment.InputAsset
	}
	o.state.Store(req.RequestKey(), req)

	breakdown, err := o.fees.ComputeBreakdown(o.params.LocalDomain, payment.InputAsset, payment.ThirdPartyID, payment.Amount, payment.NetworkFee)
	if err != nil {
		req.SetStatus(types.Refunded)
		return req, err
	}
	if err := req.ApplyFees(breakdown); err != nil {
		req.SetStatus(types.Refunded)
		return req, err
	}

	if err := o.collab.Ledger.Mint(ctx, payment.InputAsset, payment.LockScriptID, o.params.EngineAddress, payment.Amount); err != nil {
		return req, fmt.Errorf("mint failed: %w", err)
	}

	forwardAmount := req.Remaining
	swapped := forwardAmount
	outAsset := payment.InputAsset

	if len(payment.Path) >= 2 {
		res, err := o.swaps.Execute(ctx, swap.Attempt{
			ExpectedIn:  payment.InputAsset,
			ExpectedOut: req.IntermediaryAsset,
			AmountIn:    forwardAmount,
			AmountBound: math.ZeroInt(),
			Path:        payment.Path,
			Recipient:   o.params.EngineAddress,
			Deadline:    uint64(o.now().Unix()) + o.params.FillWindow,
			FixedInput:  true,
		})
		if err != nil {
			// path endpoint mismatch: hard validation failure, withhold nothing
			req.SetStatus(types.Refunded)
			return req, err
		}
		if !res.Succeeded {
			return req, o.withhold(ctx, req, payment.InputAsset, payment.Path)
		}
		req.SetStatus(types.SwapSucceeded)
		swapped = res.AmountOut()
		outAsset = req.IntermediaryAsset
	} else {
		req.SetStatus(types.SwapSucceeded)
	}

	if err := o.distributeFees(ctx, req, payment.InputAsset, payment.LockScriptID, caller); err != nil {
		return req, err
	}

	if payment.DestDomain == o.params.LocalDomain {
		return req, o.deliverLocal(ctx, req, outAsset, swapped)
	}
	return req, o.bridgeOnward(ctx, req, outAsset, swapped)
}

// duplicateDeposit handles a replayed proof. The deposit was already settled
// and no new source value backs the replay, so nothing is minted; the
// original request is returned untouched.
func (o *Orchestrator) duplicateDeposit(payment *types.DepositPayment) (*types.SettlementRequest, error) {
	o.logger.Info("duplicate deposit ignored",
		"request", types.DepositRequestKey(payment.TxID),
		"asset", payment.InputAsset.Hex(),
		"amount", payment.Amount,
	)
	if o.metrics != nil {
		o.metrics.Duplicates.WithLabelValues(string(types.IDSpaceDeposit)).Inc()
	}
	req, _ := o.state.Load(types.DepositRequestKey(payment.TxID))
	return req, nil
}

// deliverLocal completes a request whose destination is the intermediary
// network itself.
func (o *Orchestrator) deliverLocal(ctx context.Context, req *types.SettlementRequest, asset common.Address, amount math.Int) error {
	if err := o.settleDelivery(ctx, req, asset, amount); err != nil {
		return err
	}
	req.Remaining = amount
	req.SetStatus(types.DeliveredLocal)
	req.SetStatus(types.Completed)
	o.emitSettled(req, asset, amount)
	return nil
}

// settleDelivery pays either the recorded filler or the recipient. The fill
// record is consumed before the ledger transfer.
func (o *Orchestrator) settleDelivery(ctx context.Context, req *types.SettlementRequest, asset common.Address, amount math.Int) error {
	terms := filler.Terms{
		RequestID:       req.RequestID(),
		Recipient:       req.Recipient,
		Asset:           asset,
		RequestedAmount: amount,
		DestDomain:      req.DestDomain,
		BridgeFeeRate:   req.BridgeFeeRate,
	}
	if fillerAddr, filled := o.market.Redeem(terms); filled {
		if err := o.collab.Ledger.Transfer(ctx, asset, o.params.EngineAddress, fillerAddr, amount); err != nil {
			return err
		}
		o.logger.Info("settled to filler",
			"request", req.RequestKey(),
			"filler", fillerAddr.Hex(),
			"asset", asset.Hex(),
			"amount", amount,
		)
		if o.metrics != nil {
			o.metrics.FillerSettlements.WithLabelValues(o.settlementLabels(req)...).Inc()
		}
		return nil
	}

	recipient := req.Recipient.EVMAddress()
	if err := o.collab.Ledger.Transfer(ctx, asset, o.params.EngineAddress, recipient, amount); err != nil {
		return err
	}
	if asset == o.params.WrappedNative && req.DestDomain == o.params.LocalDomain {
		if err := o.collab.Ledger.Unwrap(ctx, asset, recipient, amount); err != nil {
			return err
		}
	}
	return nil
}

// bridgeOnward hands the swapped value to the bridge transport for the next
// hop, embedding a quote timestamp and a bounded fill deadline. Enforcing
// the deadline is the transport's responsibility.
func (o *Orchestrator) bridgeOnward(ctx context.Context, req *types.SettlementRequest, asset common.Address, amount math.Int) error {
	outAmount := o.normalizer.Normalize(req.DestAsset, amount, o.params.LocalDomain, req.DestDomain)
	quoteTime := uint64(o.now().Unix())

	out := &types.BridgeMessage{
		Purpose:       types.PurposeDeliver,
		RequestID:     req.RequestID(),
		SourceDomain:  o.params.LocalDomain,
		DestDomain:    req.DestDomain,
		Recipient:     req.Recipient,
		Token:         req.DestAsset,
		Amount:        outAmount,
		QuoteTime:     quoteTime,
		FillDeadline:  quoteTime + o.params.FillWindow,
		BridgeFeeRate: req.BridgeFeeRate,
	}
	encoded, err := o.messenger.Encode(req.DestDomain, out)
	if err != nil {
		return err
	}

	// the request is marked bridged before the transport call
	req.Remaining = amount
	req.SetStatus(types.BridgedOnward)

	dep := types.TransportDeposit{
		Depositor:    o.params.EngineAddress,
		Recipient:    req.Recipient,
		InputAsset:   asset,
		OutputAsset:  req.DestAsset,
		InputAmount:  amount,
		OutputAmount: outAmount,
		DestDomain:   req.DestDomain,
		QuoteTime:    quoteTime,
		FillDeadline: quoteTime + o.params.FillWindow,
		Message:      encoded,
	}
	if err := o.collab.Transport.Deposit(ctx, dep); err != nil {
		return o.withholdForwarded(req, asset, amount)
	}
	o.emitSettled(req, asset, amount)
	return nil
}

// withhold contains a soft hop failure: fees for the hop are re-credited,
// the full retained amount is recorded in the failure vault, and the request
// waits for an explicitly-authorized recovery call. The engine never
// auto-retries.
func (o *Orchestrator) withhold(ctx context.Context, req *types.SettlementRequest, asset common.Address, path []common.Address) error {
	req.SetStatus(types.SwapFailed)
	req.RollbackFees()

	key := vault.Key{
		Beneficiary: req.Recipient,
		Domain:      req.DestDomain,
		RequestKey:  req.RequestKey(),
		Asset:       asset,
	}
	if err := o.vault.RecordFailure(key, req.Remaining, path); err != nil {
		return err
	}
	req.SetStatus(types.Withheld)
	o.emitFailed(req, asset, req.Remaining)
	return nil
}

// withholdForwarded contains a transport failure after fees were already
// paid out. Nothing is re-credited; only the amount that was about to leave
// the engine is recorded for recovery.
func (o *Orchestrator) withholdForwarded(req *types.SettlementRequest, asset common.Address, amount math.Int) error {
	key := vault.Key{
		Beneficiary: req.Recipient,
		Domain:      req.DestDomain,
		RequestKey:  req.RequestKey(),
		Asset:       asset,
	}
	if err := o.vault.RecordFailure(key, amount, nil); err != nil {
		return err
	}
	req.Remaining = amount
	req.SetStatus(types.Withheld)
	o.emitFailed(req, asset, amount)
	return nil
}

// distributeFees pays the computed breakdown in order: network fee to the
// caller, protocol fee to the treasury, third-party fee to its
// beneficiary, locker fee to the operator (directly, or through the reward
// distributor when one is configured and no third party is attached).
func (o *Orchestrator) distributeFees(ctx context.Context, req *types.SettlementRequest, asset common.Address, lockScriptID [32]byte, caller common.Address) error {
	ledger := o.collab.Ledger
	from := o.params.EngineAddress

	if req.Fees.NetworkFee.IsPositive() {
		if err := ledger.Transfer(ctx, asset, from, caller, req.Fees.NetworkFee); err != nil {
			return err
		}
	}
	if req.Fees.ProtocolFee.IsPositive() {
		if err := ledger.Transfer(ctx, asset, from, o.params.Treasury, req.Fees.ProtocolFee); err != nil {
			return err
		}
	}
	if req.Fees.ThirdPartyFee.IsPositive() {
		beneficiary, ok := o.thirdPartyBeneficiary(req.ThirdPartyID)
		if !ok {
			beneficiary = o.params.Treasury
		}
		if err := ledger.Transfer(ctx, asset, from, beneficiary, req.Fees.ThirdPartyFee); err != nil {
			return err
		}
	}
	if req.Fees.LockerFee.IsPositive() {
		if o.collab.Distributor != nil && req.ThirdPartyID == 0 {
			if err := o.collab.Distributor.Distribute(ctx, lockScriptID, asset, req.Fees.LockerFee); err != nil {
				return err
			}
		} else {
			locker := common.BytesToAddress(lockScriptID[12:])
			if err := ledger.Transfer(ctx, asset, from, locker, req.Fees.LockerFee); err != nil {
				return err
			}
		}
	}
	if req.Fees.BridgeFee.IsPositive() {
		if err := ledger.Transfer(ctx, asset, from, o.params.Treasury, req.Fees.BridgeFee); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) settlementLabels(req *types.SettlementRequest) []string {
	return []string{
		req.Status,
		fmt.Sprintf("%d", req.SourceDomain),
		fmt.Sprintf("%d", req.DestDomain),
	}
}

// emitSettled is the settlement-succeeded event: request identifier,
// asset/amount and the fee breakdown, enough for off-chain reconciliation.
func (o *Orchestrator) emitSettled(req *types.SettlementRequest, asset common.Address, amount math.Int) {
	o.logger.Info("settlement succeeded",
		"request", req.RequestKey(),
		"status", req.Status,
		"asset", asset.Hex(),
		"amount", amount,
		"network_fee", req.Fees.NetworkFee,
		"protocol_fee", req.Fees.ProtocolFee,
		"third_party_fee", req.Fees.ThirdPartyFee,
		"locker_fee", req.Fees.LockerFee,
		"bridge_fee", req.Fees.BridgeFee,
	)
	if o.metrics != nil {
		o.metrics.SettlementsSucceeded.WithLabelValues(o.settlementLabels(req)...).Inc()
	}
}

// emitFailed is the settlement-failed event. Transport-level failures are
// invisible to the engine; correlating them back to the request happens
// off-chain using these fields.
func (o *Orchestrator) emitFailed(req *types.SettlementRequest, asset common.Address, amount math.Int) {
	o.logger.Error("settlement failed",
		"request", req.RequestKey(),
		"status", req.Status,
		"asset", asset.Hex(),
		"amount", amount,
	)
	if o.metrics != nil {
		o.metrics.SettlementsFailed.WithLabelValues(o.settlementLabels(req)...).Inc()
		o.metrics.WithheldValue.WithLabelValues(asset.Hex()).Add(gaugeAmount(amount))
	}
}
