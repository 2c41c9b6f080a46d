package engine

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teleportdao/teleswap-engine/swap"
	"github.com/teleportdao/teleswap-engine/types"
)

// HandleBridgeMessage processes one inbound bridge message. The transport is
// expected to have credited the engine with amount units of assetSent before
// the call; caller and budget feed the dispatch guards. The message purpose
// selects the leg: deliver, swap then deliver, swap then bridge onward, or
// refund.
func (o *Orchestrator) HandleBridgeMessage(
	ctx context.Context,
	caller common.Address,
	assetSent common.Address,
	amount math.Int,
	budget uint64,
	raw []byte,
) (*types.SettlementRequest, error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	if o.isPaused() {
		return nil, ErrPaused
	}

	msg, err := o.messenger.Dispatch(caller, budget, raw)
	if err != nil {
		return nil, err
	}

	// mark-as-used before touching the ledger
	if alreadyProcessed := o.registry.RegisterMessage(msg.SourceDomain, msg.RequestID); alreadyProcessed {
		return o.quarantineMessage(ctx, msg, assetSent, amount)
	}

	req := types.NewMessageRequest(msg.SourceDomain, msg.RequestID)
	req.IntermediaryDomain = o.params.LocalDomain
	req.DestDomain = msg.DestDomain
	req.InputAsset = assetSent
	req.InputAmount = amount
	req.DestAsset = msg.Token
	req.Recipient = msg.Recipient
	req.BridgeFeeRate = msg.BridgeFeeRate
	if len(msg.Path) > 0 {
		req.IntermediaryAsset = msg.Path[len(msg.Path)-1]
	} else {
		req.IntermediaryAsset = assetSent
	}
	o.state.Store(req.RequestKey(), req)

	// no relaying caller to compensate on message legs
	breakdown, err := o.fees.ComputeBreakdown(o.params.LocalDomain, assetSent, 0, amount, math.ZeroInt())
	if err != nil {
		req.SetStatus(types.Refunded)
		return req, err
	}
	if err := req.ApplyFees(breakdown); err != nil {
		req.SetStatus(types.Refunded)
		return req, err
	}

	switch msg.Purpose {
	case types.PurposeDeliver:
		return req, o.legDeliver(ctx, req, assetSent, caller)
	case types.PurposeSwapAndDeliver:
		return req, o.legSwapAndDeliver(ctx, req, msg, assetSent, caller)
	case types.PurposeSwapAndBridge:
		return req, o.legSwapAndBridge(ctx, req, msg, assetSent, caller)
	case types.PurposeRefund:
		return req, o.legRefund(ctx, req, assetSent, caller)
	default:
		return req, fmt.Errorf("%w: purpose %d", types.ErrMalformedMessage, msg.Purpose)
	}
}

// quarantineMessage is the non-destructive fallback for a replayed message:
// the accompanying value moves to the quarantine holding account.
func (o *Orchestrator) quarantineMessage(ctx context.Context, msg *types.BridgeMessage, assetSent common.Address, amount math.Int) (*types.SettlementRequest, error) {
	if err := o.collab.Ledger.Transfer(ctx, assetSent, o.params.EngineAddress, o.params.Quarantine, amount); err != nil {
		return nil, fmt.Errorf("quarantine transfer failed: %w", err)
	}
	o.logger.Info("duplicate bridge message quarantined",
		"request", types.MessageRequestKey(msg.SourceDomain, msg.RequestID),
		"purpose", msg.Purpose.String(),
		"asset", assetSent.Hex(),
		"amount", amount,
	)
	if o.metrics != nil {
		o.metrics.Duplicates.WithLabelValues(string(types.IDSpaceMessage)).Inc()
	}
	req, _ := o.state.Load(types.MessageRequestKey(msg.SourceDomain, msg.RequestID))
	return req, nil
}

func (o *Orchestrator) legDeliver(ctx context.Context, req *types.SettlementRequest, asset common.Address, caller common.Address) error {
	if err := o.distributeFees(ctx, req, asset, [32]byte{}, caller); err != nil {
		return err
	}
	req.SetStatus(types.SwapSucceeded)
	return o.deliverLocal(ctx, req, asset, req.Remaining)
}

func (o *Orchestrator) legSwapAndDeliver(ctx context.Context, req *types.SettlementRequest, msg *types.BridgeMessage, asset common.Address, caller common.Address) error {
	swapped, ok, err := o.swapLeg(ctx, req, msg, asset)
	if err != nil || !ok {
		return err
	}
	if err := o.distributeFees(ctx, req, asset, [32]byte{}, caller); err != nil {
		return err
	}
	return o.deliverLocal(ctx, req, req.IntermediaryAsset, swapped)
}

func (o *Orchestrator) legSwapAndBridge(ctx context.Context, req *types.SettlementRequest, msg *types.BridgeMessage, asset common.Address, caller common.Address) error {
	swapped, ok, err := o.swapLeg(ctx, req, msg, asset)
	if err != nil || !ok {
		return err
	}
	if err := o.distributeFees(ctx, req, asset, [32]byte{}, caller); err != nil {
		return err
	}
	return o.bridgeOnward(ctx, req, req.IntermediaryAsset, swapped)
}

// legRefund burns the represented asset so custody can release it on the
// originating network. The value moves to the ledger before the burn.
func (o *Orchestrator) legRefund(ctx context.Context, req *types.SettlementRequest, asset common.Address, caller common.Address) error {
	if err := o.distributeFees(ctx, req, asset, [32]byte{}, caller); err != nil {
		return err
	}
	if err := o.collab.Ledger.Burn(ctx, asset, o.params.EngineAddress, req.Remaining); err != nil {
		return err
	}
	req.SetStatus(types.Refunded)
	o.emitSettled(req, asset, req.Remaining)
	return nil
}

// swapLeg runs the message-specified swap. A declined swap withholds the
// value for recovery; fees are only distributed after the swap succeeds, so
// a failed leg is never charged.
func (o *Orchestrator) swapLeg(ctx context.Context, req *types.SettlementRequest, msg *types.BridgeMessage, asset common.Address) (math.Int, bool, error) {
	res, err := o.swaps.Execute(ctx, swap.Attempt{
		ExpectedIn:  asset,
		ExpectedOut: req.IntermediaryAsset,
		AmountIn:    req.Remaining,
		AmountBound: math.ZeroInt(),
		Path:        msg.Path,
		Recipient:   o.params.EngineAddress,
		Deadline:    uint64(o.now().Unix()) + o.params.FillWindow,
		FixedInput:  true,
	})
	if err != nil {
		req.SetStatus(types.Refunded)
		return math.ZeroInt(), false, err
	}
	if !res.Succeeded {
		return math.ZeroInt(), false, o.withhold(ctx, req, asset, msg.Path)
	}
	req.SetStatus(types.SwapSucceeded)
	return res.AmountOut(), true, nil
}
