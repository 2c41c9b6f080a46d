package engine

import (
	"context"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teleportdao/teleswap-engine/swap"
	"github.com/teleportdao/teleswap-engine/types"
	"github.com/teleportdao/teleswap-engine/vault"
)

// Recovery entry points for withheld requests. Both stay available while the
// engine is paused, and neither runs automatically: an operator decides per
// request whether to retry or refund. Authorization is enforced at the API
// boundary.

// RetryWithheld re-attempts a withheld transfer. The retry path may reroute
// through different intermediate assets but must keep the stored endpoints.
// The vault record is consumed before any external call; a failed retry
// re-records the amount, so at most one retry can ever move the value.
func (o *Orchestrator) RetryWithheld(ctx context.Context, key vault.Key, retryPath []common.Address) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	req, ok := o.state.Load(key.RequestKey)
	if !ok {
		return ErrUnknownRequest
	}
	if req.Status != types.Withheld {
		return ErrNotWithheld
	}

	rec, found := o.vault.Peek(key)
	if !found {
		return vault.ErrNoRecord
	}
	if err := vault.ValidateRetryPath(rec.Path, retryPath); err != nil {
		return err
	}
	rec, err := o.vault.RecoverOnce(key)
	if err != nil {
		return err
	}

	outAsset := key.Asset
	amount := rec.Amount

	if len(retryPath) >= 2 {
		res, swapErr := o.swaps.Execute(ctx, swap.Attempt{
			ExpectedIn:  retryPath[0],
			ExpectedOut: retryPath[len(retryPath)-1],
			AmountIn:    amount,
			AmountBound: math.ZeroInt(),
			Path:        retryPath,
			Recipient:   o.params.EngineAddress,
			Deadline:    uint64(o.now().Unix()) + o.params.FillWindow,
			FixedInput:  true,
		})
		if swapErr != nil {
			// hard validation failure: the record goes back untouched
			if recErr := o.vault.RecordFailure(key, rec.Amount, rec.Path); recErr != nil {
				return recErr
			}
			return swapErr
		}
		if !res.Succeeded {
			if recErr := o.vault.RecordFailure(key, rec.Amount, rec.Path); recErr != nil {
				return recErr
			}
			o.logger.Info("withheld retry declined", "request", key.RequestKey)
			return nil
		}
		outAsset = retryPath[len(retryPath)-1]
		amount = res.AmountOut()
		req.SetStatus(types.SwapSucceeded)
	}

	o.releaseWithheld(key.Asset, rec.Amount)
	if req.DestDomain == o.params.LocalDomain {
		return o.deliverLocal(ctx, req, outAsset, amount)
	}
	return o.bridgeOnward(ctx, req, outAsset, amount)
}

// RefundWithheld returns a withheld amount to its recorded beneficiary
// instead of retrying the route. The record is consumed before the credit.
func (o *Orchestrator) RefundWithheld(ctx context.Context, key vault.Key) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	req, ok := o.state.Load(key.RequestKey)
	if !ok {
		return ErrUnknownRequest
	}
	if req.Status != types.Withheld {
		return ErrNotWithheld
	}

	rec, err := o.vault.RecoverOnce(key)
	if err != nil {
		return err
	}

	beneficiary := key.Beneficiary.EVMAddress()
	if err := o.collab.Ledger.Transfer(ctx, key.Asset, o.params.EngineAddress, beneficiary, rec.Amount); err != nil {
		return err
	}

	o.releaseWithheld(key.Asset, rec.Amount)
	req.Remaining = rec.Amount
	req.SetStatus(types.Refunded)
	o.logger.Info("withheld amount refunded",
		"request", key.RequestKey,
		"beneficiary", beneficiary.Hex(),
		"asset", key.Asset.Hex(),
		"amount", rec.Amount,
	)
	return nil
}

func (o *Orchestrator) releaseWithheld(asset common.Address, amount math.Int) {
	if o.metrics != nil {
		o.metrics.WithheldValue.WithLabelValues(asset.Hex()).Sub(gaugeAmount(amount))
	}
}
