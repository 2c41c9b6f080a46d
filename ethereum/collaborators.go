package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teleportdao/teleswap-engine/types"
)

func (c *Connector) Mint(ctx context.Context, asset common.Address, lockScriptID [32]byte, to common.Address, amount math.Int) error {
	return c.transact(ctx, c.ledger, "mint", asset, lockScriptID, to, amount.BigInt())
}

func (c *Connector) Burn(ctx context.Context, asset common.Address, from common.Address, amount math.Int) error {
	return c.transact(ctx, c.ledger, "burn", asset, from, amount.BigInt())
}

func (c *Connector) Transfer(ctx context.Context, asset common.Address, from, to common.Address, amount math.Int) error {
	return c.transact(ctx, c.ledger, "transferAsset", asset, from, to, amount.BigInt())
}

func (c *Connector) Approve(ctx context.Context, asset common.Address, owner, spender common.Address, amount math.Int) error {
	return c.transact(ctx, c.ledger, "approveAsset", asset, owner, spender, amount.BigInt())
}

func (c *Connector) Unwrap(ctx context.Context, wrapped common.Address, holder common.Address, amount math.Int) error {
	return c.transact(ctx, c.ledger, "unwrap", wrapped, holder, amount.BigInt())
}

func (c *Connector) BalanceOf(ctx context.Context, asset common.Address, holder common.Address) (math.Int, error) {
	out, err := c.call(ctx, c.ledger, "balanceOf", asset, holder)
	if err != nil {
		return math.ZeroInt(), err
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return math.ZeroInt(), fmt.Errorf("unexpected balanceOf return type %T", out[0])
	}
	return math.NewIntFromBigInt(bal), nil
}

func (c *Connector) Deposit(ctx context.Context, dep types.TransportDeposit) error {
	return c.transact(ctx, c.transport, "deposit",
		dep.Depositor,
		[32]byte(dep.Recipient),
		dep.InputAsset,
		dep.OutputAsset,
		dep.InputAmount.BigInt(),
		dep.OutputAmount.BigInt(),
		uint32(dep.DestDomain),
		[32]byte(dep.ExclusiveFiller),
		dep.QuoteTime,
		dep.FillDeadline,
		dep.Message,
	)
}

func (c *Connector) VerifyDeposit(ctx context.Context, proof []byte) (*types.DepositPayment, error) {
	out, err := c.call(ctx, c.verifier, "verifyDeposit", proof)
	if err != nil {
		return nil, err
	}
	if len(out) != 11 {
		return nil, fmt.Errorf("unexpected verifyDeposit return arity %d", len(out))
	}

	payment := &types.DepositPayment{
		TxID:         out[0].([32]byte),
		SourceDomain: types.Domain(out[1].(uint32)),
		LockScriptID: out[2].([32]byte),
		InputAsset:   out[3].(common.Address),
		Amount:       math.NewIntFromBigInt(out[4].(*big.Int)),
		Recipient:    types.RecipientID(out[5].([32]byte)),
		DestDomain:   types.Domain(out[6].(uint32)),
		DestAsset:    out[7].(common.Address),
		NetworkFee:   math.NewIntFromBigInt(out[8].(*big.Int)),
		ThirdPartyID: out[9].(uint32),
		Path:         out[10].([]common.Address),
	}
	return payment, nil
}

func (c *Connector) Distribute(ctx context.Context, lockScriptID [32]byte, asset common.Address, amount math.Int) error {
	if c.distributor == nil {
		return fmt.Errorf("no distributor contract configured")
	}
	return c.transact(ctx, c.distributor, "distribute", lockScriptID, asset, amount.BigInt())
}

// Swap dry-runs the exchange via eth_call to learn the outcome, then sends
// the transaction only when the dry run reports success. A declined dry run
// is a soft failure, not an error.
func (c *Connector) Swap(ctx context.Context, req types.SwapRequest) (bool, []math.Int, error) {
	args := []interface{}{
		req.AmountIn.BigInt(),
		req.AmountBound.BigInt(),
		req.Path,
		req.Recipient,
		req.Deadline,
		req.FixedInput,
	}

	out, err := c.call(ctx, c.exchange, "swap", args...)
	if err != nil {
		return false, nil, err
	}
	if len(out) != 2 {
		return false, nil, fmt.Errorf("unexpected swap return arity %d", len(out))
	}
	success := out[0].(bool)
	if !success {
		return false, nil, nil
	}

	raw := out[1].([]*big.Int)
	amounts := make([]math.Int, len(raw))
	for i, v := range raw {
		amounts[i] = math.NewIntFromBigInt(v)
	}

	if err := c.transact(ctx, c.exchange, "swap", args...); err != nil {
		return false, nil, err
	}
	return true, amounts, nil
}
