// Package swap invokes the external exchange adapter with bounded slippage.
// A failed swap is a soft failure: it never unwinds value already received
// into the engine.
package swap

import (
	"context"
	"errors"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teleportdao/teleswap-engine/types"
)

var (
	ErrEmptyPath    = errors.New("swap path must name at least the input and output assets")
	ErrPathMismatch = errors.New("swap path endpoints do not match expected assets")
)

// Attempt describes one bounded swap.
type Attempt struct {
	ExpectedIn  common.Address
	ExpectedOut common.Address
	AmountIn    math.Int
	AmountBound math.Int
	Path        []common.Address
	Recipient   common.Address
	Deadline    uint64
	FixedInput  bool
}

// Result is the outcome of a swap attempt. Succeeded=false means the
// adapter declined or failed; received funds stay inside the engine for the
// failure vault to contain.
type Result struct {
	Succeeded bool
	Amounts   []math.Int
}

// AmountOut returns the output amount of a succeeded swap.
func (r Result) AmountOut() math.Int {
	if !r.Succeeded || len(r.Amounts) == 0 {
		return math.ZeroInt()
	}
	return r.Amounts[len(r.Amounts)-1]
}

type Executor struct {
	adapter types.ExchangeAdapter
	logger  log.Logger
}

func NewExecutor(adapter types.ExchangeAdapter, logger log.Logger) *Executor {
	return &Executor{adapter: adapter, logger: logger}
}

// Execute validates the path and invokes the adapter. A path whose first or
// last element doesn't match the expected input/output asset is a hard
// failure with nothing committed. An adapter failure is returned as a
// non-succeeded result, never as an error.
func (e *Executor) Execute(ctx context.Context, att Attempt) (Result, error) {
	if len(att.Path) < 2 {
		return Result{}, ErrEmptyPath
	}
	if att.Path[0] != att.ExpectedIn || att.Path[len(att.Path)-1] != att.ExpectedOut {
		return Result{}, ErrPathMismatch
	}

	success, amounts, err := e.adapter.Swap(ctx, types.SwapRequest{
		AmountIn:    att.AmountIn,
		AmountBound: att.AmountBound,
		Path:        att.Path,
		Recipient:   att.Recipient,
		Deadline:    att.Deadline,
		FixedInput:  att.FixedInput,
	})
	if err != nil {
		e.logger.Error("exchange adapter error", "err", err, "in", att.ExpectedIn, "out", att.ExpectedOut)
		return Result{Succeeded: false}, nil
	}
	if !success {
		e.logger.Info("swap declined by adapter", "in", att.ExpectedIn, "out", att.ExpectedOut, "amount", att.AmountIn)
		return Result{Succeeded: false}, nil
	}
	return Result{Succeeded: true, Amounts: amounts}, nil
}
