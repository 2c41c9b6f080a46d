package swap_test

import (
	"context"
	"errors"
	"testing"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleportdao/teleswap-engine/swap"
	testutil "github.com/teleportdao/teleswap-engine/test_util"
)

var (
	tokenIn  = common.HexToAddress("0x1000000000000000000000000000000000000000")
	tokenOut = common.HexToAddress("0x2000000000000000000000000000000000000000")
)

func attempt() swap.Attempt {
	return swap.Attempt{
		ExpectedIn:  tokenIn,
		ExpectedOut: tokenOut,
		AmountIn:    math.NewInt(1_000),
		AmountBound: math.NewInt(900),
		Path:        []common.Address{tokenIn, tokenOut},
		Recipient:   common.HexToAddress("0x3000000000000000000000000000000000000000"),
		Deadline:    1_700_000_600,
		FixedInput:  true,
	}
}

func TestExecuteSuccess(t *testing.T) {
	adapter := testutil.NewMockExchangeAdapter(math.LegacyNewDecWithPrec(95, 2)) // 5% slippage
	e := swap.NewExecutor(adapter, log.NewNopLogger())

	res, err := e.Execute(context.Background(), attempt())
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	assert.Equal(t, math.NewInt(950), res.AmountOut())
}

func TestExecuteSoftFailure(t *testing.T) {
	adapter := testutil.NewMockExchangeAdapter(math.LegacyNewDecWithPrec(95, 2))
	adapter.FailNext()
	e := swap.NewExecutor(adapter, log.NewNopLogger())

	res, err := e.Execute(context.Background(), attempt())
	require.NoError(t, err)
	assert.False(t, res.Succeeded)
	assert.True(t, res.AmountOut().IsZero())
}

func TestExecuteAdapterErrorIsSoft(t *testing.T) {
	adapter := testutil.NewMockExchangeAdapter(math.LegacyNewDecWithPrec(95, 2))
	adapter.ErrNext(errors.New("rpc timeout"))
	e := swap.NewExecutor(adapter, log.NewNopLogger())

	res, err := e.Execute(context.Background(), attempt())
	require.NoError(t, err)
	assert.False(t, res.Succeeded)
}

func TestExecutePathMismatchIsHard(t *testing.T) {
	adapter := testutil.NewMockExchangeAdapter(math.LegacyNewDecWithPrec(95, 2))
	e := swap.NewExecutor(adapter, log.NewNopLogger())

	att := attempt()
	att.Path = []common.Address{tokenOut, tokenIn}
	_, err := e.Execute(context.Background(), att)
	require.ErrorIs(t, err, swap.ErrPathMismatch)
	assert.Zero(t, adapter.Calls())

	att = attempt()
	att.Path = []common.Address{tokenIn}
	_, err = e.Execute(context.Background(), att)
	require.ErrorIs(t, err, swap.ErrEmptyPath)
}
