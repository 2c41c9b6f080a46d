package cmd

import (
	"context"
	"testing"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/teleportdao/teleswap-engine/types"
)

func TestBuildEngineWiresConfig(t *testing.T) {
	_, eng, verifier := testApp(t)

	require.NotNil(t, eng.Orchestrator)
	require.NotNil(t, eng.Fees)
	require.NotNil(t, eng.Messenger)

	// a deposit settles end to end through the assembled engine
	asset := common.HexToAddress("0x0000000000000000000000000000000000000101")
	verifier.Seed([]byte{0x07}, &types.DepositPayment{
		TxID:       [32]byte{0x07},
		InputAsset: asset,
		DestAsset:  asset,
		Amount:     math.NewInt(100_000),
		NetworkFee: math.NewInt(500),
		Recipient:  types.RecipientFromAddress(common.HexToAddress("0x00000000000000000000000000000000000000d1")),
		DestDomain: 2,
	})

	req, err := eng.Orchestrator.HandleDeposit(context.Background(), common.Address{}, []byte{0x07})
	require.NoError(t, err)
	require.Equal(t, types.Completed, req.Status)
	require.Equal(t, math.NewInt(98_998), req.Remaining)
}

func TestProcessJobDeposit(t *testing.T) {
	a, eng, verifier := testApp(t)

	asset := common.HexToAddress("0x0000000000000000000000000000000000000101")
	verifier.Seed([]byte{0x08}, &types.DepositPayment{
		TxID:       [32]byte{0x08},
		InputAsset: asset,
		DestAsset:  asset,
		Amount:     math.NewInt(10_000),
		NetworkFee: math.NewInt(50),
		Recipient:  types.RecipientFromAddress(common.HexToAddress("0x00000000000000000000000000000000000000d1")),
		DestDomain: 2,
	})

	a.processJob(context.Background(), eng, &Job{
		Kind:  jobKindDeposit,
		Proof: []byte{0x08},
	})

	req, ok := eng.Orchestrator.State().Load(types.DepositRequestKey([32]byte{0x08}))
	require.True(t, ok)
	require.Equal(t, types.Completed, req.Status)
}
