package fees_test

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleportdao/teleswap-engine/fees"
	"github.com/teleportdao/teleswap-engine/types"
)

var testAsset = common.HexToAddress("0x4444444444444444444444444444444444444444")

func boundaries(vals ...int64) []math.Int {
	out := make([]math.Int, len(vals))
	for i, v := range vals {
		out[i] = math.NewInt(v)
	}
	return out
}

func TestTierIndex(t *testing.T) {
	e := fees.NewEngine(30, 20, 200)
	require.NoError(t, e.SetTierBoundaries(boundaries(1_000, 10_000, 100_000)))

	assert.Equal(t, 0, e.TierIndex(math.NewInt(500)))
	// boundaries are exclusive upper bounds: equal amounts fall into the next tier
	assert.Equal(t, 1, e.TierIndex(math.NewInt(1_000)))
	assert.Equal(t, 1, e.TierIndex(math.NewInt(9_999)))
	assert.Equal(t, 2, e.TierIndex(math.NewInt(10_000)))
	assert.Equal(t, 3, e.TierIndex(math.NewInt(100_000)))
	assert.Equal(t, 3, e.TierIndex(math.NewInt(5_000_000)))
}

func TestTierIndexEmptyBoundaries(t *testing.T) {
	e := fees.NewEngine(30, 20, 200)
	assert.Equal(t, 0, e.TierIndex(math.NewInt(1)))
	assert.Equal(t, 0, e.TierIndex(math.NewInt(1_000_000_000)))
}

func TestTierIndexMonotonic(t *testing.T) {
	e := fees.NewEngine(30, 20, 200)
	require.NoError(t, e.SetTierBoundaries(boundaries(1_000, 10_000, 100_000)))

	prev := -1
	for amount := int64(0); amount <= 200_000; amount += 997 {
		idx := e.TierIndex(math.NewInt(amount))
		assert.GreaterOrEqual(t, idx, prev)
		prev = idx
	}

	// one unit below a boundary sits in a strictly lower tier
	for _, b := range []int64{1_000, 10_000, 100_000} {
		assert.Less(t, e.TierIndex(math.NewInt(b-1)), e.TierIndex(math.NewInt(b)))
	}
}

func TestSetTierBoundariesRejectsUnsorted(t *testing.T) {
	e := fees.NewEngine(30, 20, 200)
	err := e.SetTierBoundaries(boundaries(1_000, 1_000))
	require.ErrorIs(t, err, fees.ErrBadBoundaries)
	err = e.SetTierBoundaries(boundaries(10_000, 1_000))
	require.ErrorIs(t, err, fees.ErrBadBoundaries)
}

func TestEffectiveLockerRateFallback(t *testing.T) {
	e := fees.NewEngine(30, 20, 200)
	require.NoError(t, e.SetTierBoundaries(boundaries(1_000)))

	// no override: default rate
	assert.Equal(t, uint64(20), e.EffectiveLockerRate(2, testAsset, 9, math.NewInt(500)))

	key := fees.TierKey{Domain: 2, Asset: testAsset, ThirdPartyID: 9, Tier: 0}
	require.NoError(t, e.SetTierRate(key, 15))
	assert.Equal(t, uint64(15), e.EffectiveLockerRate(2, testAsset, 9, math.NewInt(500)))

	// other tiers still fall back
	assert.Equal(t, uint64(20), e.EffectiveLockerRate(2, testAsset, 9, math.NewInt(2_000)))

	// clearing restores the default
	require.NoError(t, e.SetTierRate(key, 0))
	assert.Equal(t, uint64(20), e.EffectiveLockerRate(2, testAsset, 9, math.NewInt(500)))
}

func TestComputeBreakdown(t *testing.T) {
	e := fees.NewEngine(30, 20, 200)

	breakdown, err := e.ComputeBreakdown(2, testAsset, 0, math.NewInt(100_000), math.NewInt(500))
	require.NoError(t, err)

	assert.Equal(t, math.NewInt(500), breakdown.NetworkFee)
	assert.Equal(t, math.NewInt(300), breakdown.ProtocolFee)
	assert.True(t, breakdown.ThirdPartyFee.IsZero())
	assert.Equal(t, math.NewInt(200), breakdown.LockerFee)
	assert.Equal(t, math.NewInt(2), breakdown.BridgeFee)

	remaining := math.NewInt(100_000).Sub(breakdown.Total())
	assert.Equal(t, math.NewInt(98_998), remaining)
}

func TestComputeBreakdownCapsNetworkFee(t *testing.T) {
	e := fees.NewEngine(0, 0, 0)

	breakdown, err := e.ComputeBreakdown(2, testAsset, 0, math.NewInt(100), math.NewInt(1_000))
	require.NoError(t, err)
	assert.Equal(t, math.NewInt(100), breakdown.NetworkFee)
	assert.Equal(t, math.NewInt(100), breakdown.Total())
}

func TestComputeBreakdownRoundsUp(t *testing.T) {
	e := fees.NewEngine(30, 0, 0)

	// 33 * 30 / 10000 = 0.099 -> 1, protocol keeps the rounding unit
	breakdown, err := e.ComputeBreakdown(2, testAsset, 0, math.NewInt(33), math.ZeroInt())
	require.NoError(t, err)
	assert.Equal(t, math.NewInt(1), breakdown.ProtocolFee)
}

func TestComputeBreakdownThirdParty(t *testing.T) {
	e := fees.NewEngine(30, 20, 200)
	require.NoError(t, e.SetThirdPartyRate(7, 10))

	breakdown, err := e.ComputeBreakdown(2, testAsset, 7, math.NewInt(100_000), math.ZeroInt())
	require.NoError(t, err)
	assert.Equal(t, math.NewInt(100), breakdown.ThirdPartyFee)
}

func TestSetTierRateRejectsOverflow(t *testing.T) {
	e := fees.NewEngine(30, 20, 200)
	err := e.SetTierRate(fees.TierKey{}, types.FeeDenominator+1)
	require.ErrorIs(t, err, fees.ErrRateTooHigh)
}
