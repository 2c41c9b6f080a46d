// Package fees computes the fee breakdown for a settlement request,
// including the tiered locker fee override table.
package fees

import (
	"errors"
	"fmt"
	"sync"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teleportdao/teleswap-engine/types"
)

var (
	ErrFeesExceedAmount = errors.New("fee sum exceeds input amount")
	ErrBadBoundaries    = errors.New("tier boundaries must be strictly ascending")
	ErrRateTooHigh      = errors.New("fee rate exceeds denominator")
)

// TierKey addresses one entry of the tiered locker fee table.
type TierKey struct {
	Domain       types.Domain
	Asset        common.Address
	ThirdPartyID uint32
	Tier         int
}

// Engine holds the globally-shared fee configuration. A single boundary
// array is shared by every (domain, asset, third party) combination; the
// rate table is keyed per combination and tier. A stored rate of 0 means
// unset: fall back to the default locker rate.
type Engine struct {
	mu sync.RWMutex

	boundaries []math.Int // sorted ascending, exclusive upper bounds
	tierRates  map[TierKey]uint64

	protocolRate      uint64
	defaultLockerRate uint64
	bridgeRate        uint64
	thirdPartyRates   map[uint32]uint64
}

func NewEngine(protocolRate, defaultLockerRate, bridgeRate uint64) *Engine {
	return &Engine{
		tierRates:         map[TierKey]uint64{},
		protocolRate:      protocolRate,
		defaultLockerRate: defaultLockerRate,
		bridgeRate:        bridgeRate,
		thirdPartyRates:   map[uint32]uint64{},
	}
}

// SetTierBoundaries replaces the shared boundary array.
func (e *Engine) SetTierBoundaries(boundaries []math.Int) error {
	for i := 1; i < len(boundaries); i++ {
		if !boundaries[i-1].LT(boundaries[i]) {
			return ErrBadBoundaries
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.boundaries = append([]math.Int(nil), boundaries...)
	return nil
}

// SetTierRate stores a locker fee rate override. Storing 0 clears the
// override back to the default.
func (e *Engine) SetTierRate(key TierKey, rate uint64) error {
	if rate > types.FeeDenominator {
		return ErrRateTooHigh
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if rate == 0 {
		delete(e.tierRates, key)
		return nil
	}
	e.tierRates[key] = rate
	return nil
}

// SetThirdPartyRate configures the integrator fee for a third party id.
func (e *Engine) SetThirdPartyRate(id uint32, rate uint64) error {
	if rate > types.FeeDenominator {
		return ErrRateTooHigh
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.thirdPartyRates[id] = rate
	return nil
}

// TierIndex returns the index of the first boundary strictly greater than
// amount, or len(boundaries) if none qualifies. Boundaries are exclusive
// upper bounds: an amount equal to a boundary falls into the next tier. An
// empty boundary array always yields tier 0.
func (e *Engine) TierIndex(amount math.Int) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return tierIndex(e.boundaries, amount)
}

func tierIndex(boundaries []math.Int, amount math.Int) int {
	for i, b := range boundaries {
		if amount.LT(b) {
			return i
		}
	}
	return len(boundaries)
}

// EffectiveLockerRate resolves the locker fee rate for a transfer,
// consulting the tier table and falling back to the default when the stored
// value is the 0 sentinel.
func (e *Engine) EffectiveLockerRate(domain types.Domain, asset common.Address, thirdPartyID uint32, amount math.Int) uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	key := TierKey{
		Domain:       domain,
		Asset:        asset,
		ThirdPartyID: thirdPartyID,
		Tier:         tierIndex(e.boundaries, amount),
	}
	if rate := e.tierRates[key]; rate != 0 {
		return rate
	}
	return e.defaultLockerRate
}

// ComputeBreakdown derives the full fee breakdown for a transfer. The
// network fee is fixed, caller supplied and capped by the amount; every
// other component is a fraction of the amount. Integer rounding is upward,
// so it favors the protocol by at most one unit per component.
func (e *Engine) ComputeBreakdown(
	domain types.Domain,
	asset common.Address,
	thirdPartyID uint32,
	amount math.Int,
	networkFee math.Int,
) (types.FeeBreakdown, error) {
	if networkFee.GT(amount) {
		networkFee = amount
	}

	e.mu.RLock()
	protocolRate := e.protocolRate
	thirdPartyRate := e.thirdPartyRates[thirdPartyID]
	bridgeRate := e.bridgeRate
	e.mu.RUnlock()
	lockerRate := e.EffectiveLockerRate(domain, asset, thirdPartyID, amount)

	breakdown := types.FeeBreakdown{
		NetworkFee:    networkFee,
		ProtocolFee:   feeOf(amount, protocolRate, types.FeeDenominator),
		ThirdPartyFee: feeOf(amount, thirdPartyRate, types.FeeDenominator),
		LockerFee:     feeOf(amount, lockerRate, types.FeeDenominator),
		BridgeFee:     feeOf(amount, bridgeRate, types.BridgeFeeDenominator),
	}

	if breakdown.Total().GT(amount) {
		return types.ZeroFeeBreakdown(), fmt.Errorf("%w: %s > %s", ErrFeesExceedAmount, breakdown.Total(), amount)
	}
	return breakdown, nil
}

// feeOf computes amount * rate / denominator, rounding up.
func feeOf(amount math.Int, rate, denominator uint64) math.Int {
	if rate == 0 {
		return math.ZeroInt()
	}
	den := math.NewIntFromUint64(denominator)
	num := amount.Mul(math.NewIntFromUint64(rate))
	fee := num.Quo(den)
	if !num.Mod(den).IsZero() {
		fee = fee.AddRaw(1)
	}
	return fee
}
