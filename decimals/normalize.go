// Package decimals rescales amounts between networks that disagree on an
// asset's conventional decimal precision.
package decimals

import (
	"sync"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teleportdao/teleswap-engine/types"
)

// AssetDecimals is the configured precision of one asset on the pivot
// network and on remote networks.
type AssetDecimals struct {
	Pivot  uint8
	Remote uint8
}

// Normalizer rescales hop amounts around a designated pivot network. The
// scaling direction depends on whether the pivot is the source or the
// destination of the hop; hops not touching the pivot pass through
// unchanged.
type Normalizer struct {
	mu     sync.RWMutex
	pivot  types.Domain
	assets map[common.Address]AssetDecimals
}

func NewNormalizer(pivot types.Domain) *Normalizer {
	return &Normalizer{
		pivot:  pivot,
		assets: map[common.Address]AssetDecimals{},
	}
}

// SetAssetDecimals configures the per-asset decimal counts.
func (n *Normalizer) SetAssetDecimals(asset common.Address, dec AssetDecimals) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assets[asset] = dec
}

// Normalize rescales amount for a hop from srcDomain to dstDomain. Division
// rounds down: dust stays with the protocol.
func (n *Normalizer) Normalize(asset common.Address, amount math.Int, srcDomain, dstDomain types.Domain) math.Int {
	n.mu.RLock()
	dec, ok := n.assets[asset]
	pivot := n.pivot
	n.mu.RUnlock()

	if !ok || dec.Pivot == dec.Remote {
		return amount
	}

	switch {
	case srcDomain == pivot && dstDomain != pivot:
		return rescale(amount, dec.Pivot, dec.Remote)
	case dstDomain == pivot && srcDomain != pivot:
		return rescale(amount, dec.Remote, dec.Pivot)
	default:
		return amount
	}
}

func rescale(amount math.Int, from, to uint8) math.Int {
	if to > from {
		return amount.Mul(pow10(to - from))
	}
	return amount.Quo(pow10(from - to))
}

func pow10(exp uint8) math.Int {
	out := math.OneInt()
	ten := math.NewInt(10)
	for i := uint8(0); i < exp; i++ {
		out = out.Mul(ten)
	}
	return out
}
