// Package filler implements the instant fast-settlement market: a third
// party pre-funds a recipient against a precisely-matched pending
// settlement and is reimbursed once the underlying value arrives.
package filler

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/teleportdao/teleswap-engine/types"
)

var (
	ErrUnderpaid     = errors.New("fill amount after bridge fee is below the requested amount")
	ErrAlreadyFilled = errors.New("fill record already exists for these terms")
)

// Terms is the full tuple a fill must match. Uniqueness of this tuple is
// the concurrency-control primitive: two fillers racing with identical terms
// cannot both win, while different terms produce independent keys.
type Terms struct {
	RequestID       [32]byte
	Recipient       types.RecipientID
	Asset           common.Address
	RequestedAmount math.Int
	DestDomain      types.Domain
	BridgeFeeRate   uint64
}

// Key hashes the packed tuple into the fill record key.
func (t Terms) Key() common.Hash {
	bz := make([]byte, 0, 32+32+20+32+4+8)
	bz = append(bz, t.RequestID[:]...)
	bz = append(bz, t.Recipient[:]...)
	bz = append(bz, t.Asset.Bytes()...)
	amount := make([]byte, 32)
	t.RequestedAmount.BigInt().FillBytes(amount)
	bz = append(bz, amount...)
	bz = binary.BigEndian.AppendUint32(bz, uint32(t.DestDomain))
	bz = binary.BigEndian.AppendUint64(bz, t.BridgeFeeRate)
	return crypto.Keccak256Hash(bz)
}

// Market records fills keyed by their full terms tuple.
type Market struct {
	mu    sync.Mutex
	fills map[common.Hash]common.Address

	ledger        types.AssetLedger
	localDomain   types.Domain
	wrappedNative common.Address
	logger        log.Logger
}

func NewMarket(ledger types.AssetLedger, localDomain types.Domain, wrappedNative common.Address, logger log.Logger) *Market {
	return &Market{
		fills:         map[common.Hash]common.Address{},
		ledger:        ledger,
		localDomain:   localDomain,
		wrappedNative: wrappedNative,
		logger:        logger,
	}
}

// Fill advances fillAmount from the filler to the recipient against a
// pending settlement. The fill record is written before the transfer, so a
// reentrant ledger cannot double-fill the same terms.
func (m *Market) Fill(ctx context.Context, fillerAddr common.Address, terms Terms, fillAmount math.Int) error {
	final := afterBridgeFee(fillAmount, terms.BridgeFeeRate)
	if final.LT(terms.RequestedAmount) {
		return ErrUnderpaid
	}

	key := terms.Key()
	m.mu.Lock()
	if _, exists := m.fills[key]; exists {
		m.mu.Unlock()
		return ErrAlreadyFilled
	}
	m.fills[key] = fillerAddr
	m.mu.Unlock()

	recipient := terms.Recipient.EVMAddress()
	if err := m.ledger.Transfer(ctx, terms.Asset, fillerAddr, recipient, fillAmount); err != nil {
		return err
	}
	if terms.DestDomain == m.localDomain && terms.Asset == m.wrappedNative {
		if err := m.ledger.Unwrap(ctx, terms.Asset, recipient, fillAmount); err != nil {
			return err
		}
	}

	m.logger.Info("request filled",
		"key", key.Hex(),
		"filler", fillerAddr.Hex(),
		"asset", terms.Asset.Hex(),
		"amount", fillAmount,
	)
	return nil
}

// FillerOf looks up the filler recorded for the terms, if any.
func (m *Market) FillerOf(terms Terms) (common.Address, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr, ok := m.fills[terms.Key()]
	return addr, ok
}

// Redeem consumes the fill record during slow-path settlement. The record
// is deleted before the caller pays the filler the underlying value.
func (m *Market) Redeem(terms Terms) (common.Address, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := terms.Key()
	addr, ok := m.fills[key]
	if !ok {
		return common.Address{}, false
	}
	delete(m.fills, key)
	return addr, true
}

// afterBridgeFee returns fillAmount * (1 - bridgeFeeRate/denominator).
func afterBridgeFee(fillAmount math.Int, bridgeFeeRate uint64) math.Int {
	den := math.NewIntFromUint64(types.BridgeFeeDenominator)
	keep := math.NewIntFromUint64(types.BridgeFeeDenominator - bridgeFeeRate)
	return fillAmount.Mul(keep).Quo(den)
}
