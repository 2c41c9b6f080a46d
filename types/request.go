package types

import (
	"encoding/hex"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Settlement request statuses. A request is created `initiated`, moves
// through exactly one mutation per hop and ends `completed` or `refunded`.
// Terminal requests are flagged, never deleted, so replay protection survives
// completion.
const (
	Initiated      string = "initiated"
	FeesComputed   string = "fees_computed"
	SwapSucceeded  string = "swap_succeeded"
	SwapFailed     string = "swap_failed"
	DeliveredLocal string = "delivered_local"
	BridgedOnward  string = "bridged_onward"
	Withheld       string = "withheld"
	Completed      string = "completed"
	Refunded       string = "refunded"
)

// FeeDenominator is the basis-point style denominator every percentage fee is
// expressed over, except the bridge fee which uses the finer
// BridgeFeeDenominator.
const (
	FeeDenominator       uint64 = 10_000
	BridgeFeeDenominator uint64 = 10_000_000
)

// FeeBreakdown is the computed fee amounts for one settlement request.
type FeeBreakdown struct {
	NetworkFee    math.Int `json:"network_fee"`     // fixed, caller supplied, capped by the input amount
	ProtocolFee   math.Int `json:"protocol_fee"`    // rate over FeeDenominator
	ThirdPartyFee math.Int `json:"third_party_fee"` // rate over FeeDenominator
	LockerFee     math.Int `json:"locker_fee"`      // rate over FeeDenominator, tier table may override
	BridgeFee     math.Int `json:"bridge_fee"`      // rate over BridgeFeeDenominator
}

// Total returns the sum of all fee components.
func (f FeeBreakdown) Total() math.Int {
	return f.NetworkFee.
		Add(f.ProtocolFee).
		Add(f.ThirdPartyFee).
		Add(f.LockerFee).
		Add(f.BridgeFee)
}

// ZeroFeeBreakdown returns a breakdown with every component set to zero.
func ZeroFeeBreakdown() FeeBreakdown {
	return FeeBreakdown{
		NetworkFee:    math.ZeroInt(),
		ProtocolFee:   math.ZeroInt(),
		ThirdPartyFee: math.ZeroInt(),
		LockerFee:     math.ZeroInt(),
		BridgeFee:     math.ZeroInt(),
	}
}

// SettlementRequest is one attempt to move value along a route.
type SettlementRequest struct {
	IDSpace     IDSpace  `json:"id_space"`
	DepositTxID [32]byte `json:"deposit_tx_id"` // set when IDSpace == IDSpaceDeposit
	MessageID   [32]byte `json:"message_id"`    // set when IDSpace == IDSpaceMessage

	SourceDomain       Domain `json:"source_domain"`
	IntermediaryDomain Domain `json:"intermediary_domain"`
	DestDomain         Domain `json:"dest_domain"`

	InputAsset        common.Address `json:"input_asset"`
	InputAmount       math.Int       `json:"input_amount"`
	IntermediaryAsset common.Address `json:"intermediary_asset"`
	DestAsset         common.Address `json:"dest_asset"`
	Recipient         RecipientID    `json:"recipient"`
	ThirdPartyID      uint32         `json:"third_party_id"`

	Fees      FeeBreakdown `json:"fees"`
	Remaining math.Int     `json:"remaining"`

	// BridgeFeeRate is the rate quoted toward fillers for this settlement.
	// Fillers derive their fill terms from it, so it must match the value the
	// origin published.
	BridgeFeeRate uint64 `json:"bridge_fee_rate"`

	Status    string    `json:"status"`
	Completed bool      `json:"completed"`
	Created   time.Time `json:"created"`
	Updated   time.Time `json:"updated"`
}

// NewDepositRequest creates a forward request keyed by the verified source
// transaction id.
func NewDepositRequest(txID [32]byte) *SettlementRequest {
	now := time.Now()
	return &SettlementRequest{
		IDSpace:     IDSpaceDeposit,
		DepositTxID: txID,
		InputAmount: math.ZeroInt(),
		Remaining:   math.ZeroInt(),
		Fees:        ZeroFeeBreakdown(),
		Status:      Initiated,
		Created:     now,
		Updated:     now,
	}
}

// NewMessageRequest creates a reverse request keyed by the request id the
// origin engine embedded in the bridge message.
func NewMessageRequest(sourceDomain Domain, requestID [32]byte) *SettlementRequest {
	now := time.Now()
	return &SettlementRequest{
		IDSpace:      IDSpaceMessage,
		MessageID:    requestID,
		SourceDomain: sourceDomain,
		InputAmount:  math.ZeroInt(),
		Remaining:    math.ZeroInt(),
		Fees:         ZeroFeeBreakdown(),
		Status:       Initiated,
		Created:      now,
		Updated:      now,
	}
}

// RequestKey returns the lookup key for the shared state map. Keys from the
// two identifier spaces cannot collide because the space name is part of the
// key.
func (r *SettlementRequest) RequestKey() string {
	if r.IDSpace == IDSpaceDeposit {
		return DepositRequestKey(r.DepositTxID)
	}
	return MessageRequestKey(r.SourceDomain, r.MessageID)
}

// RequestID returns the 32-byte identifier this settlement is published
// under. Fillers key their fills on it.
func (r *SettlementRequest) RequestID() [32]byte {
	if r.IDSpace == IDSpaceDeposit {
		return r.DepositTxID
	}
	return r.MessageID
}

func DepositRequestKey(txID [32]byte) string {
	return "deposit/0x" + hex.EncodeToString(txID[:])
}

func MessageRequestKey(domain Domain, requestID [32]byte) string {
	return fmt.Sprintf("message/%d/0x%s", domain, hex.EncodeToString(requestID[:]))
}

// ApplyFees records a computed fee breakdown against the input amount. The
// conservation invariant fees + remaining == input holds from here on.
func (r *SettlementRequest) ApplyFees(fees FeeBreakdown) error {
	total := fees.Total()
	if total.GT(r.InputAmount) {
		return fmt.Errorf("fees %s exceed input amount %s", total, r.InputAmount)
	}
	r.Fees = fees
	r.Remaining = r.InputAmount.Sub(total)
	r.Status = FeesComputed
	r.Updated = time.Now()
	return nil
}

// RollbackFees re-credits the deducted fees after a failed hop. Failed hops
// are not charged; fees are only distributed after the hop succeeds, so the
// full breakdown rolls back into Remaining.
func (r *SettlementRequest) RollbackFees() {
	r.Remaining = r.Remaining.Add(r.Fees.Total())
	r.Fees = ZeroFeeBreakdown()
	r.Updated = time.Now()
}

// SetStatus advances the state machine.
func (r *SettlementRequest) SetStatus(status string) {
	r.Status = status
	r.Updated = time.Now()
	if status == Completed || status == Refunded {
		r.Completed = true
	}
}

// Terminal reports whether the request reached a terminal state.
func (r *SettlementRequest) Terminal() bool {
	return r.Status == Completed || r.Status == Refunded
}

// CheckConservation verifies fees + remaining == input.
func (r *SettlementRequest) CheckConservation() error {
	if !r.Fees.Total().Add(r.Remaining).Equal(r.InputAmount) {
		return fmt.Errorf("conservation violated: fees %s + remaining %s != input %s",
			r.Fees.Total(), r.Remaining, r.InputAmount)
	}
	return nil
}
