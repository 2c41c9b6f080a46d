package types

import (
	"context"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// The engine consumes the asset ledger, exchange adapter, bridge transport,
// proof verifier and reward distributor through these interfaces. Their
// implementations live outside this repository; test doubles live in
// test_util.

// AssetLedger is the mint/burn/transfer surface of the intermediary
// network's token ledger.
type AssetLedger interface {
	// Mint credits newly-represented value, attributed to the locker
	// custodying the original deposit.
	Mint(ctx context.Context, asset common.Address, lockScriptID [32]byte, to common.Address, amount math.Int) error

	// Burn retires represented value after it was transferred to the ledger.
	Burn(ctx context.Context, asset common.Address, from common.Address, amount math.Int) error

	Transfer(ctx context.Context, asset common.Address, from, to common.Address, amount math.Int) error

	Approve(ctx context.Context, asset common.Address, owner, spender common.Address, amount math.Int) error

	// Unwrap converts a wrapped-native balance into the native asset.
	Unwrap(ctx context.Context, wrapped common.Address, holder common.Address, amount math.Int) error

	BalanceOf(ctx context.Context, asset common.Address, holder common.Address) (math.Int, error)
}

// SwapRequest describes one attempted exchange.
type SwapRequest struct {
	AmountIn    math.Int
	AmountBound math.Int // min output when FixedInput, max input otherwise
	Path        []common.Address
	Recipient   common.Address
	Deadline    uint64 // unix seconds
	FixedInput  bool
}

// ExchangeAdapter performs swaps on a decentralized market maker. A failed
// swap returns success=false; the error return is reserved for requests the
// adapter could not even attempt.
type ExchangeAdapter interface {
	Swap(ctx context.Context, req SwapRequest) (success bool, amounts []math.Int, err error)
}

// TransportDeposit is one outbound hand-off to the bridge transport.
type TransportDeposit struct {
	Depositor       common.Address
	Recipient       RecipientID
	InputAsset      common.Address
	OutputAsset     common.Address
	InputAmount     math.Int
	OutputAmount    math.Int
	DestDomain      Domain
	ExclusiveFiller RecipientID // zero when any filler may fill
	QuoteTime       uint64
	FillDeadline    uint64 // enforced by the transport, not this engine
	Message         []byte
}

// BridgeTransport moves value and messages between networks. Delivery is
// asynchronous and may be duplicated or reordered.
type BridgeTransport interface {
	Deposit(ctx context.Context, dep TransportDeposit) error
}

// DepositPayment is the parsed result of a verified source-network deposit.
type DepositPayment struct {
	TxID         [32]byte
	SourceDomain Domain
	LockScriptID [32]byte // locker custodying the original asset
	InputAsset   common.Address
	Amount       math.Int
	Recipient    RecipientID
	DestDomain   Domain
	DestAsset    common.Address
	NetworkFee   math.Int
	ThirdPartyID uint32
	Path         []common.Address // requested swap path on the intermediary network
}

// ProofVerifier validates that a source-network deposit occurred and is
// final, returning the canonical transaction id and parsed payment fields.
type ProofVerifier interface {
	VerifyDeposit(ctx context.Context, proof []byte) (*DepositPayment, error)
}

// RewardDistributor optionally routes locker fees through a reward
// distribution collaborator instead of paying the locker directly.
type RewardDistributor interface {
	Distribute(ctx context.Context, lockScriptID [32]byte, asset common.Address, amount math.Int) error
}
