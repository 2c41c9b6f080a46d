// Package testutil provides shared collaborator doubles for package tests.
package testutil

import (
	"context"
	"sync"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teleportdao/teleswap-engine/types"
)

// MockLedger is an in-memory asset ledger. The On* hooks fire during the
// corresponding call, which lets tests exercise reentrancy at external-call
// boundaries.
type MockLedger struct {
	mu       sync.Mutex
	balances map[common.Address]map[common.Address]math.Int

	Mints     []MintCall
	Burns     []BurnCall
	Transfers []TransferCall
	Unwraps   []UnwrapCall

	OnMint     func()
	OnTransfer func()
}

type MintCall struct {
	Asset        common.Address
	LockScriptID [32]byte
	To           common.Address
	Amount       math.Int
}

type BurnCall struct {
	Asset  common.Address
	From   common.Address
	Amount math.Int
}

type TransferCall struct {
	Asset    common.Address
	From, To common.Address
	Amount   math.Int
}

type UnwrapCall struct {
	Wrapped common.Address
	Holder  common.Address
	Amount  math.Int
}

func NewMockLedger() *MockLedger {
	return &MockLedger{balances: map[common.Address]map[common.Address]math.Int{}}
}

func (l *MockLedger) credit(asset, holder common.Address, amount math.Int) {
	if l.balances[asset] == nil {
		l.balances[asset] = map[common.Address]math.Int{}
	}
	bal, ok := l.balances[asset][holder]
	if !ok {
		bal = math.ZeroInt()
	}
	l.balances[asset][holder] = bal.Add(amount)
}

func (l *MockLedger) Mint(_ context.Context, asset common.Address, lockScriptID [32]byte, to common.Address, amount math.Int) error {
	l.mu.Lock()
	l.Mints = append(l.Mints, MintCall{Asset: asset, LockScriptID: lockScriptID, To: to, Amount: amount})
	l.credit(asset, to, amount)
	hook := l.OnMint
	l.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (l *MockLedger) Burn(_ context.Context, asset common.Address, from common.Address, amount math.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Burns = append(l.Burns, BurnCall{Asset: asset, From: from, Amount: amount})
	l.credit(asset, from, amount.Neg())
	return nil
}

func (l *MockLedger) Transfer(_ context.Context, asset common.Address, from, to common.Address, amount math.Int) error {
	l.mu.Lock()
	l.Transfers = append(l.Transfers, TransferCall{Asset: asset, From: from, To: to, Amount: amount})
	l.credit(asset, from, amount.Neg())
	l.credit(asset, to, amount)
	hook := l.OnTransfer
	l.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (l *MockLedger) Approve(_ context.Context, _ common.Address, _, _ common.Address, _ math.Int) error {
	return nil
}

func (l *MockLedger) Unwrap(_ context.Context, wrapped common.Address, holder common.Address, amount math.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Unwraps = append(l.Unwraps, UnwrapCall{Wrapped: wrapped, Holder: holder, Amount: amount})
	return nil
}

func (l *MockLedger) BalanceOf(_ context.Context, asset common.Address, holder common.Address) (math.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, ok := l.balances[asset][holder]
	if !ok {
		return math.ZeroInt(), nil
	}
	return bal, nil
}

// MockExchangeAdapter swaps at a fixed rate. FailNext/ErrNext make the next
// call decline or error.
type MockExchangeAdapter struct {
	mu    sync.Mutex
	rate  math.LegacyDec
	fail  bool
	err   error
	calls int

	Swaps []types.SwapRequest
}

func NewMockExchangeAdapter(rate math.LegacyDec) *MockExchangeAdapter {
	return &MockExchangeAdapter{rate: rate}
}

func (a *MockExchangeAdapter) FailNext() { a.mu.Lock(); a.fail = true; a.mu.Unlock() }

func (a *MockExchangeAdapter) ErrNext(err error) { a.mu.Lock(); a.err = err; a.mu.Unlock() }

func (a *MockExchangeAdapter) Calls() int { a.mu.Lock(); defer a.mu.Unlock(); return a.calls }

func (a *MockExchangeAdapter) Swap(_ context.Context, req types.SwapRequest) (bool, []math.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls++
	a.Swaps = append(a.Swaps, req)

	if a.err != nil {
		err := a.err
		a.err = nil
		return false, nil, err
	}
	if a.fail {
		a.fail = false
		return false, nil, nil
	}

	out := a.rate.MulInt(req.AmountIn).TruncateInt()
	if req.FixedInput && out.LT(req.AmountBound) {
		return false, nil, nil
	}
	return true, []math.Int{req.AmountIn, out}, nil
}

// MockTransport records outbound bridge deposits. ErrNext makes the next
// call fail.
type MockTransport struct {
	mu       sync.Mutex
	err      error
	Deposits []types.TransportDeposit

	OnDeposit func()
}

func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

func (t *MockTransport) ErrNext(err error) { t.mu.Lock(); t.err = err; t.mu.Unlock() }

func (t *MockTransport) Deposit(_ context.Context, dep types.TransportDeposit) error {
	t.mu.Lock()
	if t.err != nil {
		err := t.err
		t.err = nil
		t.mu.Unlock()
		return err
	}
	t.Deposits = append(t.Deposits, dep)
	hook := t.OnDeposit
	t.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

// MockVerifier returns pre-seeded payments keyed by proof bytes.
type MockVerifier struct {
	mu       sync.Mutex
	payments map[string]*types.DepositPayment
}

func NewMockVerifier() *MockVerifier {
	return &MockVerifier{payments: map[string]*types.DepositPayment{}}
}

func (v *MockVerifier) Seed(proof []byte, payment *types.DepositPayment) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.payments[string(proof)] = payment
}

func (v *MockVerifier) VerifyDeposit(_ context.Context, proof []byte) (*types.DepositPayment, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	payment, ok := v.payments[string(proof)]
	if !ok {
		return nil, ErrUnknownProof
	}
	cp := *payment
	return &cp, nil
}

// MockDistributor records reward distributions.
type MockDistributor struct {
	mu            sync.Mutex
	Distributions []DistributeCall
}

type DistributeCall struct {
	LockScriptID [32]byte
	Asset        common.Address
	Amount       math.Int
}

func NewMockDistributor() *MockDistributor {
	return &MockDistributor{}
}

func (d *MockDistributor) Distribute(_ context.Context, lockScriptID [32]byte, asset common.Address, amount math.Int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Distributions = append(d.Distributions, DistributeCall{LockScriptID: lockScriptID, Asset: asset, Amount: amount})
	return nil
}
