// Package vault persists amounts that could not be forwarded after a partial
// failure, keyed for later explicitly-authorized recovery.
package vault

import (
	"errors"
	"sync"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teleportdao/teleswap-engine/types"
)

var (
	ErrNoRecord         = errors.New("no failed transfer record")
	ErrPathMismatch     = errors.New("retry path endpoints do not match the stored path")
	ErrDuplicateRecord  = errors.New("failed transfer record already exists")
	ErrNonPositiveValue = errors.New("withheld amount must be positive")
)

// Key identifies one failed transfer.
type Key struct {
	Beneficiary types.RecipientID
	Domain      types.Domain
	RequestKey  string
	Asset       common.Address
}

// Record is the withheld amount plus the original forward path, kept so a
// later reverse path can be validated against it.
type Record struct {
	Amount math.Int
	Path   []common.Address
}

// FailureVault stores failed transfer records. A record is deleted before
// any retry credits funds, so retries stay idempotent even if the retry
// itself fails midway.
type FailureVault struct {
	mu      sync.Mutex
	records map[Key]Record
}

func New() *FailureVault {
	return &FailureVault{records: map[Key]Record{}}
}

// RecordFailure stores the withheld amount. Callers must have re-credited
// any tentatively-deducted fees for this hop first.
func (v *FailureVault) RecordFailure(key Key, amount math.Int, path []common.Address) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrNonPositiveValue
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.records[key]; exists {
		return ErrDuplicateRecord
	}
	v.records[key] = Record{
		Amount: amount,
		Path:   append([]common.Address(nil), path...),
	}
	return nil
}

// RecoverOnce reads and deletes the record in one step. The delete happens
// before the caller performs any external action, which is what makes a
// second recovery attempt a no-op.
func (v *FailureVault) RecoverOnce(key Key) (Record, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	rec, ok := v.records[key]
	if !ok {
		return Record{}, ErrNoRecord
	}
	delete(v.records, key)
	return rec, nil
}

// Peek returns the stored record without consuming it.
func (v *FailureVault) Peek(key Key) (Record, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	rec, ok := v.records[key]
	return rec, ok
}

// ValidateRetryPath checks an admin-supplied retry path against the stored
// forward path. A recoverer may choose intermediate routing but may not
// redirect the asset class: the endpoints must match.
func ValidateRetryPath(stored, retry []common.Address) error {
	if len(stored) == 0 {
		// no path was stored; nothing to constrain
		return nil
	}
	if len(retry) == 0 {
		return ErrPathMismatch
	}
	if stored[0] != retry[0] || stored[len(stored)-1] != retry[len(retry)-1] {
		return ErrPathMismatch
	}
	return nil
}
