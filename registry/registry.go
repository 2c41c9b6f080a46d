// Package registry is the idempotency root: it remembers which inbound
// deposits and bridge messages have already been accepted, so that a
// duplicate or replayed delivery can never be processed twice to completion.
package registry

import (
	"sync"

	"github.com/teleportdao/teleswap-engine/types"
)

// Registry tracks used request identifiers across the two identifier
// spaces. Deposit-originated requests are keyed by source transaction id,
// message-originated requests by (source domain, request id). The spaces use
// separate maps and cannot collide.
//
// Callers must register BEFORE performing any external call that could
// re-enter the engine. On a duplicate the caller takes a non-destructive
// fallback instead of re-executing side effects.
type Registry struct {
	mu       sync.Mutex
	deposits map[[32]byte]bool
	messages map[types.Domain]map[[32]byte]bool
}

func New() *Registry {
	return &Registry{
		deposits: map[[32]byte]bool{},
		messages: map[types.Domain]map[[32]byte]bool{},
	}
}

// RegisterDeposit marks a deposit transaction id as used. Returns true if it
// was already registered.
func (r *Registry) RegisterDeposit(txID [32]byte) (alreadyProcessed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deposits[txID] {
		return true
	}
	r.deposits[txID] = true
	return false
}

// SeenDeposit reports whether a deposit id is registered, without
// registering it.
func (r *Registry) SeenDeposit(txID [32]byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deposits[txID]
}

// RegisterMessage marks a (source domain, request id) pair as used. Returns
// true if it was already registered.
func (r *Registry) RegisterMessage(domain types.Domain, requestID [32]byte) (alreadyProcessed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.messages[domain]
	if ids == nil {
		ids = map[[32]byte]bool{}
		r.messages[domain] = ids
	}
	if ids[requestID] {
		return true
	}
	ids[requestID] = true
	return false
}
