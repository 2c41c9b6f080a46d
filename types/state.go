package types

import (
	"sync"
)

// StateMap wraps sync.Map with type safety.
// Maps request key -> SettlementRequest.
type StateMap struct {
	Mu       sync.Mutex
	internal sync.Map
}

func NewStateMap() *StateMap {
	return &StateMap{
		Mu:       sync.Mutex{},
		internal: sync.Map{},
	}
}

// Load loads the settlement request stored under a request key.
func (sm *StateMap) Load(key string) (value *SettlementRequest, ok bool) {
	sm.Mu.Lock()
	defer sm.Mu.Unlock()

	internalResult, ok := sm.internal.Load(key)
	if !ok {
		return nil, ok
	}
	return internalResult.(*SettlementRequest), ok
}

func (sm *StateMap) Delete(key string) {
	sm.Mu.Lock()
	defer sm.Mu.Unlock()

	sm.internal.Delete(key)
}

// Store stores a settlement request under its request key.
func (sm *StateMap) Store(key string, value *SettlementRequest) {
	sm.Mu.Lock()
	defer sm.Mu.Unlock()

	sm.internal.Store(key, value)
}

// Range iterates all stored requests in unspecified order.
func (sm *StateMap) Range(f func(key string, value *SettlementRequest) bool) {
	sm.internal.Range(func(k, v any) bool {
		return f(k.(string), v.(*SettlementRequest))
	})
}
