// Package bridge builds outbound cross-network messages and parses inbound
// ones. Two encodings exist side by side: a self-describing ABI encoding
// for networks that support it, and the fixed-width little-endian binary
// encoding in types for networks that do not.
package bridge

import (
	"errors"
	"fmt"
	"sync"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teleportdao/teleswap-engine/types"
)

var (
	ErrUntrustedCaller     = errors.New("caller is not the trusted bridge transport")
	ErrInsufficientBudget  = errors.New("remaining execution budget below dispatch minimum")
	ErrUndecodableMessage  = errors.New("message matches neither encoding")
	ErrTransportNotTrusted = errors.New("no trusted transport configured")
)

// Messenger encodes, decodes and gate-keeps bridge messages.
type Messenger struct {
	mu                sync.RWMutex
	binaryDomains     map[types.Domain]bool
	trustedTransport  common.Address
	minDispatchBudget uint64
	logger            log.Logger
}

func NewMessenger(trustedTransport common.Address, minDispatchBudget uint64, logger log.Logger) *Messenger {
	return &Messenger{
		binaryDomains:     map[types.Domain]bool{},
		trustedTransport:  trustedTransport,
		minDispatchBudget: minDispatchBudget,
		logger:            logger,
	}
}

// SetBinaryEncoding marks a domain as requiring the fixed-width binary
// encoding instead of the structured one.
func (m *Messenger) SetBinaryEncoding(domain types.Domain, binary bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if binary {
		m.binaryDomains[domain] = true
	} else {
		delete(m.binaryDomains, domain)
	}
}

// SetTrustedTransport replaces the trusted bridge transport address.
func (m *Messenger) SetTrustedTransport(addr common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trustedTransport = addr
}

// Encode serializes a message for the given target domain, picking the
// encoding that domain understands.
func (m *Messenger) Encode(target types.Domain, msg *types.BridgeMessage) ([]byte, error) {
	m.mu.RLock()
	binary := m.binaryDomains[target]
	m.mu.RUnlock()

	if binary {
		return msg.EncodeBinary()
	}
	return EncodeStructured(msg)
}

// Decode disambiguates the wire encoding and parses the message. The
// fixed-length binary tag is matched FIRST: a binary payload could
// otherwise be mis-parsed as a structurally-valid but semantically-wrong
// structured message.
func (m *Messenger) Decode(bz []byte) (*types.BridgeMessage, error) {
	if _, ok := types.MatchBinaryTag(bz); ok {
		return new(types.BridgeMessage).ParseBinary(bz)
	}
	msg, err := DecodeStructured(bz)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodableMessage, err)
	}
	return msg, nil
}

// Dispatch validates the inbound call before any state can be touched: the
// sender must be the trusted transport and enough execution budget must
// remain to finish whatever mutation the purpose implies.
func (m *Messenger) Dispatch(sender common.Address, budget uint64, bz []byte) (*types.BridgeMessage, error) {
	m.mu.RLock()
	trusted := m.trustedTransport
	minBudget := m.minDispatchBudget
	m.mu.RUnlock()

	if trusted == (common.Address{}) {
		return nil, ErrTransportNotTrusted
	}
	if sender != trusted {
		return nil, fmt.Errorf("%w: %s", ErrUntrustedCaller, sender.Hex())
	}
	if budget < minBudget {
		return nil, fmt.Errorf("%w: %d < %d", ErrInsufficientBudget, budget, minBudget)
	}

	msg, err := m.Decode(bz)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("dispatching bridge message", "purpose", msg.Purpose.String(), "source", msg.SourceDomain)
	return msg, nil
}
