// Package auth resolves capabilities for accounts. The engine only asks
// whether a caller holds a capability by name; who grants them and how is the
// deployment's concern.
package auth

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// CapManager gates admin setters and privileged cancellation
const CapManager = "manager"

// AccessControl answers capability queries for the engine
type AccessControl interface {
	HasCapability(acct common.Address, capability string) bool
}

// Registry is an in-memory AccessControl implementation
type Registry struct {
	mu     sync.RWMutex
	grants map[string]map[common.Address]bool // capability -> holders
}

func NewRegistry() *Registry {
	return &Registry{grants: make(map[string]map[common.Address]bool)}
}

func (r *Registry) Grant(acct common.Address, capability string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.grants[capability] == nil {
		r.grants[capability] = make(map[common.Address]bool)
	}
	r.grants[capability][acct] = true
}

func (r *Registry) Revoke(acct common.Address, capability string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants[capability], acct)
}

func (r *Registry) HasCapability(acct common.Address, capability string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.grants[capability][acct]
}

var _ AccessControl = (*Registry)(nil)
