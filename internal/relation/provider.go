package relation

import (
	"sync/atomic"

	"github.com/meterflow/meterflow/internal/service"
)

// Provider publishes the current relation snapshot to the rest of the
// application. Before the first Install it reports not ready and hands out a
// nil snapshot; compatibility queries treat that state as "no units". Install
// swaps the snapshot atomically, so long-running passes that captured the
// previous Matrix keep reading a consistent relation.
type Provider struct {
	current atomic.Pointer[Matrix]
}

// NewProvider creates a provider with no relation installed.
func NewProvider() *Provider {
	return &Provider{}
}

// Ready reports whether a relation snapshot has been installed.
func (p *Provider) Ready() bool {
	return p.current.Load() != nil
}

// Snapshot returns the current relation, or nil when none is installed.
func (p *Provider) Snapshot() service.RelationSnapshot {
	m := p.current.Load()
	if m == nil {
		return nil
	}
	return m
}

// Matrix returns the current snapshot with its concrete type, or nil.
func (p *Provider) Matrix() *Matrix {
	return p.current.Load()
}

// Install publishes a new snapshot. A nil matrix is ignored so a failed
// reload can never take an installed relation away.
func (p *Provider) Install(m *Matrix) {
	if m == nil {
		return
	}
	p.current.Store(m)
}
