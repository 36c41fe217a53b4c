package engine

import (
	"context"
	"sync"

	"github.com/meterflow/meterflow/internal/compat"
)

// MockPrompter is a test implementation of the Prompter interface. It
// answers every confirmation with a preset decision and records the plans
// it was shown.
type MockPrompter struct {
	mu      sync.Mutex
	plans   []*compat.Plan
	err     error
	confirm bool
}

// NewMockPrompter creates a mock prompter answering confirm to every plan.
func NewMockPrompter(confirm bool) *MockPrompter {
	return &MockPrompter{confirm: confirm}
}

// ConfirmPlan records the plan and returns the preset decision.
func (m *MockPrompter) ConfirmPlan(_ context.Context, plan *compat.Plan) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.plans = append(m.plans, plan)
	if m.err != nil {
		return false, m.err
	}
	return m.confirm, nil
}

// SetError makes subsequent confirmations fail.
func (m *MockPrompter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Plans returns the plans presented so far.
func (m *MockPrompter) Plans() []*compat.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()

	plans := make([]*compat.Plan, len(m.plans))
	copy(plans, m.plans)
	return plans
}

// CallCount returns how many confirmations were requested.
func (m *MockPrompter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.plans)
}

// Reset clears recorded calls and the preset error.
func (m *MockPrompter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans = nil
	m.err = nil
}
