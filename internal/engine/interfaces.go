package engine

import (
	"context"

	"github.com/meterflow/meterflow/internal/compat"
)

// Prompter presents a plan that needs confirmation and reports the
// operator's decision. Implementations must respect context cancellation.
type Prompter interface {
	// ConfirmPlan returns true when the operator accepts the plan.
	// Declining is not an error.
	ConfirmPlan(ctx context.Context, plan *compat.Plan) (bool, error)
}
