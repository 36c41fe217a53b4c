// Package compat answers the only question the rest of the application asks
// about units: which graphic units remain usable for a meter, a set of
// meters, or a group, and what a proposed hierarchy change would do to that
// answer. All decisions read a single relation snapshot taken at the start of
// the pass.
package compat

import (
	"context"

	"github.com/meterflow/meterflow/internal/model"
)

// Hierarchy is the slice of storage the resolver and planner need: unit
// assignments and group structure. service.Storage satisfies it.
type Hierarchy interface {
	GetUnitByID(ctx context.Context, id model.UnitID) (*model.Unit, error)
	GetMeterByID(ctx context.Context, id model.MeterID) (*model.Meter, error)
	GetGroupByID(ctx context.Context, id model.GroupID) (*model.Group, error)
	DeepMeterIDs(ctx context.Context, groupID model.GroupID) ([]model.MeterID, error)
	AncestorGroupIDs(ctx context.Context, groupID model.GroupID) ([]model.GroupID, error)
}
