package compat

import (
	"context"
	"fmt"

	"github.com/meterflow/meterflow/internal/common"
	"github.com/meterflow/meterflow/internal/model"
	"github.com/meterflow/meterflow/internal/service"
)

// Resolver computes compatible graphic-unit sets from the installed relation
// and the stored hierarchy. Before a relation is installed every query
// resolves to the empty set without error; queries never degrade into a
// failure just because the relation has not arrived yet.
type Resolver struct {
	relation service.RelationSource
	store    Hierarchy
}

// NewResolver creates a resolver over a relation source and the hierarchy.
func NewResolver(relation service.RelationSource, store Hierarchy) *Resolver {
	return &Resolver{
		relation: relation,
		store:    store,
	}
}

// Ready reports whether a relation snapshot is installed.
func (r *Resolver) Ready() bool {
	return r.relation.Ready()
}

// Pin returns a resolver bound to the relation as it is right now, so a
// multi-query pass (menu build, audit) sees one consistent snapshot even if
// a reload swaps the relation mid-pass.
func (r *Resolver) Pin() *Resolver {
	return &Resolver{
		relation: pinnedSource{snap: r.relation.Snapshot()},
		store:    r.store,
	}
}

// pinnedSource serves one fixed snapshot.
type pinnedSource struct {
	snap service.RelationSnapshot
}

func (p pinnedSource) Ready() bool {
	return p.snap != nil
}

func (p pinnedSource) Snapshot() service.RelationSnapshot {
	return p.snap
}

// UnitsCompatibleWithUnit returns the graphic units compatible with one
// source unit. The sentinel id and a missing relation both resolve to the
// empty set; a real unit id absent from an installed relation is a data
// integrity failure and propagates as common.ErrUnitNotFound.
func (r *Resolver) UnitsCompatibleWithUnit(unitID model.UnitID) (model.UnitSet, error) {
	return unitsForUnit(r.relation.Snapshot(), unitID)
}

// UnitsCompatibleWithMeters folds the per-meter compatible sets into their
// intersection. The first meter seeds the accumulator; an empty accumulator
// ends the fold early since no later meter can widen it. An empty meter list
// resolves to the empty set.
func (r *Resolver) UnitsCompatibleWithMeters(ctx context.Context, meterIDs []model.MeterID) (model.UnitSet, error) {
	return r.foldMeters(ctx, r.relation.Snapshot(), meterIDs)
}

// UnitsCompatibleWithGroup resolves the group's deep meter set and folds it.
// Sub-group structure does not matter beyond contributing meters: a group is
// exactly as compatible as the intersection over every meter beneath it.
func (r *Resolver) UnitsCompatibleWithGroup(ctx context.Context, groupID model.GroupID) (model.UnitSet, error) {
	snap := r.relation.Snapshot()
	meterIDs, err := r.store.DeepMeterIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return r.foldMeters(ctx, snap, meterIDs)
}

// UnitsForCandidate resolves the compatible set a menu candidate would bring
// into a group: a meter candidate contributes its single unit's row, a group
// candidate contributes its own deep intersection.
func (r *Resolver) UnitsForCandidate(ctx context.Context, candidate model.Candidate) (model.UnitSet, error) {
	snap := r.relation.Snapshot()

	switch candidate.Kind {
	case model.CandidateMeter:
		meter, err := r.store.GetMeterByID(ctx, model.MeterID(candidate.ID))
		if err != nil {
			return nil, err
		}
		return unitsForUnit(snap, meter.UnitID)
	case model.CandidateGroup:
		meterIDs, err := r.store.DeepMeterIDs(ctx, model.GroupID(candidate.ID))
		if err != nil {
			return nil, err
		}
		return r.foldMeters(ctx, snap, meterIDs)
	default:
		return nil, fmt.Errorf("unknown candidate kind %q", candidate.Kind)
	}
}

// foldMeters intersects the compatible sets of the given meters against one
// relation snapshot.
func (r *Resolver) foldMeters(ctx context.Context, snap service.RelationSnapshot, meterIDs []model.MeterID) (model.UnitSet, error) {
	if len(meterIDs) == 0 {
		return model.NewUnitSet(), nil
	}

	var acc model.UnitSet
	for _, id := range meterIDs {
		meter, err := r.store.GetMeterByID(ctx, id)
		if err != nil {
			return nil, err
		}

		units, err := unitsForUnit(snap, meter.UnitID)
		if err != nil {
			return nil, fmt.Errorf("meter %d: %w", meter.ID, err)
		}

		if acc == nil {
			acc = units
		} else {
			acc = acc.Intersect(units)
		}
		if acc.Empty() {
			return acc, nil
		}
	}

	return acc, nil
}

// unitsForUnit reads one source unit's row off the snapshot.
func unitsForUnit(snap service.RelationSnapshot, unitID model.UnitID) (model.UnitSet, error) {
	units := model.NewUnitSet()
	if unitID == model.NoUnit || snap == nil {
		return units, nil
	}

	row, ok := snap.RowOf(unitID)
	if !ok {
		return nil, fmt.Errorf("%w: source unit %d missing from relation", common.ErrUnitNotFound, unitID)
	}

	for col := 0; col < snap.TargetCount(); col++ {
		if !snap.Compatible(row, col) {
			continue
		}
		id, ok := snap.UnitAtCol(col)
		if !ok {
			return nil, fmt.Errorf("%w: relation column %d has no unit", common.ErrUnitNotFound, col)
		}
		units.Add(id)
	}

	return units, nil
}
