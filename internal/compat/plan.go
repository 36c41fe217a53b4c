package compat

import (
	"context"
	"fmt"

	"github.com/meterflow/meterflow/internal/common"
	"github.com/meterflow/meterflow/internal/model"
)

// ChangeKind names a hierarchy mutation the planner can assess.
type ChangeKind string

const (
	// ChangeAddMeter files an unfiled meter into a group.
	ChangeAddMeter ChangeKind = "add-meter"
	// ChangeRemoveMeter unfiles a meter from its group.
	ChangeRemoveMeter ChangeKind = "remove-meter"
	// ChangeAddGroup attaches a root group as a subgroup.
	ChangeAddGroup ChangeKind = "add-group"
	// ChangeRemoveGroup detaches a subgroup back to the root.
	ChangeRemoveGroup ChangeKind = "remove-group"
	// ChangeSetDefault sets or clears a group's default graphic unit.
	ChangeSetDefault ChangeKind = "set-default"
)

// Change describes one proposed mutation of the hierarchy.
type Change struct {
	Kind     ChangeKind
	Group    model.GroupID
	Meter    model.MeterID
	Subgroup model.GroupID
	Unit     model.UnitID
}

// AddMeterChange proposes filing meter into group.
func AddMeterChange(group model.GroupID, meter model.MeterID) Change {
	return Change{Kind: ChangeAddMeter, Group: group, Meter: meter}
}

// RemoveMeterChange proposes unfiling meter from group.
func RemoveMeterChange(group model.GroupID, meter model.MeterID) Change {
	return Change{Kind: ChangeRemoveMeter, Group: group, Meter: meter}
}

// AddGroupChange proposes attaching subgroup under group.
func AddGroupChange(group, subgroup model.GroupID) Change {
	return Change{Kind: ChangeAddGroup, Group: group, Subgroup: subgroup}
}

// RemoveGroupChange proposes detaching subgroup from group.
func RemoveGroupChange(group, subgroup model.GroupID) Change {
	return Change{Kind: ChangeRemoveGroup, Group: group, Subgroup: subgroup}
}

// SetDefaultChange proposes a new default graphic unit for group; the
// sentinel clears it.
func SetDefaultChange(group model.GroupID, unit model.UnitID) Change {
	return Change{Kind: ChangeSetDefault, Group: group, Unit: unit}
}

// Describe renders the change for logs and prompts.
func (c Change) Describe() string {
	switch c.Kind {
	case ChangeAddMeter:
		return fmt.Sprintf("add meter %d to group %d", c.Meter, c.Group)
	case ChangeRemoveMeter:
		return fmt.Sprintf("remove meter %d from group %d", c.Meter, c.Group)
	case ChangeAddGroup:
		return fmt.Sprintf("add group %d to group %d", c.Subgroup, c.Group)
	case ChangeRemoveGroup:
		return fmt.Sprintf("remove group %d from group %d", c.Subgroup, c.Group)
	case ChangeSetDefault:
		if c.Unit == model.NoUnit {
			return fmt.Sprintf("clear default unit of group %d", c.Group)
		}
		return fmt.Sprintf("set default unit of group %d to %d", c.Group, c.Unit)
	default:
		return fmt.Sprintf("unknown change on group %d", c.Group)
	}
}

// Impact is the classified effect of a change on one group.
type Impact struct {
	GroupName     string
	Lost          model.UnitSet
	Remaining     model.UnitSet
	Case          model.ChangeCase
	GroupID       model.GroupID
	DefaultUnitID model.UnitID
	DefaultLost   bool
}

// Verdict aggregates per-group impacts into a single decision.
type Verdict string

const (
	// VerdictSafe means the change costs nothing and applies without asking.
	VerdictSafe Verdict = "SAFE"
	// VerdictNeedsConfirm means units or defaults would be lost and the user
	// decides.
	VerdictNeedsConfirm Verdict = "NEEDS_CONFIRM"
	// VerdictBlocked means some group would be left with no compatible units
	// and the change is refused outright.
	VerdictBlocked Verdict = "BLOCKED"
)

// Plan is the full pre-change assessment: the target group's impact first,
// then every ancestor nearest-first. Plans are computed against a single
// relation snapshot and never mutate anything.
type Plan struct {
	Change   Change
	Warnings []string
	Impacts  []Impact
	Verdict  Verdict
}

// Blocked reports whether the plan forbids applying the change.
func (p *Plan) Blocked() bool {
	return p.Verdict == VerdictBlocked
}

// NeedsConfirmation reports whether the user must approve the change.
func (p *Plan) NeedsConfirmation() bool {
	return p.Verdict == VerdictNeedsConfirm
}

// Target returns the impact on the group named by the change itself.
func (p *Plan) Target() *Impact {
	if len(p.Impacts) == 0 {
		return nil
	}
	return &p.Impacts[0]
}

// WorstCase returns the most severe change case across all impacts.
func (p *Plan) WorstCase() model.ChangeCase {
	worst := model.ChangeNone
	for _, im := range p.Impacts {
		if im.Case.Severity() > worst.Severity() {
			worst = im.Case
		}
	}
	return worst
}

// Planner assesses proposed hierarchy changes. One plan pass reads one
// relation snapshot, so a reload mid-pass cannot mix two relations into a
// single decision.
type Planner struct {
	resolver *Resolver
}

// NewPlanner creates a planner over a resolver.
func NewPlanner(resolver *Resolver) *Planner {
	return &Planner{resolver: resolver}
}

// PlanChange validates the change and classifies its effect on the target
// group and every ancestor. It returns an error only for invalid changes and
// data integrity failures; losing units is an outcome, not an error.
func (p *Planner) PlanChange(ctx context.Context, change Change) (*Plan, error) {
	target, err := p.resolver.store.GetGroupByID(ctx, change.Group)
	if err != nil {
		return nil, err
	}

	switch change.Kind {
	case ChangeAddMeter, ChangeAddGroup:
		return p.planAddition(ctx, change, target)
	case ChangeRemoveMeter, ChangeRemoveGroup:
		return p.planRemoval(ctx, change, target)
	case ChangeSetDefault:
		return p.planSetDefault(ctx, change, target)
	default:
		return nil, fmt.Errorf("unknown change kind %q", change.Kind)
	}
}

// planAddition classifies adding a meter or subgroup. The candidate's own
// compatible set is intersected against each affected group's baseline;
// ancestors see the identical candidate because deep membership is
// transitive.
func (p *Planner) planAddition(ctx context.Context, change Change, target *model.Group) (*Plan, error) {
	snap := p.resolver.relation.Snapshot()

	var candidate model.UnitSet
	switch change.Kind {
	case ChangeAddMeter:
		meter, err := p.resolver.store.GetMeterByID(ctx, change.Meter)
		if err != nil {
			return nil, err
		}
		if meter.GroupID != model.RootGroup {
			return nil, fmt.Errorf("meter %d already belongs to group %d; remove it first", meter.ID, meter.GroupID)
		}
		candidate, err = unitsForUnit(snap, meter.UnitID)
		if err != nil {
			return nil, fmt.Errorf("meter %d: %w", meter.ID, err)
		}
	case ChangeAddGroup:
		sub, err := p.resolver.store.GetGroupByID(ctx, change.Subgroup)
		if err != nil {
			return nil, err
		}
		if sub.ID == target.ID {
			return nil, fmt.Errorf("%w: group %d cannot contain itself", common.ErrHierarchyCycle, sub.ID)
		}
		if !sub.IsRoot() {
			return nil, fmt.Errorf("group %d already belongs to group %d; remove it first", sub.ID, sub.ParentID)
		}
		deep, err := p.resolver.store.DeepMeterIDs(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		candidate, err = p.resolver.foldMeters(ctx, snap, deep)
		if err != nil {
			return nil, err
		}
	}

	affected, err := p.affectedGroups(ctx, change, target)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Change: change}
	if snap == nil {
		plan.Warnings = append(plan.Warnings, "no compatibility relation installed; change is unchecked")
	}

	for _, group := range affected {
		deep, err := p.resolver.store.DeepMeterIDs(ctx, group.ID)
		if err != nil {
			return nil, err
		}
		current, err := p.resolver.foldMeters(ctx, snap, deep)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", group.Name, err)
		}
		plan.Impacts = append(plan.Impacts, buildImpact(group, current, candidate))
	}

	plan.Verdict = verdictFor(change.Kind, plan.Impacts, false)
	return plan, nil
}

// planRemoval classifies removing a meter or subgroup. Each affected group is
// re-folded over its deep meters minus the departing ones; removal can only
// widen a group's set, except that a group left with no meters at all falls
// back to the empty set.
func (p *Planner) planRemoval(ctx context.Context, change Change, target *model.Group) (*Plan, error) {
	snap := p.resolver.relation.Snapshot()

	removed := make(map[model.MeterID]struct{})
	switch change.Kind {
	case ChangeRemoveMeter:
		meter, err := p.resolver.store.GetMeterByID(ctx, change.Meter)
		if err != nil {
			return nil, err
		}
		if meter.GroupID != target.ID {
			return nil, fmt.Errorf("meter %d does not belong to group %d", meter.ID, target.ID)
		}
		removed[meter.ID] = struct{}{}
	case ChangeRemoveGroup:
		sub, err := p.resolver.store.GetGroupByID(ctx, change.Subgroup)
		if err != nil {
			return nil, err
		}
		if sub.ParentID != target.ID {
			return nil, fmt.Errorf("group %d does not belong to group %d", sub.ID, target.ID)
		}
		deep, err := p.resolver.store.DeepMeterIDs(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		for _, id := range deep {
			removed[id] = struct{}{}
		}
	}

	affected, err := p.affectedGroups(ctx, change, target)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Change: change}
	if snap == nil {
		plan.Warnings = append(plan.Warnings, "no compatibility relation installed; change is unchecked")
	}

	for _, group := range affected {
		deep, err := p.resolver.store.DeepMeterIDs(ctx, group.ID)
		if err != nil {
			return nil, err
		}
		kept := make([]model.MeterID, 0, len(deep))
		for _, id := range deep {
			if _, gone := removed[id]; !gone {
				kept = append(kept, id)
			}
		}

		current, err := p.resolver.foldMeters(ctx, snap, deep)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", group.Name, err)
		}
		after, err := p.resolver.foldMeters(ctx, snap, kept)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", group.Name, err)
		}
		plan.Impacts = append(plan.Impacts, buildImpact(group, current, after))
	}

	plan.Verdict = verdictFor(change.Kind, plan.Impacts, false)
	return plan, nil
}

// planSetDefault validates a new default unit against the target group's
// current compatible set. Membership is untouched, so no ancestor can change
// class; the only question is whether the proposed default is usable.
func (p *Planner) planSetDefault(ctx context.Context, change Change, target *model.Group) (*Plan, error) {
	plan := &Plan{Change: change}

	deep, err := p.resolver.store.DeepMeterIDs(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	snap := p.resolver.relation.Snapshot()
	current, err := p.resolver.foldMeters(ctx, snap, deep)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", target.Name, err)
	}

	plan.Impacts = append(plan.Impacts, Impact{
		GroupID:       target.ID,
		GroupName:     target.Name,
		Case:          model.ChangeNone,
		Lost:          model.NewUnitSet(),
		Remaining:     current,
		DefaultUnitID: target.DefaultUnitID,
	})

	needsConfirm := false
	if change.Unit != model.NoUnit {
		unit, err := p.resolver.store.GetUnitByID(ctx, change.Unit)
		if err != nil {
			return nil, err
		}
		if unit.Kind != model.UnitKindGraphic {
			return nil, fmt.Errorf("unit %q is %s-kind; only graphic units can be a group default", unit.Name, unit.Kind)
		}
		switch {
		case snap == nil:
			plan.Warnings = append(plan.Warnings, "no compatibility relation installed; default compatibility not verified")
		case !current.Contains(change.Unit):
			needsConfirm = true
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("unit %q is not among the compatible units of group %q", unit.Name, target.Name))
		}
	}

	plan.Verdict = verdictFor(change.Kind, plan.Impacts, needsConfirm)
	return plan, nil
}

// affectedGroups returns the target group followed by its ancestors
// nearest-first, and rejects changes that would close a cycle.
func (p *Planner) affectedGroups(ctx context.Context, change Change, target *model.Group) ([]*model.Group, error) {
	ancestorIDs, err := p.resolver.store.AncestorGroupIDs(ctx, target.ID)
	if err != nil {
		return nil, err
	}

	if change.Kind == ChangeAddGroup {
		for _, id := range ancestorIDs {
			if id == change.Subgroup {
				return nil, fmt.Errorf("%w: group %d contains group %d", common.ErrHierarchyCycle, change.Subgroup, target.ID)
			}
		}
	}

	groups := make([]*model.Group, 0, len(ancestorIDs)+1)
	groups = append(groups, target)
	for _, id := range ancestorIDs {
		group, err := p.resolver.store.GetGroupByID(ctx, id)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// buildImpact classifies one group against the candidate set and records
// what is lost and kept.
func buildImpact(group *model.Group, current, candidate model.UnitSet) Impact {
	lost := current.Subtract(candidate)
	return Impact{
		GroupID:       group.ID,
		GroupName:     group.Name,
		Case:          Classify(current, candidate, group.DefaultUnitID),
		Lost:          lost,
		Remaining:     current.Intersect(candidate),
		DefaultUnitID: group.DefaultUnitID,
		DefaultLost:   group.HasDefaultUnit() && lost.Contains(group.DefaultUnitID),
	}
}

// verdictFor folds impacts into the single decision. Total loss blocks
// additions outright; on removals it demands confirmation instead, since
// emptying a group is a legitimate teardown step.
func verdictFor(kind ChangeKind, impacts []Impact, needsConfirm bool) Verdict {
	worst := model.ChangeNone
	for _, im := range impacts {
		if im.Case.Severity() > worst.Severity() {
			worst = im.Case
		}
	}

	switch {
	case worst == model.ChangeNoCompatible:
		if kind == ChangeRemoveMeter || kind == ChangeRemoveGroup {
			return VerdictNeedsConfirm
		}
		return VerdictBlocked
	case worst != model.ChangeNone:
		return VerdictNeedsConfirm
	case needsConfirm:
		return VerdictNeedsConfirm
	default:
		return VerdictSafe
	}
}
