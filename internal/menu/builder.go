// Package menu computes the decision data behind the add-to-group menu:
// which unfiled meters and root groups could join a group, and what each
// addition would cost in compatible units. Rendering belongs to consumers.
package menu

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/meterflow/meterflow/internal/compat"
	"github.com/meterflow/meterflow/internal/model"
)

// Catalog is the slice of storage the builder reads.
type Catalog interface {
	GetGroupByID(ctx context.Context, id model.GroupID) (*model.Group, error)
	ListMetersByGroup(ctx context.Context, groupID model.GroupID) ([]model.Meter, error)
	ListChildGroups(ctx context.Context, parentID model.GroupID) ([]model.Group, error)
	AncestorGroupIDs(ctx context.Context, id model.GroupID) ([]model.GroupID, error)
}

// Builder enumerates and classifies add-candidates for a group.
type Builder struct {
	resolver *compat.Resolver
	store    Catalog
}

// NewBuilder creates a menu builder.
func NewBuilder(resolver *compat.Resolver, store Catalog) *Builder {
	return &Builder{
		resolver: resolver,
		store:    store,
	}
}

// Options returns one entry per candidate addable to the group: every
// unfiled meter, plus every root group except the group itself and its
// ancestors (those would close a cycle). Disabled is true exactly when the
// addition would leave the group with no compatible units. Meters come
// before groups, each block sorted by label.
func (b *Builder) Options(ctx context.Context, groupID model.GroupID) ([]model.MenuOption, error) {
	group, err := b.store.GetGroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	// One snapshot for the whole menu.
	resolver := b.resolver.Pin()

	current, err := resolver.UnitsCompatibleWithGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	excluded := map[model.GroupID]bool{groupID: true}
	ancestors, err := b.store.AncestorGroupIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	for _, id := range ancestors {
		excluded[id] = true
	}

	unfiled, err := b.store.ListMetersByGroup(ctx, model.RootGroup)
	if err != nil {
		return nil, err
	}
	roots, err := b.store.ListChildGroups(ctx, model.RootGroup)
	if err != nil {
		return nil, err
	}

	options := make([]model.MenuOption, 0, len(unfiled)+len(roots))
	for _, meter := range unfiled {
		opt, err := buildOption(ctx, resolver, current, group, model.MeterCandidate(meter.ID), meter.Name)
		if err != nil {
			return nil, err
		}
		options = append(options, opt)
	}
	for _, root := range roots {
		if excluded[root.ID] {
			continue
		}
		opt, err := buildOption(ctx, resolver, current, group, model.GroupCandidate(root.ID), root.Name)
		if err != nil {
			return nil, err
		}
		options = append(options, opt)
	}

	sort.SliceStable(options, func(i, j int) bool {
		if options[i].Candidate.Kind != options[j].Candidate.Kind {
			return options[i].Candidate.Kind == model.CandidateMeter
		}
		return options[i].Label < options[j].Label
	})

	slog.Debug("built menu options",
		"group", group.Name,
		"options", len(options),
		"disabled", countDisabled(options))
	return options, nil
}

func buildOption(ctx context.Context, resolver *compat.Resolver, current model.UnitSet, group *model.Group, candidate model.Candidate, label string) (model.MenuOption, error) {
	units, err := resolver.UnitsForCandidate(ctx, candidate)
	if err != nil {
		return model.MenuOption{}, fmt.Errorf("candidate %q: %w", label, err)
	}

	changeCase := compat.Classify(current, units, group.DefaultUnitID)
	return model.MenuOption{
		Label:      label,
		Candidate:  candidate,
		ChangeCase: changeCase,
		Disabled:   changeCase == model.ChangeNoCompatible,
	}, nil
}

func countDisabled(options []model.MenuOption) int {
	n := 0
	for _, opt := range options {
		if opt.Disabled {
			n++
		}
	}
	return n
}
