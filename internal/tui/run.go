package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/meterflow/meterflow/internal/compat"
	"github.com/meterflow/meterflow/internal/engine"
	"github.com/meterflow/meterflow/internal/model"
)

// Run shows the picker for group and applies the chosen addition through the
// change engine. A canceled picker returns a nil result and no error; losing
// the choice to a blocked or declined plan is reported through the result,
// the same as the non-interactive path.
func Run(ctx context.Context, eng *engine.ChangeEngine, source OptionSource, group *model.Group) (*engine.Result, error) {
	program := tea.NewProgram(
		New(ctx, source, group),
		tea.WithContext(ctx),
	)

	final, err := program.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to run picker: %w", err)
	}

	picked, ok := final.(Model)
	if !ok {
		return nil, fmt.Errorf("unexpected picker model type %T", final)
	}
	if picked.Err() != nil {
		return nil, picked.Err()
	}

	choice := picked.Choice()
	if choice == nil {
		return nil, nil
	}

	change, err := changeFor(group.ID, choice.Candidate)
	if err != nil {
		return nil, err
	}

	return eng.Execute(ctx, change)
}

// changeFor translates a picked candidate into the addition it stands for.
func changeFor(group model.GroupID, candidate model.Candidate) (compat.Change, error) {
	switch candidate.Kind {
	case model.CandidateMeter:
		return compat.AddMeterChange(group, model.MeterID(candidate.ID)), nil
	case model.CandidateGroup:
		return compat.AddGroupChange(group, model.GroupID(candidate.ID)), nil
	default:
		return compat.Change{}, fmt.Errorf("unknown candidate kind %q", candidate.Kind)
	}
}
