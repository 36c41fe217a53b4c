// Package engine applies hierarchy changes after they have been planned,
// prompting the operator when a change would cost a group compatible units.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meterflow/meterflow/internal/compat"
	"github.com/meterflow/meterflow/internal/model"
	"github.com/meterflow/meterflow/internal/service"
)

// Outcome is the business result of executing a change. Blocked and
// declined changes are normal outcomes, never errors.
type Outcome string

const (
	// OutcomeApplied means the change was committed.
	OutcomeApplied Outcome = "applied"
	// OutcomeBlocked means the plan forbade the change; nothing was written.
	OutcomeBlocked Outcome = "blocked"
	// OutcomeDeclined means the operator turned the change down.
	OutcomeDeclined Outcome = "declined"
)

// Result reports what happened to a requested change, together with the
// plan that drove the decision.
type Result struct {
	Plan    *compat.Plan
	Outcome Outcome
}

// Applied reports whether the change reached storage.
func (r *Result) Applied() bool {
	return r.Outcome == OutcomeApplied
}

// Config holds configuration options for the change engine.
type Config struct {
	// AutoConfirm applies confirmable plans without consulting the
	// prompter. Blocked plans stay blocked.
	AutoConfirm bool
}

// ChangeEngine orchestrates a hierarchy mutation end to end: plan the
// change, stop or confirm when units would be lost, then commit the
// membership update and any default-unit repairs in one transaction.
type ChangeEngine struct {
	storage  service.Storage
	resolver *compat.Resolver
	planner  *compat.Planner
	prompter Prompter
	config   Config
}

// New creates a change engine with the given dependencies.
func New(storage service.Storage, resolver *compat.Resolver, prompter Prompter) *ChangeEngine {
	return NewWithConfig(storage, resolver, prompter, Config{})
}

// NewWithConfig creates a change engine with custom configuration.
func NewWithConfig(storage service.Storage, resolver *compat.Resolver, prompter Prompter, config Config) *ChangeEngine {
	return &ChangeEngine{
		storage:  storage,
		resolver: resolver,
		planner:  compat.NewPlanner(resolver),
		prompter: prompter,
		config:   config,
	}
}

// Plan builds the impact plan for a change without applying anything.
// Callers running a dry run render the plan and stop here.
func (e *ChangeEngine) Plan(ctx context.Context, change compat.Change) (*compat.Plan, error) {
	return e.planner.PlanChange(ctx, change)
}

// Execute plans and, verdict permitting, applies a change. The outcome
// distinguishes applied, blocked, and declined; only system faults (storage
// failures, unknown entities, cycles) surface as errors.
func (e *ChangeEngine) Execute(ctx context.Context, change compat.Change) (*Result, error) {
	plan, err := e.planner.PlanChange(ctx, change)
	if err != nil {
		return nil, fmt.Errorf("failed to plan change: %w", err)
	}

	slog.Info("planned change",
		"change", change.Describe(),
		"verdict", plan.Verdict,
		"impacts", len(plan.Impacts),
		"worst_case", plan.WorstCase())

	if plan.Blocked() {
		slog.Info("change blocked", "change", change.Describe())
		return &Result{Plan: plan, Outcome: OutcomeBlocked}, nil
	}

	if plan.NeedsConfirmation() && !e.config.AutoConfirm {
		ok, err := e.prompter.ConfirmPlan(ctx, plan)
		if err != nil {
			return nil, fmt.Errorf("failed to confirm change: %w", err)
		}
		if !ok {
			slog.Info("change declined", "change", change.Describe())
			return &Result{Plan: plan, Outcome: OutcomeDeclined}, nil
		}
	}

	if err := e.apply(ctx, plan); err != nil {
		return nil, err
	}

	slog.Info("change applied", "change", change.Describe())
	return &Result{Plan: plan, Outcome: OutcomeApplied}, nil
}

// apply commits the planned change. The membership or default-unit write and
// every lost-default repair land in a single transaction.
func (e *ChangeEngine) apply(ctx context.Context, plan *compat.Plan) error {
	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	change := plan.Change
	switch change.Kind {
	case compat.ChangeAddMeter:
		err = tx.MoveMeterToGroup(ctx, change.Meter, change.Group)
	case compat.ChangeRemoveMeter:
		err = tx.MoveMeterToGroup(ctx, change.Meter, model.RootGroup)
	case compat.ChangeAddGroup:
		err = tx.MoveGroupToParent(ctx, change.Subgroup, change.Group)
	case compat.ChangeRemoveGroup:
		err = tx.MoveGroupToParent(ctx, change.Subgroup, model.RootGroup)
	case compat.ChangeSetDefault:
		err = tx.SetGroupDefaultUnit(ctx, change.Group, change.Unit)
	default:
		err = fmt.Errorf("unknown change kind %q", change.Kind)
	}
	if err != nil {
		return fmt.Errorf("failed to apply %s: %w", change.Describe(), err)
	}

	// Groups whose default graphic unit no longer fits get it cleared to
	// the sentinel. Membership is never touched beyond the change itself.
	for _, impact := range plan.Impacts {
		if !impact.DefaultLost {
			continue
		}
		if err := tx.SetGroupDefaultUnit(ctx, impact.GroupID, model.NoUnit); err != nil {
			return fmt.Errorf("failed to clear default unit of group %d: %w", impact.GroupID, err)
		}
		slog.Info("cleared lost default unit",
			"group", impact.GroupName,
			"group_id", impact.GroupID,
			"unit_id", impact.DefaultUnitID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit change: %w", err)
	}
	return nil
}
