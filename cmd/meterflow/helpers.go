package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/meterflow/meterflow/internal/cli"
	"github.com/meterflow/meterflow/internal/compat"
	"github.com/meterflow/meterflow/internal/config"
	"github.com/meterflow/meterflow/internal/engine"
	"github.com/meterflow/meterflow/internal/model"
	"github.com/meterflow/meterflow/internal/relation"
	"github.com/meterflow/meterflow/internal/service"
	"github.com/meterflow/meterflow/internal/storage"
	"github.com/spf13/viper"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/meterflow/meterflow.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// closeStorage closes the store, logging rather than failing on error.
func closeStorage(store service.Storage) {
	if err := store.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}

// initRelation builds a provider and reinstalls the cached relation snapshot
// if one exists. A missing cache leaves the provider not ready; compatibility
// queries then resolve to the empty set.
func initRelation(ctx context.Context, store service.Storage) (*relation.Provider, error) {
	provider := relation.NewProvider()

	record, err := store.LoadRelationRecord(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached relation: %w", err)
	}
	if record == nil {
		return provider, nil
	}

	matrix, err := relation.FromRecord(record)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild cached relation: %w", err)
	}
	provider.Install(matrix)

	slog.Debug("reinstalled cached relation",
		"version", matrix.Version(),
		"sources", matrix.SourceCount(),
		"targets", matrix.TargetCount())
	return provider, nil
}

// unitLabeler renders unit ids by their catalog symbol, falling back to #id
// for ids the catalog does not know.
func unitLabeler(ctx context.Context, store service.Storage) (cli.UnitLabeler, error) {
	units, err := store.ListUnits(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}

	symbols := make(map[model.UnitID]string, len(units))
	for _, unit := range units {
		symbols[unit.ID] = unit.Symbol
	}

	return func(id model.UnitID) string {
		if symbol, ok := symbols[id]; ok {
			return symbol
		}
		return fmt.Sprintf("#%d", id)
	}, nil
}

// cmdEnv bundles the services a hierarchy command needs: storage, the
// resolver over the cached relation, a symbol labeler, and a change engine
// prompting on the terminal.
type cmdEnv struct {
	store    service.Storage
	resolver *compat.Resolver
	labeler  cli.UnitLabeler
	engine   *engine.ChangeEngine
}

// initCmdEnv wires up a full command environment. Close it when done.
func initCmdEnv(ctx context.Context, autoConfirm bool) (*cmdEnv, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, err
	}

	provider, err := initRelation(ctx, store)
	if err != nil {
		closeStorage(store)
		return nil, err
	}

	labeler, err := unitLabeler(ctx, store)
	if err != nil {
		closeStorage(store)
		return nil, err
	}

	resolver := compat.NewResolver(provider, store)
	prompter := cli.NewPrompter(nil, nil, labeler)
	eng := engine.NewWithConfig(store, resolver, prompter, engine.Config{AutoConfirm: autoConfirm})

	return &cmdEnv{
		store:    store,
		resolver: resolver,
		labeler:  labeler,
		engine:   eng,
	}, nil
}

// Close releases the environment's storage.
func (e *cmdEnv) Close() {
	closeStorage(e.store)
}

// runChange plans and, verdict permitting, applies one hierarchy change.
// A dry run prints the plan and stops; otherwise the outcome decides the
// exit behavior: blocked changes fail the command, declined ones do not.
func runChange(ctx context.Context, change compat.Change, yes, dryRun bool) error {
	// Set up interrupt handling
	interruptHandler := cli.NewInterruptHandler(nil)
	ctx = interruptHandler.HandleInterrupts(ctx)

	env, err := initCmdEnv(ctx, yes)
	if err != nil {
		return err
	}
	defer env.Close()

	if dryRun {
		plan, err := env.engine.Plan(ctx, change)
		if err != nil {
			return err
		}
		fmt.Println(cli.RenderBox("Change Plan", cli.FormatPlan(plan, env.labeler)))
		return nil
	}

	result, err := env.engine.Execute(ctx, change)
	if err != nil {
		return err
	}
	return reportResult(result, env.labeler)
}

// reportResult renders an engine result and turns a blocked change into a
// non-zero exit.
func reportResult(result *engine.Result, labeler cli.UnitLabeler) error {
	switch result.Outcome {
	case engine.OutcomeApplied:
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("Applied: %s", result.Plan.Change.Describe())))
		return nil
	case engine.OutcomeDeclined:
		fmt.Println(cli.FormatInfo("Change cancelled."))
		return nil
	case engine.OutcomeBlocked:
		fmt.Println(cli.RenderBox("Change Blocked", cli.FormatPlan(result.Plan, labeler)))
		fmt.Println(cli.FormatError("Cannot apply: a group would be left with no compatible units."))
		return fmt.Errorf("change blocked: %s", result.Plan.Change.Describe())
	default:
		return fmt.Errorf("unknown change outcome %q", result.Outcome)
	}
}

func parseUnitID(arg string) (model.UnitID, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return model.NoUnit, fmt.Errorf("invalid unit id %q", arg)
	}
	return model.UnitID(id), nil
}

func parseMeterID(arg string) (model.MeterID, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid meter id %q", arg)
	}
	return model.MeterID(id), nil
}

func parseGroupID(arg string) (model.GroupID, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return model.RootGroup, fmt.Errorf("invalid group id %q", arg)
	}
	return model.GroupID(id), nil
}
