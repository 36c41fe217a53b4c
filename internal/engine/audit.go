package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meterflow/meterflow/internal/compat"
	"github.com/meterflow/meterflow/internal/model"
	"github.com/meterflow/meterflow/internal/service"
)

// BuildAudit surveys every group: how many meters it holds transitively, how
// many graphic units they still share, and whether its default unit is one
// of them. Catalog units the cached relation does not know about are listed
// as drift.
func (e *ChangeEngine) BuildAudit(ctx context.Context) (*service.AuditReport, error) {
	groups, err := e.storage.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	// One snapshot for the whole survey; a reload mid-audit must not mix
	// relations between rows.
	resolver := e.resolver.Pin()

	report := &service.AuditReport{
		GeneratedAt:   time.Now().UTC(),
		RelationReady: resolver.Ready(),
		Rows:          make([]service.AuditRow, 0, len(groups)),
	}

	for _, group := range groups {
		row, err := e.auditGroup(ctx, resolver, &group)
		if err != nil {
			return nil, err
		}
		report.Rows = append(report.Rows, row)
	}

	drift, err := e.storage.RelationUnitDrift(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check relation drift: %w", err)
	}
	report.Drift = drift

	slog.Info("built compatibility audit",
		"groups", len(report.Rows),
		"drifted_units", len(report.Drift),
		"relation_ready", report.RelationReady)
	return report, nil
}

func (e *ChangeEngine) auditGroup(ctx context.Context, resolver *compat.Resolver, group *model.Group) (service.AuditRow, error) {
	meterIDs, err := e.storage.DeepMeterIDs(ctx, group.ID)
	if err != nil {
		return service.AuditRow{}, fmt.Errorf("group %q: %w", group.Name, err)
	}

	units, err := resolver.UnitsCompatibleWithGroup(ctx, group.ID)
	if err != nil {
		return service.AuditRow{}, fmt.Errorf("group %q: %w", group.Name, err)
	}

	row := service.AuditRow{
		GroupID:         group.ID,
		GroupName:       group.Name,
		DeepMeterCount:  len(meterIDs),
		CompatibleCount: units.Len(),
		DefaultUnitOK:   true,
	}

	if group.HasDefaultUnit() {
		unit, err := e.storage.GetUnitByID(ctx, group.DefaultUnitID)
		if err != nil {
			return service.AuditRow{}, fmt.Errorf("group %q default: %w", group.Name, err)
		}
		row.DefaultUnit = unit.Symbol
		row.DefaultUnitOK = units.Contains(group.DefaultUnitID)
	}

	return row, nil
}
