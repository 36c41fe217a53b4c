package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meterflow/meterflow/internal/common"
	"github.com/meterflow/meterflow/internal/model"
)

// CreateMeter adds a meter. A zero UnitID leaves the meter unassigned and a
// zero GroupID leaves it unfiled.
func (s *SQLiteStorage) CreateMeter(ctx context.Context, meter *model.Meter) (*model.Meter, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateMeter(meter); err != nil {
		return nil, err
	}
	return createMeter(ctx, s.db, meter)
}

// GetMeterByID returns a meter by its id.
func (s *SQLiteStorage) GetMeterByID(ctx context.Context, id model.MeterID) (*model.Meter, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getMeterByID(ctx, s.db, id)
}

// ListMeters returns all meters ordered by name.
func (s *SQLiteStorage) ListMeters(ctx context.Context) ([]model.Meter, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listMeters(ctx, s.db)
}

// ListMetersByGroup returns the meters directly in a group; the root
// sentinel lists unfiled meters.
func (s *SQLiteStorage) ListMetersByGroup(ctx context.Context, groupID model.GroupID) ([]model.Meter, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listMetersByGroup(ctx, s.db, groupID)
}

// AssignMeterUnit sets the meter's source unit; the sentinel clears it.
func (s *SQLiteStorage) AssignMeterUnit(ctx context.Context, id model.MeterID, unitID model.UnitID) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return assignMeterUnit(ctx, s.db, id, unitID)
}

// MoveMeterToGroup files the meter into a group; the root sentinel unfiles
// it.
func (s *SQLiteStorage) MoveMeterToGroup(ctx context.Context, id model.MeterID, groupID model.GroupID) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return moveMeterToGroup(ctx, s.db, id, groupID)
}

func createMeter(ctx context.Context, q dbtx, meter *model.Meter) (*model.Meter, error) {
	existingQuery := `
		SELECT id FROM meters
		WHERE name = ?`

	var existingID model.MeterID
	err := q.QueryRowContext(ctx, existingQuery, meter.Name).Scan(&existingID)
	if err == nil {
		return nil, fmt.Errorf("%w: meter %q already exists as %d", common.ErrDuplicateEntry, meter.Name, existingID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing meter: %w", err)
	}

	if meter.UnitID != model.NoUnit {
		if err := checkSourceUnit(ctx, q, meter.UnitID); err != nil {
			return nil, err
		}
	}
	if meter.GroupID != model.RootGroup {
		if _, err := getGroupByID(ctx, q, meter.GroupID); err != nil {
			return nil, err
		}
	}

	insertQuery := `
		INSERT INTO meters (name, unit_id, group_id, created_at)
		VALUES (?, ?, ?, ?)`

	now := time.Now()
	result, err := q.ExecContext(ctx, insertQuery, meter.Name, meter.UnitID, meter.GroupID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create meter: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get meter ID: %w", err)
	}

	created := *meter
	created.ID = model.MeterID(id)
	created.CreatedAt = now

	slog.Info("created meter",
		"id", created.ID,
		"name", created.Name,
		"unit_id", created.UnitID,
		"group_id", created.GroupID)
	return &created, nil
}

func getMeterByID(ctx context.Context, q dbtx, id model.MeterID) (*model.Meter, error) {
	query := `
		SELECT id, name, unit_id, group_id, created_at
		FROM meters
		WHERE id = ?`

	var meter model.Meter
	err := q.QueryRowContext(ctx, query, id).Scan(
		&meter.ID, &meter.Name, &meter.UnitID, &meter.GroupID, &meter.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", common.ErrMeterNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query meter: %w", err)
	}

	return &meter, nil
}

func listMeters(ctx context.Context, q dbtx) ([]model.Meter, error) {
	query := `
		SELECT id, name, unit_id, group_id, created_at
		FROM meters
		ORDER BY name`

	return scanMeters(ctx, q, query)
}

func listMetersByGroup(ctx context.Context, q dbtx, groupID model.GroupID) ([]model.Meter, error) {
	query := `
		SELECT id, name, unit_id, group_id, created_at
		FROM meters
		WHERE group_id = ?
		ORDER BY name`

	return scanMeters(ctx, q, query, groupID)
}

func scanMeters(ctx context.Context, q dbtx, query string, args ...any) ([]model.Meter, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query meters: %w", err)
	}
	defer rows.Close()

	var meters []model.Meter
	for rows.Next() {
		var meter model.Meter
		if err := rows.Scan(&meter.ID, &meter.Name, &meter.UnitID, &meter.GroupID, &meter.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meter: %w", err)
		}
		meters = append(meters, meter)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meters: %w", err)
	}

	return meters, nil
}

func assignMeterUnit(ctx context.Context, q dbtx, id model.MeterID, unitID model.UnitID) error {
	if _, err := getMeterByID(ctx, q, id); err != nil {
		return err
	}
	if unitID != model.NoUnit {
		if err := checkSourceUnit(ctx, q, unitID); err != nil {
			return err
		}
	}

	if _, err := q.ExecContext(ctx, `UPDATE meters SET unit_id = ? WHERE id = ?`, unitID, id); err != nil {
		return fmt.Errorf("failed to assign meter unit: %w", err)
	}

	slog.Info("assigned meter unit", "meter_id", id, "unit_id", unitID)
	return nil
}

func moveMeterToGroup(ctx context.Context, q dbtx, id model.MeterID, groupID model.GroupID) error {
	if _, err := getMeterByID(ctx, q, id); err != nil {
		return err
	}
	if groupID != model.RootGroup {
		if _, err := getGroupByID(ctx, q, groupID); err != nil {
			return err
		}
	}

	if _, err := q.ExecContext(ctx, `UPDATE meters SET group_id = ? WHERE id = ?`, groupID, id); err != nil {
		return fmt.Errorf("failed to move meter: %w", err)
	}

	slog.Info("moved meter", "meter_id", id, "group_id", groupID)
	return nil
}

// checkSourceUnit verifies the unit exists and is a source unit. The sentinel
// is handled by callers; graphic units have no relation row, so letting one
// onto a meter would surface later as a data integrity fault.
func checkSourceUnit(ctx context.Context, q dbtx, unitID model.UnitID) error {
	unit, err := getUnitByID(ctx, q, unitID)
	if err != nil {
		return err
	}
	if !unit.IsSource() {
		return fmt.Errorf("%w: unit %q is %s-kind, meters need a source unit", ErrInvalidMeter, unit.Name, unit.Kind)
	}
	return nil
}
