package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meterflow/meterflow/internal/model"
	"github.com/meterflow/meterflow/internal/service"
)

// Relation axis labels as stored in relation_units.
const (
	axisSource = "source"
	axisTarget = "target"
)

// SaveRelationRecord replaces the cached relation snapshot with the given
// one. The three cache tables are rewritten atomically.
func (s *SQLiteStorage) SaveRelationRecord(ctx context.Context, record *service.RelationRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveRelationRecord(ctx, tx, record); err != nil {
		return err
	}

	return tx.Commit()
}

// LoadRelationRecord returns the cached relation snapshot, or nil when none
// has been cached yet. A cold cache is a normal state, not an error.
func (s *SQLiteStorage) LoadRelationRecord(ctx context.Context) (*service.RelationRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return loadRelationRecord(ctx, s.db)
}

func saveRelationRecord(ctx context.Context, q dbtx, record *service.RelationRecord) error {
	for _, query := range []string{
		`DELETE FROM relation_cells`,
		`DELETE FROM relation_units`,
		`DELETE FROM relation_snapshots`,
	} {
		if _, err := q.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to clear relation cache: %w", err)
		}
	}

	snapshotQuery := `
		INSERT INTO relation_snapshots (id, version, generated_at)
		VALUES (1, ?, ?)`
	if _, err := q.ExecContext(ctx, snapshotQuery, record.Version, record.GeneratedAt); err != nil {
		return fmt.Errorf("failed to save relation snapshot: %w", err)
	}

	unitStmt, err := q.PrepareContext(ctx, `
		INSERT INTO relation_units (axis, unit_id, idx)
		VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare unit statement: %w", err)
	}
	defer func() { _ = unitStmt.Close() }()

	for _, src := range record.Sources {
		if _, err := unitStmt.ExecContext(ctx, axisSource, src.UnitID, src.Index); err != nil {
			return fmt.Errorf("failed to save source unit %d: %w", src.UnitID, err)
		}
	}
	for _, tgt := range record.Targets {
		if _, err := unitStmt.ExecContext(ctx, axisTarget, tgt.UnitID, tgt.Index); err != nil {
			return fmt.Errorf("failed to save target unit %d: %w", tgt.UnitID, err)
		}
	}

	cellStmt, err := q.PrepareContext(ctx, `
		INSERT INTO relation_cells (row_idx, col_idx)
		VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare cell statement: %w", err)
	}
	defer func() { _ = cellStmt.Close() }()

	for _, cell := range record.Cells {
		if _, err := cellStmt.ExecContext(ctx, cell.Row, cell.Col); err != nil {
			return fmt.Errorf("failed to save relation cell (%d,%d): %w", cell.Row, cell.Col, err)
		}
	}

	slog.Info("cached relation snapshot",
		"version", record.Version,
		"sources", len(record.Sources),
		"targets", len(record.Targets),
		"cells", len(record.Cells))
	return nil
}

func loadRelationRecord(ctx context.Context, q dbtx) (*service.RelationRecord, error) {
	snapshotQuery := `
		SELECT version, generated_at
		FROM relation_snapshots
		WHERE id = 1`

	record := &service.RelationRecord{}
	err := q.QueryRowContext(ctx, snapshotQuery).Scan(&record.Version, &record.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query relation snapshot: %w", err)
	}

	unitsQuery := `
		SELECT axis, unit_id, idx
		FROM relation_units
		ORDER BY axis, idx`

	unitRows, err := q.QueryContext(ctx, unitsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query relation units: %w", err)
	}
	defer unitRows.Close()

	for unitRows.Next() {
		var axis string
		var unit service.RelationAxisUnit
		if err := unitRows.Scan(&axis, &unit.UnitID, &unit.Index); err != nil {
			return nil, fmt.Errorf("failed to scan relation unit: %w", err)
		}
		switch axis {
		case axisSource:
			record.Sources = append(record.Sources, unit)
		case axisTarget:
			record.Targets = append(record.Targets, unit)
		default:
			return nil, fmt.Errorf("unknown relation axis %q for unit %d", axis, unit.UnitID)
		}
	}
	if err := unitRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relation units: %w", err)
	}

	cellsQuery := `
		SELECT row_idx, col_idx
		FROM relation_cells
		ORDER BY row_idx, col_idx`

	cellRows, err := q.QueryContext(ctx, cellsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query relation cells: %w", err)
	}
	defer cellRows.Close()

	for cellRows.Next() {
		var cell service.RelationCell
		if err := cellRows.Scan(&cell.Row, &cell.Col); err != nil {
			return nil, fmt.Errorf("failed to scan relation cell: %w", err)
		}
		record.Cells = append(record.Cells, cell)
	}
	if err := cellRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relation cells: %w", err)
	}

	slog.Debug("loaded cached relation snapshot",
		"version", record.Version,
		"sources", len(record.Sources),
		"targets", len(record.Targets),
		"cells", len(record.Cells))
	return record, nil
}

// RelationUnitDrift lists catalog units that the cached relation does not
// know about, per kind. Useful for spotting catalog edits that outpaced the
// last relation load.
func (s *SQLiteStorage) RelationUnitDrift(ctx context.Context) ([]model.Unit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return relationUnitDrift(ctx, s.db)
}

func relationUnitDrift(ctx context.Context, q dbtx) ([]model.Unit, error) {
	query := `
		SELECT u.id, u.name, u.symbol, u.kind, u.idx
		FROM units u
		LEFT JOIN relation_units ru
			ON ru.unit_id = u.id
			AND ru.axis = CASE u.kind WHEN 'source' THEN 'source' ELSE 'target' END
		WHERE ru.unit_id IS NULL
		ORDER BY u.kind, u.idx`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query relation drift: %w", err)
	}
	defer rows.Close()

	var units []model.Unit
	for rows.Next() {
		var unit model.Unit
		if err := rows.Scan(&unit.ID, &unit.Name, &unit.Symbol, &unit.Kind, &unit.Index); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, unit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relation drift: %w", err)
	}

	return units, nil
}
