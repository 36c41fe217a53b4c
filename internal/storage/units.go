package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meterflow/meterflow/internal/common"
	"github.com/meterflow/meterflow/internal/model"
)

// CreateUnit adds a unit to the catalog.
func (s *SQLiteStorage) CreateUnit(ctx context.Context, unit *model.Unit) (*model.Unit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateUnit(unit); err != nil {
		return nil, err
	}
	return createUnit(ctx, s.db, unit)
}

// GetUnitByID returns a unit by its id. The sentinel id is never in the
// catalog, so asking for it reports the unit as not found.
func (s *SQLiteStorage) GetUnitByID(ctx context.Context, id model.UnitID) (*model.Unit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getUnitByID(ctx, s.db, id)
}

// GetUnitBySymbol returns a unit by its display symbol.
func (s *SQLiteStorage) GetUnitBySymbol(ctx context.Context, symbol string) (*model.Unit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(symbol, "symbol"); err != nil {
		return nil, err
	}
	return getUnitBySymbol(ctx, s.db, symbol)
}

// ListUnits returns the whole catalog ordered by kind and relation index.
func (s *SQLiteStorage) ListUnits(ctx context.Context) ([]model.Unit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listUnits(ctx, s.db, "")
}

// ListUnitsByKind returns the catalog entries of one kind.
func (s *SQLiteStorage) ListUnitsByKind(ctx context.Context, kind model.UnitKind) ([]model.Unit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidUnit, kind)
	}
	return listUnits(ctx, s.db, kind)
}

func createUnit(ctx context.Context, q dbtx, unit *model.Unit) (*model.Unit, error) {
	existingQuery := `
		SELECT id FROM units
		WHERE name = ? OR symbol = ?`

	var existingID model.UnitID
	err := q.QueryRowContext(ctx, existingQuery, unit.Name, unit.Symbol).Scan(&existingID)
	if err == nil {
		return nil, fmt.Errorf("%w: unit %q/%q conflicts with unit %d", common.ErrDuplicateEntry, unit.Name, unit.Symbol, existingID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing unit: %w", err)
	}

	insertQuery := `
		INSERT INTO units (name, symbol, kind, idx)
		VALUES (?, ?, ?, ?)`

	result, err := q.ExecContext(ctx, insertQuery, unit.Name, unit.Symbol, string(unit.Kind), unit.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get unit ID: %w", err)
	}

	created := *unit
	created.ID = model.UnitID(id)

	slog.Info("created unit",
		"id", created.ID,
		"name", created.Name,
		"symbol", created.Symbol,
		"kind", created.Kind)
	return &created, nil
}

func getUnitByID(ctx context.Context, q dbtx, id model.UnitID) (*model.Unit, error) {
	query := `
		SELECT id, name, symbol, kind, idx
		FROM units
		WHERE id = ?`

	var unit model.Unit
	err := q.QueryRowContext(ctx, query, id).Scan(
		&unit.ID, &unit.Name, &unit.Symbol, &unit.Kind, &unit.Index,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", common.ErrUnitNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query unit: %w", err)
	}

	return &unit, nil
}

func getUnitBySymbol(ctx context.Context, q dbtx, symbol string) (*model.Unit, error) {
	query := `
		SELECT id, name, symbol, kind, idx
		FROM units
		WHERE symbol = ?`

	var unit model.Unit
	err := q.QueryRowContext(ctx, query, symbol).Scan(
		&unit.ID, &unit.Name, &unit.Symbol, &unit.Kind, &unit.Index,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: symbol %q", common.ErrUnitNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query unit: %w", err)
	}

	return &unit, nil
}

func listUnits(ctx context.Context, q dbtx, kind model.UnitKind) ([]model.Unit, error) {
	query := `
		SELECT id, name, symbol, kind, idx
		FROM units`
	args := []any{}
	if kind != "" {
		query += `
		WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += `
		ORDER BY kind, idx, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
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
		return nil, fmt.Errorf("error iterating units: %w", err)
	}

	slog.Debug("retrieved units", "count", len(units), "kind", kind)
	return units, nil
}
