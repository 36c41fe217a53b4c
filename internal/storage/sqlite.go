package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/meterflow/meterflow/internal/model"
	"github.com/meterflow/meterflow/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx; entity
// helpers run against it so plain calls and transactions share one body.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{tx: tx}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx *sql.Tx
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations manage their own transactions
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}

// Unit catalog methods within the transaction.

func (t *sqliteTransaction) CreateUnit(ctx context.Context, unit *model.Unit) (*model.Unit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateUnit(unit); err != nil {
		return nil, err
	}
	return createUnit(ctx, t.tx, unit)
}

func (t *sqliteTransaction) GetUnitByID(ctx context.Context, id model.UnitID) (*model.Unit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getUnitByID(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetUnitBySymbol(ctx context.Context, symbol string) (*model.Unit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(symbol, "symbol"); err != nil {
		return nil, err
	}
	return getUnitBySymbol(ctx, t.tx, symbol)
}

func (t *sqliteTransaction) ListUnits(ctx context.Context) ([]model.Unit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listUnits(ctx, t.tx, "")
}

func (t *sqliteTransaction) ListUnitsByKind(ctx context.Context, kind model.UnitKind) ([]model.Unit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listUnits(ctx, t.tx, kind)
}

// Meter methods within the transaction.

func (t *sqliteTransaction) CreateMeter(ctx context.Context, meter *model.Meter) (*model.Meter, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateMeter(meter); err != nil {
		return nil, err
	}
	return createMeter(ctx, t.tx, meter)
}

func (t *sqliteTransaction) GetMeterByID(ctx context.Context, id model.MeterID) (*model.Meter, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getMeterByID(ctx, t.tx, id)
}

func (t *sqliteTransaction) ListMeters(ctx context.Context) ([]model.Meter, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listMeters(ctx, t.tx)
}

func (t *sqliteTransaction) ListMetersByGroup(ctx context.Context, groupID model.GroupID) ([]model.Meter, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listMetersByGroup(ctx, t.tx, groupID)
}

func (t *sqliteTransaction) AssignMeterUnit(ctx context.Context, id model.MeterID, unitID model.UnitID) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return assignMeterUnit(ctx, t.tx, id, unitID)
}

func (t *sqliteTransaction) MoveMeterToGroup(ctx context.Context, id model.MeterID, groupID model.GroupID) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return moveMeterToGroup(ctx, t.tx, id, groupID)
}

// Group methods within the transaction.

func (t *sqliteTransaction) CreateGroup(ctx context.Context, group *model.Group) (*model.Group, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateGroup(group); err != nil {
		return nil, err
	}
	return createGroup(ctx, t.tx, group)
}

func (t *sqliteTransaction) GetGroupByID(ctx context.Context, id model.GroupID) (*model.Group, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getGroupByID(ctx, t.tx, id)
}

func (t *sqliteTransaction) ListGroups(ctx context.Context) ([]model.Group, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listGroups(ctx, t.tx)
}

func (t *sqliteTransaction) ListChildGroups(ctx context.Context, parentID model.GroupID) ([]model.Group, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listChildGroups(ctx, t.tx, parentID)
}

func (t *sqliteTransaction) SetGroupDefaultUnit(ctx context.Context, id model.GroupID, unitID model.UnitID) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return setGroupDefaultUnit(ctx, t.tx, id, unitID)
}

func (t *sqliteTransaction) MoveGroupToParent(ctx context.Context, id model.GroupID, parentID model.GroupID) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return moveGroupToParent(ctx, t.tx, id, parentID)
}

func (t *sqliteTransaction) DeepMeterIDs(ctx context.Context, groupID model.GroupID) ([]model.MeterID, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return deepMeterIDs(ctx, t.tx, groupID)
}

func (t *sqliteTransaction) AncestorGroupIDs(ctx context.Context, groupID model.GroupID) ([]model.GroupID, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return ancestorGroupIDs(ctx, t.tx, groupID)
}

// Relation cache methods within the transaction.

func (t *sqliteTransaction) SaveRelationRecord(ctx context.Context, record *service.RelationRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	return saveRelationRecord(ctx, t.tx, record)
}

func (t *sqliteTransaction) LoadRelationRecord(ctx context.Context) (*service.RelationRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return loadRelationRecord(ctx, t.tx)
}

func (t *sqliteTransaction) RelationUnitDrift(ctx context.Context) ([]model.Unit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return relationUnitDrift(ctx, t.tx)
}
