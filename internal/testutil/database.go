// Package testutil provides shared test scaffolding: an in-memory migrated
// database and the standard electrical fixture most packages test against.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/meterflow/meterflow/internal/service"
	"github.com/meterflow/meterflow/internal/storage"
)

// TestDB is an in-memory database handle with test conveniences.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a migrated in-memory database that is torn down with
// the test.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// WithTransaction runs fn inside a transaction that is always rolled back,
// so tests can probe write paths without dirtying the fixture.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return nil
}
