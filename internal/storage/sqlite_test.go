package storage

import (
	"context"
	"testing"

	"github.com/meterflow/meterflow/internal/common"
	"github.com/meterflow/meterflow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStorage returns a migrated in-memory store.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

// seedUnits installs a small electrical catalog and returns it keyed by
// symbol.
func seedUnits(t *testing.T, store *SQLiteStorage) map[string]model.Unit {
	t.Helper()
	ctx := context.Background()

	seed := []model.Unit{
		{Name: "voltage", Symbol: "u-V", Kind: model.UnitKindSource, Index: 0},
		{Name: "current", Symbol: "u-A", Kind: model.UnitKindSource, Index: 1},
		{Name: "millivolt", Symbol: "mV", Kind: model.UnitKindGraphic, Index: 0},
		{Name: "volt", Symbol: "V", Kind: model.UnitKindGraphic, Index: 1},
		{Name: "kilovolt", Symbol: "kV", Kind: model.UnitKindGraphic, Index: 2},
		{Name: "ampere", Symbol: "A", Kind: model.UnitKindGraphic, Index: 3},
	}

	units := make(map[string]model.Unit, len(seed))
	for i := range seed {
		created, err := store.CreateUnit(ctx, &seed[i])
		require.NoError(t, err)
		units[created.Symbol] = *created
	}
	return units
}

func TestSQLiteStorageCreateUnit(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	created, err := store.CreateUnit(ctx, &model.Unit{
		Name:   "voltage",
		Symbol: "u-V",
		Kind:   model.UnitKindSource,
	})
	require.NoError(t, err)
	// AUTOINCREMENT starts at 1; id 0 stays reserved for "no unit".
	assert.Equal(t, model.UnitID(1), created.ID)

	tests := []struct {
		name    string
		unit    *model.Unit
		wantErr error
	}{
		{
			name:    "duplicate name",
			unit:    &model.Unit{Name: "voltage", Symbol: "u-V2", Kind: model.UnitKindSource},
			wantErr: common.ErrDuplicateEntry,
		},
		{
			name:    "duplicate symbol",
			unit:    &model.Unit{Name: "tension", Symbol: "u-V", Kind: model.UnitKindSource},
			wantErr: common.ErrDuplicateEntry,
		},
		{
			name:    "empty name",
			unit:    &model.Unit{Name: "  ", Symbol: "x", Kind: model.UnitKindSource},
			wantErr: ErrInvalidUnit,
		},
		{
			name:    "empty symbol",
			unit:    &model.Unit{Name: "x", Symbol: "", Kind: model.UnitKindSource},
			wantErr: ErrInvalidUnit,
		},
		{
			name:    "unknown kind",
			unit:    &model.Unit{Name: "x", Symbol: "x", Kind: "virtual"},
			wantErr: ErrInvalidUnit,
		},
		{
			name:    "negative index",
			unit:    &model.Unit{Name: "x", Symbol: "x", Kind: model.UnitKindGraphic, Index: -1},
			wantErr: ErrInvalidUnit,
		},
		{
			name:    "nil unit",
			unit:    nil,
			wantErr: ErrNilParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreateUnit(ctx, tt.unit)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSQLiteStorageGetUnit(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)
	units := seedUnits(t, store)

	byID, err := store.GetUnitByID(ctx, units["kV"].ID)
	require.NoError(t, err)
	assert.Equal(t, "kilovolt", byID.Name)
	assert.Equal(t, model.UnitKindGraphic, byID.Kind)
	assert.Equal(t, 2, byID.Index)

	bySymbol, err := store.GetUnitBySymbol(ctx, "u-V")
	require.NoError(t, err)
	assert.Equal(t, "voltage", bySymbol.Name)
	assert.True(t, bySymbol.IsSource())

	_, err = store.GetUnitByID(ctx, 999)
	assert.ErrorIs(t, err, common.ErrUnitNotFound)

	// The sentinel never exists in the catalog.
	_, err = store.GetUnitByID(ctx, model.NoUnit)
	assert.ErrorIs(t, err, common.ErrUnitNotFound)

	_, err = store.GetUnitBySymbol(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrUnitNotFound)
}

func TestSQLiteStorageListUnits(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)
	seedUnits(t, store)

	all, err := store.ListUnits(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	graphic, err := store.ListUnitsByKind(ctx, model.UnitKindGraphic)
	require.NoError(t, err)
	require.Len(t, graphic, 4)
	// Ordered by relation index within the kind.
	assert.Equal(t, []string{"mV", "V", "kV", "A"}, []string{
		graphic[0].Symbol, graphic[1].Symbol, graphic[2].Symbol, graphic[3].Symbol,
	})

	source, err := store.ListUnitsByKind(ctx, model.UnitKindSource)
	require.NoError(t, err)
	assert.Len(t, source, 2)

	_, err = store.ListUnitsByKind(ctx, "virtual")
	assert.ErrorIs(t, err, ErrInvalidUnit)
}

func TestSQLiteStorageCreateMeter(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)
	units := seedUnits(t, store)

	group, err := store.CreateGroup(ctx, &model.Group{Name: "Feeders"})
	require.NoError(t, err)

	created, err := store.CreateMeter(ctx, &model.Meter{
		Name:    "feeder-a",
		UnitID:  units["u-V"].ID,
		GroupID: group.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.MeterID(1), created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	// Unassigned and unfiled is a legal starting state.
	blank, err := store.CreateMeter(ctx, &model.Meter{Name: "blank"})
	require.NoError(t, err)
	assert.False(t, blank.HasUnit())

	tests := []struct {
		name    string
		meter   *model.Meter
		wantErr error
	}{
		{
			name:    "duplicate name",
			meter:   &model.Meter{Name: "feeder-a"},
			wantErr: common.ErrDuplicateEntry,
		},
		{
			name:    "unknown unit",
			meter:   &model.Meter{Name: "x", UnitID: 999},
			wantErr: common.ErrUnitNotFound,
		},
		{
			name:    "graphic unit rejected",
			meter:   &model.Meter{Name: "x", UnitID: units["kV"].ID},
			wantErr: ErrInvalidMeter,
		},
		{
			name:    "unknown group",
			meter:   &model.Meter{Name: "x", GroupID: 999},
			wantErr: common.ErrGroupNotFound,
		},
		{
			name:    "empty name",
			meter:   &model.Meter{Name: ""},
			wantErr: ErrInvalidMeter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreateMeter(ctx, tt.meter)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSQLiteStorageAssignMeterUnit(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)
	units := seedUnits(t, store)

	meter, err := store.CreateMeter(ctx, &model.Meter{Name: "feeder-a"})
	require.NoError(t, err)

	require.NoError(t, store.AssignMeterUnit(ctx, meter.ID, units["u-V"].ID))
	got, err := store.GetMeterByID(ctx, meter.ID)
	require.NoError(t, err)
	assert.Equal(t, units["u-V"].ID, got.UnitID)

	// Clearing back to the sentinel.
	require.NoError(t, store.AssignMeterUnit(ctx, meter.ID, model.NoUnit))
	got, err = store.GetMeterByID(ctx, meter.ID)
	require.NoError(t, err)
	assert.False(t, got.HasUnit())

	err = store.AssignMeterUnit(ctx, meter.ID, units["V"].ID)
	assert.ErrorIs(t, err, ErrInvalidMeter)

	err = store.AssignMeterUnit(ctx, 999, units["u-V"].ID)
	assert.ErrorIs(t, err, common.ErrMeterNotFound)
}

func TestSQLiteStorageMoveMeterToGroup(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	group, err := store.CreateGroup(ctx, &model.Group{Name: "Feeders"})
	require.NoError(t, err)
	meter, err := store.CreateMeter(ctx, &model.Meter{Name: "feeder-a"})
	require.NoError(t, err)

	require.NoError(t, store.MoveMeterToGroup(ctx, meter.ID, group.ID))
	filed, err := store.ListMetersByGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, filed, 1)
	assert.Equal(t, meter.ID, filed[0].ID)

	// Back to unfiled.
	require.NoError(t, store.MoveMeterToGroup(ctx, meter.ID, model.RootGroup))
	unfiled, err := store.ListMetersByGroup(ctx, model.RootGroup)
	require.NoError(t, err)
	require.Len(t, unfiled, 1)

	err = store.MoveMeterToGroup(ctx, meter.ID, 999)
	assert.ErrorIs(t, err, common.ErrGroupNotFound)
}

func TestSQLiteStorageTransaction(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)

	_, err = tx.CreateUnit(ctx, &model.Unit{Name: "voltage", Symbol: "u-V", Kind: model.UnitKindSource})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	// Rolled back work must not be visible.
	_, err = store.GetUnitBySymbol(ctx, "u-V")
	assert.ErrorIs(t, err, common.ErrUnitNotFound)

	tx, err = store.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.CreateUnit(ctx, &model.Unit{Name: "voltage", Symbol: "u-V", Kind: model.UnitKindSource})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	unit, err := store.GetUnitBySymbol(ctx, "u-V")
	require.NoError(t, err)
	assert.Equal(t, "voltage", unit.Name)

	// Transactions refuse lifecycle operations.
	tx, err = store.BeginTx(ctx)
	require.NoError(t, err)
	assert.Error(t, tx.Migrate(ctx))
	_, err = tx.BeginTx(ctx)
	assert.Error(t, err)
	assert.Error(t, tx.Close())
	require.NoError(t, tx.Rollback())
}
