package relation

import (
	"testing"
	"time"

	"github.com/meterflow/meterflow/internal/common"
	"github.com/meterflow/meterflow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTestMatrix is a 2x3 relation: unit 10 → {20, 22}, unit 11 → {21}.
func buildTestMatrix(t *testing.T) *Matrix {
	t.Helper()

	b := NewBuilder().SetMeta("v1", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, b.AddSource(10, 0))
	require.NoError(t, b.AddSource(11, 1))
	require.NoError(t, b.AddTarget(20, 0))
	require.NoError(t, b.AddTarget(21, 1))
	require.NoError(t, b.AddTarget(22, 2))
	b.Set(0, 0)
	b.Set(0, 2)
	b.Set(1, 1)

	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func TestMatrixLookups(t *testing.T) {
	m := buildTestMatrix(t)

	assert.Equal(t, "v1", m.Version())
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), m.GeneratedAt())
	assert.Equal(t, 2, m.SourceCount())
	assert.Equal(t, 3, m.TargetCount())

	row, ok := m.RowOf(10)
	require.True(t, ok)
	assert.Equal(t, 0, row)

	_, ok = m.RowOf(99)
	assert.False(t, ok)

	col, ok := m.ColOf(22)
	require.True(t, ok)
	assert.Equal(t, 2, col)

	assert.True(t, m.Compatible(0, 0))
	assert.False(t, m.Compatible(0, 1))
	assert.True(t, m.Compatible(0, 2))
	assert.True(t, m.Compatible(1, 1))

	// Out-of-range indexes read as false, not panic.
	assert.False(t, m.Compatible(-1, 0))
	assert.False(t, m.Compatible(0, 3))
	assert.False(t, m.Compatible(2, 0))

	id, ok := m.UnitAtRow(1)
	require.True(t, ok)
	assert.Equal(t, model.UnitID(11), id)

	_, ok = m.UnitAtRow(2)
	assert.False(t, ok)

	id, ok = m.UnitAtCol(0)
	require.True(t, ok)
	assert.Equal(t, model.UnitID(20), id)
}

func TestBuilderRejectsBadAxisBindings(t *testing.T) {
	tests := []struct {
		name string
		bind func(b *Builder) error
	}{
		{
			name: "duplicate source id",
			bind: func(b *Builder) error {
				if err := b.AddSource(10, 0); err != nil {
					return err
				}
				return b.AddSource(10, 1)
			},
		},
		{
			name: "duplicate row index",
			bind: func(b *Builder) error {
				if err := b.AddSource(10, 0); err != nil {
					return err
				}
				return b.AddSource(11, 0)
			},
		},
		{
			name: "duplicate target id",
			bind: func(b *Builder) error {
				if err := b.AddTarget(20, 0); err != nil {
					return err
				}
				return b.AddTarget(20, 1)
			},
		},
		{
			name: "duplicate column index",
			bind: func(b *Builder) error {
				if err := b.AddTarget(20, 0); err != nil {
					return err
				}
				return b.AddTarget(21, 0)
			},
		},
		{
			name: "sentinel source id",
			bind: func(b *Builder) error { return b.AddSource(model.NoUnit, 0) },
		},
		{
			name: "sentinel target id",
			bind: func(b *Builder) error { return b.AddTarget(model.NoUnit, 0) },
		},
		{
			name: "negative row index",
			bind: func(b *Builder) error { return b.AddSource(10, -1) },
		},
		{
			name: "negative column index",
			bind: func(b *Builder) error { return b.AddTarget(20, -1) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.bind(NewBuilder()))
		})
	}
}

func TestBuildRejectsSparseAxis(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddSource(10, 0))
	require.NoError(t, b.AddSource(11, 5))
	require.NoError(t, b.AddTarget(20, 0))

	_, err := b.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRelationMalformed)
}

func TestBuildRejectsOutOfRangeCell(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddSource(10, 0))
	require.NoError(t, b.AddTarget(20, 0))
	b.Set(1, 0)

	_, err := b.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRelationMalformed)
}

func TestRecordRoundTrip(t *testing.T) {
	m := buildTestMatrix(t)

	rebuilt, err := FromRecord(m.Record())
	require.NoError(t, err)

	assert.Equal(t, m.Version(), rebuilt.Version())
	assert.True(t, m.GeneratedAt().Equal(rebuilt.GeneratedAt()))
	assert.Equal(t, m.SourceCount(), rebuilt.SourceCount())
	assert.Equal(t, m.TargetCount(), rebuilt.TargetCount())

	for row := 0; row < m.SourceCount(); row++ {
		for col := 0; col < m.TargetCount(); col++ {
			assert.Equal(t, m.Compatible(row, col), rebuilt.Compatible(row, col),
				"cell (%d,%d)", row, col)
		}
	}
}

func TestFromRecordNil(t *testing.T) {
	_, err := FromRecord(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRelationMalformed)
}
