// Package relation holds the precomputed unit-compatibility relation: an
// immutable bipartite boolean matrix between source-unit rows and
// graphic-unit columns, the readiness-gated provider that publishes it, and
// the loader that fetches relation documents from a remote endpoint or file.
// The relation is consumed as supplied; nothing in this package derives
// compatibility from unit semantics.
package relation

import (
	"fmt"
	"time"

	"github.com/meterflow/meterflow/internal/common"
	"github.com/meterflow/meterflow/internal/model"
	"github.com/meterflow/meterflow/internal/service"
)

// Matrix is one immutable compatibility snapshot. Build it with a Builder,
// FromRecord, or BuildMatrix; once built it is never mutated, so it is safe
// to share across goroutines without locking.
type Matrix struct {
	generatedAt time.Time
	rowByUnit   map[model.UnitID]int
	colByUnit   map[model.UnitID]int
	version     string
	unitByRow   []model.UnitID
	unitByCol   []model.UnitID
	cells       [][]bool
}

// SourceCount returns the number of source-unit rows.
func (m *Matrix) SourceCount() int {
	return len(m.unitByRow)
}

// TargetCount returns the number of graphic-unit columns.
func (m *Matrix) TargetCount() int {
	return len(m.unitByCol)
}

// Compatible reports whether the relation holds at (row, col). Out-of-range
// indexes read as false.
func (m *Matrix) Compatible(row, col int) bool {
	if row < 0 || row >= len(m.cells) {
		return false
	}
	if col < 0 || col >= len(m.cells[row]) {
		return false
	}
	return m.cells[row][col]
}

// RowOf returns the row index of a source unit id.
func (m *Matrix) RowOf(id model.UnitID) (int, bool) {
	row, ok := m.rowByUnit[id]
	return row, ok
}

// ColOf returns the column index of a graphic unit id.
func (m *Matrix) ColOf(id model.UnitID) (int, bool) {
	col, ok := m.colByUnit[id]
	return col, ok
}

// UnitAtRow returns the source unit id at a row index.
func (m *Matrix) UnitAtRow(row int) (model.UnitID, bool) {
	if row < 0 || row >= len(m.unitByRow) {
		return model.NoUnit, false
	}
	return m.unitByRow[row], true
}

// UnitAtCol returns the graphic unit id at a column index.
func (m *Matrix) UnitAtCol(col int) (model.UnitID, bool) {
	if col < 0 || col >= len(m.unitByCol) {
		return model.NoUnit, false
	}
	return m.unitByCol[col], true
}

// Version returns the document version the snapshot was built from.
func (m *Matrix) Version() string {
	return m.version
}

// GeneratedAt returns when the upstream computed the relation.
func (m *Matrix) GeneratedAt() time.Time {
	return m.generatedAt
}

// Record flattens the snapshot into its storable form.
func (m *Matrix) Record() *service.RelationRecord {
	rec := &service.RelationRecord{
		Version:     m.version,
		GeneratedAt: m.generatedAt,
		Sources:     make([]service.RelationAxisUnit, 0, len(m.unitByRow)),
		Targets:     make([]service.RelationAxisUnit, 0, len(m.unitByCol)),
	}
	for row, id := range m.unitByRow {
		rec.Sources = append(rec.Sources, service.RelationAxisUnit{UnitID: id, Index: row})
	}
	for col, id := range m.unitByCol {
		rec.Targets = append(rec.Targets, service.RelationAxisUnit{UnitID: id, Index: col})
	}
	for row := range m.cells {
		for col, ok := range m.cells[row] {
			if ok {
				rec.Cells = append(rec.Cells, service.RelationCell{Row: row, Col: col})
			}
		}
	}
	return rec
}

// Builder assembles a Matrix while enforcing the relation invariants: every
// source unit owns exactly one row, every graphic unit exactly one column,
// indexes in each axis are dense (a permutation of 0..n-1), and the sentinel
// id never appears.
type Builder struct {
	rowByUnit map[model.UnitID]int
	colByUnit map[model.UnitID]int
	unitByRow map[int]model.UnitID
	unitByCol map[int]model.UnitID
	cells     []service.RelationCell
	version   string
	generated time.Time
}

// NewBuilder creates an empty relation builder.
func NewBuilder() *Builder {
	return &Builder{
		rowByUnit: make(map[model.UnitID]int),
		colByUnit: make(map[model.UnitID]int),
		unitByRow: make(map[int]model.UnitID),
		unitByCol: make(map[int]model.UnitID),
	}
}

// SetMeta records the document version and generation time.
func (b *Builder) SetMeta(version string, generatedAt time.Time) *Builder {
	b.version = version
	b.generated = generatedAt
	return b
}

// AddSource binds a source unit id to a row index.
func (b *Builder) AddSource(id model.UnitID, row int) error {
	if id == model.NoUnit {
		return fmt.Errorf("source row %d: sentinel unit id not allowed", row)
	}
	if row < 0 {
		return fmt.Errorf("source unit %d: negative row index %d", id, row)
	}
	if prev, ok := b.rowByUnit[id]; ok {
		return fmt.Errorf("source unit %d already bound to row %d", id, prev)
	}
	if prev, ok := b.unitByRow[row]; ok {
		return fmt.Errorf("row %d already bound to unit %d", row, prev)
	}
	b.rowByUnit[id] = row
	b.unitByRow[row] = id
	return nil
}

// AddTarget binds a graphic unit id to a column index.
func (b *Builder) AddTarget(id model.UnitID, col int) error {
	if id == model.NoUnit {
		return fmt.Errorf("target column %d: sentinel unit id not allowed", col)
	}
	if col < 0 {
		return fmt.Errorf("target unit %d: negative column index %d", id, col)
	}
	if prev, ok := b.colByUnit[id]; ok {
		return fmt.Errorf("target unit %d already bound to column %d", id, prev)
	}
	if prev, ok := b.unitByCol[col]; ok {
		return fmt.Errorf("column %d already bound to unit %d", col, prev)
	}
	b.colByUnit[id] = col
	b.unitByCol[col] = id
	return nil
}

// Set marks the relation true at (row, col). Range checking happens in Build
// once both axes are fully declared.
func (b *Builder) Set(row, col int) {
	b.cells = append(b.cells, service.RelationCell{Row: row, Col: col})
}

// Build validates the accumulated state and returns the immutable Matrix.
func (b *Builder) Build() (*Matrix, error) {
	rows := len(b.unitByRow)
	cols := len(b.unitByCol)

	m := &Matrix{
		version:     b.version,
		generatedAt: b.generated,
		rowByUnit:   make(map[model.UnitID]int, rows),
		colByUnit:   make(map[model.UnitID]int, cols),
		unitByRow:   make([]model.UnitID, rows),
		unitByCol:   make([]model.UnitID, cols),
		cells:       make([][]bool, rows),
	}

	for id, row := range b.rowByUnit {
		if row >= rows {
			return nil, fmt.Errorf("%w: source row index %d outside dense range 0..%d", common.ErrRelationMalformed, row, rows-1)
		}
		m.rowByUnit[id] = row
		m.unitByRow[row] = id
	}
	for id, col := range b.colByUnit {
		if col >= cols {
			return nil, fmt.Errorf("%w: target column index %d outside dense range 0..%d", common.ErrRelationMalformed, col, cols-1)
		}
		m.colByUnit[id] = col
		m.unitByCol[col] = id
	}

	for row := range m.cells {
		m.cells[row] = make([]bool, cols)
	}
	for _, cell := range b.cells {
		if cell.Row < 0 || cell.Row >= rows || cell.Col < 0 || cell.Col >= cols {
			return nil, fmt.Errorf("%w: cell (%d,%d) outside %dx%d matrix", common.ErrRelationMalformed, cell.Row, cell.Col, rows, cols)
		}
		m.cells[cell.Row][cell.Col] = true
	}

	return m, nil
}

// FromRecord rebuilds a Matrix from its stored flat form.
func FromRecord(rec *service.RelationRecord) (*Matrix, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", common.ErrRelationMalformed)
	}

	b := NewBuilder().SetMeta(rec.Version, rec.GeneratedAt)
	for _, src := range rec.Sources {
		if err := b.AddSource(src.UnitID, src.Index); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrRelationMalformed, err)
		}
	}
	for _, tgt := range rec.Targets {
		if err := b.AddTarget(tgt.UnitID, tgt.Index); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrRelationMalformed, err)
		}
	}
	for _, cell := range rec.Cells {
		b.Set(cell.Row, cell.Col)
	}

	return b.Build()
}
