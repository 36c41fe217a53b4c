// Package model defines the core domain models used throughout the application.
package model

// UnitID identifies a unit in the catalog.
type UnitID int64

// NoUnit is the reserved sentinel id meaning "no unit assigned." It is never
// allocated by the catalog, and resolving it always yields an empty
// compatibility set.
const NoUnit UnitID = 0

// UnitKind distinguishes acquisition-side source units from display units.
type UnitKind string

const (
	// UnitKindSource marks the units meters report in; source units form the
	// rows of the compatibility relation.
	UnitKindSource UnitKind = "source"
	// UnitKindGraphic marks display units selectable for a group's graph;
	// graphic units form the columns of the compatibility relation.
	UnitKindGraphic UnitKind = "graphic"
)

// Valid reports whether the kind is one of the known unit kinds.
func (k UnitKind) Valid() bool {
	return k == UnitKindSource || k == UnitKindGraphic
}

// Unit represents a single entry of the unit catalog. Index is the unit's
// position in the compatibility relation: a row index for source units, a
// column index for graphic units.
type Unit struct {
	Name   string
	Symbol string
	Kind   UnitKind
	ID     UnitID
	Index  int
}

// IsSource reports whether the unit is a source unit.
func (u Unit) IsSource() bool {
	return u.Kind == UnitKindSource
}
