package model

import "time"

// GroupID identifies a meter group. The zero value means "no group": a root
// group has ParentID 0, an unfiled meter has GroupID 0.
type GroupID int64

// RootGroup is the reserved sentinel id meaning "no parent group". Meters
// with GroupID RootGroup are unfiled; groups with ParentID RootGroup sit at
// the top of the hierarchy.
const RootGroup GroupID = 0

// Group represents a node of the meter hierarchy. DefaultUnitID is the
// group's preferred graphic unit for presentation; NoUnit means none set.
// Membership (meters and subgroups) is held by the children, keyed on
// GroupID/ParentID, and the deep meter set is derived by the storage layer.
type Group struct {
	CreatedAt     time.Time
	Name          string
	ID            GroupID
	ParentID      GroupID
	DefaultUnitID UnitID
}

// IsRoot reports whether the group sits at the top of the hierarchy.
func (g Group) IsRoot() bool {
	return g.ParentID == RootGroup
}

// HasDefaultUnit reports whether a default graphic unit is set.
func (g Group) HasDefaultUnit() bool {
	return g.DefaultUnitID != NoUnit
}
