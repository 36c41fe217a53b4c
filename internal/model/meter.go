package model

import "time"

// MeterID identifies a meter.
type MeterID int64

// Meter represents a single measurement channel. UnitID is the meter's source
// unit and may be NoUnit when the meter has not been assigned one yet; such a
// meter contributes an empty compatibility set wherever it appears.
type Meter struct {
	CreatedAt time.Time
	Name      string
	ID        MeterID
	UnitID    UnitID
	GroupID   GroupID
}

// HasUnit reports whether the meter has a source unit assigned.
func (m Meter) HasUnit() bool {
	return m.UnitID != NoUnit
}
