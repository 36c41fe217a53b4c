package model

// ChangeCase classifies the consequence of a membership or default-unit
// change for a group, relative to the group's current compatible-unit set.
// The enumeration is closed: exactly one of the four cases is produced for
// any well-formed input.
type ChangeCase string

// Change case constants, in increasing severity.
const (
	// ChangeNone: the group keeps every currently compatible unit.
	ChangeNone ChangeCase = "NO_CHANGE"
	// ChangeLostCompatible: some compatible units are lost, but units remain
	// and the default graphic unit (if any) survives.
	ChangeLostCompatible ChangeCase = "LOST_COMPATIBLE_UNITS"
	// ChangeLostDefault: the group's default graphic unit is among the lost
	// units, though other compatible units remain.
	ChangeLostDefault ChangeCase = "LOST_DEFAULT_GRAPHIC_UNIT"
	// ChangeNoCompatible: every currently compatible unit is lost. Strictly
	// more severe than ChangeLostDefault even when the default unit is among
	// the losses.
	ChangeNoCompatible ChangeCase = "NO_COMPATIBLE_UNITS"
)

// Valid reports whether the value is one of the four change cases.
func (c ChangeCase) Valid() bool {
	switch c {
	case ChangeNone, ChangeLostCompatible, ChangeLostDefault, ChangeNoCompatible:
		return true
	default:
		return false
	}
}

// Severity orders change cases for aggregation. Higher is worse.
func (c ChangeCase) Severity() int {
	switch c {
	case ChangeNone:
		return 0
	case ChangeLostCompatible:
		return 1
	case ChangeLostDefault:
		return 2
	case ChangeNoCompatible:
		return 3
	default:
		return -1
	}
}

// Blocks reports whether the case forbids applying the change outright.
func (c ChangeCase) Blocks() bool {
	return c == ChangeNoCompatible
}
