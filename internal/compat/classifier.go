package compat

import "github.com/meterflow/meterflow/internal/model"

// Classify applies the change decision table to one group. current is the
// group's baseline compatible-unit set, candidate the set the proposed
// membership would constrain it to, and defaultUnit the group's configured
// default graphic unit (model.NoUnit when unset).
//
// The rows are evaluated top to bottom and the first match wins:
//
//	nothing lost                      -> ChangeNone
//	everything lost                   -> ChangeNoCompatible
//	default unit among the losses     -> ChangeLostDefault
//	otherwise                         -> ChangeLostCompatible
//
// Total loss outranks losing the default: when every unit disappears the
// default is gone too, but the group is reported as having no compatible
// units, not as having lost its default. A group whose current set is
// already empty has nothing to lose and always classifies as ChangeNone.
func Classify(current, candidate model.UnitSet, defaultUnit model.UnitID) model.ChangeCase {
	lost := current.Subtract(candidate)

	switch {
	case lost.Empty():
		return model.ChangeNone
	case lost.Equal(current):
		return model.ChangeNoCompatible
	case defaultUnit != model.NoUnit && lost.Contains(defaultUnit):
		return model.ChangeLostDefault
	default:
		return model.ChangeLostCompatible
	}
}
