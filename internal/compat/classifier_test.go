package compat

import (
	"testing"

	"github.com/meterflow/meterflow/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		current     model.UnitSet
		candidate   model.UnitSet
		defaultUnit model.UnitID
		want        model.ChangeCase
	}{
		{
			name:        "some units lost without default",
			current:     model.NewUnitSet(1, 2, 3),
			candidate:   model.NewUnitSet(2, 3, 4),
			defaultUnit: model.NoUnit,
			want:        model.ChangeLostCompatible,
		},
		{
			name:        "default unit among the lost",
			current:     model.NewUnitSet(1, 2, 3),
			candidate:   model.NewUnitSet(2, 3, 4),
			defaultUnit: 1,
			want:        model.ChangeLostDefault,
		},
		{
			name:        "total loss outranks losing the default",
			current:     model.NewUnitSet(1, 2, 3),
			candidate:   model.NewUnitSet(),
			defaultUnit: 1,
			want:        model.ChangeNoCompatible,
		},
		{
			name:        "candidate keeps every current unit",
			current:     model.NewUnitSet(1, 2, 3),
			candidate:   model.NewUnitSet(1, 2, 3, 4),
			defaultUnit: model.NoUnit,
			want:        model.ChangeNone,
		},
		{
			name:        "identical sets",
			current:     model.NewUnitSet(1, 2, 3),
			candidate:   model.NewUnitSet(1, 2, 3),
			defaultUnit: 1,
			want:        model.ChangeNone,
		},
		{
			name:        "empty baseline has nothing to lose",
			current:     model.NewUnitSet(),
			candidate:   model.NewUnitSet(),
			defaultUnit: model.NoUnit,
			want:        model.ChangeNone,
		},
		{
			name:        "empty baseline gains units",
			current:     model.NewUnitSet(),
			candidate:   model.NewUnitSet(1, 2),
			defaultUnit: model.NoUnit,
			want:        model.ChangeNone,
		},
		{
			name:        "disjoint candidate empties the group",
			current:     model.NewUnitSet(1, 2),
			candidate:   model.NewUnitSet(3, 4),
			defaultUnit: model.NoUnit,
			want:        model.ChangeNoCompatible,
		},
		{
			name:        "default survives when it stays compatible",
			current:     model.NewUnitSet(1, 2, 3),
			candidate:   model.NewUnitSet(2, 3),
			defaultUnit: 2,
			want:        model.ChangeLostCompatible,
		},
		{
			name:        "single unit lost and it was the default",
			current:     model.NewUnitSet(1, 2),
			candidate:   model.NewUnitSet(2),
			defaultUnit: 1,
			want:        model.ChangeLostDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.current, tt.candidate, tt.defaultUnit)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid(), "classification must be one of the four cases")
		})
	}
}

func TestClassifyNoChangeIffNothingLost(t *testing.T) {
	sets := []model.UnitSet{
		model.NewUnitSet(),
		model.NewUnitSet(1),
		model.NewUnitSet(1, 2),
		model.NewUnitSet(2, 3),
		model.NewUnitSet(1, 2, 3),
	}

	for _, current := range sets {
		for _, candidate := range sets {
			got := Classify(current, candidate, model.NoUnit)
			subset := current.Subtract(candidate).Empty()
			assert.Equal(t, subset, got == model.ChangeNone,
				"current=%v candidate=%v", current.IDs(), candidate.IDs())
		}
	}
}

func TestClassifyTotalLossIffDisjoint(t *testing.T) {
	sets := []model.UnitSet{
		model.NewUnitSet(),
		model.NewUnitSet(1),
		model.NewUnitSet(1, 2),
		model.NewUnitSet(3, 4),
		model.NewUnitSet(1, 2, 3),
	}

	for _, current := range sets {
		for _, candidate := range sets {
			got := Classify(current, candidate, 1)
			disjoint := current.Intersect(candidate).Empty() && !current.Empty()
			assert.Equal(t, disjoint, got == model.ChangeNoCompatible,
				"current=%v candidate=%v", current.IDs(), candidate.IDs())
		}
	}
}
