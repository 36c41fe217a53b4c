package compat

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/meterflow/meterflow/internal/common"
	"github.com/meterflow/meterflow/internal/model"
	"github.com/meterflow/meterflow/internal/relation"
	"github.com/meterflow/meterflow/internal/service"
	"github.com/stretchr/testify/require"
)

// Electrical test catalog. Source units occupy relation rows, graphic units
// columns; voltage meters can display mV/V/kV, current meters mA/A,
// temperature probes C/F/K, and the coarse voltage unit only mV/V.
const (
	unitVoltage model.UnitID = 1
	unitCurrent model.UnitID = 2
	unitTemp    model.UnitID = 3
	unitVoltLow model.UnitID = 4

	unitMilliVolt  model.UnitID = 10
	unitVolt       model.UnitID = 11
	unitKiloVolt   model.UnitID = 12
	unitMilliAmp   model.UnitID = 13
	unitAmp        model.UnitID = 14
	unitCelsius    model.UnitID = 15
	unitFahrenheit model.UnitID = 16
	unitKelvin     model.UnitID = 17
)

func testMatrix(t *testing.T) *relation.Matrix {
	t.Helper()

	b := relation.NewBuilder()
	sources := []struct {
		id  model.UnitID
		row int
	}{
		{unitVoltage, 0},
		{unitCurrent, 1},
		{unitTemp, 2},
		{unitVoltLow, 3},
	}
	targets := []struct {
		id  model.UnitID
		col int
	}{
		{unitMilliVolt, 0},
		{unitVolt, 1},
		{unitKiloVolt, 2},
		{unitMilliAmp, 3},
		{unitAmp, 4},
		{unitCelsius, 5},
		{unitFahrenheit, 6},
		{unitKelvin, 7},
	}
	for _, s := range sources {
		require.NoError(t, b.AddSource(s.id, s.row))
	}
	for _, tg := range targets {
		require.NoError(t, b.AddTarget(tg.id, tg.col))
	}

	for _, col := range []int{0, 1, 2} {
		b.Set(0, col)
	}
	for _, col := range []int{3, 4} {
		b.Set(1, col)
	}
	for _, col := range []int{5, 6, 7} {
		b.Set(2, col)
	}
	for _, col := range []int{0, 1} {
		b.Set(3, col)
	}

	m, err := b.Build()
	require.NoError(t, err)
	return m
}

// staticRelation serves a fixed matrix; nil means not ready.
type staticRelation struct {
	matrix *relation.Matrix
}

func (s staticRelation) Ready() bool {
	return s.matrix != nil
}

func (s staticRelation) Snapshot() service.RelationSnapshot {
	if s.matrix == nil {
		return nil
	}
	return s.matrix
}

// fakeHierarchy is a map-backed Hierarchy implementation.
type fakeHierarchy struct {
	units  map[model.UnitID]model.Unit
	meters map[model.MeterID]model.Meter
	groups map[model.GroupID]model.Group
}

func (f *fakeHierarchy) GetUnitByID(_ context.Context, id model.UnitID) (*model.Unit, error) {
	unit, ok := f.units[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", common.ErrUnitNotFound, id)
	}
	return &unit, nil
}

func (f *fakeHierarchy) GetMeterByID(_ context.Context, id model.MeterID) (*model.Meter, error) {
	meter, ok := f.meters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", common.ErrMeterNotFound, id)
	}
	return &meter, nil
}

func (f *fakeHierarchy) GetGroupByID(_ context.Context, id model.GroupID) (*model.Group, error) {
	group, ok := f.groups[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", common.ErrGroupNotFound, id)
	}
	return &group, nil
}

func (f *fakeHierarchy) DeepMeterIDs(_ context.Context, groupID model.GroupID) ([]model.MeterID, error) {
	if _, ok := f.groups[groupID]; !ok {
		return nil, fmt.Errorf("%w: %d", common.ErrGroupNotFound, groupID)
	}

	var ids []model.MeterID
	var walk func(model.GroupID)
	walk = func(g model.GroupID) {
		for id, meter := range f.meters {
			if meter.GroupID == g {
				ids = append(ids, id)
			}
		}
		for id, group := range f.groups {
			if group.ParentID == g && id != model.RootGroup {
				walk(id)
			}
		}
	}
	walk(groupID)

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeHierarchy) AncestorGroupIDs(_ context.Context, groupID model.GroupID) ([]model.GroupID, error) {
	group, ok := f.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", common.ErrGroupNotFound, groupID)
	}

	var ids []model.GroupID
	for !group.IsRoot() {
		parent, ok := f.groups[group.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", common.ErrGroupNotFound, group.ParentID)
		}
		ids = append(ids, parent.ID)
		group = parent
	}
	return ids, nil
}

// Hierarchy fixture:
//
//	Plant (default kV)
//	└── Feeders (default V): feeder-a, feeder-b  (voltage)
//	Sensors (root): probe-1                      (temperature)
//	Pumps (root, default A): intake-pump         (current)
//	unfiled: spare-feeder (voltage), coarse-feeder (coarse voltage),
//	         new-pump (current), blank (no unit)
const (
	groupPlant   model.GroupID = 1
	groupFeeders model.GroupID = 2
	groupSensors model.GroupID = 3
	groupPumps   model.GroupID = 4

	meterFeederA model.MeterID = 1
	meterFeederB model.MeterID = 2
	meterProbe1  model.MeterID = 3
	meterIntake  model.MeterID = 4
	meterSpare   model.MeterID = 5
	meterCoarse  model.MeterID = 6
	meterNewPump model.MeterID = 7
	meterBlank   model.MeterID = 8
)

func testHierarchy() *fakeHierarchy {
	return &fakeHierarchy{
		units: map[model.UnitID]model.Unit{
			unitVoltage:    {ID: unitVoltage, Name: "voltage", Symbol: "u-V", Kind: model.UnitKindSource, Index: 0},
			unitCurrent:    {ID: unitCurrent, Name: "current", Symbol: "u-A", Kind: model.UnitKindSource, Index: 1},
			unitTemp:       {ID: unitTemp, Name: "temperature", Symbol: "u-T", Kind: model.UnitKindSource, Index: 2},
			unitVoltLow:    {ID: unitVoltLow, Name: "coarse voltage", Symbol: "u-Vc", Kind: model.UnitKindSource, Index: 3},
			unitMilliVolt:  {ID: unitMilliVolt, Name: "millivolt", Symbol: "mV", Kind: model.UnitKindGraphic, Index: 0},
			unitVolt:       {ID: unitVolt, Name: "volt", Symbol: "V", Kind: model.UnitKindGraphic, Index: 1},
			unitKiloVolt:   {ID: unitKiloVolt, Name: "kilovolt", Symbol: "kV", Kind: model.UnitKindGraphic, Index: 2},
			unitMilliAmp:   {ID: unitMilliAmp, Name: "milliamp", Symbol: "mA", Kind: model.UnitKindGraphic, Index: 3},
			unitAmp:        {ID: unitAmp, Name: "ampere", Symbol: "A", Kind: model.UnitKindGraphic, Index: 4},
			unitCelsius:    {ID: unitCelsius, Name: "celsius", Symbol: "C", Kind: model.UnitKindGraphic, Index: 5},
			unitFahrenheit: {ID: unitFahrenheit, Name: "fahrenheit", Symbol: "F", Kind: model.UnitKindGraphic, Index: 6},
			unitKelvin:     {ID: unitKelvin, Name: "kelvin", Symbol: "K", Kind: model.UnitKindGraphic, Index: 7},
		},
		meters: map[model.MeterID]model.Meter{
			meterFeederA: {ID: meterFeederA, Name: "feeder-a", UnitID: unitVoltage, GroupID: groupFeeders},
			meterFeederB: {ID: meterFeederB, Name: "feeder-b", UnitID: unitVoltage, GroupID: groupFeeders},
			meterProbe1:  {ID: meterProbe1, Name: "probe-1", UnitID: unitTemp, GroupID: groupSensors},
			meterIntake:  {ID: meterIntake, Name: "intake-pump", UnitID: unitCurrent, GroupID: groupPumps},
			meterSpare:   {ID: meterSpare, Name: "spare-feeder", UnitID: unitVoltage, GroupID: model.RootGroup},
			meterCoarse:  {ID: meterCoarse, Name: "coarse-feeder", UnitID: unitVoltLow, GroupID: model.RootGroup},
			meterNewPump: {ID: meterNewPump, Name: "new-pump", UnitID: unitCurrent, GroupID: model.RootGroup},
			meterBlank:   {ID: meterBlank, Name: "blank", UnitID: model.NoUnit, GroupID: model.RootGroup},
		},
		groups: map[model.GroupID]model.Group{
			groupPlant:   {ID: groupPlant, Name: "Plant", ParentID: model.RootGroup, DefaultUnitID: unitKiloVolt},
			groupFeeders: {ID: groupFeeders, Name: "Feeders", ParentID: groupPlant, DefaultUnitID: unitVolt},
			groupSensors: {ID: groupSensors, Name: "Sensors", ParentID: model.RootGroup},
			groupPumps:   {ID: groupPumps, Name: "Pumps", ParentID: model.RootGroup, DefaultUnitID: unitAmp},
		},
	}
}

func newTestResolver(matrix *relation.Matrix, store Hierarchy) *Resolver {
	return NewResolver(staticRelation{matrix: matrix}, store)
}
