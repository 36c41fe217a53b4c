package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/meterflow/meterflow/internal/compat"
	"github.com/meterflow/meterflow/internal/model"
	"github.com/meterflow/meterflow/internal/relation"
)

// Fixture is the standard electrical test world.
//
// Relation: voltage → {mV, V, kV}, current → {mA, A}, lowvolt → {mV, V}.
//
// Hierarchy:
//
//	Plant (default kV)
//	└── Feeders (default V): feeder-a, feeder-b   [both voltage]
//	Pumps (default A): intake                     [current]
//	unfiled: spare [voltage], coarse [lowvolt], new-pump [current], blank [no unit]
//
// Units are keyed by symbol, groups and meters by name.
type Fixture struct {
	*TestDB
	Provider *relation.Provider
	Resolver *compat.Resolver

	Units  map[string]model.UnitID
	Groups map[string]model.GroupID
	Meters map[string]model.MeterID
}

// SetupElectricalDB builds the standard fixture with the relation installed
// and cached.
func SetupElectricalDB(t *testing.T) *Fixture {
	t.Helper()
	ctx := context.Background()

	f := &Fixture{
		TestDB: SetupTestDB(t),
		Units:  make(map[string]model.UnitID),
		Groups: make(map[string]model.GroupID),
		Meters: make(map[string]model.MeterID),
	}

	for _, u := range []model.Unit{
		{Name: "voltage", Symbol: "u-V", Kind: model.UnitKindSource, Index: 0},
		{Name: "current", Symbol: "u-A", Kind: model.UnitKindSource, Index: 1},
		{Name: "lowvolt", Symbol: "u-LV", Kind: model.UnitKindSource, Index: 2},
		{Name: "millivolt", Symbol: "mV", Kind: model.UnitKindGraphic, Index: 0},
		{Name: "volt", Symbol: "V", Kind: model.UnitKindGraphic, Index: 1},
		{Name: "kilovolt", Symbol: "kV", Kind: model.UnitKindGraphic, Index: 2},
		{Name: "milliamp", Symbol: "mA", Kind: model.UnitKindGraphic, Index: 3},
		{Name: "ampere", Symbol: "A", Kind: model.UnitKindGraphic, Index: 4},
	} {
		created, err := f.Storage.CreateUnit(ctx, &u)
		if err != nil {
			t.Fatalf("failed to seed unit %q: %v", u.Symbol, err)
		}
		f.Units[created.Symbol] = created.ID
	}

	f.Provider = relation.NewProvider()
	f.Provider.Install(f.buildMatrix(t))
	if err := f.Storage.SaveRelationRecord(ctx, f.Provider.Matrix().Record()); err != nil {
		t.Fatalf("failed to cache relation: %v", err)
	}

	for _, g := range []struct {
		name        string
		parent      string
		defaultUnit string
	}{
		{name: "Plant", defaultUnit: "kV"},
		{name: "Feeders", parent: "Plant", defaultUnit: "V"},
		{name: "Pumps", defaultUnit: "A"},
	} {
		spec := model.Group{Name: g.name}
		if g.parent != "" {
			spec.ParentID = f.Groups[g.parent]
		}
		if g.defaultUnit != "" {
			spec.DefaultUnitID = f.Units[g.defaultUnit]
		}
		created, err := f.Storage.CreateGroup(ctx, &spec)
		if err != nil {
			t.Fatalf("failed to seed group %q: %v", g.name, err)
		}
		f.Groups[created.Name] = created.ID
	}

	for _, m := range []struct {
		name  string
		unit  string
		group string
	}{
		{name: "feeder-a", unit: "u-V", group: "Feeders"},
		{name: "feeder-b", unit: "u-V", group: "Feeders"},
		{name: "intake", unit: "u-A", group: "Pumps"},
		{name: "spare", unit: "u-V"},
		{name: "coarse", unit: "u-LV"},
		{name: "new-pump", unit: "u-A"},
		{name: "blank"},
	} {
		spec := model.Meter{Name: m.name}
		if m.unit != "" {
			spec.UnitID = f.Units[m.unit]
		}
		if m.group != "" {
			spec.GroupID = f.Groups[m.group]
		}
		created, err := f.Storage.CreateMeter(ctx, &spec)
		if err != nil {
			t.Fatalf("failed to seed meter %q: %v", m.name, err)
		}
		f.Meters[created.Name] = created.ID
	}

	f.Resolver = compat.NewResolver(f.Provider, f.Storage)
	return f
}

func (f *Fixture) buildMatrix(t *testing.T) *relation.Matrix {
	t.Helper()

	b := relation.NewBuilder().SetMeta("fixture", time.Now().UTC())
	for symbol, row := range map[string]int{"u-V": 0, "u-A": 1, "u-LV": 2} {
		if err := b.AddSource(f.Units[symbol], row); err != nil {
			t.Fatalf("failed to add source %q: %v", symbol, err)
		}
	}
	for symbol, col := range map[string]int{"mV": 0, "V": 1, "kV": 2, "mA": 3, "A": 4} {
		if err := b.AddTarget(f.Units[symbol], col); err != nil {
			t.Fatalf("failed to add target %q: %v", symbol, err)
		}
	}
	for _, cell := range [][2]int{
		{0, 0}, {0, 1}, {0, 2}, // voltage
		{1, 3}, {1, 4}, // current
		{2, 0}, {2, 1}, // lowvolt
	} {
		b.Set(cell[0], cell[1])
	}

	m, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build relation matrix: %v", err)
	}
	return m
}
