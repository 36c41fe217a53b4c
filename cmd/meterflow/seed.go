package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/meterflow/meterflow/internal/cli"
	"github.com/meterflow/meterflow/internal/model"
	"github.com/meterflow/meterflow/internal/relation"
	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed example data",
	}

	cmd.AddCommand(seedDemoCmd())

	return cmd
}

func seedDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Create a small demo world",
		Long: `Create a small building-monitoring demo: four source units, six graphic
units, a relation between them, two group trees, and a handful of meters
both filed and unfiled. Expects an empty database.

The demo is laid out so every change case shows up somewhere: try
'meterflow menu' on the HVAC group.`,
		RunE: runSeedDemo,
	}
}

func runSeedDemo(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	existing, err := store.ListUnits(ctx)
	if err != nil {
		return fmt.Errorf("failed to inspect catalog: %w", err)
	}
	if len(existing) > 0 {
		return fmt.Errorf("catalog already holds %d units; seed demo needs an empty database", len(existing))
	}

	units := make(map[string]model.UnitID)
	for _, u := range []model.Unit{
		{Name: "temperature", Symbol: "u-T", Kind: model.UnitKindSource, Index: 0},
		{Name: "power", Symbol: "u-P", Kind: model.UnitKindSource, Index: 1},
		{Name: "energy", Symbol: "u-E", Kind: model.UnitKindSource, Index: 2},
		{Name: "power-coarse", Symbol: "u-PC", Kind: model.UnitKindSource, Index: 3},
		{Name: "celsius", Symbol: "°C", Kind: model.UnitKindGraphic, Index: 0},
		{Name: "fahrenheit", Symbol: "°F", Kind: model.UnitKindGraphic, Index: 1},
		{Name: "watt", Symbol: "W", Kind: model.UnitKindGraphic, Index: 2},
		{Name: "kilowatt", Symbol: "kW", Kind: model.UnitKindGraphic, Index: 3},
		{Name: "megawatt", Symbol: "MW", Kind: model.UnitKindGraphic, Index: 4},
		{Name: "kilowatt-hour", Symbol: "kWh", Kind: model.UnitKindGraphic, Index: 5},
	} {
		created, err := store.CreateUnit(ctx, &u)
		if err != nil {
			return fmt.Errorf("failed to create unit %q: %w", u.Symbol, err)
		}
		units[created.Symbol] = created.ID
	}

	matrix, err := demoRelation(units)
	if err != nil {
		return fmt.Errorf("failed to build demo relation: %w", err)
	}
	if err := store.SaveRelationRecord(ctx, matrix.Record()); err != nil {
		return fmt.Errorf("failed to cache demo relation: %w", err)
	}

	groups := make(map[string]model.GroupID)
	for _, g := range []struct {
		name        string
		parent      string
		defaultUnit string
	}{
		{name: "Building", defaultUnit: "kW"},
		{name: "HVAC", parent: "Building", defaultUnit: "W"},
		{name: "Solar", defaultUnit: "kWh"},
	} {
		spec := model.Group{Name: g.name}
		if g.parent != "" {
			spec.ParentID = groups[g.parent]
		}
		if g.defaultUnit != "" {
			spec.DefaultUnitID = units[g.defaultUnit]
		}
		created, err := store.CreateGroup(ctx, &spec)
		if err != nil {
			return fmt.Errorf("failed to create group %q: %w", g.name, err)
		}
		groups[created.Name] = created.ID
	}

	meterCount := 0
	unfiledCount := 0
	for _, m := range []struct {
		name  string
		unit  string
		group string
	}{
		{name: "main-feed", unit: "u-P", group: "Building"},
		{name: "ahu-1", unit: "u-P", group: "HVAC"},
		{name: "ahu-2", unit: "u-P", group: "HVAC"},
		{name: "inverter", unit: "u-E", group: "Solar"},
		{name: "east-wing", unit: "u-P"},
		{name: "legacy", unit: "u-PC"},
		{name: "roof-temp", unit: "u-T"},
		{name: "annex", unit: "u-E"},
		{name: "spare"},
	} {
		spec := model.Meter{Name: m.name}
		if m.unit != "" {
			spec.UnitID = units[m.unit]
		}
		if m.group != "" {
			spec.GroupID = groups[m.group]
		}
		if _, err := store.CreateMeter(ctx, &spec); err != nil {
			return fmt.Errorf("failed to create meter %q: %w", m.name, err)
		}
		meterCount++
		if m.group == "" {
			unfiledCount++
		}
	}

	fmt.Println(cli.RenderBox("Demo Data", strings.Join([]string{
		fmt.Sprintf("%d units (4 source, 6 graphic)", len(units)),
		"relation: temperature → °C °F; power → W kW MW;",
		"          energy → kWh; power-coarse → kW",
		"groups: Building (kW) > HVAC (W); Solar (kWh)",
		fmt.Sprintf("%d meters, %d of them unfiled", meterCount, unfiledCount),
	}, "\n")))
	fmt.Println(cli.FormatInfo(fmt.Sprintf("Try: meterflow menu %d, or meterflow report", groups["HVAC"])))

	return nil
}

// demoRelation builds the demo's compatibility matrix: temperature plots in
// the temperature scales, power in the power scales, energy only in kWh, and
// the coarse power unit only in kW.
func demoRelation(units map[string]model.UnitID) (*relation.Matrix, error) {
	b := relation.NewBuilder().SetMeta("demo-1", time.Now().UTC())

	for symbol, row := range map[string]int{"u-T": 0, "u-P": 1, "u-E": 2, "u-PC": 3} {
		if err := b.AddSource(units[symbol], row); err != nil {
			return nil, err
		}
	}
	for symbol, col := range map[string]int{"°C": 0, "°F": 1, "W": 2, "kW": 3, "MW": 4, "kWh": 5} {
		if err := b.AddTarget(units[symbol], col); err != nil {
			return nil, err
		}
	}

	for _, cell := range [][2]int{
		{0, 0}, {0, 1}, // temperature
		{1, 2}, {1, 3}, {1, 4}, // power
		{2, 5}, // energy
		{3, 3}, // power-coarse
	} {
		b.Set(cell[0], cell[1])
	}

	return b.Build()
}
