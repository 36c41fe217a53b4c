package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/meterflow/meterflow/internal/cli"
	"github.com/meterflow/meterflow/internal/model"
	"github.com/spf13/cobra"
)

func unitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "units",
		Short: "Manage the unit catalog",
		Long: `List and register units. Source units are what meters measure in and form
the rows of the compatibility relation; graphic units are what groups plot
in and form the columns.`,
	}

	cmd.AddCommand(listUnitsCmd())
	cmd.AddCommand(addUnitCmd())

	return cmd
}

func listUnitsCmd() *cobra.Command {
	var kindFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog units",
		Long:  `Display the unit catalog with each unit's relation index.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			var units []model.Unit
			if kindFilter != "" {
				kind := model.UnitKind(kindFilter)
				if !kind.Valid() {
					return fmt.Errorf("invalid unit kind %q (want source or graphic)", kindFilter)
				}
				units, err = store.ListUnitsByKind(ctx, kind)
			} else {
				units, err = store.ListUnits(ctx)
			}
			if err != nil {
				return fmt.Errorf("failed to list units: %w", err)
			}

			if len(units) == 0 {
				fmt.Println(cli.InfoStyle.Render("No units found. Use 'meterflow units add' or 'meterflow seed demo' to create some."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				headerStyle.Render("ID"),
				headerStyle.Render("Symbol"),
				headerStyle.Render("Name"),
				headerStyle.Render("Kind"),
				headerStyle.Render("Index"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 4),
				strings.Repeat("-", 8),
				strings.Repeat("-", 20),
				strings.Repeat("-", 8),
				strings.Repeat("-", 5))

			for _, unit := range units {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", unit.ID, unit.Symbol, unit.Name, unit.Kind, unit.Index)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&kindFilter, "kind", "", "Only list units of this kind (source, graphic)")

	return cmd
}

func addUnitCmd() *cobra.Command {
	var (
		unitKind  string
		unitIndex int
	)

	cmd := &cobra.Command{
		Use:   "add <name> <symbol>",
		Short: "Register a unit",
		Long: `Register a unit in the catalog. Index is the unit's row (source) or column
(graphic) in the compatibility relation document.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			unit := &model.Unit{
				Name:   args[0],
				Symbol: args[1],
				Kind:   model.UnitKind(unitKind),
				Index:  unitIndex,
			}

			created, err := store.CreateUnit(ctx, unit)
			if err != nil {
				return fmt.Errorf("failed to create unit: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created %s unit %q (ID: %d)", created.Kind, created.Symbol, created.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&unitKind, "kind", "", "Unit kind: source or graphic (required)")
	cmd.Flags().IntVar(&unitIndex, "index", 0, "Row or column index in the compatibility relation")
	_ = cmd.MarkFlagRequired("kind")

	return cmd
}
