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

func metersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meters",
		Short: "Manage meters",
		Long: `List, register, and configure meters. New meters start unfiled; use
'meterflow groups add-meter' to file one into a group, which checks what
the move would cost in compatible units.`,
	}

	cmd.AddCommand(listMetersCmd())
	cmd.AddCommand(addMeterCatalogCmd())
	cmd.AddCommand(assignUnitCmd())

	return cmd
}

func listMetersCmd() *cobra.Command {
	var groupFilter int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List meters",
		Long:  `Display all meters with their source unit and group. Use --group 0 for unfiled meters.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			var meters []model.Meter
			if cmd.Flags().Changed("group") {
				if groupFilter < 0 {
					return fmt.Errorf("invalid group id %d", groupFilter)
				}
				meters, err = store.ListMetersByGroup(ctx, model.GroupID(groupFilter))
			} else {
				meters, err = store.ListMeters(ctx)
			}
			if err != nil {
				return fmt.Errorf("failed to list meters: %w", err)
			}

			if len(meters) == 0 {
				fmt.Println(cli.InfoStyle.Render("No meters found. Use 'meterflow meters add' to create one."))
				return nil
			}

			units, err := store.ListUnits(ctx)
			if err != nil {
				return fmt.Errorf("failed to list units: %w", err)
			}
			symbols := make(map[model.UnitID]string, len(units))
			for _, unit := range units {
				symbols[unit.ID] = unit.Symbol
			}

			groups, err := store.ListGroups(ctx)
			if err != nil {
				return fmt.Errorf("failed to list groups: %w", err)
			}
			groupNames := make(map[model.GroupID]string, len(groups))
			for _, group := range groups {
				groupNames[group.ID] = group.Name
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				headerStyle.Render("ID"),
				headerStyle.Render("Name"),
				headerStyle.Render("Unit"),
				headerStyle.Render("Group"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 4),
				strings.Repeat("-", 20),
				strings.Repeat("-", 8),
				strings.Repeat("-", 20))

			subtle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
			for _, meter := range meters {
				unit := subtle.Render("(none)")
				if meter.HasUnit() {
					unit = symbols[meter.UnitID]
				}
				group := subtle.Render("(unfiled)")
				if meter.GroupID != model.RootGroup {
					group = groupNames[meter.GroupID]
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", meter.ID, meter.Name, unit, group)
			}

			return nil
		},
	}

	cmd.Flags().Int64Var(&groupFilter, "group", 0, "Only list meters of this group (0 = unfiled)")

	return cmd
}

func addMeterCatalogCmd() *cobra.Command {
	var unitID int64

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a meter",
		Long: `Register a new meter. The meter starts unfiled; filing it into a group
goes through 'meterflow groups add-meter' so the compatibility cost is
checked first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			meter := &model.Meter{Name: args[0]}
			if unitID < 0 {
				return fmt.Errorf("invalid unit id %d", unitID)
			}
			meter.UnitID = model.UnitID(unitID)

			created, err := store.CreateMeter(ctx, meter)
			if err != nil {
				return fmt.Errorf("failed to create meter: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created meter %q (ID: %d)", created.Name, created.ID)))
			if !created.HasUnit() {
				fmt.Println(cli.InfoStyle.Render("  No source unit assigned yet; the meter contributes no compatible units until one is."))
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&unitID, "unit", 0, "Source unit id (0 = none yet)")

	return cmd
}

func assignUnitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign-unit <meter-id> <unit-id>",
		Short: "Assign a meter's source unit",
		Long:  `Set the source unit a meter measures in. Only source-kind units are accepted.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			meterID, err := parseMeterID(args[0])
			if err != nil {
				return err
			}
			unitID, err := parseUnitID(args[1])
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			if err := store.AssignMeterUnit(ctx, meterID, unitID); err != nil {
				return fmt.Errorf("failed to assign unit: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Assigned unit %d to meter %d", unitID, meterID)))
			return nil
		},
	}
}
