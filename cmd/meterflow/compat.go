package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/meterflow/meterflow/internal/cli"
	"github.com/meterflow/meterflow/internal/model"
	"github.com/spf13/cobra"
)

func compatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compat",
		Short: "Query compatible graphic units",
		Long: `Resolve which graphic units are compatible with a source unit, a meter, a
set of meters, or a whole group. A set of meters is only as compatible as
its intersection; until a relation is installed every query resolves to the
empty set.`,
	}

	cmd.PersistentFlags().String("format", "table", "Output format (table, json)")

	cmd.AddCommand(compatUnitCmd())
	cmd.AddCommand(compatMeterCmd())
	cmd.AddCommand(compatMetersCmd())
	cmd.AddCommand(compatGroupCmd())

	return cmd
}

func compatUnitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unit <unit-id>",
		Short: "Units compatible with one source unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			unitID, err := parseUnitID(args[0])
			if err != nil {
				return err
			}

			env, err := initCmdEnv(ctx, false)
			if err != nil {
				return err
			}
			defer env.Close()

			units, err := env.resolver.UnitsCompatibleWithUnit(unitID)
			if err != nil {
				return err
			}

			return printCompat(ctx, cmd, env, fmt.Sprintf("unit %d", unitID), units)
		},
	}
}

func compatMeterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meter <meter-id>",
		Short: "Units compatible with one meter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			meterID, err := parseMeterID(args[0])
			if err != nil {
				return err
			}

			env, err := initCmdEnv(ctx, false)
			if err != nil {
				return err
			}
			defer env.Close()

			units, err := env.resolver.UnitsForCandidate(ctx, model.MeterCandidate(meterID))
			if err != nil {
				return err
			}

			return printCompat(ctx, cmd, env, fmt.Sprintf("meter %d", meterID), units)
		},
	}
}

func compatMetersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meters <meter-id>...",
		Short: "Units every listed meter shares",
		Long:  `Intersect the compatible sets of the listed meters. One incompatible meter empties the whole result.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			meterIDs := make([]model.MeterID, 0, len(args))
			for _, arg := range args {
				id, err := parseMeterID(arg)
				if err != nil {
					return err
				}
				meterIDs = append(meterIDs, id)
			}

			env, err := initCmdEnv(ctx, false)
			if err != nil {
				return err
			}
			defer env.Close()

			units, err := env.resolver.UnitsCompatibleWithMeters(ctx, meterIDs)
			if err != nil {
				return err
			}

			return printCompat(ctx, cmd, env, fmt.Sprintf("%d meters", len(meterIDs)), units)
		},
	}
}

func compatGroupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "group <group-id>",
		Short: "Units a whole group shares",
		Long:  `Intersect the compatible sets of every meter beneath the group, subgroups included.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			groupID, err := parseGroupID(args[0])
			if err != nil {
				return err
			}

			env, err := initCmdEnv(ctx, false)
			if err != nil {
				return err
			}
			defer env.Close()

			group, err := env.store.GetGroupByID(ctx, groupID)
			if err != nil {
				return err
			}

			units, err := env.resolver.UnitsCompatibleWithGroup(ctx, groupID)
			if err != nil {
				return err
			}

			return printCompat(ctx, cmd, env, fmt.Sprintf("group %q", group.Name), units)
		},
	}
}

type compatResult struct {
	Subject       string       `json:"subject"`
	Units         []compatUnit `json:"units"`
	Count         int          `json:"count"`
	RelationReady bool         `json:"relation_ready"`
}

type compatUnit struct {
	Symbol string       `json:"symbol"`
	Name   string       `json:"name"`
	ID     model.UnitID `json:"id"`
}

// printCompat renders a resolved unit set as a table or JSON, depending on
// the inherited --format flag.
func printCompat(ctx context.Context, cmd *cobra.Command, env *cmdEnv, subject string, units model.UnitSet) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}

	result := compatResult{
		Subject:       subject,
		Units:         make([]compatUnit, 0, units.Len()),
		Count:         units.Len(),
		RelationReady: env.resolver.Ready(),
	}
	for _, id := range units.IDs() {
		unit, err := env.store.GetUnitByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to resolve unit %d: %w", id, err)
		}
		result.Units = append(result.Units, compatUnit{ID: unit.ID, Symbol: unit.Symbol, Name: unit.Name})
	}

	switch format {
	case "json":
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Println(string(out))
		return nil
	case "table":
		printCompatTable(result)
		return nil
	default:
		return fmt.Errorf("invalid output format %q (want table or json)", format)
	}
}

func printCompatTable(result compatResult) {
	fmt.Println(cli.FormatTitle(fmt.Sprintf("Compatible graphic units for %s", result.Subject)))

	if !result.RelationReady {
		fmt.Println(cli.FormatWarning("No compatibility relation installed; showing the empty set."))
	}

	if result.Count == 0 {
		fmt.Println(cli.InfoStyle.Render("No compatible units."))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	fmt.Fprintf(w, "%s\t%s\t%s\n",
		headerStyle.Render("ID"),
		headerStyle.Render("Symbol"),
		headerStyle.Render("Name"))
	fmt.Fprintf(w, "%s\t%s\t%s\n",
		strings.Repeat("-", 4),
		strings.Repeat("-", 8),
		strings.Repeat("-", 20))

	for _, unit := range result.Units {
		fmt.Fprintf(w, "%d\t%s\t%s\n", unit.ID, unit.Symbol, unit.Name)
	}
}
