package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/meterflow/meterflow/internal/cli"
	"github.com/meterflow/meterflow/internal/compat"
	"github.com/meterflow/meterflow/internal/model"
	"github.com/meterflow/meterflow/internal/service"
	"github.com/spf13/cobra"
)

func groupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Manage the group hierarchy",
		Long: `List, create, and rearrange meter groups. Rearrangements (filing meters,
attaching subgroups, changing defaults) are planned before they apply: if
any affected group would lose compatible graphic units you are asked to
confirm, and a change that would leave a group with no compatible units at
all is refused.`,
	}

	cmd.AddCommand(listGroupsCmd())
	cmd.AddCommand(addGroupCmd())
	cmd.AddCommand(groupTreeCmd())
	cmd.AddCommand(setDefaultUnitCmd())
	cmd.AddCommand(groupAddMeterCmd())
	cmd.AddCommand(groupRemoveMeterCmd())
	cmd.AddCommand(groupAddGroupCmd())
	cmd.AddCommand(groupRemoveGroupCmd())

	return cmd
}

func listGroupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all groups",
		Long:  `Display all groups with their parent and default graphic unit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			groups, err := store.ListGroups(ctx)
			if err != nil {
				return fmt.Errorf("failed to list groups: %w", err)
			}

			if len(groups) == 0 {
				fmt.Println(cli.InfoStyle.Render("No groups found. Use 'meterflow groups add' to create one."))
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
			names := make(map[model.GroupID]string, len(groups))
			for _, group := range groups {
				names[group.ID] = group.Name
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				headerStyle.Render("ID"),
				headerStyle.Render("Name"),
				headerStyle.Render("Parent"),
				headerStyle.Render("Default unit"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 4),
				strings.Repeat("-", 20),
				strings.Repeat("-", 20),
				strings.Repeat("-", 12))

			subtle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
			for _, group := range groups {
				parent := subtle.Render("(root)")
				if !group.IsRoot() {
					parent = names[group.ParentID]
				}
				defaultUnit := subtle.Render("(none)")
				if group.HasDefaultUnit() {
					defaultUnit = symbols[group.DefaultUnitID]
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", group.ID, group.Name, parent, defaultUnit)
			}

			return nil
		},
	}
}

func addGroupCmd() *cobra.Command {
	var parentID int64

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a group",
		Long: `Create a new group. Without --parent the group sits at the top of the
hierarchy; a brand-new group holds no meters, so creating it changes no
compatibility anywhere.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			if parentID < 0 {
				return fmt.Errorf("invalid parent group id %d", parentID)
			}

			group := &model.Group{
				Name:     args[0],
				ParentID: model.GroupID(parentID),
			}

			created, err := store.CreateGroup(ctx, group)
			if err != nil {
				return fmt.Errorf("failed to create group: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created group %q (ID: %d)", created.Name, created.ID)))
			return nil
		},
	}

	cmd.Flags().Int64Var(&parentID, "parent", 0, "Parent group id (0 = top level)")

	return cmd
}

func groupTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show the hierarchy as a tree",
		Long:  `Render the full group hierarchy with every meter and its source unit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			return renderTree(ctx, store, os.Stdout)
		},
	}
}

// renderTree prints every top-level group as its own tree, then the unfiled
// meters.
func renderTree(ctx context.Context, store service.Storage, w io.Writer) error {
	units, err := store.ListUnits(ctx)
	if err != nil {
		return fmt.Errorf("failed to list units: %w", err)
	}
	symbols := make(map[model.UnitID]string, len(units))
	for _, unit := range units {
		symbols[unit.ID] = unit.Symbol
	}

	roots, err := store.ListChildGroups(ctx, model.RootGroup)
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}

	if len(roots) == 0 {
		fmt.Fprintln(w, cli.InfoStyle.Render("No groups found. Use 'meterflow groups add' to create one."))
	}
	for _, root := range roots {
		fmt.Fprintln(w, groupTreeLabel(root, symbols))
		if err := printTreeBelow(ctx, store, w, symbols, root, ""); err != nil {
			return err
		}
	}

	unfiled, err := store.ListMetersByGroup(ctx, model.RootGroup)
	if err != nil {
		return fmt.Errorf("failed to list unfiled meters: %w", err)
	}
	if len(unfiled) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, cli.SubtitleStyle.Render("Unfiled meters"))
		for _, meter := range unfiled {
			fmt.Fprintf(w, "  %s\n", meterTreeLabel(meter, symbols))
		}
	}

	return nil
}

// printTreeBelow prints the meters and subgroups of one group, recursing
// into each subgroup.
func printTreeBelow(ctx context.Context, store service.Storage, w io.Writer, symbols map[model.UnitID]string, group model.Group, indent string) error {
	meters, err := store.ListMetersByGroup(ctx, group.ID)
	if err != nil {
		return fmt.Errorf("group %q: %w", group.Name, err)
	}
	children, err := store.ListChildGroups(ctx, group.ID)
	if err != nil {
		return fmt.Errorf("group %q: %w", group.Name, err)
	}

	total := len(meters) + len(children)
	for i, meter := range meters {
		fmt.Fprintf(w, "%s%s%s\n", indent, treeConnector(i, total), meterTreeLabel(meter, symbols))
	}
	for j, child := range children {
		pos := len(meters) + j
		fmt.Fprintf(w, "%s%s%s\n", indent, treeConnector(pos, total), groupTreeLabel(child, symbols))

		childIndent := indent + "│   "
		if pos == total-1 {
			childIndent = indent + "    "
		}
		if err := printTreeBelow(ctx, store, w, symbols, child, childIndent); err != nil {
			return err
		}
	}

	return nil
}

func treeConnector(i, total int) string {
	if i == total-1 {
		return "└── "
	}
	return "├── "
}

func groupTreeLabel(group model.Group, symbols map[model.UnitID]string) string {
	label := cli.BoldStyle.Render(group.Name)
	if group.HasDefaultUnit() {
		label += cli.SubtleStyle.Render(fmt.Sprintf(" (default %s)", symbols[group.DefaultUnitID]))
	}
	return label
}

func meterTreeLabel(meter model.Meter, symbols map[model.UnitID]string) string {
	unit := "no unit"
	if meter.HasUnit() {
		unit = symbols[meter.UnitID]
	}
	return fmt.Sprintf("%s %s", meter.Name, cli.SubtleStyle.Render("["+unit+"]"))
}

func setDefaultUnitCmd() *cobra.Command {
	var (
		yes    bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "set-default-unit <group-id> <unit-id|none>",
		Short: "Set or clear a group's default graphic unit",
		Long: `Set the graphic unit a group plots in by default, or clear it with 'none'.
Setting a unit that is not among the group's compatible units asks for
confirmation; membership is never touched.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			groupID, err := parseGroupID(args[0])
			if err != nil {
				return err
			}

			unitID := model.NoUnit
			if args[1] != "none" {
				unitID, err = parseUnitID(args[1])
				if err != nil {
					return err
				}
			}

			return runChange(ctx, compat.SetDefaultChange(groupID, unitID), yes, dryRun)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Apply without asking for confirmation")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan without applying")

	return cmd
}

func groupAddMeterCmd() *cobra.Command {
	var (
		yes    bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "add-meter <group-id> <meter-id>",
		Short: "File a meter into a group",
		Long: `File an unfiled meter into a group. The group and all of its ancestors
keep only the graphic units the new meter shares with them, so the change
is planned and confirmed before anything is written.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			groupID, err := parseGroupID(args[0])
			if err != nil {
				return err
			}
			meterID, err := parseMeterID(args[1])
			if err != nil {
				return err
			}

			return runChange(ctx, compat.AddMeterChange(groupID, meterID), yes, dryRun)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Apply without asking for confirmation")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan without applying")

	return cmd
}

func groupRemoveMeterCmd() *cobra.Command {
	var (
		yes    bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "remove-meter <group-id> <meter-id>",
		Short: "Unfile a meter from a group",
		Long: `Take a meter out of its group, back to the unfiled pool. Removal can only
widen compatible sets, but a group left without meters falls back to no
compatible units, so that teardown asks for confirmation.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			groupID, err := parseGroupID(args[0])
			if err != nil {
				return err
			}
			meterID, err := parseMeterID(args[1])
			if err != nil {
				return err
			}

			return runChange(ctx, compat.RemoveMeterChange(groupID, meterID), yes, dryRun)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Apply without asking for confirmation")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan without applying")

	return cmd
}

func groupAddGroupCmd() *cobra.Command {
	var (
		yes    bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "add-group <group-id> <subgroup-id>",
		Short: "Attach a group as a subgroup",
		Long: `Attach a top-level group underneath another group. Every meter of the
subgroup joins the parent's deep meter set, so the parent and its ancestors
are checked for lost compatible units first. Attachments that would close a
cycle are rejected.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			groupID, err := parseGroupID(args[0])
			if err != nil {
				return err
			}
			subgroupID, err := parseGroupID(args[1])
			if err != nil {
				return err
			}

			return runChange(ctx, compat.AddGroupChange(groupID, subgroupID), yes, dryRun)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Apply without asking for confirmation")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan without applying")

	return cmd
}

func groupRemoveGroupCmd() *cobra.Command {
	var (
		yes    bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "remove-group <group-id> <subgroup-id>",
		Short: "Detach a subgroup",
		Long:  `Detach a subgroup from its parent, back to the top level. The subgroup keeps its meters.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			groupID, err := parseGroupID(args[0])
			if err != nil {
				return err
			}
			subgroupID, err := parseGroupID(args[1])
			if err != nil {
				return err
			}

			return runChange(ctx, compat.RemoveGroupChange(groupID, subgroupID), yes, dryRun)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Apply without asking for confirmation")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan without applying")

	return cmd
}
