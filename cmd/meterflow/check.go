package main

import (
	"context"
	"fmt"

	"github.com/meterflow/meterflow/internal/cli"
	"github.com/meterflow/meterflow/internal/compat"
	"github.com/meterflow/meterflow/internal/model"
	"github.com/spf13/cobra"
)

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Classify a change without applying it",
		Long: `Plan a hierarchy change and print what it would cost: the change case for
every affected group, the units each would lose, and the final verdict.
Nothing is written; a change that would be refused still gets its plan
printed here.`,
	}

	cmd.AddCommand(checkAddMeterCmd())
	cmd.AddCommand(checkAddGroupCmd())
	cmd.AddCommand(checkSetDefaultCmd())

	return cmd
}

func checkAddMeterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-meter <group-id> <meter-id>",
		Short: "Classify filing a meter into a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID, err := parseGroupID(args[0])
			if err != nil {
				return err
			}
			meterID, err := parseMeterID(args[1])
			if err != nil {
				return err
			}

			return runCheck(cmd.Context(), compat.AddMeterChange(groupID, meterID))
		},
	}
}

func checkAddGroupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-group <group-id> <subgroup-id>",
		Short: "Classify attaching a subgroup",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID, err := parseGroupID(args[0])
			if err != nil {
				return err
			}
			subgroupID, err := parseGroupID(args[1])
			if err != nil {
				return err
			}

			return runCheck(cmd.Context(), compat.AddGroupChange(groupID, subgroupID))
		},
	}
}

func checkSetDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-default <group-id> <unit-id|none>",
		Short: "Classify a default-unit change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			return runCheck(cmd.Context(), compat.SetDefaultChange(groupID, unitID))
		},
	}
}

// runCheck plans a change and prints the assessment. Checking never exits
// non-zero for a blocked verdict; the point is to see it coming.
func runCheck(ctx context.Context, change compat.Change) error {
	env, err := initCmdEnv(ctx, false)
	if err != nil {
		return err
	}
	defer env.Close()

	plan, err := env.engine.Plan(ctx, change)
	if err != nil {
		return err
	}

	fmt.Println(cli.RenderBox("Change Check", cli.FormatPlan(plan, env.labeler)))
	return nil
}
