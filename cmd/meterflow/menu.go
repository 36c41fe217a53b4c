package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/meterflow/meterflow/internal/cli"
	"github.com/meterflow/meterflow/internal/menu"
	"github.com/meterflow/meterflow/internal/model"
	"github.com/meterflow/meterflow/internal/tui"
	"github.com/spf13/cobra"
)

func menuCmd() *cobra.Command {
	var pick bool

	cmd := &cobra.Command{
		Use:   "menu <group-id>",
		Short: "Show what could be added to a group",
		Long: `List every unfiled meter and top-level group that could be added to a
group, annotated with what the addition would cost: nothing, some
compatible units, the default graphic unit, or everything (disabled).

With --pick an interactive picker opens instead; choosing a candidate
applies the addition through the usual plan-and-confirm path.`,
		Args: cobra.ExactArgs(1),
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

			builder := menu.NewBuilder(env.resolver, env.store)

			if pick {
				result, err := tui.Run(ctx, env.engine, builder, group)
				if err != nil {
					return err
				}
				if result == nil {
					fmt.Println(cli.FormatInfo("Nothing picked."))
					return nil
				}
				return reportResult(result, env.labeler)
			}

			options, err := builder.Options(ctx, groupID)
			if err != nil {
				return err
			}

			if !env.resolver.Ready() {
				fmt.Println(cli.FormatWarning("No compatibility relation installed; every candidate reads as a total loss."))
			}
			renderMenu(group, options)
			return nil
		},
	}

	cmd.Flags().BoolVar(&pick, "pick", false, "Pick a candidate interactively and apply it")

	return cmd
}

func renderMenu(group *model.Group, options []model.MenuOption) {
	fmt.Println(cli.FormatTitle(fmt.Sprintf("Candidates for %q", group.Name)))

	if len(options) == 0 {
		fmt.Println(cli.InfoStyle.Render("Nothing to add: no unfiled meters and no attachable groups."))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	fmt.Fprintf(w, "%s\t%s\t%s\n",
		headerStyle.Render("Candidate"),
		headerStyle.Render("Kind"),
		headerStyle.Render("Effect"))
	fmt.Fprintf(w, "%s\t%s\t%s\n",
		strings.Repeat("-", 20),
		strings.Repeat("-", 6),
		strings.Repeat("-", 25))

	for _, opt := range options {
		label := opt.Label
		if opt.Disabled {
			label = cli.SubtleStyle.Render(label)
		}
		effect := cli.StyleChangeCase(opt.ChangeCase)
		if opt.Disabled {
			effect += cli.SubtleStyle.Render(" (cannot add)")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", label, opt.Candidate.Kind, effect)
	}
}
