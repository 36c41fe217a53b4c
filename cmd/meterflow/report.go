package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/meterflow/meterflow/internal/cli"
	"github.com/meterflow/meterflow/internal/config"
	"github.com/meterflow/meterflow/internal/service"
	"github.com/meterflow/meterflow/internal/sheets"
	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	var export bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Audit compatibility across all groups",
		Long: `Survey every group: how many meters it holds transitively, how many
graphic units they still share, and whether its default unit is one of
them. With --export the audit is also written to Google Sheets.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			env, err := initCmdEnv(ctx, false)
			if err != nil {
				return err
			}
			defer env.Close()

			report, err := env.engine.BuildAudit(ctx)
			if err != nil {
				return fmt.Errorf("failed to build audit: %w", err)
			}

			renderAudit(report)

			if export {
				cfg, err := config.LoadSheetsConfig()
				if err != nil {
					return err
				}

				writer, err := sheets.NewWriter(ctx, *cfg, nil)
				if err != nil {
					return fmt.Errorf("failed to create sheets writer: %w", err)
				}

				if err := writer.Write(ctx, report); err != nil {
					return fmt.Errorf("failed to export audit: %w", err)
				}
				fmt.Println(cli.FormatSuccess("Audit exported to Google Sheets."))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&export, "export", false, "Export the audit to Google Sheets")

	return cmd
}

func renderAudit(report *service.AuditReport) {
	fmt.Println(cli.FormatTitle(fmt.Sprintf("%s Compatibility Audit", cli.ChartIcon)))

	if !report.RelationReady {
		fmt.Println(cli.FormatWarning("No compatibility relation installed; every group reads as having no shared units."))
	}

	if len(report.Rows) == 0 {
		fmt.Println(cli.InfoStyle.Render("No groups found."))
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

		headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			headerStyle.Render("Group"),
			headerStyle.Render("Meters"),
			headerStyle.Render("Shared units"),
			headerStyle.Render("Default"),
			headerStyle.Render("Status"))
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			strings.Repeat("-", 20),
			strings.Repeat("-", 6),
			strings.Repeat("-", 12),
			strings.Repeat("-", 8),
			strings.Repeat("-", 20))

		for _, row := range report.Rows {
			defaultUnit := row.DefaultUnit
			if defaultUnit == "" {
				defaultUnit = "-"
			}

			status := cli.SuccessStyle.Render(cli.SuccessIcon + " ok")
			switch {
			case row.DeepMeterCount == 0:
				status = cli.SubtleStyle.Render("empty")
			case !row.DefaultUnitOK:
				status = cli.ErrorStyle.Render(cli.ErrorIcon + " default incompatible")
			case row.CompatibleCount == 0:
				status = cli.ErrorStyle.Render(cli.ErrorIcon + " no shared units")
			}

			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
				row.GroupName, row.DeepMeterCount, row.CompatibleCount, defaultUnit, status)
		}

		w.Flush()
	}

	if len(report.Drift) > 0 {
		fmt.Println()
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d catalog unit(s) missing from the relation:", len(report.Drift))))
		for _, unit := range report.Drift {
			fmt.Printf("  %s %s (%s, id %d)\n", cli.ErrorIcon, unit.Symbol, unit.Kind, unit.ID)
		}
	}
}
