package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/meterflow/meterflow/internal/cli"
	"github.com/meterflow/meterflow/internal/common"
	"github.com/meterflow/meterflow/internal/relation"
	"github.com/meterflow/meterflow/internal/service"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func relationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relation",
		Short: "Manage the compatibility relation",
		Long: `Inspect, fetch, and import the precomputed unit-compatibility relation.
Loaded relations are cached in the database and reinstalled on startup, so
compatibility queries keep working offline. Until one is loaded, every
query resolves to the empty set.`,
	}

	cmd.AddCommand(relationStatusCmd())
	cmd.AddCommand(relationLoadCmd())
	cmd.AddCommand(relationImportCmd())

	return cmd
}

func relationStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the installed relation",
		Long:  `Show the cached relation's version and dimensions, and any catalog units it does not cover.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			provider, err := initRelation(ctx, store)
			if err != nil {
				return err
			}

			if !provider.Ready() {
				fmt.Println(cli.FormatWarning("No relation installed. Fetch one with 'meterflow relation load' or import a file."))
				return nil
			}

			matrix := provider.Matrix()
			content := fmt.Sprintf("Version: %s\nGenerated: %s\nSource units: %d\nGraphic units: %d",
				matrix.Version(),
				matrix.GeneratedAt().Format("Jan 2, 2006 15:04 MST"),
				matrix.SourceCount(),
				matrix.TargetCount())
			fmt.Println(cli.RenderBox("Relation Status", content))

			drift, err := store.RelationUnitDrift(ctx)
			if err != nil {
				return fmt.Errorf("failed to check relation drift: %w", err)
			}
			if len(drift) > 0 {
				fmt.Println(cli.FormatWarning(fmt.Sprintf("%d catalog unit(s) missing from the relation:", len(drift))))
				for _, unit := range drift {
					fmt.Printf("  %s %s (%s, id %d)\n", cli.ErrorIcon, unit.Symbol, unit.Kind, unit.ID)
				}
				fmt.Println(cli.InfoStyle.Render("Queries on these units fail until a relation that covers them is loaded."))
			}

			return nil
		},
	}
}

func relationLoadCmd() *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Fetch the relation from its endpoint",
		Long: `Fetch the relation document over HTTP, build the matrix, and cache it in
the database. Transient failures (network, throttling, 5xx) are retried
with backoff.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			// Set up interrupt handling
			interruptHandler := cli.NewInterruptHandler(nil)
			ctx = interruptHandler.HandleInterrupts(ctx)

			if endpoint == "" {
				endpoint = viper.GetString("relation.url")
			}
			if endpoint == "" {
				return fmt.Errorf("no relation endpoint configured; pass --url or set relation.url")
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			slog.Info("Fetching relation document", "url", endpoint)

			loader := relation.NewLoader(relation.WithProgress(relationProgress()))

			var matrix *relation.Matrix
			err = common.WithRetry(ctx, func() error {
				m, loadErr := loader.LoadURL(ctx, endpoint)
				if loadErr != nil {
					return loadErr
				}
				matrix = m
				return nil
			}, service.RetryOptions{
				MaxAttempts:  viper.GetInt("relation.retry_attempts"),
				InitialDelay: time.Second,
				MaxDelay:     30 * time.Second,
				Multiplier:   2.0,
			})
			if err != nil {
				return fmt.Errorf("failed to load relation: %w", err)
			}

			return cacheRelation(ctx, store, matrix)
		},
	}

	cmd.Flags().StringVar(&endpoint, "url", "", "Relation document URL (default: relation.url from config)")

	return cmd
}

func relationImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import the relation from a file",
		Long:  `Read a relation document from disk, build the matrix, and cache it in the database. For air-gapped setups.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			loader := relation.NewLoader(relation.WithProgress(relationProgress()))

			matrix, err := loader.LoadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to import relation: %w", err)
			}

			return cacheRelation(ctx, store, matrix)
		},
	}
}

// cacheRelation persists a freshly built matrix so every later command
// reinstalls it on startup.
func cacheRelation(ctx context.Context, store service.Storage, matrix *relation.Matrix) error {
	if err := store.SaveRelationRecord(ctx, matrix.Record()); err != nil {
		return fmt.Errorf("failed to cache relation: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Installed relation %s: %d source units, %d graphic units",
		matrix.Version(), matrix.SourceCount(), matrix.TargetCount())))

	drift, err := store.RelationUnitDrift(ctx)
	if err != nil {
		return fmt.Errorf("failed to check relation drift: %w", err)
	}
	if len(drift) > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d catalog unit(s) are not covered by this relation.", len(drift))))
	}

	return nil
}

// relationProgress returns a per-row progress callback backed by a terminal
// progress bar, created lazily once the document's row count is known.
func relationProgress() relation.ProgressFunc {
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stdout),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("[cyan][bold]Building relation matrix...[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					if _, err := fmt.Println(); err != nil {
						slog.Warn("Failed to write newline after progress bar", "error", err)
					}
				}),
			)
		}
		if err := bar.Set(done); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
}
