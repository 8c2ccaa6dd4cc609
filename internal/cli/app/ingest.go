package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloo-solutions/kitguide/internal/config"
	"github.com/cloo-solutions/kitguide/internal/service"
	"github.com/cloo-solutions/kitguide/internal/telemetry"
	"github.com/spf13/cobra"
)

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	var (
		dir       string
		replace   bool
		rebuild   bool
		workers   int
		interval  time.Duration
		noMigrate bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the manual page corpus",
		Long: `Describes every manual page image with the vision model, embeds the
description and stores the pages for retrieval. Pages are numbered by natural
sort order of their file names. A page that cannot be read or described is
skipped and reported; the rest are still stored.

--dir accepts a local directory or an s3://bucket/prefix URI.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("dir") {
				dir = cfg.CorpusDir
			}
			if !cmd.Flags().Changed("replace") {
				replace = cfg.ReplacePages
			}
			if cmd.Flags().Changed("workers") {
				cfg.IngestWorkers = workers
			}
			if cmd.Flags().Changed("interval") {
				cfg.IngestInterval = interval
			}
			outputJSON, _ := cmd.Flags().GetBool("output")

			return runIngest(cmd, cfg, dir, service.BuildOptions{Replace: replace, Rebuild: rebuild}, noMigrate, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Manual page directory or s3:// URI (default KITGUIDE_CORPUS_DIR)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace stored rows that share a page number")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Delete the whole corpus before ingesting")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Pages described concurrently (default KITGUIDE_INGEST_WORKERS)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Minimum spacing between vision calls (default KITGUIDE_INGEST_INTERVAL)")
	cmd.Flags().BoolVar(&noMigrate, "no-migrate", false, "Skip database migrations")

	return cmd
}

func runIngest(cmd *cobra.Command, cfg *config.Config, dir string, opts service.BuildOptions, noMigrate, outputJSON bool) error {
	rt, err := newRuntime(cfg, config.RequireStore|config.RequireModels, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, span := telemetry.StartTransaction(cmd.Context(), "kitguide ingest", "cli.ingest")
	defer span.End()

	if !noMigrate {
		if err := rt.migrate(); err != nil {
			return err
		}
	}

	embedder, err := rt.embeddingClient(ctx)
	if err != nil {
		span.SetError(err)
		return err
	}

	source, err := rt.pageSource(ctx, dir)
	if err != nil {
		return fmt.Errorf("failed to open corpus source: %w", err)
	}

	report, err := rt.corpusBuilder(source, embedder).Build(ctx, opts)
	if err != nil {
		span.SetError(err)
		telemetry.CaptureError(ctx, err)
		return err
	}

	if outputJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(output))
		return nil
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

func printReport(w io.Writer, report *service.BuildReport) {
	fmt.Fprintf(w, "Corpus build %s\n", report.RunID)
	fmt.Fprintf(w, "  pages:     %d\n", report.Pages)
	fmt.Fprintf(w, "  described: %d\n", report.Described)
	fmt.Fprintf(w, "  inserted:  %d\n", report.Inserted)
	if report.Dimension > 0 {
		fmt.Fprintf(w, "  dimension: %d\n", report.Dimension)
	}

	if len(report.Skipped) > 0 {
		fmt.Fprintf(w, "\nSkipped %d pages:\n", len(report.Skipped))
		for _, s := range report.Skipped {
			fmt.Fprintf(w, "  page %d (%s): %s\n", s.PageNumber, s.Source, s.Reason)
		}
	}

	if len(report.FailedBatches) > 0 {
		fmt.Fprintf(w, "\nFailed batches:\n  %s\n", strings.Join(report.FailedBatches, "\n  "))
	}
}
