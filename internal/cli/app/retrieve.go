package app

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cloo-solutions/kitguide/internal/config"
	"github.com/cloo-solutions/kitguide/internal/service"
	"github.com/cloo-solutions/kitguide/internal/telemetry"
	"github.com/spf13/cobra"
)

// RetrieveCmd creates the retrieve command.
func RetrieveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retrieve <label>...",
		Short: "Retrieve manual pages and guidance for part labels",
		Long:  "Skips detection: embeds a query for the given part labels, prints the nearest manual pages and the generated guidance.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runRetrieve(cmd, args, outputJSON)
		},
	}

	return cmd
}

func runRetrieve(cmd *cobra.Command, labels []string, outputJSON bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg, config.RequireStore|config.RequireModels, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, span := telemetry.StartTransaction(cmd.Context(), "kitguide retrieve", "cli.retrieve")
	defer span.End()

	embedder, err := rt.embeddingClient(ctx)
	if err != nil {
		return err
	}

	pipeline, err := rt.pipeline(ctx, embedder, nil, nil)
	if err != nil {
		return err
	}

	answer := pipeline.Answer(ctx, labels)

	if outputJSON {
		output, _ := json.MarshalIndent(answer, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(output))
		return nil
	}
	printAnswer(cmd.OutOrStdout(), answer)
	return nil
}

func printAnswer(w io.Writer, answer *service.Answer) {
	if answer.Query != "" {
		fmt.Fprintf(w, "Query: %s\n", answer.Query)
	}
	printContexts(w, answer.Contexts)
	fmt.Fprintf(w, "\n%s\n", answer.Guidance)
}
