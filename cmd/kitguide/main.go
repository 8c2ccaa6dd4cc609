package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/kitguide/internal/cli"
	"github.com/cloo-solutions/kitguide/internal/cli/app"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "kitguide",
		Short: "Model-kit assembly guidance from manual pages",
		Long: `kitguide indexes model-kit instruction manual pages and answers part
detections with grounded, step-by-step assembly guidance.

Configuration is read from KITGUIDE_* environment variables (and a .env file).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(app.ServeCmd())
	rootCmd.AddCommand(app.IngestCmd())
	rootCmd.AddCommand(app.GuideCmd())
	rootCmd.AddCommand(app.RetrieveCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
