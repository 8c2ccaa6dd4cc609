package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloo-solutions/kitguide/internal/config"
	"github.com/cloo-solutions/kitguide/internal/domain"
	"github.com/cloo-solutions/kitguide/internal/service"
	"github.com/cloo-solutions/kitguide/internal/telemetry"
	"github.com/spf13/cobra"
)

// GuideCmd creates the guide command.
func GuideCmd() *cobra.Command {
	var (
		image      string
		weights    string
		detections string
	)

	cmd := &cobra.Command{
		Use:   "guide",
		Short: "Detect parts in a photo and print assembly guidance",
		Long: `Runs part detection on the image, retrieves the matching manual pages and
prints the image gallery followed by the guidance HTML.

Detection uses KITGUIDE_DETECTOR_URL when set. Otherwise, or with --detections,
a detection result file is read (default: <image>.detections.json).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runGuide(cmd, service.GuideRequest{ImagePath: image, WeightsPath: weights}, detections, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&image, "image", "i", "", "Photo of the parts")
	cmd.Flags().StringVar(&weights, "weights", "", "Detection weights (default KITGUIDE_DETECTION_WEIGHTS_PATH)")
	cmd.Flags().StringVar(&detections, "detections", "", "Read detections from this file instead of the detection service")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func runGuide(cmd *cobra.Command, req service.GuideRequest, detectionsPath string, outputJSON bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg, config.RequireStore|config.RequireModels, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, span := telemetry.StartTransaction(cmd.Context(), "kitguide guide", "cli.guide")
	defer span.End()

	embedder, err := rt.embeddingClient(ctx)
	if err != nil {
		return err
	}

	source, err := rt.pageSource(ctx, cfg.CorpusDir)
	if err != nil {
		return fmt.Errorf("failed to open corpus source: %w", err)
	}

	pipeline, err := rt.pipeline(ctx, embedder, newDetector(cfg, detectionsPath), linkerFor(source))
	if err != nil {
		return err
	}

	result := pipeline.Run(ctx, req)

	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(output))
		return nil
	}
	if result.Failure != "" {
		return errors.New(result.Failure)
	}
	printGuide(cmd.OutOrStdout(), result)
	return nil
}

func printGuide(w io.Writer, result *service.GuideResult) {
	if len(result.Labels) > 0 {
		fmt.Fprintf(w, "Detected parts: %s\n\n", strings.Join(result.Labels, ", "))
	}

	fmt.Fprintln(w, "Images:")
	for _, img := range result.Images {
		fmt.Fprintf(w, "  %s\n", img)
	}

	printContexts(w, result.Contexts)

	fmt.Fprintf(w, "\n%s\n", result.HTML)
}

func printContexts(w io.Writer, contexts []domain.RetrievedContext) {
	if len(contexts) == 0 {
		fmt.Fprintln(w, "\nNo matching manual pages.")
		return
	}

	fmt.Fprintf(w, "\nManual pages (%d):\n", len(contexts))
	for _, c := range contexts {
		fmt.Fprintf(w, "  [page %d] %.4f %s\n", c.PageNumber, c.Distance, c.ImageSource)
		fmt.Fprintf(w, "    %s\n", c.Description)
	}
}
