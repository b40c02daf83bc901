package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Classify every record of a sheet and emit NDJSON predictions",
		Long: `Loads the saved encoders and model and writes one JSON prediction per
record. The Category column is optional; when present it is echoed as
"actual".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newPipeline()
			if err != nil {
				return err
			}
			out, err := newOutput()
			if err != nil {
				return err
			}
			n, err := p.Predict(cmd.Context(), out)
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			if cfg.Output.Format != "stdout" {
				fmt.Fprintf(os.Stderr, "wrote %d predictions to %s\n", n, cfg.Output.Path)
			}
			return nil
		},
	}

	cmd.Flags().String("output", "", "prediction destination (stdout, file, both)")
	cmd.Flags().String("out", "", "prediction file path")
	cmd.Flags().Bool("probabilities", false, "include the per-class distribution")
	cmd.Flags().Bool("pretty", false, "indent JSON on stdout")
	cmd.Flags().String("checkpoint", "", "checkpoint to load (best, final)")
	cmd.Flags().String("backend", "", "predictor backend (native, onnx)")
	bind(cmd, "output.format", "output")
	bind(cmd, "output.path", "out")
	bind(cmd, "output.probabilities", "probabilities")
	bind(cmd, "output.pretty", "pretty")
	bind(cmd, "artifacts.checkpoint", "checkpoint")
	bind(cmd, "model.backend", "backend")
	return cmd
}
