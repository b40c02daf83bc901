package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/repairclass/internal/output/report"
	"github.com/crimson-sun/repairclass/internal/pipeline"
)

func evaluateCmd() *cobra.Command {
	var mismatches int
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score saved artifacts against a labelled dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newPipeline()
			if err != nil {
				return err
			}
			prepared, err := p.Reload(cmd.Context())
			if err != nil {
				return err
			}
			pred, err := p.OpenPredictor(prepared.Prep)
			if err != nil {
				return &pipeline.StageError{Stage: pipeline.StageEvaluate, Err: err}
			}
			defer pred.Close()

			rep, _, err := p.Evaluate(cmd.Context(), prepared, pred)
			if err != nil {
				return err
			}
			return report.Render(os.Stdout, rep, report.Options{MaxMismatches: mismatches})
		},
	}

	cmd.Flags().IntVar(&mismatches, "mismatches", 20, "mismatches to list (-1 for all)")
	cmd.Flags().String("checkpoint", "", "checkpoint to evaluate (best, final)")
	cmd.Flags().String("backend", "", "predictor backend (native, onnx)")
	cmd.Flags().String("report", "", "also write the text report to this file")
	bind(cmd, "artifacts.checkpoint", "checkpoint")
	bind(cmd, "model.backend", "backend")
	bind(cmd, "output.report_path", "report")
	return cmd
}
