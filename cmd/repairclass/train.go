package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/repairclass/internal/output/report"
)

func trainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Prepare the dataset, train the classifier and evaluate it",
		Long: `Runs prepare, trains a fresh model with the last validation_split of the
records held out, writes best and final checkpoints, and prints the
evaluation report of the checkpoint selected by artifacts.checkpoint.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newPipeline()
			if err != nil {
				return err
			}
			res, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "run %s: %d epochs, best epoch %d (loss %.4f)\n\n",
				res.Train.RunID, len(res.Train.History.Epochs), res.Train.History.BestEpoch, res.Train.History.BestLoss)
			return report.Render(os.Stdout, res.Report, report.Options{MaxMismatches: 20})
		},
	}

	cmd.Flags().Int("epochs", 0, "maximum training epochs")
	cmd.Flags().Int("batch-size", 0, "minibatch size")
	cmd.Flags().Bool("progress", true, "show a progress bar per epoch")
	cmd.Flags().String("checkpoint", "", "checkpoint to evaluate (best, final)")
	cmd.Flags().String("report", "", "also write the text report to this file")
	bind(cmd, "train.epochs", "epochs")
	bind(cmd, "train.batch_size", "batch-size")
	bind(cmd, "train.progress", "progress")
	bind(cmd, "artifacts.checkpoint", "checkpoint")
	bind(cmd, "output.report_path", "report")
	return cmd
}
