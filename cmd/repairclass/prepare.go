package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func prepareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Clean and encode the dataset, persisting encoders and the processed table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newPipeline()
			if err != nil {
				return err
			}
			prepared, err := p.Prepare(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "prepared %d of %d records (%d dropped), %d categories, %d categorical columns, vocabulary %d\n",
				prepared.Stats.Kept, prepared.Stats.Total, prepared.Stats.Dropped,
				prepared.Prep.Labels.Len(), prepared.Prep.Codes.Width(), prepared.Prep.Vocab.Size())
			fmt.Fprintf(os.Stderr, "artifacts written to %s\n", p.Artifacts().Dir)
			return nil
		},
	}
}
