package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/crimson-sun/repairclass/internal/output"
	"github.com/crimson-sun/repairclass/internal/output/file"
	"github.com/crimson-sun/repairclass/internal/output/multi"
	"github.com/crimson-sun/repairclass/internal/output/stdout"
	"github.com/crimson-sun/repairclass/internal/pipeline"
)

func newPipeline() (*pipeline.Pipeline, error) {
	return pipeline.New(cfg,
		pipeline.WithLogger(slog.Default()),
		pipeline.WithProgress(os.Stderr),
	)
}

// newOutput builds the prediction destination selected by output.format.
func newOutput() (output.Output, error) {
	oc := cfg.Output
	newFile := func() (output.Output, error) {
		opts := []file.Option{file.WithMaxSize(oc.MaxBytes)}
		if oc.Probabilities {
			opts = append(opts, file.WithProbabilities())
		}
		f, err := file.New(oc.Path, opts...)
		if err != nil {
			return nil, err
		}
		return f, nil
	}

	switch oc.Format {
	case "stdout":
		return stdout.New(oc.Probabilities, oc.Pretty), nil
	case "file":
		return newFile()
	case "both":
		f, err := newFile()
		if err != nil {
			return nil, err
		}
		return multi.New(stdout.New(oc.Probabilities, oc.Pretty), f), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", oc.Format)
	}
}
