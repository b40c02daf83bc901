package pipeline

import (
	"errors"
	"fmt"

	"github.com/crimson-sun/repairclass/internal/engine/labels"
)

// Stage names a pipeline step in diagnostics and logs.
type Stage string

const (
	StageConfig   Stage = "config"
	StagePrepare  Stage = "prepare"
	StageTrain    Stage = "train"
	StageEvaluate Stage = "evaluate"
	StagePredict  Stage = "predict"
)

var (
	// ErrEmptyDataset is returned when no record survives the mandatory-field filter.
	ErrEmptyDataset = errors.New("pipeline: no complete records in dataset")
	// ErrNoCategories is returned when the records carry no category labels.
	ErrNoCategories = labels.ErrNoCategories
	// ErrArtifactMismatch is returned when persisted artifacts disagree with
	// each other or with the loaded dataset.
	ErrArtifactMismatch = errors.New("pipeline: artifact mismatch")
)

// StageError wraps a fatal error with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// fail wraps err in a StageError unless it already carries one.
func fail(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}
