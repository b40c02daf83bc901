// Package multi fans predictions out to several destinations, for example
// stdout and a file.
package multi

import (
	"context"
	"errors"
	"fmt"

	"github.com/crimson-sun/repairclass/internal/model"
	"github.com/crimson-sun/repairclass/internal/output"
)

// Multi delivers every prediction to each wrapped output in order. A failing
// destination does not stop delivery to the others.
type Multi struct {
	outputs []output.Output
}

// New creates a Multi over outputs. Nil entries are skipped.
func New(outputs ...output.Output) *Multi {
	m := &Multi{}
	for _, o := range outputs {
		if o != nil {
			m.outputs = append(m.outputs, o)
		}
	}
	return m
}

// Write delivers p to every output.
func (m *Multi) Write(ctx context.Context, p model.Prediction) error {
	return m.each(func(o output.Output) error { return o.Write(ctx, p) })
}

// WriteBatch hands the whole run to each output, as a batch where supported.
// The error names every destination that did not receive all predictions.
func (m *Multi) WriteBatch(ctx context.Context, preds []model.Prediction) error {
	return m.each(func(o output.Output) error {
		n, err := output.WriteAll(ctx, o, preds)
		if err != nil {
			return fmt.Errorf("%d of %d predictions delivered: %w", n, len(preds), err)
		}
		return nil
	})
}

// Close closes every output.
func (m *Multi) Close() error {
	return m.each(func(o output.Output) error { return o.Close() })
}

func (m *Multi) each(fn func(output.Output) error) error {
	var errs []error
	for i, o := range m.outputs {
		if err := fn(o); err != nil {
			errs = append(errs, fmt.Errorf("output %d (%T): %w", i, o, err))
		}
	}
	return errors.Join(errs...)
}
