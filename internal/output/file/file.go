// Package file appends predictions as NDJSON to a file. Each classification
// run is written as one batch that never straddles a rotation boundary, so a
// rotated file always holds whole runs.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/crimson-sun/repairclass/internal/model"
	"github.com/crimson-sun/repairclass/internal/output"
)

const defaultKeep = 9

// Option configures a file Output.
type Option func(*Output)

// WithMaxSize sets the size in bytes past which the next batch starts a new
// file. 0 (default) disables rotation. A single batch larger than the limit
// still lands in one file.
func WithMaxSize(bytes int64) Option {
	return func(o *Output) { o.maxSize = bytes }
}

// WithKeep sets how many rotated files ({path}.1 .. {path}.n) are retained.
// Default: 9.
func WithKeep(n int) Option {
	return func(o *Output) { o.keep = n }
}

// WithProbabilities keeps the per-class distribution in every line.
func WithProbabilities() Option {
	return func(o *Output) { o.probabilities = true }
}

// Output writes prediction batches to a file, flushing after each batch.
type Output struct {
	mu            sync.Mutex
	f             *os.File
	path          string
	probabilities bool
	maxSize       int64 // 0 = no rotation
	keep          int
	size          int64
}

// New opens path for appending, creating it if needed.
func New(path string, opts ...Option) (*Output, error) {
	o := &Output{path: path, keep: defaultKeep}
	for _, opt := range opts {
		opt(o)
	}
	if o.keep < 1 {
		return nil, fmt.Errorf("file output: keep must be at least 1, got %d", o.keep)
	}
	if err := o.open(); err != nil {
		return nil, err
	}
	return o, nil
}

// Write appends a single prediction as a batch of one.
func (o *Output) Write(ctx context.Context, p model.Prediction) error {
	return o.WriteBatch(ctx, []model.Prediction{p})
}

// WriteBatch encodes every prediction before touching the file, so an
// encoding failure writes nothing. The batch goes to a fresh file when it
// would push a non-empty current file past the size limit.
func (o *Output) WriteBatch(_ context.Context, preds []model.Prediction) error {
	if len(preds) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, p := range preds {
		if err := enc.Encode(output.FormatPrediction(p, o.probabilities)); err != nil {
			return fmt.Errorf("file output: encode row %d: %w", p.Row, err)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.f == nil {
		return fmt.Errorf("file output: %s is closed", o.path)
	}
	if o.maxSize > 0 && o.size > 0 && o.size+int64(buf.Len()) > o.maxSize {
		if err := o.rotate(); err != nil {
			return fmt.Errorf("file output: rotate: %w", err)
		}
	}
	n, err := o.f.Write(buf.Bytes())
	o.size += int64(n)
	if err != nil {
		return fmt.Errorf("file output: write %s: %w", o.path, err)
	}
	return nil
}

// Close closes the file. Further writes fail.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.f == nil {
		return nil
	}
	err := o.f.Close()
	o.f = nil
	if err != nil {
		return fmt.Errorf("file output: close %s: %w", o.path, err)
	}
	return nil
}

func (o *Output) open() error {
	f, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("file output: open %s: %w", o.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("file output: stat %s: %w", o.path, err)
	}
	o.f = f
	o.size = info.Size()
	return nil
}

// rotate shifts {path}.i to {path}.i+1, drops the file beyond keep, and
// moves the current file to {path}.1.
func (o *Output) rotate() error {
	if err := o.f.Close(); err != nil {
		return err
	}
	o.f = nil

	if err := os.Remove(rotated(o.path, o.keep)); err != nil && !os.IsNotExist(err) {
		return err
	}
	for i := o.keep - 1; i >= 1; i-- {
		if err := os.Rename(rotated(o.path, i), rotated(o.path, i+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if err := os.Rename(o.path, rotated(o.path, 1)); err != nil {
		return err
	}
	return o.open()
}

func rotated(path string, i int) string {
	return fmt.Sprintf("%s.%d", path, i)
}
