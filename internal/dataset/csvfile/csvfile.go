// Package csvfile reads comma-separated repair sheets.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/crimson-sun/repairclass/internal/dataset"
)

func init() {
	dataset.Register(".csv", func(opts dataset.Options) dataset.Source {
		return New(opts.Comma)
	})
}

// Source reads CSV files.
type Source struct {
	comma rune
}

// New creates a CSV source. A zero comma means ','.
func New(comma rune) *Source {
	if comma == 0 {
		comma = ','
	}
	return &Source{comma: comma}
}

// Rows returns every record of the file, header first.
func (s *Source) Rows(ctx context.Context, path string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = s.comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	return rows, nil
}
