// Package xlsx reads Excel repair sheets.
package xlsx

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/crimson-sun/repairclass/internal/dataset"
)

func init() {
	dataset.Register(".xlsx", func(opts dataset.Options) dataset.Source {
		return New(opts.Sheet)
	})
}

// Source reads one sheet of a workbook.
type Source struct {
	sheet string
}

// New creates a workbook source. An empty sheet means the first sheet.
func New(sheet string) *Source {
	return &Source{sheet: sheet}
}

// Rows returns the sheet's rows, header first. Trailing empty cells are
// omitted by excelize, so rows may be shorter than the header.
func (s *Source) Rows(ctx context.Context, path string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := s.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("xlsx: workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx: sheet %q: %w", sheet, err)
	}
	return rows, nil
}
