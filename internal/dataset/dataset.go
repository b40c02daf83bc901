// Package dataset reads repair sheets into RepairRecords. File formats are
// provided by subpackages that register themselves by extension.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/crimson-sun/repairclass/internal/model"
)

var (
	// ErrUnknownFormat is returned for a file extension with no registered source.
	ErrUnknownFormat = errors.New("dataset: unknown format")
	// ErrMissingColumn is returned when the header lacks a required column.
	ErrMissingColumn = errors.New("dataset: missing column")
	// ErrNoHeader is returned for a sheet without any rows.
	ErrNoHeader = errors.New("dataset: no header row")
)

// Source reads a tabular file into rows of cells. The first row is the header.
type Source interface {
	Rows(ctx context.Context, path string) ([][]string, error)
}

// Options tune the sources.
type Options struct {
	// Sheet selects the workbook sheet; empty means the first one.
	Sheet string
	// Comma is the CSV field delimiter; zero means ','.
	Comma rune
	// Unlabeled accepts sheets without a Category column and keeps rows
	// whose Category is empty.
	Unlabeled bool
}

// Stats counts what Parse kept and dropped.
type Stats struct {
	Total   int
	Kept    int
	Dropped int
	// Missing counts dropped rows per absent mandatory column. A row missing
	// several columns is counted once per column.
	Missing map[string]int
}

// RequiredColumns lists every column a sheet must carry.
func RequiredColumns() []string {
	cols := []string{model.SymptomColumn, model.FaultColumn, model.CategoryColumn}
	for _, f := range model.CategoricalFields {
		cols = append(cols, f.Column())
	}
	return cols
}

// Load reads path with the source registered for its extension and parses it.
func Load(ctx context.Context, path string, opts Options) ([]model.RepairRecord, Stats, error) {
	ctor, err := Get(filepath.Ext(path))
	if err != nil {
		return nil, Stats{}, err
	}
	rows, err := ctor(opts).Rows(ctx, path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	return parse(rows, opts.Unlabeled)
}

// Parse maps header names to fields and keeps rows carrying Symptom, Fault
// and Category. Row numbers count data rows from 0 in file order.
func Parse(rows [][]string) ([]model.RepairRecord, Stats, error) {
	return parse(rows, false)
}

// ParseUnlabeled is Parse for sheets awaiting classification: Category is
// optional and carried through when present.
func ParseUnlabeled(rows [][]string) ([]model.RepairRecord, Stats, error) {
	return parse(rows, true)
}

func parse(rows [][]string, unlabeled bool) ([]model.RepairRecord, Stats, error) {
	if len(rows) == 0 {
		return nil, Stats{}, ErrNoHeader
	}
	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	for _, col := range RequiredColumns() {
		if unlabeled && col == model.CategoryColumn {
			continue
		}
		if _, ok := index[col]; !ok {
			return nil, Stats{}, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	stats := Stats{Total: len(rows) - 1, Missing: make(map[string]int)}
	records := make([]model.RepairRecord, 0, len(rows)-1)
	for n, row := range rows[1:] {
		r := model.RepairRecord{
			Row:      n,
			Symptom:  cell(row, model.SymptomColumn),
			Fault:    cell(row, model.FaultColumn),
			Category: cell(row, model.CategoryColumn),
		}
		for _, f := range model.CategoricalFields {
			r.Codes[f] = cell(row, f.Column())
		}
		complete := r.Complete()
		if unlabeled {
			complete = r.Symptom != "" && r.Fault != ""
		}
		if !complete {
			stats.Dropped++
			for col, v := range map[string]string{
				model.SymptomColumn:  r.Symptom,
				model.FaultColumn:    r.Fault,
				model.CategoryColumn: r.Category,
			} {
				if v == "" && !(unlabeled && col == model.CategoryColumn) {
					stats.Missing[col]++
				}
			}
			continue
		}
		records = append(records, r)
	}
	stats.Kept = len(records)
	return records, stats, nil
}
