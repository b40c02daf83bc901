package engine

import (
	"fmt"

	"github.com/crimson-sun/repairclass/internal/engine/categorical"
	"github.com/crimson-sun/repairclass/internal/engine/fields"
	"github.com/crimson-sun/repairclass/internal/engine/labels"
	"github.com/crimson-sun/repairclass/internal/engine/textnorm"
	"github.com/crimson-sun/repairclass/internal/engine/vocab"
	"github.com/crimson-sun/repairclass/internal/model"
)

// FitOptions sizes the text features.
type FitOptions struct {
	MaxWords int
	MaxLen   int
}

// Fit learns code books, the vocabulary and the label set from complete raw
// records and their cleaned texts.
func Fit(records []model.RepairRecord, texts []string, text *textnorm.Normalizer, opts FitOptions) (*Preprocessor, error) {
	if len(records) != len(texts) {
		return nil, fmt.Errorf("engine: %d records vs %d cleaned texts", len(records), len(texts))
	}
	codes, err := categorical.Fit(fields.NormalizeAll(records))
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	cats := make([]string, len(records))
	for i, r := range records {
		cats[i] = r.Category
	}
	lbl, err := labels.Fit(cats)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if opts.MaxWords <= 1 {
		opts.MaxWords = vocab.DefaultMaxWords
	}
	if opts.MaxLen <= 0 {
		opts.MaxLen = vocab.DefaultMaxLen
	}
	return &Preprocessor{
		Text:   text,
		Codes:  codes,
		Vocab:  vocab.Build(texts, opts.MaxWords),
		Labels: lbl,
		MaxLen: opts.MaxLen,
	}, nil
}
