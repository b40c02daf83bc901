// Package engine ties the fitted preprocessing state to a predictor:
// records → normalized codes and cleaned text → feature matrices → class
// probabilities → predictions.
package engine

import (
	"fmt"

	"github.com/crimson-sun/repairclass/internal/engine/categorical"
	"github.com/crimson-sun/repairclass/internal/engine/fields"
	"github.com/crimson-sun/repairclass/internal/engine/labels"
	"github.com/crimson-sun/repairclass/internal/engine/nn"
	"github.com/crimson-sun/repairclass/internal/engine/tensor"
	"github.com/crimson-sun/repairclass/internal/engine/textnorm"
	"github.com/crimson-sun/repairclass/internal/engine/vocab"
	"github.com/crimson-sun/repairclass/internal/model"
)

// Preprocessor holds every fitted transformation. It is read-only after
// construction and safe for concurrent use.
type Preprocessor struct {
	Text   *textnorm.Normalizer
	Codes  *categorical.Encoder
	Vocab  *vocab.Vocabulary
	Labels *labels.Encoder
	MaxLen int
}

// Features are the aligned model inputs for a slice of records.
type Features struct {
	Records []model.RepairRecord // field-normalized
	Texts   []string             // cleaned text, one per record
	Cat     *tensor.Matrix
	Seq     [][]int
}

// CleanText normalizes the joined Symptom and Fault of r.
func (p *Preprocessor) CleanText(r model.RepairRecord) string {
	return p.Text.Normalize(textnorm.JoinTexts(r.Symptom, r.Fault))
}

// CleanTexts normalizes the text of every record in order.
func (p *Preprocessor) CleanTexts(records []model.RepairRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = p.CleanText(r)
	}
	return out
}

// Features builds inputs for raw records.
func (p *Preprocessor) Features(records []model.RepairRecord) Features {
	return p.FeaturesFromTexts(records, p.CleanTexts(records))
}

// FeaturesFromTexts builds inputs for raw records whose cleaned texts are
// already known. texts must be aligned with records.
func (p *Preprocessor) FeaturesFromTexts(records []model.RepairRecord, texts []string) Features {
	norm := fields.NormalizeAll(records)
	return Features{
		Records: norm,
		Texts:   texts,
		Cat:     p.Codes.Transform(norm),
		Seq:     p.Vocab.EncodeAll(texts, p.MaxLen),
	}
}

// Targets encodes the Category of each record.
func (p *Preprocessor) Targets(records []model.RepairRecord) ([]int, error) {
	cats := make([]string, len(records))
	for i, r := range records {
		cats[i] = r.Category
	}
	return p.Labels.Transform(cats)
}

// Engine classifies repair records with a fitted Preprocessor and a Predictor.
type Engine struct {
	prep      *Preprocessor
	predictor nn.Predictor
}

// New creates an Engine with the provided components.
func New(prep *Preprocessor, predictor nn.Predictor) *Engine {
	return &Engine{prep: prep, predictor: predictor}
}

// Preprocessor returns the fitted preprocessing state.
func (e *Engine) Preprocessor() *Preprocessor {
	return e.prep
}

// Predict classifies prepared features. Actual is filled from each record's
// Category when present.
func (e *Engine) Predict(f Features) ([]model.Prediction, error) {
	if len(f.Records) == 0 {
		return nil, nil
	}
	probs, err := e.predictor.Predict(f.Cat, f.Seq)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	classes := e.prep.Labels.Classes()
	if probs.Cols != len(classes) {
		return nil, fmt.Errorf("engine: predictor returned %d classes, encoder has %d", probs.Cols, len(classes))
	}

	out := make([]model.Prediction, len(f.Records))
	for i, r := range f.Records {
		best := probs.ArgMax(i)
		dist := make(map[string]float64, len(classes))
		for j, c := range classes {
			dist[c] = float64(probs.At(i, j))
		}
		out[i] = model.Prediction{
			Row:           r.Row,
			Category:      classes[best],
			Confidence:    float64(probs.At(i, best)),
			Actual:        r.Category,
			Probabilities: dist,
		}
	}
	return out, nil
}

// Classify classifies a single raw record.
func (e *Engine) Classify(r model.RepairRecord) (model.Prediction, error) {
	preds, err := e.ClassifyBatch([]model.RepairRecord{r})
	if err != nil {
		return model.Prediction{}, err
	}
	return preds[0], nil
}

// ClassifyBatch classifies a slice of raw records.
func (e *Engine) ClassifyBatch(records []model.RepairRecord) ([]model.Prediction, error) {
	return e.Predict(e.prep.Features(records))
}

// Close releases the predictor.
func (e *Engine) Close() error {
	return e.predictor.Close()
}
