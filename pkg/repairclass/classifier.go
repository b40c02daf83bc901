package repairclass

import (
	"fmt"
	"slices"

	"github.com/crimson-sun/repairclass/internal/config"
	"github.com/crimson-sun/repairclass/internal/engine"
	"github.com/crimson-sun/repairclass/internal/logging"
	"github.com/crimson-sun/repairclass/internal/model"
	"github.com/crimson-sun/repairclass/internal/pipeline"
)

// Classifier assigns repair records to categories.
// Safe for concurrent use.
type Classifier struct {
	engine *engine.Engine
}

// New loads the artifacts and the model. This reads every artifact file;
// create once, reuse across requests.
func New(opts ...Option) (*Classifier, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cfg := config.Defaults()
	cfg.Artifacts.Dir = o.modelDir
	cfg.Artifacts.Checkpoint = o.checkpoint
	cfg.Text.Lemmatizer = o.lemmatizer
	cfg.Text.DictionaryPath = o.dictionary
	cfg.Text.StopWordsPath = o.stopWordsPath
	if o.onnxPath != "" {
		cfg.Model.Backend = "onnx"
		cfg.Model.ONNXPath = o.onnxPath
		cfg.Model.ONNXLibrary = o.onnxLibrary
	}

	p, err := pipeline.New(cfg, pipeline.WithLogger(logging.Discard()))
	if err != nil {
		return nil, fmt.Errorf("repairclass: %w", err)
	}
	eng, err := p.OpenEngine()
	if err != nil {
		return nil, fmt.Errorf("repairclass: %w", err)
	}
	return &Classifier{engine: eng}, nil
}

// Classify classifies a single record.
func (c *Classifier) Classify(r Record) (Result, error) {
	p, err := c.engine.Classify(r.internal(0))
	if err != nil {
		return Result{}, fmt.Errorf("repairclass: %w", err)
	}
	return resultFromPrediction(p), nil
}

// ClassifyBatch classifies several records in one batched inference call.
// More efficient than calling Classify in a loop.
func (c *Classifier) ClassifyBatch(records []Record) ([]Result, error) {
	if len(records) == 0 {
		return nil, nil
	}
	in := make([]model.RepairRecord, len(records))
	for i, r := range records {
		in[i] = r.internal(i)
	}
	preds, err := c.engine.ClassifyBatch(in)
	if err != nil {
		return nil, fmt.Errorf("repairclass: %w", err)
	}
	out := make([]Result, len(preds))
	for i, p := range preds {
		out[i] = resultFromPrediction(p)
	}
	return out, nil
}

// Categories returns every category the model can assign, sorted.
func (c *Classifier) Categories() []string {
	return slices.Clone(c.engine.Preprocessor().Labels.Classes())
}

// Close releases model resources. Must be called when the Classifier is no
// longer needed.
func (c *Classifier) Close() error {
	return c.engine.Close()
}
