package output

import (
	"encoding/json"
	"testing"

	"github.com/crimson-sun/repairclass/internal/model"
)

func basePrediction() model.Prediction {
	return model.Prediction{
		Row:        7,
		Category:   "Замена дисплея",
		Confidence: 0.91,
		Actual:     "Замена дисплея",
		Probabilities: map[string]float64{
			"Замена дисплея": 0.91,
			"Замена платы":   0.09,
		},
	}
}

func TestFormatPredictionWithoutProbabilities(t *testing.T) {
	p := FormatPrediction(basePrediction(), false)

	if p.Probabilities != nil {
		t.Fatal("Probabilities should be dropped")
	}
	if p.Confidence != 0.91 {
		t.Fatal("Confidence should be preserved")
	}
	if p.Category != "Замена дисплея" {
		t.Fatal("Category should be preserved")
	}
}

func TestFormatPredictionWithProbabilities(t *testing.T) {
	p := FormatPrediction(basePrediction(), true)

	if len(p.Probabilities) != 2 {
		t.Fatalf("expected 2 probabilities, got %d", len(p.Probabilities))
	}
}

func TestFormatPredictionDoesNotMutateInput(t *testing.T) {
	orig := basePrediction()
	_ = FormatPrediction(orig, false)
	if orig.Probabilities == nil {
		t.Fatal("FormatPrediction modified the original")
	}
}

func TestFormatPredictionJSONOmitsProbabilities(t *testing.T) {
	data, err := json.Marshal(FormatPrediction(basePrediction(), false))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["probabilities"]; ok {
		t.Error("probabilities key should be omitted")
	}
	for _, key := range []string{"row", "category", "confidence", "actual"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
}

func TestFormatPredictionJSONOmitsEmptyActual(t *testing.T) {
	p := basePrediction()
	p.Actual = ""
	data, _ := json.Marshal(FormatPrediction(p, false))

	var m map[string]any
	json.Unmarshal(data, &m)
	if _, ok := m["actual"]; ok {
		t.Error("actual should be omitted for unlabeled records")
	}
}
