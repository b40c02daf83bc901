package nn

import "github.com/crimson-sun/repairclass/internal/engine/tensor"

// Predictor maps aligned categorical rows and token sequences to class
// probabilities. *Model and *ONNXPredictor implement it.
type Predictor interface {
	Predict(cat *tensor.Matrix, seq [][]int) (*tensor.Matrix, error)
	Close() error
}

var (
	_ Predictor = (*Model)(nil)
	_ Predictor = (*ONNXPredictor)(nil)
)
