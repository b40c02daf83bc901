package output

import "github.com/crimson-sun/repairclass/internal/model"

// FormatPrediction returns a copy of the prediction with fields stripped for
// output. Without probabilities the per-class distribution is dropped
// (omitted from JSON via omitempty); the chosen class and its confidence stay.
func FormatPrediction(p model.Prediction, probabilities bool) model.Prediction {
	if !probabilities {
		p.Probabilities = nil
	}
	return p
}
