package model

// Prediction is the classifier's output for a single repair record.
type Prediction struct {
	Row           int                `json:"row"`
	Category      string             `json:"category"`
	Confidence    float64            `json:"confidence"`
	Actual        string             `json:"actual,omitempty"` // ground truth when known
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
}

// Correct reports whether the prediction matches a known ground-truth label.
func (p Prediction) Correct() bool {
	return p.Actual != "" && p.Actual == p.Category
}
