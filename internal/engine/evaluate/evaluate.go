// Package evaluate scores predicted category codes against the true ones.
package evaluate

import (
	"errors"
	"fmt"
)

// ErrNoSamples is returned when there is nothing to score.
var ErrNoSamples = errors.New("evaluate: no samples")

// ClassMetrics holds the scores of one class.
type ClassMetrics struct {
	Class   string `json:"class"`
	Support int    `json:"support"`

	// Subset scores are computed over the records whose true class is this
	// one, micro-averaged. All three equal the share predicted correctly;
	// an empty subset yields precision 0, recall 1, F1 0.
	SubsetPrecision float64 `json:"subset_precision"`
	SubsetRecall    float64 `json:"subset_recall"`
	SubsetF1        float64 `json:"subset_f1"`

	// One-vs-rest scores.
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`

	// Dominant is the class most often predicted for this true class, with
	// its share of the row. Ties go to the lowest code.
	Dominant      string  `json:"dominant"`
	DominantShare float64 `json:"dominant_share"`
}

// Mismatch is a record whose prediction differs from its true class.
type Mismatch struct {
	Index     int    `json:"index"`
	Actual    string `json:"actual"`
	Predicted string `json:"predicted"`
}

// Report is the full evaluation of one prediction run.
type Report struct {
	Classes []string `json:"classes"`
	Samples int      `json:"samples"`

	// MSE is the mean squared difference of the integer class codes.
	MSE float64 `json:"mse"`

	// Counts[i][j] is the number of records of true class i predicted as j.
	Counts [][]int `json:"counts"`
	// Confusion is Counts normalised by true-class row sums; rows of absent
	// classes stay zero.
	Confusion [][]float64 `json:"confusion"`

	PerClass []ClassMetrics `json:"per_class"`

	MicroF1      float64 `json:"micro_f1"`
	MacroF1      float64 `json:"macro_f1"`
	MeanDiagonal float64 `json:"mean_diagonal"`

	Mismatches   []Mismatch `json:"mismatches"`
	MismatchRate float64    `json:"mismatch_rate"`
}

// Evaluate scores predicted against actual codes over classes.
func Evaluate(classes []string, actual, predicted []int) (*Report, error) {
	if len(actual) != len(predicted) {
		return nil, fmt.Errorf("evaluate: %d actual vs %d predicted codes", len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return nil, ErrNoSamples
	}
	k := len(classes)
	for i := range actual {
		if actual[i] < 0 || actual[i] >= k || predicted[i] < 0 || predicted[i] >= k {
			return nil, fmt.Errorf("evaluate: record %d has code outside [0,%d): actual %d predicted %d",
				i, k, actual[i], predicted[i])
		}
	}

	r := &Report{Classes: classes, Samples: len(actual)}
	r.Counts = make([][]int, k)
	for i := range r.Counts {
		r.Counts[i] = make([]int, k)
	}

	var sq float64
	correct := 0
	for i, a := range actual {
		p := predicted[i]
		r.Counts[a][p]++
		d := float64(a - p)
		sq += d * d
		if a == p {
			correct++
		} else {
			r.Mismatches = append(r.Mismatches, Mismatch{Index: i, Actual: classes[a], Predicted: classes[p]})
		}
	}
	n := float64(len(actual))
	r.MSE = sq / n
	r.MicroF1 = float64(correct) / n
	r.MismatchRate = float64(len(r.Mismatches)) / n

	r.Confusion = NormalizeRows(r.Counts)
	colSums := make([]int, k)
	for i := range r.Counts {
		for j, c := range r.Counts[i] {
			colSums[j] += c
		}
	}

	var diagSum, f1Sum float64
	present := 0
	r.PerClass = make([]ClassMetrics, k)
	for c := 0; c < k; c++ {
		support := 0
		for _, v := range r.Counts[c] {
			support += v
		}
		tp := r.Counts[c][c]
		m := ClassMetrics{Class: classes[c], Support: support}

		if support > 0 {
			share := float64(tp) / float64(support)
			m.SubsetPrecision, m.SubsetRecall, m.SubsetF1 = share, share, share
			m.Recall = share
			present++
			diagSum += r.Confusion[c][c]
		} else {
			m.SubsetRecall = 1
		}
		if colSums[c] > 0 {
			m.Precision = float64(tp) / float64(colSums[c])
		}
		m.F1 = harmonic(m.Precision, m.Recall)
		if support > 0 {
			f1Sum += m.F1
		}

		dom := 0
		for j, v := range r.Confusion[c] {
			if v > r.Confusion[c][dom] {
				dom = j
			}
		}
		m.Dominant = classes[dom]
		m.DominantShare = r.Confusion[c][dom]
		r.PerClass[c] = m
	}
	if present > 0 {
		r.MeanDiagonal = diagSum / float64(present)
		r.MacroF1 = f1Sum / float64(present)
	}
	return r, nil
}

// NormalizeRows divides each row by its sum. Zero rows stay zero.
func NormalizeRows(counts [][]int) [][]float64 {
	out := make([][]float64, len(counts))
	for i, row := range counts {
		out[i] = make([]float64, len(row))
		total := 0
		for _, v := range row {
			total += v
		}
		if total == 0 {
			continue
		}
		for j, v := range row {
			out[i][j] = float64(v) / float64(total)
		}
	}
	return out
}

func harmonic(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}
