// Package nn implements the dual-branch repair classifier: a dense branch over
// one-hot service codes and an embedding/LSTM branch over token sequences,
// fused into a softmax head. Weights live in flat []float32 buffers.
package nn

import (
	"math"
	"math/rand"

	"github.com/crimson-sun/repairclass/internal/engine/tensor"
)

// Param is a named weight buffer and its accumulated gradient.
// Non-trainable params (batch-norm moving statistics) carry no gradient.
type Param struct {
	Name      string
	Shape     []int
	Value     []float32
	Grad      []float32
	Trainable bool
}

func newParam(name string, trainable bool, shape ...int) *Param {
	n := 1
	for _, d := range shape {
		n *= d
	}
	p := &Param{Name: name, Shape: shape, Value: make([]float32, n), Trainable: trainable}
	if trainable {
		p.Grad = make([]float32, n)
	}
	return p
}

// matrix views a 2-D param value as a Matrix sharing its storage.
func (p *Param) matrix() *tensor.Matrix {
	return &tensor.Matrix{Rows: p.Shape[0], Cols: p.Shape[1], Data: p.Value}
}

func (p *Param) gradMatrix() *tensor.Matrix {
	return &tensor.Matrix{Rows: p.Shape[0], Cols: p.Shape[1], Data: p.Grad}
}

func (p *Param) zeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

func (p *Param) fill(v float32) {
	for i := range p.Value {
		p.Value[i] = v
	}
}

// glorotUniform draws from U(-l, l), l = sqrt(6 / (fanIn + fanOut)).
func (p *Param) glorotUniform(rng *rand.Rand, fanIn, fanOut int) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	p.uniform(rng, limit)
}

func (p *Param) uniform(rng *rand.Rand, limit float64) {
	for i := range p.Value {
		p.Value[i] = float32((rng.Float64()*2 - 1) * limit)
	}
}

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

func tanh(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}
