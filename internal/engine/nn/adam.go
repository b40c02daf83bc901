package nn

import "math"

// Adam is the Adam optimiser with bias-corrected step size.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	step int
	m, v map[*Param][]float32
}

// NewAdam returns an optimiser with the usual β and ε defaults.
func NewAdam(lr float64) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
		m:            make(map[*Param][]float32),
		v:            make(map[*Param][]float32),
	}
}

// Step applies accumulated gradients to trainable params.
func (a *Adam) Step(params []*Param) {
	a.step++
	t := float64(a.step)
	lr := a.LearningRate * math.Sqrt(1-math.Pow(a.Beta2, t)) / (1 - math.Pow(a.Beta1, t))
	b1, b2 := float32(a.Beta1), float32(a.Beta2)
	eps := a.Epsilon

	for _, p := range params {
		if !p.Trainable {
			continue
		}
		m, ok := a.m[p]
		if !ok {
			m = make([]float32, len(p.Value))
			a.m[p] = m
			a.v[p] = make([]float32, len(p.Value))
		}
		v := a.v[p]
		for i, g := range p.Grad {
			m[i] = b1*m[i] + (1-b1)*g
			v[i] = b2*v[i] + (1-b2)*g*g
			p.Value[i] -= float32(lr * float64(m[i]) / (math.Sqrt(float64(v[i])) + eps))
		}
	}
}
