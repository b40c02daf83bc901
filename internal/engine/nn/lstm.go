package nn

import (
	"math"
	"math/rand"

	"github.com/crimson-sun/repairclass/internal/engine/tensor"
)

// lstm is a single-layer LSTM returning the hidden state after the last
// timestep. Gate blocks in kernel, recurrent and bias are ordered i, f, c, o.
type lstm struct {
	in, units, steps int
	kernel           *Param // [in, 4*units]
	recurrent        *Param // [units, 4*units]
	bias             *Param // [4*units]

	cache []lstmStep
}

type lstmStep struct {
	x, hPrev, cPrev *tensor.Matrix
	gates           *tensor.Matrix // activated i, f, c, o
	tanhC           *tensor.Matrix
}

func newLSTM(name string, in, units, steps int, rng *rand.Rand) *lstm {
	l := &lstm{
		in:        in,
		units:     units,
		steps:     steps,
		kernel:    newParam(name+".kernel", true, in, 4*units),
		recurrent: newParam(name+".recurrent_kernel", true, units, 4*units),
		bias:      newParam(name+".bias", true, 4*units),
	}
	l.kernel.glorotUniform(rng, in, 4*units)
	orthogonalRows(l.recurrent, rng)
	for j := units; j < 2*units; j++ {
		l.bias.Value[j] = 1
	}
	return l
}

func (l *lstm) params() []*Param { return []*Param{l.kernel, l.recurrent, l.bias} }

// forward runs the sequence held in x, whose row b*steps+t is timestep t of sample b.
func (l *lstm) forward(x *tensor.Matrix, train bool) *tensor.Matrix {
	batch := x.Rows / l.steps
	units := l.units
	h := tensor.New(batch, units)
	c := tensor.New(batch, units)
	if train {
		l.cache = make([]lstmStep, 0, l.steps)
	}

	for t := 0; t < l.steps; t++ {
		xt := tensor.New(batch, l.in)
		for b := 0; b < batch; b++ {
			copy(xt.Row(b), x.Row(b*l.steps+t))
		}
		z := tensor.MatMul(xt, l.kernel.matrix())
		rz := tensor.MatMul(h, l.recurrent.matrix())

		hNext := tensor.New(batch, units)
		cNext := tensor.New(batch, units)
		tanhC := tensor.New(batch, units)
		for b := 0; b < batch; b++ {
			zr, rr := z.Row(b), rz.Row(b)
			for k := range zr {
				zr[k] += rr[k] + l.bias.Value[k]
			}
			cPrev, cRow, hRow, tcRow := c.Row(b), cNext.Row(b), hNext.Row(b), tanhC.Row(b)
			for j := 0; j < units; j++ {
				i := sigmoid(zr[j])
				f := sigmoid(zr[units+j])
				g := tanh(zr[2*units+j])
				o := sigmoid(zr[3*units+j])
				zr[j], zr[units+j], zr[2*units+j], zr[3*units+j] = i, f, g, o

				cRow[j] = f*cPrev[j] + i*g
				tcRow[j] = tanh(cRow[j])
				hRow[j] = o * tcRow[j]
			}
		}
		if train {
			l.cache = append(l.cache, lstmStep{x: xt, hPrev: h, cPrev: c, gates: z, tanhC: tanhC})
		}
		h, c = hNext, cNext
	}
	return h
}

// backward propagates the gradient of the final hidden state through time
// and returns the gradient of the input sequence.
func (l *lstm) backward(dh *tensor.Matrix) *tensor.Matrix {
	batch := dh.Rows
	units := l.units
	dx := tensor.New(batch*l.steps, l.in)
	dc := tensor.New(batch, units)
	dz := tensor.New(batch, 4*units)

	for t := l.steps - 1; t >= 0; t-- {
		s := l.cache[t]
		for b := 0; b < batch; b++ {
			gr, tc, cPrev := s.gates.Row(b), s.tanhC.Row(b), s.cPrev.Row(b)
			dhRow, dcRow, dzRow := dh.Row(b), dc.Row(b), dz.Row(b)
			for j := 0; j < units; j++ {
				i, f, g, o := gr[j], gr[units+j], gr[2*units+j], gr[3*units+j]
				dcv := dcRow[j] + dhRow[j]*o*(1-tc[j]*tc[j])

				dzRow[j] = dcv * g * i * (1 - i)
				dzRow[units+j] = dcv * cPrev[j] * f * (1 - f)
				dzRow[2*units+j] = dcv * i * (1 - g*g)
				dzRow[3*units+j] = dhRow[j] * tc[j] * o * (1 - o)
				dcRow[j] = dcv * f
			}
		}

		tensor.MatMulTransA(l.kernel.gradMatrix(), s.x, dz)
		tensor.MatMulTransA(l.recurrent.gradMatrix(), s.hPrev, dz)
		for b := 0; b < batch; b++ {
			for k, g := range dz.Row(b) {
				l.bias.Grad[k] += g
			}
		}

		dxt := tensor.New(batch, l.in)
		tensor.MatMulTransB(dxt, dz, l.kernel.matrix())
		for b := 0; b < batch; b++ {
			copy(dx.Row(b*l.steps+t), dxt.Row(b))
		}
		dhPrev := tensor.New(batch, units)
		tensor.MatMulTransB(dhPrev, dz, l.recurrent.matrix())
		dh = dhPrev
	}
	l.cache = nil
	return dx
}

// orthogonalRows fills a [rows, cols] param (rows <= cols) with orthonormal
// rows obtained by Gram-Schmidt over gaussian draws.
func orthogonalRows(p *Param, rng *rand.Rand) {
	rows, cols := p.Shape[0], p.Shape[1]
	basis := make([][]float64, 0, rows)
	for r := 0; r < rows; r++ {
		v := make([]float64, cols)
		for {
			for k := range v {
				v[k] = rng.NormFloat64()
			}
			for _, u := range basis {
				var dot float64
				for k := range v {
					dot += v[k] * u[k]
				}
				for k := range v {
					v[k] -= dot * u[k]
				}
			}
			var norm float64
			for _, x := range v {
				norm += x * x
			}
			norm = math.Sqrt(norm)
			if norm > 1e-6 {
				for k := range v {
					v[k] /= norm
				}
				break
			}
		}
		basis = append(basis, v)
		row := p.Value[r*cols : (r+1)*cols]
		for k, x := range v {
			row[k] = float32(x)
		}
	}
}
