package nn

import (
	"math"
	"math/rand"

	"github.com/crimson-sun/repairclass/internal/engine/tensor"
)

// dense is a fully connected layer y = act(x·W + b) with W shaped [in, out].
type dense struct {
	in, out int
	relu    bool
	w, b    *Param

	// input layers skip the input gradient
	noInputGrad bool

	x, y *tensor.Matrix
}

func newDense(name string, in, out int, relu bool, rng *rand.Rand) *dense {
	d := &dense{
		in:   in,
		out:  out,
		relu: relu,
		w:    newParam(name+".kernel", true, in, out),
		b:    newParam(name+".bias", true, out),
	}
	d.w.glorotUniform(rng, in, out)
	return d
}

func (d *dense) params() []*Param { return []*Param{d.w, d.b} }

func (d *dense) forward(x *tensor.Matrix, train bool) *tensor.Matrix {
	y := tensor.MatMul(x, d.w.matrix())
	for i := 0; i < y.Rows; i++ {
		row := y.Row(i)
		for j := range row {
			row[j] += d.b.Value[j]
			if d.relu && row[j] < 0 {
				row[j] = 0
			}
		}
	}
	if train {
		d.x, d.y = x, y
	}
	return y
}

// backward consumes dy (modified in place) and returns dx.
func (d *dense) backward(dy *tensor.Matrix) *tensor.Matrix {
	if d.relu {
		for i, v := range d.y.Data {
			if v <= 0 {
				dy.Data[i] = 0
			}
		}
	}
	tensor.MatMulTransA(d.w.gradMatrix(), d.x, dy)
	for i := 0; i < dy.Rows; i++ {
		for j, g := range dy.Row(i) {
			d.b.Grad[j] += g
		}
	}
	if d.noInputGrad {
		return nil
	}
	dx := tensor.New(dy.Rows, d.in)
	tensor.MatMulTransB(dx, dy, d.w.matrix())
	return dx
}

// dropout zeroes activations with probability rate and rescales survivors
// by 1/(1-rate). Identity outside training.
type dropout struct {
	rate float32
	mask []float32
}

func (d *dropout) forward(x *tensor.Matrix, train bool, rng *rand.Rand) *tensor.Matrix {
	if !train || d.rate <= 0 {
		return x
	}
	y := tensor.New(x.Rows, x.Cols)
	d.mask = make([]float32, len(x.Data))
	scale := 1 / (1 - d.rate)
	for i, v := range x.Data {
		if rng.Float32() >= d.rate {
			d.mask[i] = scale
			y.Data[i] = v * scale
		}
	}
	return y
}

func (d *dropout) backward(dy *tensor.Matrix) *tensor.Matrix {
	if d.mask == nil {
		return dy
	}
	for i := range dy.Data {
		dy.Data[i] *= d.mask[i]
	}
	return dy
}

// spatialDropout drops whole embedding channels of a sample across every
// timestep. Input rows are laid out sample-major: row b*steps+t.
type spatialDropout struct {
	rate  float32
	steps int
	mask  []float32 // [batch, channels]
}

func (d *spatialDropout) forward(x *tensor.Matrix, train bool, rng *rand.Rand) *tensor.Matrix {
	if !train || d.rate <= 0 {
		return x
	}
	batch := x.Rows / d.steps
	d.mask = make([]float32, batch*x.Cols)
	scale := 1 / (1 - d.rate)
	for i := range d.mask {
		if rng.Float32() >= d.rate {
			d.mask[i] = scale
		}
	}
	y := tensor.New(x.Rows, x.Cols)
	for r := 0; r < x.Rows; r++ {
		m := d.mask[(r/d.steps)*x.Cols : (r/d.steps+1)*x.Cols]
		src, dst := x.Row(r), y.Row(r)
		for j := range src {
			dst[j] = src[j] * m[j]
		}
	}
	return y
}

func (d *spatialDropout) backward(dy *tensor.Matrix) *tensor.Matrix {
	if d.mask == nil {
		return dy
	}
	for r := 0; r < dy.Rows; r++ {
		m := d.mask[(r/d.steps)*dy.Cols : (r/d.steps+1)*dy.Cols]
		row := dy.Row(r)
		for j := range row {
			row[j] *= m[j]
		}
	}
	return dy
}

const (
	bnMomentum = 0.99
	bnEpsilon  = 1e-3
)

// batchNorm normalises each column over the rows of a batch. Moving
// statistics are used outside training.
type batchNorm struct {
	features    int
	gamma, beta *Param
	movingMean  *Param
	movingVar   *Param

	xhat   *tensor.Matrix
	invStd []float32
}

func newBatchNorm(name string, features int) *batchNorm {
	bn := &batchNorm{
		features:   features,
		gamma:      newParam(name+".gamma", true, features),
		beta:       newParam(name+".beta", true, features),
		movingMean: newParam(name+".moving_mean", false, features),
		movingVar:  newParam(name+".moving_variance", false, features),
	}
	bn.gamma.fill(1)
	bn.movingVar.fill(1)
	return bn
}

func (bn *batchNorm) params() []*Param {
	return []*Param{bn.gamma, bn.beta, bn.movingMean, bn.movingVar}
}

func (bn *batchNorm) forward(x *tensor.Matrix, train bool) *tensor.Matrix {
	y := tensor.New(x.Rows, x.Cols)
	if !train {
		for i := 0; i < x.Rows; i++ {
			src, dst := x.Row(i), y.Row(i)
			for j, v := range src {
				inv := float32(1 / math.Sqrt(float64(bn.movingVar.Value[j])+bnEpsilon))
				dst[j] = (v-bn.movingMean.Value[j])*inv*bn.gamma.Value[j] + bn.beta.Value[j]
			}
		}
		return y
	}

	n := float64(x.Rows)
	mean := make([]float64, x.Cols)
	variance := make([]float64, x.Cols)
	for i := 0; i < x.Rows; i++ {
		for j, v := range x.Row(i) {
			mean[j] += float64(v)
		}
	}
	for j := range mean {
		mean[j] /= n
	}
	for i := 0; i < x.Rows; i++ {
		for j, v := range x.Row(i) {
			d := float64(v) - mean[j]
			variance[j] += d * d
		}
	}
	bn.invStd = make([]float32, x.Cols)
	for j := range variance {
		variance[j] /= n
		bn.invStd[j] = float32(1 / math.Sqrt(variance[j]+bnEpsilon))
		bn.movingMean.Value[j] = float32(bnMomentum*float64(bn.movingMean.Value[j]) + (1-bnMomentum)*mean[j])
		bn.movingVar.Value[j] = float32(bnMomentum*float64(bn.movingVar.Value[j]) + (1-bnMomentum)*variance[j])
	}

	bn.xhat = tensor.New(x.Rows, x.Cols)
	for i := 0; i < x.Rows; i++ {
		src, xh, dst := x.Row(i), bn.xhat.Row(i), y.Row(i)
		for j, v := range src {
			xh[j] = (v - float32(mean[j])) * bn.invStd[j]
			dst[j] = xh[j]*bn.gamma.Value[j] + bn.beta.Value[j]
		}
	}
	return y
}

func (bn *batchNorm) backward(dy *tensor.Matrix) *tensor.Matrix {
	cols := dy.Cols
	sumDy := make([]float32, cols)
	sumDyXhat := make([]float32, cols)
	for i := 0; i < dy.Rows; i++ {
		g, xh := dy.Row(i), bn.xhat.Row(i)
		for j := range g {
			sumDy[j] += g[j]
			sumDyXhat[j] += g[j] * xh[j]
		}
	}
	for j := 0; j < cols; j++ {
		bn.gamma.Grad[j] += sumDyXhat[j]
		bn.beta.Grad[j] += sumDy[j]
	}

	n := float32(dy.Rows)
	dx := tensor.New(dy.Rows, cols)
	for i := 0; i < dy.Rows; i++ {
		g, xh, out := dy.Row(i), bn.xhat.Row(i), dx.Row(i)
		for j := range g {
			k := bn.gamma.Value[j] * bn.invStd[j] / n
			out[j] = k * (n*g[j] - sumDy[j] - xh[j]*sumDyXhat[j])
		}
	}
	return dx
}

// embedding maps token ids to dense vectors. Output rows follow the id order.
type embedding struct {
	vocab, dim int
	e          *Param

	ids []int
}

func newEmbedding(name string, vocab, dim int, rng *rand.Rand) *embedding {
	emb := &embedding{vocab: vocab, dim: dim, e: newParam(name+".embeddings", true, vocab, dim)}
	emb.e.uniform(rng, 0.05)
	return emb
}

func (emb *embedding) params() []*Param { return []*Param{emb.e} }

func (emb *embedding) forward(ids []int, train bool) *tensor.Matrix {
	y := tensor.New(len(ids), emb.dim)
	for r, id := range ids {
		copy(y.Row(r), emb.e.Value[id*emb.dim:(id+1)*emb.dim])
	}
	if train {
		emb.ids = ids
	}
	return y
}

func (emb *embedding) backward(dy *tensor.Matrix) {
	for r, id := range emb.ids {
		g := emb.e.Grad[id*emb.dim : (id+1)*emb.dim]
		for j, v := range dy.Row(r) {
			g[j] += v
		}
	}
}

// softmax converts logits to probabilities row by row in place.
func softmax(m *tensor.Matrix) {
	for i := 0; i < m.Rows; i++ {
		row := m.Row(i)
		maxV := row[0]
		for _, v := range row[1:] {
			if v > maxV {
				maxV = v
			}
		}
		var sum float64
		for j, v := range row {
			e := math.Exp(float64(v - maxV))
			row[j] = float32(e)
			sum += e
		}
		for j := range row {
			row[j] = float32(float64(row[j]) / sum)
		}
	}
}
