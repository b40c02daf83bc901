package nn

import (
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/repairclass/internal/engine/tensor"
)

func TestSpatialDropoutMasksWholeChannels(t *testing.T) {
	const batch, steps, channels = 3, 4, 6
	x := tensor.New(batch*steps, channels)
	for i := range x.Data {
		x.Data[i] = 1
	}
	d := &spatialDropout{rate: 0.5, steps: steps}
	y := d.forward(x, true, rand.New(rand.NewSource(1)))

	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			first := y.At(b*steps, c)
			assert.Contains(t, []float32{0, 2}, first)
			for s := 1; s < steps; s++ {
				assert.Equal(t, first, y.At(b*steps+s, c), "sample %d channel %d step %d", b, c, s)
			}
		}
	}

	assert.Same(t, x, d.forward(x, false, nil))
}

func TestDropoutInference(t *testing.T) {
	x := tensor.New(2, 2)
	d := &dropout{rate: 0.3}
	assert.Same(t, x, d.forward(x, false, nil))
}

func TestBatchNormTrainingNormalises(t *testing.T) {
	bn := newBatchNorm("bn", 2)
	x, err := tensor.FromRows([][]float32{{1, 10}, {3, 10}, {5, 10}})
	require.NoError(t, err)

	y := bn.forward(x, true)
	var mean float64
	for i := 0; i < 3; i++ {
		mean += float64(y.At(i, 0))
		assert.InDelta(t, 0, y.At(i, 1), 1e-6)
	}
	assert.InDelta(t, 0, mean/3, 1e-6)
	assert.InDelta(t, 0.03, bn.movingMean.Value[0], 1e-6)
	assert.InDelta(t, 0.99*1+0.01*(8.0/3), bn.movingVar.Value[0], 1e-5)
}

func TestBatchNormInferenceUsesMovingStats(t *testing.T) {
	bn := newBatchNorm("bn", 1)
	x, err := tensor.FromRows([][]float32{{2}})
	require.NoError(t, err)

	y := bn.forward(x, false)
	assert.InDelta(t, 2/math.Sqrt(1+bnEpsilon), y.At(0, 0), 1e-6)
	assert.Zero(t, bn.movingMean.Value[0])
}

func TestOrthogonalRows(t *testing.T) {
	p := newParam("r", true, 4, 16)
	orthogonalRows(p, rand.New(rand.NewSource(3)))
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var dot float64
			for k := 0; k < 16; k++ {
				dot += float64(p.Value[i*16+k]) * float64(p.Value[j*16+k])
			}
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, dot, 1e-5)
		}
	}
}

func TestLSTMForgetBias(t *testing.T) {
	l := newLSTM("lstm", 2, 3, 4, rand.New(rand.NewSource(1)))
	assert.Equal(t, []float32{0, 0, 0, 1, 1, 1, 0, 0, 0, 0, 0, 0}, l.bias.Value)
}

func TestAdamFirstStepMovesByLearningRate(t *testing.T) {
	p := newParam("w", true, 1)
	p.Grad[0] = 1
	a := NewAdam(1e-3)
	a.Step([]*Param{p})
	assert.InDelta(t, -1e-3, p.Value[0], 1e-6)

	frozen := newParam("stat", false, 1)
	a.Step([]*Param{frozen})
	assert.Zero(t, frozen.Value[0])
}

func TestSoftmaxStable(t *testing.T) {
	m, err := tensor.FromRows([][]float32{{1000, 1000}, {0, math.MaxFloat32 / 2}})
	require.NoError(t, err)
	softmax(m)
	assert.InDelta(t, 0.5, m.At(0, 0), 1e-6)
	assert.InDelta(t, 1, m.At(1, 1), 1e-6)
}

func TestCrossEntropy(t *testing.T) {
	probs, _ := tensor.FromRows([][]float32{{0.5, 0.5}, {0.9, 0.1}})
	y, _ := tensor.FromRows([][]float32{{1, 0}, {1, 0}})
	loss, hits, grad := crossEntropy(probs, y)

	assert.InDelta(t, (-math.Log(0.5)-math.Log(0.9))/2, loss, 1e-6)
	assert.Equal(t, 2, hits)
	assert.InDelta(t, -0.25, grad.At(0, 0), 1e-6)
	assert.InDelta(t, 0.05, grad.At(1, 1), 1e-6)
}

func TestReduceOnPlateau(t *testing.T) {
	cfg := DefaultTrainConfig()
	cfg.ReduceLRPatience = 2
	tr := &Trainer{cfg: cfg, opt: NewAdam(1e-3), logger: slog.Default()}

	best, wait := math.Inf(1), 0
	tr.reduceOnPlateau(1.0, &best, &wait)
	tr.reduceOnPlateau(1.0, &best, &wait)
	assert.Equal(t, 1e-3, tr.opt.LearningRate)
	tr.reduceOnPlateau(1.0, &best, &wait)
	assert.InDelta(t, 1e-4, tr.opt.LearningRate, 1e-12)

	tr.reduceOnPlateau(1.0, &best, &wait)
	tr.reduceOnPlateau(1.0, &best, &wait)
	assert.InDelta(t, 1e-5, tr.opt.LearningRate, 1e-12)

	tr.reduceOnPlateau(1.0, &best, &wait)
	tr.reduceOnPlateau(1.0, &best, &wait)
	assert.InDelta(t, 1e-5, tr.opt.LearningRate, 1e-12)
}

func TestSplitTail(t *testing.T) {
	d := tinyBatch(10, 9)
	train, val := d.SplitTail(0.2)
	assert.Equal(t, 8, train.Len())
	assert.Equal(t, 2, val.Len())
	assert.Equal(t, d.Seq[8], val.Seq[0])
	assert.Equal(t, d.Cat.Row(9), val.Cat.Row(1))
}
