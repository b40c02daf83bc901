package nn

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/crimson-sun/repairclass/internal/engine/tensor"
)

// ErrShapeMismatch is returned when inputs do not match the model geometry.
var ErrShapeMismatch = errors.New("nn: shape mismatch")

// Config describes the model geometry and regularisation.
type Config struct {
	CatWidth       int     `json:"cat_width"`
	VocabSize      int     `json:"vocab_size"`
	SeqLen         int     `json:"seq_len"`
	NumClasses     int     `json:"num_classes"`
	CatUnits       int     `json:"cat_units"`
	EmbedDim       int     `json:"embed_dim"`
	LSTMUnits      int     `json:"lstm_units"`
	Hidden1        int     `json:"hidden1"`
	Hidden2        int     `json:"hidden2"`
	SpatialDropout float32 `json:"spatial_dropout"`
	Dropout        float32 `json:"dropout"`
	Seed           int64   `json:"seed"`
}

// DefaultConfig returns the reference layer sizes. Input and output
// dimensions are left for the caller to fill from the fitted encoders.
func DefaultConfig() Config {
	return Config{
		CatUnits:       512,
		EmbedDim:       70,
		LSTMUnits:      200,
		Hidden1:        64,
		Hidden2:        32,
		SpatialDropout: 0.2,
		Dropout:        0.1,
		Seed:           42,
	}
}

func (c Config) validate() error {
	dims := []struct {
		name string
		v    int
	}{
		{"cat_width", c.CatWidth}, {"vocab_size", c.VocabSize}, {"seq_len", c.SeqLen},
		{"num_classes", c.NumClasses}, {"cat_units", c.CatUnits}, {"embed_dim", c.EmbedDim},
		{"lstm_units", c.LSTMUnits}, {"hidden1", c.Hidden1}, {"hidden2", c.Hidden2},
	}
	for _, d := range dims {
		if d.v <= 0 {
			return fmt.Errorf("nn: config %s must be positive, got %d", d.name, d.v)
		}
	}
	if c.SpatialDropout < 0 || c.SpatialDropout >= 1 || c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("nn: dropout rates must be in [0,1)")
	}
	return nil
}

// Model is the dual-branch classifier.
//
//	cat → Dense(relu) ─────────────────────────────────────┐
//	seq → Embedding → SpatialDropout → BatchNorm → LSTM ───┴→ concat →
//	  Dense(relu) → Dropout → BatchNorm → Dense(relu) → Dropout → BatchNorm → Dense(softmax)
//
// Predict does not mutate the model and may be called concurrently.
// Training is single-threaded.
type Model struct {
	cfg Config
	rng *rand.Rand

	catDense *dense
	embed    *embedding
	spDrop   *spatialDropout
	embNorm  *batchNorm
	lstm     *lstm
	fc1      *dense
	drop1    *dropout
	norm1    *batchNorm
	fc2      *dense
	drop2    *dropout
	norm2    *batchNorm
	out      *dense
}

// New builds a model with freshly initialised weights.
func New(cfg Config) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	fused := cfg.CatUnits + cfg.LSTMUnits
	m := &Model{
		cfg:      cfg,
		rng:      rng,
		catDense: newDense("cat_dense", cfg.CatWidth, cfg.CatUnits, true, rng),
		embed:    newEmbedding("embedding", cfg.VocabSize, cfg.EmbedDim, rng),
		spDrop:   &spatialDropout{rate: cfg.SpatialDropout, steps: cfg.SeqLen},
		embNorm:  newBatchNorm("embedding_norm", cfg.EmbedDim),
		lstm:     newLSTM("lstm", cfg.EmbedDim, cfg.LSTMUnits, cfg.SeqLen, rng),
		fc1:      newDense("fc1", fused, cfg.Hidden1, true, rng),
		drop1:    &dropout{rate: cfg.Dropout},
		norm1:    newBatchNorm("norm1", cfg.Hidden1),
		fc2:      newDense("fc2", cfg.Hidden1, cfg.Hidden2, true, rng),
		drop2:    &dropout{rate: cfg.Dropout},
		norm2:    newBatchNorm("norm2", cfg.Hidden2),
		out:      newDense("output", cfg.Hidden2, cfg.NumClasses, false, rng),
	}
	m.catDense.noInputGrad = true
	return m, nil
}

// Config returns the model geometry.
func (m *Model) Config() Config {
	return m.cfg
}

// Params returns every weight buffer in a stable order, including
// non-trainable batch-norm statistics.
func (m *Model) Params() []*Param {
	var ps []*Param
	ps = append(ps, m.catDense.params()...)
	ps = append(ps, m.embed.params()...)
	ps = append(ps, m.embNorm.params()...)
	ps = append(ps, m.lstm.params()...)
	ps = append(ps, m.fc1.params()...)
	ps = append(ps, m.norm1.params()...)
	ps = append(ps, m.fc2.params()...)
	ps = append(ps, m.norm2.params()...)
	ps = append(ps, m.out.params()...)
	return ps
}

func (m *Model) checkInputs(cat *tensor.Matrix, seq [][]int) ([]int, error) {
	if cat.Cols != m.cfg.CatWidth {
		return nil, fmt.Errorf("%w: categorical width %d, want %d", ErrShapeMismatch, cat.Cols, m.cfg.CatWidth)
	}
	if cat.Rows != len(seq) {
		return nil, fmt.Errorf("%w: %d categorical rows vs %d sequences", ErrShapeMismatch, cat.Rows, len(seq))
	}
	ids := make([]int, 0, len(seq)*m.cfg.SeqLen)
	for i, s := range seq {
		if len(s) != m.cfg.SeqLen {
			return nil, fmt.Errorf("%w: sequence %d has length %d, want %d", ErrShapeMismatch, i, len(s), m.cfg.SeqLen)
		}
		for _, id := range s {
			if id < 0 || id >= m.cfg.VocabSize {
				return nil, fmt.Errorf("%w: sequence %d token id %d outside vocabulary of %d", ErrShapeMismatch, i, id, m.cfg.VocabSize)
			}
		}
		ids = append(ids, s...)
	}
	return ids, nil
}

// forward returns class probabilities. With train set, layers cache
// activations for backward and dropout/batch statistics are live.
func (m *Model) forward(cat *tensor.Matrix, ids []int, train bool) *tensor.Matrix {
	a := m.catDense.forward(cat, train)

	e := m.embed.forward(ids, train)
	e = m.spDrop.forward(e, train, m.rng)
	e = m.embNorm.forward(e, train)
	b := m.lstm.forward(e, train)

	x, _ := tensor.HStack(a, b)
	x = m.fc1.forward(x, train)
	x = m.drop1.forward(x, train, m.rng)
	x = m.norm1.forward(x, train)
	x = m.fc2.forward(x, train)
	x = m.drop2.forward(x, train, m.rng)
	x = m.norm2.forward(x, train)
	x = m.out.forward(x, train)
	softmax(x)
	return x
}

// backward propagates dLogits (softmax + cross-entropy gradient) and
// accumulates parameter gradients.
func (m *Model) backward(dLogits *tensor.Matrix) {
	g := m.out.backward(dLogits)
	g = m.norm2.backward(g)
	g = m.drop2.backward(g)
	g = m.fc2.backward(g)
	g = m.norm1.backward(g)
	g = m.drop1.backward(g)
	g = m.fc1.backward(g)

	ga := tensor.New(g.Rows, m.cfg.CatUnits)
	gb := tensor.New(g.Rows, m.cfg.LSTMUnits)
	for i := 0; i < g.Rows; i++ {
		row := g.Row(i)
		copy(ga.Row(i), row[:m.cfg.CatUnits])
		copy(gb.Row(i), row[m.cfg.CatUnits:])
	}
	m.catDense.backward(ga)

	ge := m.lstm.backward(gb)
	ge = m.embNorm.backward(ge)
	ge = m.spDrop.backward(ge)
	m.embed.backward(ge)
}

func (m *Model) zeroGrad() {
	for _, p := range m.Params() {
		if p.Trainable {
			p.zeroGrad()
		}
	}
}

const predictBatch = 256

// Predict returns a len(seq) × NumClasses matrix of probabilities whose rows sum to 1.
func (m *Model) Predict(cat *tensor.Matrix, seq [][]int) (*tensor.Matrix, error) {
	ids, err := m.checkInputs(cat, seq)
	if err != nil {
		return nil, err
	}
	out := tensor.New(cat.Rows, m.cfg.NumClasses)
	for start := 0; start < cat.Rows; start += predictBatch {
		end := min(start+predictBatch, cat.Rows)
		batch := &tensor.Matrix{Rows: end - start, Cols: cat.Cols, Data: cat.Data[start*cat.Cols : end*cat.Cols]}
		probs := m.forward(batch, ids[start*m.cfg.SeqLen:end*m.cfg.SeqLen], false)
		copy(out.Data[start*m.cfg.NumClasses:], probs.Data)
	}
	return out, nil
}

// Close implements Predictor.
func (m *Model) Close() error { return nil }
