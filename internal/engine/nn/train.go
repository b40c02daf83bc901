package nn

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/crimson-sun/repairclass/internal/engine/tensor"
	"github.com/crimson-sun/repairclass/internal/logging"
)

// Dataset holds the aligned model inputs and one-hot targets.
type Dataset struct {
	Cat *tensor.Matrix
	Seq [][]int
	Y   *tensor.Matrix
}

// Len returns the number of samples.
func (d Dataset) Len() int { return len(d.Seq) }

// Subset gathers the samples at idx.
func (d Dataset) Subset(idx []int) Dataset {
	seq := make([][]int, len(idx))
	for i, r := range idx {
		seq[i] = d.Seq[r]
	}
	return Dataset{Cat: d.Cat.SelectRows(idx), Seq: seq, Y: d.Y.SelectRows(idx)}
}

// SplitTail holds out the last frac of samples, before any shuffling.
func (d Dataset) SplitTail(frac float64) (train, val Dataset) {
	n := d.Len()
	cut := int(float64(n) * (1 - frac))
	trainIdx := make([]int, cut)
	for i := range trainIdx {
		trainIdx[i] = i
	}
	valIdx := make([]int, n-cut)
	for i := range valIdx {
		valIdx[i] = cut + i
	}
	return d.Subset(trainIdx), d.Subset(valIdx)
}

func (d Dataset) check(cfg Config) error {
	if d.Len() == 0 {
		return fmt.Errorf("nn: empty dataset")
	}
	if d.Cat.Rows != d.Len() || d.Y.Rows != d.Len() {
		return fmt.Errorf("%w: %d categorical rows, %d sequences, %d targets",
			ErrShapeMismatch, d.Cat.Rows, d.Len(), d.Y.Rows)
	}
	if d.Y.Cols != cfg.NumClasses {
		return fmt.Errorf("%w: target width %d, want %d", ErrShapeMismatch, d.Y.Cols, cfg.NumClasses)
	}
	return nil
}

// TrainConfig controls the optimisation loop.
type TrainConfig struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	LearningRate    float64

	// ReduceLR* implement reduce-on-plateau over the monitored loss.
	ReduceLRFactor   float64
	ReduceLRPatience int
	MinLearningRate  float64

	// EarlyStopPatience stops after this many epochs without improvement; 0 disables.
	EarlyStopPatience int
	Shuffle           bool
	Seed              int64
}

// DefaultTrainConfig mirrors the reference training run.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:            20,
		BatchSize:         32,
		ValidationSplit:   0.2,
		LearningRate:      1e-3,
		ReduceLRFactor:    0.1,
		ReduceLRPatience:  5,
		MinLearningRate:   1e-5,
		EarlyStopPatience: 10,
		Shuffle:           true,
		Seed:              42,
	}
}

// EpochStats summarises one epoch. Val fields are NaN without a validation split.
type EpochStats struct {
	Epoch        int
	Loss         float64
	Accuracy     float64
	ValLoss      float64
	ValAccuracy  float64
	LearningRate float64
	Improved     bool
	Duration     time.Duration
}

// monitored is the loss that drives checkpoints and schedules.
func (s EpochStats) monitored() float64 {
	if math.IsNaN(s.ValLoss) {
		return s.Loss
	}
	return s.ValLoss
}

// History is the outcome of Fit.
type History struct {
	Epochs       []EpochStats
	BestEpoch    int
	BestLoss     float64
	StoppedEarly bool
}

// CheckpointFunc is called whenever the monitored loss improves.
type CheckpointFunc func(m *Model, stats EpochStats) error

// Trainer runs minibatch training of a Model.
type Trainer struct {
	model    *Model
	cfg      TrainConfig
	opt      *Adam
	rng      *rand.Rand
	logger   *slog.Logger
	progress io.Writer
	onBest   CheckpointFunc
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithLogger sets the logger for per-epoch summaries.
func WithLogger(l *slog.Logger) TrainerOption {
	return func(t *Trainer) { t.logger = l }
}

// WithProgress renders a per-epoch progress bar to w.
func WithProgress(w io.Writer) TrainerOption {
	return func(t *Trainer) { t.progress = w }
}

// WithCheckpoint registers fn to persist the best model.
func WithCheckpoint(fn CheckpointFunc) TrainerOption {
	return func(t *Trainer) { t.onBest = fn }
}

// NewTrainer creates a Trainer for m.
func NewTrainer(m *Model, cfg TrainConfig, opts ...TrainerOption) *Trainer {
	t := &Trainer{
		model:  m,
		cfg:    cfg,
		opt:    NewAdam(cfg.LearningRate),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Fit trains on data, holding out the tail for validation.
func (t *Trainer) Fit(ctx context.Context, data Dataset) (*History, error) {
	if err := data.check(t.model.cfg); err != nil {
		return nil, err
	}
	if t.cfg.Epochs <= 0 || t.cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("nn: epochs and batch size must be positive")
	}
	train, val := data.SplitTail(t.cfg.ValidationSplit)
	if train.Len() == 0 {
		return nil, fmt.Errorf("nn: validation split %.2f leaves no training samples", t.cfg.ValidationSplit)
	}
	trainIDs, err := t.model.checkInputs(train.Cat, train.Seq)
	if err != nil {
		return nil, err
	}
	t.logger.Info("training started",
		logging.SamplesKey, train.Len(),
		"validation_samples", val.Len(),
		logging.BatchSizeKey, t.cfg.BatchSize,
		logging.LearningRateKey, t.opt.LearningRate,
	)

	hist := &History{BestLoss: math.Inf(1), BestEpoch: -1}
	plateauBest := math.Inf(1)
	plateauWait, stopWait := 0, 0
	order := make([]int, train.Len())
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		start := time.Now()
		if t.cfg.Shuffle {
			t.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		loss, acc, err := t.runEpoch(ctx, epoch, train, trainIDs, order)
		if err != nil {
			return hist, err
		}
		stats := EpochStats{
			Epoch:        epoch,
			Loss:         loss,
			Accuracy:     acc,
			ValLoss:      math.NaN(),
			ValAccuracy:  math.NaN(),
			LearningRate: t.opt.LearningRate,
		}
		if val.Len() > 0 {
			stats.ValLoss, stats.ValAccuracy, err = t.Evaluate(val)
			if err != nil {
				return hist, err
			}
		}
		stats.Duration = time.Since(start)

		cur := stats.monitored()
		if cur < hist.BestLoss {
			stats.Improved = true
			hist.BestLoss = cur
			hist.BestEpoch = epoch
			stopWait = 0
			if t.onBest != nil {
				if err := t.onBest(t.model, stats); err != nil {
					return hist, fmt.Errorf("nn: checkpoint at epoch %d: %w", epoch, err)
				}
			}
		} else {
			stopWait++
		}
		hist.Epochs = append(hist.Epochs, stats)
		t.logEpoch(stats)

		t.reduceOnPlateau(cur, &plateauBest, &plateauWait)

		if t.cfg.EarlyStopPatience > 0 && stopWait >= t.cfg.EarlyStopPatience {
			hist.StoppedEarly = true
			t.logger.Info("early stopping", logging.EpochKey, epoch, "best_epoch", hist.BestEpoch)
			break
		}
	}
	return hist, nil
}

// reduceOnPlateau scales the learning rate down after ReduceLRPatience epochs
// without an improvement larger than 1e-4.
func (t *Trainer) reduceOnPlateau(cur float64, best *float64, wait *int) {
	if t.cfg.ReduceLRPatience <= 0 || t.cfg.ReduceLRFactor <= 0 {
		return
	}
	if cur < *best-1e-4 {
		*best = cur
		*wait = 0
		return
	}
	*wait++
	if *wait < t.cfg.ReduceLRPatience {
		return
	}
	*wait = 0
	if t.opt.LearningRate <= t.cfg.MinLearningRate {
		return
	}
	next := math.Max(t.opt.LearningRate*t.cfg.ReduceLRFactor, t.cfg.MinLearningRate)
	t.logger.Info("reducing learning rate", "from", t.opt.LearningRate, "to", next)
	t.opt.LearningRate = next
}

func (t *Trainer) runEpoch(ctx context.Context, epoch int, train Dataset, ids []int, order []int) (loss, acc float64, err error) {
	n := train.Len()
	batches := (n + t.cfg.BatchSize - 1) / t.cfg.BatchSize
	bar := t.newBar(epoch, batches)

	seqLen := t.model.cfg.SeqLen
	var lossSum float64
	var hits int
	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		idx := order[b*t.cfg.BatchSize : min((b+1)*t.cfg.BatchSize, n)]
		batchIDs := make([]int, 0, len(idx)*seqLen)
		for _, r := range idx {
			batchIDs = append(batchIDs, ids[r*seqLen:(r+1)*seqLen]...)
		}
		cat := train.Cat.SelectRows(idx)
		y := train.Y.SelectRows(idx)

		t.model.zeroGrad()
		probs := t.model.forward(cat, batchIDs, true)
		l, h, grad := crossEntropy(probs, y)
		t.model.backward(grad)
		t.opt.Step(t.model.Params())

		lossSum += l * float64(len(idx))
		hits += h
		if bar != nil {
			if err := bar.Add(1); err != nil {
				t.logger.Warn("failed to update progress bar", "error", err)
			}
		}
	}
	if bar != nil {
		if err := bar.Finish(); err != nil {
			t.logger.Warn("failed to finish progress bar", "error", err)
		}
	}
	return lossSum / float64(n), float64(hits) / float64(n), nil
}

// Evaluate returns mean cross-entropy and accuracy on d without updating weights.
func (t *Trainer) Evaluate(d Dataset) (loss, acc float64, err error) {
	probs, err := t.model.Predict(d.Cat, d.Seq)
	if err != nil {
		return 0, 0, err
	}
	l, hits, _ := crossEntropy(probs, d.Y)
	return l, float64(hits) / float64(d.Len()), nil
}

func (t *Trainer) newBar(epoch, batches int) *progressbar.ProgressBar {
	if t.progress == nil {
		return nil
	}
	return progressbar.NewOptions(batches,
		progressbar.OptionSetWriter(t.progress),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription(fmt.Sprintf("epoch %d/%d", epoch, t.cfg.Epochs)),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(t.progress)
		}),
	)
}

func (t *Trainer) logEpoch(s EpochStats) {
	attrs := []any{
		logging.EpochKey, s.Epoch,
		logging.LossKey, s.Loss,
		logging.AccuracyKey, s.Accuracy,
		logging.LearningRateKey, s.LearningRate,
		logging.DurationKey, s.Duration.Round(time.Millisecond),
	}
	if !math.IsNaN(s.ValLoss) {
		attrs = append(attrs, logging.ValLossKey, s.ValLoss, logging.ValAccuracyKey, s.ValAccuracy)
	}
	if s.Improved {
		attrs = append(attrs, "improved", true)
	}
	t.logger.Info("epoch complete", attrs...)
}
