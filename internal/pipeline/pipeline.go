// Package pipeline runs the offline stages over a dataset file: prepare
// (normalize, fit encoders, persist), train, evaluate and predict.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/crimson-sun/repairclass/internal/config"
	"github.com/crimson-sun/repairclass/internal/dataset"
	"github.com/crimson-sun/repairclass/internal/engine"
	"github.com/crimson-sun/repairclass/internal/engine/evaluate"
	"github.com/crimson-sun/repairclass/internal/engine/nn"
	"github.com/crimson-sun/repairclass/internal/engine/textnorm"
	"github.com/crimson-sun/repairclass/internal/logging"
	"github.com/crimson-sun/repairclass/internal/model"
	"github.com/crimson-sun/repairclass/internal/output"
	"github.com/crimson-sun/repairclass/internal/output/report"
	"github.com/crimson-sun/repairclass/internal/storage"
)

// Pipeline wires configuration, the text normalizer and the artifact store.
type Pipeline struct {
	cfg      config.Config
	art      Artifacts
	text     *textnorm.Normalizer
	settings TextSettings
	logger   *slog.Logger
	progress io.Writer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithProgress renders per-epoch training progress to w when train.progress is set.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) { p.progress = w }
}

// New builds a Pipeline from cfg. The text normalizer is assembled here so
// every stage cleans text the same way.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:    cfg,
		art:    Artifacts{Dir: cfg.Artifacts.Dir},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	text, err := NewNormalizer(cfg.Text)
	if err != nil {
		return nil, fail(StageConfig, err)
	}
	p.text = text
	if p.settings, err = NewTextSettings(cfg.Text); err != nil {
		return nil, fail(StageConfig, err)
	}
	return p, nil
}

// NewNormalizer builds the text normalizer described by cfg.
func NewNormalizer(cfg config.TextConfig) (*textnorm.Normalizer, error) {
	lem, err := textnorm.NewLemmatizer(cfg.Lemmatizer, cfg.DictionaryPath)
	if err != nil {
		return nil, err
	}
	sw, err := textnorm.LoadStopWords(cfg.StopWordsPath, textnorm.DefaultKeep)
	if err != nil {
		return nil, err
	}
	return textnorm.New(lem, sw), nil
}

// Artifacts returns the artifact locations.
func (p *Pipeline) Artifacts() Artifacts {
	return p.art
}

// Prepared is the output of the prepare stage: complete records aligned with
// their features and class codes.
type Prepared struct {
	Records  []model.RepairRecord
	Prep     *engine.Preprocessor
	Features engine.Features
	Targets  []int
	Stats    dataset.Stats
}

// Prepare loads the dataset, fits the encoders and vocabulary, and persists
// them together with the cleaned texts and the processed table.
func (p *Pipeline) Prepare(ctx context.Context) (*Prepared, error) {
	start := time.Now()
	log := p.logger.With(logging.StageKey, string(StagePrepare))

	if err := p.art.Ensure(); err != nil {
		return nil, fail(StagePrepare, err)
	}
	records, stats, err := p.load(ctx, log, false)
	if err != nil {
		return nil, fail(StagePrepare, err)
	}
	texts, err := p.cleanTexts(records, log)
	if err != nil {
		return nil, fail(StagePrepare, err)
	}

	prep, err := engine.Fit(records, texts, p.text, engine.FitOptions{
		MaxWords: p.cfg.Text.MaxWords,
		MaxLen:   p.cfg.Text.MaxLen,
	})
	if err != nil {
		return nil, fail(StagePrepare, err)
	}
	features := prep.FeaturesFromTexts(records, texts)
	targets, err := prep.Targets(records)
	if err != nil {
		return nil, fail(StagePrepare, err)
	}

	for _, c := range prep.Labels.Distribution(targets) {
		log.Info("class distribution", "category", c.Class, logging.SamplesKey, c.Count)
	}

	if err := p.art.SavePreprocessor(prep, p.settings); err != nil {
		return nil, fail(StagePrepare, err)
	}
	if err := p.saveProcessed(ctx, prep, features, targets); err != nil {
		return nil, fail(StagePrepare, err)
	}

	log.Info("prepare complete",
		logging.SamplesKey, len(records),
		logging.FeaturesKey, prep.Codes.Width(),
		logging.VocabKey, prep.Vocab.Size(),
		logging.ClassesKey, prep.Labels.Len(),
		logging.DurationKey, time.Since(start),
	)
	return &Prepared{
		Records:  records,
		Prep:     prep,
		Features: features,
		Targets:  targets,
		Stats:    stats,
	}, nil
}

// Reload rebuilds the prepare output from persisted encoders instead of
// refitting them. Records whose category was not seen at fit time fail.
func (p *Pipeline) Reload(ctx context.Context) (*Prepared, error) {
	log := p.logger.With(logging.StageKey, string(StageEvaluate))
	prep, err := p.art.LoadPreprocessor(p.text, p.settings)
	if err != nil {
		return nil, fail(StageEvaluate, err)
	}
	records, stats, err := p.load(ctx, log, false)
	if err != nil {
		return nil, fail(StageEvaluate, err)
	}
	texts, err := p.cleanTexts(records, log)
	if err != nil {
		return nil, fail(StageEvaluate, err)
	}
	targets, err := prep.Targets(records)
	if err != nil {
		return nil, fail(StageEvaluate, fmt.Errorf("%w: %v", ErrArtifactMismatch, err))
	}
	return &Prepared{
		Records:  records,
		Prep:     prep,
		Features: prep.FeaturesFromTexts(records, texts),
		Targets:  targets,
		Stats:    stats,
	}, nil
}

func (p *Pipeline) load(ctx context.Context, log *slog.Logger, unlabeled bool) ([]model.RepairRecord, dataset.Stats, error) {
	records, stats, err := dataset.Load(ctx, p.cfg.Data.Path, dataset.Options{
		Sheet:     p.cfg.Data.Sheet,
		Comma:     p.cfg.Data.Comma(),
		Unlabeled: unlabeled,
	})
	if err != nil {
		return nil, stats, err
	}
	for col, n := range stats.Missing {
		log.Warn("rows missing mandatory field", logging.ColumnKey, col, logging.DroppedKey, n)
	}
	log.Info("dataset loaded",
		logging.PathKey, p.cfg.Data.Path,
		"rows", stats.Total,
		logging.SamplesKey, stats.Kept,
		logging.DroppedKey, stats.Dropped,
	)
	if len(records) == 0 {
		return nil, stats, ErrEmptyDataset
	}
	return records, stats, nil
}

// cleanTexts reuses the persisted cleaned texts when they were produced from
// the same raw texts with the same normalizer settings, and otherwise
// normalizes and persists them.
func (p *Pipeline) cleanTexts(records []model.RepairRecord, log *slog.Logger) ([]string, error) {
	joined := make([]string, len(records))
	for i, r := range records {
		joined[i] = textnorm.JoinTexts(r.Symptom, r.Fault)
	}
	digest := corpusDigest(p.settings, joined)

	path := p.art.CleanedTexts()
	if cached, ok := p.cachedTexts(digest, len(records), log); ok {
		log.Info("reusing cleaned texts", logging.PathKey, path)
		return cached, nil
	}

	texts := p.text.NormalizeAll(joined)
	if err := p.art.Ensure(); err != nil {
		return nil, err
	}
	// The digest is written last: no digest, no cache.
	if err := os.Remove(p.art.CleanedDigest()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("artifacts: %w", err)
	}
	if err := textnorm.WriteCorpus(path, texts); err != nil {
		return nil, err
	}
	if err := writeDigest(p.art.CleanedDigest(), digest); err != nil {
		return nil, err
	}
	return texts, nil
}

func (p *Pipeline) cachedTexts(digest string, n int, log *slog.Logger) ([]string, bool) {
	path := p.art.CleanedTexts()
	stored, err := readDigest(p.art.CleanedDigest())
	if err != nil {
		log.Warn("cleaned texts digest unreadable, recomputing", logging.PathKey, path, "error", err)
		return nil, false
	}
	if stored == "" {
		return nil, false
	}
	if stored != digest {
		log.Info("cleaned texts built from other input, recomputing", logging.PathKey, path)
		return nil, false
	}
	cached, err := textnorm.ReadCorpus(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("cleaned texts unreadable, recomputing", logging.PathKey, path, "error", err)
		}
		return nil, false
	}
	if len(cached) != n {
		log.Warn("cleaned texts out of date, recomputing",
			logging.PathKey, path, "lines", len(cached), logging.SamplesKey, n)
		return nil, false
	}
	return cached, true
}

func (p *Pipeline) saveProcessed(ctx context.Context, prep *engine.Preprocessor, f engine.Features, targets []int) error {
	store, err := storage.NewSQLiteStorage(ctx, p.art.ProcessedDB())
	if err != nil {
		return err
	}
	defer store.Close()

	books := prep.Codes.CodeBooks()
	rows := make([]storage.ProcessedRecord, len(f.Records))
	for i, r := range f.Records {
		rows[i] = storage.ProcessedRecord{
			Row:          r.Row,
			Symptom:      r.Symptom,
			Fault:        r.Fault,
			Text:         f.Texts[i],
			Codes:        books.Encode(r),
			Category:     r.Category,
			CategoryCode: targets[i],
		}
	}
	return store.SaveProcessed(ctx, rows, prep.Codes.State())
}

// ModelConfig sizes a classifier for prep using the configured layer widths.
func ModelConfig(cfg config.ModelConfig, prep *engine.Preprocessor) nn.Config {
	return nn.Config{
		CatWidth:       prep.Codes.Width(),
		VocabSize:      prep.Vocab.Size(),
		SeqLen:         prep.MaxLen,
		NumClasses:     prep.Labels.Len(),
		CatUnits:       cfg.CatUnits,
		EmbedDim:       cfg.EmbedDim,
		LSTMUnits:      cfg.LSTMUnits,
		Hidden1:        cfg.Hidden1,
		Hidden2:        cfg.Hidden2,
		SpatialDropout: float32(cfg.SpatialDropout),
		Dropout:        float32(cfg.Dropout),
		Seed:           cfg.Seed,
	}
}

// TrainConfig converts the configured schedule.
func TrainConfig(cfg config.TrainConfig) nn.TrainConfig {
	return nn.TrainConfig{
		Epochs:            cfg.Epochs,
		BatchSize:         cfg.BatchSize,
		ValidationSplit:   cfg.ValidationSplit,
		LearningRate:      cfg.LearningRate,
		ReduceLRFactor:    cfg.ReduceLRFactor,
		ReduceLRPatience:  cfg.ReduceLRPatience,
		MinLearningRate:   cfg.MinLearningRate,
		EarlyStopPatience: cfg.EarlyStopPatience,
		Shuffle:           cfg.Shuffle,
		Seed:              cfg.Seed,
	}
}

// TrainResult is the output of the train stage.
type TrainResult struct {
	RunID   string
	History *nn.History
	// Model holds the final weights.
	Model *nn.Model
}

// Train fits a fresh classifier on prepared data, checkpointing the best
// monitored loss and the final weights, and records the run.
func (p *Pipeline) Train(ctx context.Context, prepared *Prepared) (*TrainResult, error) {
	started := time.Now()
	runID := uuid.NewString()
	log := p.logger.With(logging.StageKey, string(StageTrain), logging.RunIDKey, runID)

	m, err := nn.New(ModelConfig(p.cfg.Model, prepared.Prep))
	if err != nil {
		return nil, fail(StageTrain, err)
	}
	y, err := prepared.Prep.Labels.OneHot(prepared.Targets)
	if err != nil {
		return nil, fail(StageTrain, err)
	}
	data := nn.Dataset{Cat: prepared.Features.Cat, Seq: prepared.Features.Seq, Y: y}

	best := p.art.Checkpoint(BestCheckpoint)
	opts := []nn.TrainerOption{
		nn.WithLogger(log),
		nn.WithCheckpoint(func(m *nn.Model, s nn.EpochStats) error {
			return m.Save(best, checkpointMeta(runID, s.Epoch))
		}),
	}
	if p.cfg.Train.Progress && p.progress != nil {
		opts = append(opts, nn.WithProgress(p.progress))
	}
	hist, err := nn.NewTrainer(m, TrainConfig(p.cfg.Train), opts...).Fit(ctx, data)
	if err != nil {
		return nil, fail(StageTrain, err)
	}

	last := hist.Epochs[len(hist.Epochs)-1]
	if err := m.Save(p.art.Checkpoint(FinalCheckpoint), checkpointMeta(runID, last.Epoch)); err != nil {
		return nil, fail(StageTrain, err)
	}

	run := storage.Run{
		ID:         runID,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Samples:    data.Len(),
		Classes:    prepared.Prep.Labels.Len(),
		Epochs:     len(hist.Epochs),
		BestEpoch:  hist.BestEpoch,
		BestLoss:   hist.BestLoss,
		FinalLoss:  last.Loss,
	}
	if err := p.saveRun(ctx, run); err != nil {
		return nil, fail(StageTrain, err)
	}

	log.Info("training complete",
		"epochs", len(hist.Epochs),
		"best_epoch", hist.BestEpoch,
		"best_loss", hist.BestLoss,
		"stopped_early", hist.StoppedEarly,
		logging.DurationKey, time.Since(started),
	)
	return &TrainResult{RunID: runID, History: hist, Model: m}, nil
}

func checkpointMeta(runID string, epoch int) map[string]string {
	return map[string]string{
		nn.MetaRunID: runID,
		nn.MetaEpoch: fmt.Sprint(epoch),
	}
}

func (p *Pipeline) saveRun(ctx context.Context, run storage.Run) error {
	store, err := storage.NewSQLiteStorage(ctx, p.art.ProcessedDB())
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveRun(ctx, run)
}

// OpenPredictor loads the configured backend: the native checkpoint named by
// artifacts.checkpoint, or the ONNX export.
func (p *Pipeline) OpenPredictor(prep *engine.Preprocessor) (nn.Predictor, error) {
	switch p.cfg.Model.Backend {
	case "onnx":
		pred, err := nn.NewONNXPredictor(p.cfg.Model.ONNXPath, p.cfg.Model.ONNXLibrary, prep.Codes.Width(), prep.MaxLen)
		if err != nil {
			return nil, err
		}
		if pred.Classes() != prep.Labels.Len() {
			pred.Close()
			return nil, fmt.Errorf("%w: onnx model has %d classes, encoders %d",
				ErrArtifactMismatch, pred.Classes(), prep.Labels.Len())
		}
		return pred, nil
	default:
		path := p.art.Checkpoint(p.cfg.Artifacts.Checkpoint)
		m, _, err := nn.Load(path)
		if err != nil {
			return nil, err
		}
		if err := checkGeometry(m.Config(), prep); err != nil {
			return nil, err
		}
		return m, nil
	}
}

func checkGeometry(c nn.Config, prep *engine.Preprocessor) error {
	switch {
	case c.CatWidth != prep.Codes.Width():
		return fmt.Errorf("%w: checkpoint expects %d categorical columns, encoders give %d",
			ErrArtifactMismatch, c.CatWidth, prep.Codes.Width())
	case c.VocabSize != prep.Vocab.Size():
		return fmt.Errorf("%w: checkpoint vocabulary %d, %s %d",
			ErrArtifactMismatch, c.VocabSize, VocabFile, prep.Vocab.Size())
	case c.SeqLen != prep.MaxLen:
		return fmt.Errorf("%w: checkpoint sequence length %d, encoders %d",
			ErrArtifactMismatch, c.SeqLen, prep.MaxLen)
	case c.NumClasses != prep.Labels.Len():
		return fmt.Errorf("%w: checkpoint has %d classes, encoders %d",
			ErrArtifactMismatch, c.NumClasses, prep.Labels.Len())
	}
	return nil
}

// OpenEngine loads the persisted preprocessing state and the configured
// predictor. The caller closes the engine.
func (p *Pipeline) OpenEngine() (*engine.Engine, error) {
	prep, err := p.art.LoadPreprocessor(p.text, p.settings)
	if err != nil {
		return nil, err
	}
	pred, err := p.OpenPredictor(prep)
	if err != nil {
		return nil, err
	}
	return engine.New(prep, pred), nil
}

// Evaluate scores predictor over the prepared records and writes the text
// report to output.report_path when set.
func (p *Pipeline) Evaluate(ctx context.Context, prepared *Prepared, predictor nn.Predictor) (*evaluate.Report, []model.Prediction, error) {
	start := time.Now()
	log := p.logger.With(logging.StageKey, string(StageEvaluate))
	if err := ctx.Err(); err != nil {
		return nil, nil, fail(StageEvaluate, err)
	}

	eng := engine.New(prepared.Prep, predictor)
	preds, err := eng.Predict(prepared.Features)
	if err != nil {
		return nil, nil, fail(StageEvaluate, err)
	}
	predicted := make([]int, len(preds))
	for i, pr := range preds {
		if predicted[i], err = prepared.Prep.Labels.Code(pr.Category); err != nil {
			return nil, nil, fail(StageEvaluate, err)
		}
	}
	rep, err := evaluate.Evaluate(prepared.Prep.Labels.Classes(), prepared.Targets, predicted)
	if err != nil {
		return nil, nil, fail(StageEvaluate, err)
	}

	for _, c := range rep.PerClass {
		log.Debug("class metrics",
			"category", c.Class,
			"support", c.Support,
			"precision", c.Precision,
			"recall", c.Recall,
			"f1", c.F1,
			"dominant", c.Dominant,
			"dominant_share", c.DominantShare,
		)
	}
	log.Info("evaluation complete",
		logging.SamplesKey, rep.Samples,
		"micro_f1", rep.MicroF1,
		"macro_f1", rep.MacroF1,
		"mean_diagonal", rep.MeanDiagonal,
		"mismatched", len(rep.Mismatches),
		"mse", rep.MSE,
		logging.DurationKey, time.Since(start),
	)

	if path := p.cfg.Output.ReportPath; path != "" {
		if err := writeReport(path, rep); err != nil {
			return nil, nil, fail(StageEvaluate, err)
		}
		log.Info("report written", logging.PathKey, path)
	}
	return rep, preds, nil
}

func writeReport(path string, rep *evaluate.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := report.Render(f, rep, report.Options{MaxMismatches: -1}); err != nil {
		f.Close()
		return fmt.Errorf("report: %w", err)
	}
	return f.Close()
}

// RunResult collects the outputs of a full run.
type RunResult struct {
	Prepared *Prepared
	Train    *TrainResult
	Report   *evaluate.Report
}

// Run executes prepare, train and evaluate. Evaluation uses the checkpoint
// selected by artifacts.checkpoint.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	prepared, err := p.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	trained, err := p.Train(ctx, prepared)
	if err != nil {
		return nil, err
	}

	var pred nn.Predictor = trained.Model
	if p.cfg.Artifacts.Checkpoint == BestCheckpoint && trained.History.BestEpoch > 0 {
		best, _, err := nn.Load(p.art.Checkpoint(BestCheckpoint))
		if err != nil {
			return nil, fail(StageEvaluate, err)
		}
		pred = best
	}
	rep, _, err := p.Evaluate(ctx, prepared, pred)
	if err != nil {
		return nil, err
	}
	return &RunResult{Prepared: prepared, Train: trained, Report: rep}, nil
}

// Predict classifies every record of the dataset, labelled or not, and writes
// the predictions to out as one batch. It returns the number written.
func (p *Pipeline) Predict(ctx context.Context, out output.Output) (int, error) {
	log := p.logger.With(logging.StageKey, string(StagePredict))
	eng, err := p.OpenEngine()
	if err != nil {
		return 0, fail(StagePredict, err)
	}
	defer eng.Close()

	records, _, err := p.load(ctx, log, true)
	if err != nil {
		return 0, fail(StagePredict, err)
	}
	preds, err := eng.ClassifyBatch(records)
	if err != nil {
		return 0, fail(StagePredict, err)
	}
	n, err := output.WriteAll(ctx, out, preds)
	if err != nil {
		return n, fail(StagePredict, err)
	}
	log.Info("predictions written", logging.SamplesKey, n)
	return n, nil
}
