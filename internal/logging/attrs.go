package logging

// Attribute keys shared by the pipeline stages. Names are hierarchical so
// text and JSON logs can be filtered by prefix.
const (
	// StageKey names the pipeline stage: "prepare", "train", "evaluate", "predict".
	StageKey = "ml.stage"
	// RunIDKey identifies one training run; it is also stored in checkpoint metadata.
	RunIDKey = "ml.run_id"

	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ClassesKey  = "data.classes"
	DroppedKey  = "data.dropped"
	VocabKey    = "data.vocab_size"
	ColumnKey   = "data.column"
	PathKey     = "data.path"

	EpochKey        = "train.epoch"
	LossKey         = "train.loss"
	AccuracyKey     = "train.accuracy"
	ValLossKey      = "train.val_loss"
	ValAccuracyKey  = "train.val_accuracy"
	LearningRateKey = "train.learning_rate"
	BatchSizeKey    = "train.batch_size"

	// DurationKey records wall time of a stage or epoch.
	DurationKey = "perf.duration"
)
