package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// REPAIRCLASS_TRAIN_EPOCHS for train.epochs.
const EnvPrefix = "REPAIRCLASS"

// Config holds all repairclass configuration.
type Config struct {
	Data      DataConfig      `mapstructure:"data" yaml:"data"`
	Text      TextConfig      `mapstructure:"text" yaml:"text"`
	Model     ModelConfig     `mapstructure:"model" yaml:"model"`
	Train     TrainConfig     `mapstructure:"train" yaml:"train"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// DataConfig locates the input dataset.
type DataConfig struct {
	Path      string `mapstructure:"path" yaml:"path"`
	Sheet     string `mapstructure:"sheet" yaml:"sheet"`         // xlsx only; first sheet when empty
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter"` // csv only
}

// TextConfig controls text normalization and sequence encoding.
type TextConfig struct {
	Lemmatizer     string `mapstructure:"lemmatizer" yaml:"lemmatizer"` // "snowball", "identity", "dictionary"
	DictionaryPath string `mapstructure:"dictionary_path" yaml:"dictionary_path"`
	StopWordsPath  string `mapstructure:"stop_words_path" yaml:"stop_words_path"`
	MaxWords       int    `mapstructure:"max_words" yaml:"max_words"`
	MaxLen         int    `mapstructure:"max_len" yaml:"max_len"`
}

// ModelConfig holds classifier architecture and backend settings.
type ModelConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"` // "native" or "onnx"
	ONNXPath    string `mapstructure:"onnx_path" yaml:"onnx_path"`
	ONNXLibrary string `mapstructure:"onnx_library" yaml:"onnx_library"`

	CatUnits       int     `mapstructure:"cat_units" yaml:"cat_units"`
	EmbedDim       int     `mapstructure:"embed_dim" yaml:"embed_dim"`
	LSTMUnits      int     `mapstructure:"lstm_units" yaml:"lstm_units"`
	Hidden1        int     `mapstructure:"hidden1" yaml:"hidden1"`
	Hidden2        int     `mapstructure:"hidden2" yaml:"hidden2"`
	SpatialDropout float64 `mapstructure:"spatial_dropout" yaml:"spatial_dropout"`
	Dropout        float64 `mapstructure:"dropout" yaml:"dropout"`
	Seed           int64   `mapstructure:"seed" yaml:"seed"`
}

// TrainConfig holds optimizer and schedule settings.
type TrainConfig struct {
	Epochs            int     `mapstructure:"epochs" yaml:"epochs"`
	BatchSize         int     `mapstructure:"batch_size" yaml:"batch_size"`
	ValidationSplit   float64 `mapstructure:"validation_split" yaml:"validation_split"`
	LearningRate      float64 `mapstructure:"learning_rate" yaml:"learning_rate"`
	ReduceLRFactor    float64 `mapstructure:"reduce_lr_factor" yaml:"reduce_lr_factor"`
	ReduceLRPatience  int     `mapstructure:"reduce_lr_patience" yaml:"reduce_lr_patience"`
	MinLearningRate   float64 `mapstructure:"min_learning_rate" yaml:"min_learning_rate"`
	EarlyStopPatience int     `mapstructure:"early_stop_patience" yaml:"early_stop_patience"` // 0 disables
	Shuffle           bool    `mapstructure:"shuffle" yaml:"shuffle"`
	Seed              int64   `mapstructure:"seed" yaml:"seed"`
	Progress          bool    `mapstructure:"progress" yaml:"progress"`
}

// ArtifactsConfig locates persisted pipeline state.
type ArtifactsConfig struct {
	Dir        string `mapstructure:"dir" yaml:"dir"`
	Checkpoint string `mapstructure:"checkpoint" yaml:"checkpoint"` // "best" or "final"
}

// OutputConfig holds prediction and report destinations.
type OutputConfig struct {
	Format        string `mapstructure:"format" yaml:"format"` // "stdout", "file" or "both"
	Path          string `mapstructure:"path" yaml:"path"`
	MaxBytes      int64  `mapstructure:"max_bytes" yaml:"max_bytes"` // file rotation size; 0 disables
	Probabilities bool   `mapstructure:"probabilities" yaml:"probabilities"`
	Pretty        bool   `mapstructure:"pretty" yaml:"pretty"`
	ReportPath    string `mapstructure:"report_path" yaml:"report_path"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Defaults returns the reference training setup.
func Defaults() Config {
	return Config{
		Data: DataConfig{
			Path:      "data/repairs.xlsx",
			Delimiter: ",",
		},
		Text: TextConfig{
			Lemmatizer: "snowball",
			MaxWords:   12000,
			MaxLen:     50,
		},
		Model: ModelConfig{
			Backend:        "native",
			ONNXPath:       "models/repairclass.onnx",
			CatUnits:       512,
			EmbedDim:       70,
			LSTMUnits:      200,
			Hidden1:        64,
			Hidden2:        32,
			SpatialDropout: 0.2,
			Dropout:        0.1,
			Seed:           42,
		},
		Train: TrainConfig{
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
			Progress:          true,
		},
		Artifacts: ArtifactsConfig{
			Dir:        "artifacts",
			Checkpoint: "best",
		},
		Output: OutputConfig{
			Format: "stdout",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers every default key on v so that env overrides apply
// to keys never mentioned in a config file.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("data.path", d.Data.Path)
	v.SetDefault("data.sheet", d.Data.Sheet)
	v.SetDefault("data.delimiter", d.Data.Delimiter)

	v.SetDefault("text.lemmatizer", d.Text.Lemmatizer)
	v.SetDefault("text.dictionary_path", d.Text.DictionaryPath)
	v.SetDefault("text.stop_words_path", d.Text.StopWordsPath)
	v.SetDefault("text.max_words", d.Text.MaxWords)
	v.SetDefault("text.max_len", d.Text.MaxLen)

	v.SetDefault("model.backend", d.Model.Backend)
	v.SetDefault("model.onnx_path", d.Model.ONNXPath)
	v.SetDefault("model.onnx_library", d.Model.ONNXLibrary)
	v.SetDefault("model.cat_units", d.Model.CatUnits)
	v.SetDefault("model.embed_dim", d.Model.EmbedDim)
	v.SetDefault("model.lstm_units", d.Model.LSTMUnits)
	v.SetDefault("model.hidden1", d.Model.Hidden1)
	v.SetDefault("model.hidden2", d.Model.Hidden2)
	v.SetDefault("model.spatial_dropout", d.Model.SpatialDropout)
	v.SetDefault("model.dropout", d.Model.Dropout)
	v.SetDefault("model.seed", d.Model.Seed)

	v.SetDefault("train.epochs", d.Train.Epochs)
	v.SetDefault("train.batch_size", d.Train.BatchSize)
	v.SetDefault("train.validation_split", d.Train.ValidationSplit)
	v.SetDefault("train.learning_rate", d.Train.LearningRate)
	v.SetDefault("train.reduce_lr_factor", d.Train.ReduceLRFactor)
	v.SetDefault("train.reduce_lr_patience", d.Train.ReduceLRPatience)
	v.SetDefault("train.min_learning_rate", d.Train.MinLearningRate)
	v.SetDefault("train.early_stop_patience", d.Train.EarlyStopPatience)
	v.SetDefault("train.shuffle", d.Train.Shuffle)
	v.SetDefault("train.seed", d.Train.Seed)
	v.SetDefault("train.progress", d.Train.Progress)

	v.SetDefault("artifacts.dir", d.Artifacts.Dir)
	v.SetDefault("artifacts.checkpoint", d.Artifacts.Checkpoint)

	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.path", d.Output.Path)
	v.SetDefault("output.max_bytes", d.Output.MaxBytes)
	v.SetDefault("output.probabilities", d.Output.Probabilities)
	v.SetDefault("output.pretty", d.Output.Pretty)
	v.SetDefault("output.report_path", d.Output.ReportPath)

	v.SetDefault("logging.level", d.Logging.Level)
}

// Load layers defaults, an optional config file and REPAIRCLASS_* environment
// variables on v, then decodes the result. Flags bound to v before Load take
// precedence over all three. An empty configFile searches the working
// directory for repairclass.yaml and tolerates its absence.
func Load(v *viper.Viper, configFile string) (Config, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("repairclass")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding: %w", err)
	}
	return cfg, nil
}

// Comma returns the CSV field delimiter as a rune. `\t` and "tab" select a
// tab.
func (c DataConfig) Comma() rune {
	switch c.Delimiter {
	case "":
		return ','
	case `\t`, "tab":
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

// Validate checks the configuration for invalid values. It returns all
// problems found, joined.
func (c Config) Validate() error {
	var errs []error

	switch c.Text.Lemmatizer {
	case "", "snowball", "identity":
	case "dictionary":
		if c.Text.DictionaryPath == "" {
			errs = append(errs, fmt.Errorf("text.dictionary_path is required for the dictionary lemmatizer"))
		}
	default:
		errs = append(errs, fmt.Errorf("text.lemmatizer must be snowball, identity or dictionary, got %q", c.Text.Lemmatizer))
	}
	if c.Text.StopWordsPath != "" {
		if _, err := os.Stat(c.Text.StopWordsPath); err != nil {
			errs = append(errs, fmt.Errorf("text.stop_words_path not found: %s", c.Text.StopWordsPath))
		}
	}
	if c.Text.MaxWords < 2 {
		errs = append(errs, fmt.Errorf("text.max_words must be at least 2, got %d", c.Text.MaxWords))
	}
	if c.Text.MaxLen <= 0 {
		errs = append(errs, fmt.Errorf("text.max_len must be positive, got %d", c.Text.MaxLen))
	}

	switch c.Model.Backend {
	case "native":
	case "onnx":
		if c.Model.ONNXPath == "" {
			errs = append(errs, fmt.Errorf("model.onnx_path is required for the onnx backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("model.backend must be native or onnx, got %q", c.Model.Backend))
	}
	if c.Model.SpatialDropout < 0 || c.Model.SpatialDropout >= 1 {
		errs = append(errs, fmt.Errorf("model.spatial_dropout must be in [0, 1), got %v", c.Model.SpatialDropout))
	}
	if c.Model.Dropout < 0 || c.Model.Dropout >= 1 {
		errs = append(errs, fmt.Errorf("model.dropout must be in [0, 1), got %v", c.Model.Dropout))
	}

	if c.Train.Epochs <= 0 {
		errs = append(errs, fmt.Errorf("train.epochs must be positive, got %d", c.Train.Epochs))
	}
	if c.Train.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("train.batch_size must be positive, got %d", c.Train.BatchSize))
	}
	if c.Train.ValidationSplit < 0 || c.Train.ValidationSplit >= 1 {
		errs = append(errs, fmt.Errorf("train.validation_split must be in [0, 1), got %v", c.Train.ValidationSplit))
	}
	if c.Train.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("train.learning_rate must be positive, got %v", c.Train.LearningRate))
	}
	if c.Train.EarlyStopPatience < 0 {
		errs = append(errs, fmt.Errorf("train.early_stop_patience must not be negative, got %d", c.Train.EarlyStopPatience))
	}

	if c.Artifacts.Dir == "" {
		errs = append(errs, fmt.Errorf("artifacts.dir is required"))
	}
	switch c.Artifacts.Checkpoint {
	case "best", "final":
	default:
		errs = append(errs, fmt.Errorf("artifacts.checkpoint must be best or final, got %q", c.Artifacts.Checkpoint))
	}

	switch c.Output.Format {
	case "stdout":
	case "file", "both":
		if c.Output.Path == "" {
			errs = append(errs, fmt.Errorf("output.path is required for file output"))
		}
	default:
		errs = append(errs, fmt.Errorf("output.format must be stdout, file or both, got %q", c.Output.Format))
	}
	if c.Output.MaxBytes < 0 {
		errs = append(errs, fmt.Errorf("output.max_bytes must not be negative, got %d", c.Output.MaxBytes))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}
