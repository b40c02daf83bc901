package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crimson-sun/repairclass/internal/engine"
	"github.com/crimson-sun/repairclass/internal/engine/categorical"
	"github.com/crimson-sun/repairclass/internal/engine/labels"
	"github.com/crimson-sun/repairclass/internal/engine/textnorm"
	"github.com/crimson-sun/repairclass/internal/engine/vocab"
)

// Artifact file names under the artifacts directory.
const (
	ProcessedFile     = "processed.db"
	CleanedTextsFile  = "cleaned_texts.txt"
	CleanedDigestFile = "cleaned_texts.sha256"
	VocabFile         = "vocab.txt"
	EncodersFile      = "encoders.json"
	BestCheckpoint    = "best"
	FinalCheckpoint   = "final"
)

const encodersVersion = 2

// Artifacts resolves the persisted pipeline state inside one directory.
type Artifacts struct {
	Dir string
}

// Ensure creates the directory.
func (a Artifacts) Ensure() error {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return fmt.Errorf("artifacts: %w", err)
	}
	return nil
}

func (a Artifacts) ProcessedDB() string   { return filepath.Join(a.Dir, ProcessedFile) }
func (a Artifacts) CleanedTexts() string  { return filepath.Join(a.Dir, CleanedTextsFile) }
func (a Artifacts) CleanedDigest() string { return filepath.Join(a.Dir, CleanedDigestFile) }
func (a Artifacts) Vocab() string         { return filepath.Join(a.Dir, VocabFile) }
func (a Artifacts) Encoders() string      { return filepath.Join(a.Dir, EncodersFile) }

// Checkpoint returns the weights file of a named snapshot ("best" or "final").
func (a Artifacts) Checkpoint(name string) string {
	return filepath.Join(a.Dir, name+".safetensors")
}

// encoderState is the on-disk form of the fitted encoders.
type encoderState struct {
	Version     int                 `json:"version"`
	MaxLen      int                 `json:"max_len"`
	VocabSize   int                 `json:"vocab_size"`
	Categorical map[string][]string `json:"categorical"`
	Classes     []string            `json:"classes"`
	Text        TextSettings        `json:"text"`
}

// SavePreprocessor writes the vocabulary and the encoder state. text names the
// normalizer the vocabulary was built with.
func (a Artifacts) SavePreprocessor(p *engine.Preprocessor, text TextSettings) error {
	if err := p.Vocab.Save(a.Vocab()); err != nil {
		return fmt.Errorf("artifacts: %w", err)
	}
	state := encoderState{
		Version:     encodersVersion,
		MaxLen:      p.MaxLen,
		VocabSize:   p.Vocab.Size(),
		Categorical: p.Codes.State(),
		Classes:     p.Labels.Classes(),
		Text:        text,
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("artifacts: encode encoders: %w", err)
	}
	tmp := a.Encoders() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("artifacts: %w", err)
	}
	if err := os.Rename(tmp, a.Encoders()); err != nil {
		return fmt.Errorf("artifacts: %w", err)
	}
	return nil
}

// LoadPreprocessor restores the state written by SavePreprocessor. norm must
// be configured as described by settings, which has to match the settings the
// vocabulary was built with.
func (a Artifacts) LoadPreprocessor(norm *textnorm.Normalizer, settings TextSettings) (*engine.Preprocessor, error) {
	data, err := os.ReadFile(a.Encoders())
	if err != nil {
		return nil, fmt.Errorf("artifacts: %w", err)
	}
	var state encoderState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("artifacts: decode %s: %w", a.Encoders(), err)
	}
	if state.Version != encodersVersion {
		return nil, fmt.Errorf("%w: %s version %d, want %d", ErrArtifactMismatch, EncodersFile, state.Version, encodersVersion)
	}
	if state.Text != settings {
		return nil, fmt.Errorf("%w: vocabulary built with %s, configured %s",
			ErrArtifactMismatch, state.Text, settings)
	}
	codes, err := categorical.FromState(state.Categorical)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactMismatch, err)
	}
	lbl, err := labels.FromClasses(state.Classes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactMismatch, err)
	}
	voc, err := vocab.Load(a.Vocab())
	if err != nil {
		return nil, fmt.Errorf("artifacts: %w", err)
	}
	if voc.Size() != state.VocabSize {
		return nil, fmt.Errorf("%w: %s holds %d entries, %s expects %d",
			ErrArtifactMismatch, VocabFile, voc.Size(), EncodersFile, state.VocabSize)
	}
	return &engine.Preprocessor{
		Text:   norm,
		Codes:  codes,
		Vocab:  voc,
		Labels: lbl,
		MaxLen: state.MaxLen,
	}, nil
}
