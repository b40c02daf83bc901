package pipeline

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/crimson-sun/repairclass/internal/config"
)

// TextSettings identifies the text normalizer that produced a vocabulary or a
// cleaned-text corpus. Word lists are recorded by content digest, not by path.
type TextSettings struct {
	Lemmatizer string `json:"lemmatizer"`
	Dictionary string `json:"dictionary,omitempty"` // sha256 of the dictionary file
	StopWords  string `json:"stop_words,omitempty"` // sha256 of the supplemental stop-word file
}

// NewTextSettings describes cfg. Referenced files must be readable.
func NewTextSettings(cfg config.TextConfig) (TextSettings, error) {
	dict, err := fileDigest(cfg.DictionaryPath)
	if err != nil {
		return TextSettings{}, fmt.Errorf("text.dictionary_path: %w", err)
	}
	stop, err := fileDigest(cfg.StopWordsPath)
	if err != nil {
		return TextSettings{}, fmt.Errorf("text.stop_words_path: %w", err)
	}
	s := TextSettings{Lemmatizer: cfg.Lemmatizer, StopWords: stop}
	// The dictionary only matters to the lemmatizer that reads it.
	if cfg.Lemmatizer == "dictionary" {
		s.Dictionary = dict
	}
	return s, nil
}

func (s TextSettings) String() string {
	out := "lemmatizer=" + s.Lemmatizer
	if s.Dictionary != "" {
		out += " dictionary=" + short(s.Dictionary)
	}
	if s.StopWords != "" {
		out += " stop_words=" + short(s.StopWords)
	}
	return out
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func fileDigest(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// corpusDigest fingerprints the raw joined texts of a dataset together with
// the normalizer settings. Equal digests mean cleaning would give the same corpus.
func corpusDigest(s TextSettings, joined []string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%s\n%d\n", s.Lemmatizer, s.Dictionary, s.StopWords, len(joined))
	for _, t := range joined {
		// Length prefix keeps "a b"+"c" apart from "a"+"b c".
		fmt.Fprintf(h, "%d:%s\n", len(t), t)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// readDigest returns the digest stored at path, or "" when there is none.
func readDigest(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("artifacts: %w", err)
	}
	return string(bytes.TrimSpace(data)), nil
}

func writeDigest(path, digest string) error {
	if err := os.WriteFile(path, []byte(digest+"\n"), 0o644); err != nil {
		return fmt.Errorf("artifacts: %w", err)
	}
	return nil
}
