package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/repairclass/internal/config"
)

func TestNewTextSettings(t *testing.T) {
	dir := t.TempDir()
	stop := filepath.Join(dir, "stop.txt")
	dict := filepath.Join(dir, "dict.tsv")
	require.NoError(t, os.WriteFile(stop, []byte("аппарат\n"), 0o644))
	require.NoError(t, os.WriteFile(dict, []byte("включается\tвключаться\n"), 0o644))

	s, err := NewTextSettings(config.TextConfig{Lemmatizer: "snowball"})
	require.NoError(t, err)
	assert.Equal(t, TextSettings{Lemmatizer: "snowball"}, s)
	assert.Equal(t, "lemmatizer=snowball", s.String())

	// The dictionary is ignored unless the dictionary lemmatizer reads it.
	s, err = NewTextSettings(config.TextConfig{Lemmatizer: "snowball", DictionaryPath: dict, StopWordsPath: stop})
	require.NoError(t, err)
	assert.Empty(t, s.Dictionary)
	assert.Len(t, s.StopWords, 64)

	d, err := NewTextSettings(config.TextConfig{Lemmatizer: "dictionary", DictionaryPath: dict})
	require.NoError(t, err)
	assert.Len(t, d.Dictionary, 64)
	assert.Contains(t, d.String(), "dictionary="+d.Dictionary[:12])

	// Same content under another path gives the same settings.
	copyPath := filepath.Join(dir, "copy.txt")
	require.NoError(t, os.WriteFile(copyPath, []byte("аппарат\n"), 0o644))
	c, err := NewTextSettings(config.TextConfig{Lemmatizer: "snowball", StopWordsPath: copyPath})
	require.NoError(t, err)
	assert.Equal(t, s.StopWords, c.StopWords)
}

func TestNewTextSettingsMissingFile(t *testing.T) {
	_, err := NewTextSettings(config.TextConfig{Lemmatizer: "snowball", StopWordsPath: filepath.Join(t.TempDir(), "nope")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text.stop_words_path")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCorpusDigest(t *testing.T) {
	base := TextSettings{Lemmatizer: "snowball"}
	texts := []string{"не включается", "замена платы"}
	d := corpusDigest(base, texts)

	assert.Equal(t, d, corpusDigest(base, []string{"не включается", "замена платы"}))
	assert.NotEqual(t, d, corpusDigest(base, []string{"не включается", "замена дисплея"}))
	assert.NotEqual(t, d, corpusDigest(base, []string{"не", "включается замена платы"}))
	assert.NotEqual(t, d, corpusDigest(base, texts[:1]))
	assert.NotEqual(t, d, corpusDigest(TextSettings{Lemmatizer: "identity"}, texts))
	assert.NotEqual(t, d, corpusDigest(TextSettings{Lemmatizer: "snowball", StopWords: "ab"}, texts))
}

func TestDigestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), CleanedDigestFile)

	got, err := readDigest(path)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, writeDigest(path, "abc123"))
	got, err = readDigest(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", got)
}
