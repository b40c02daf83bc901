package textnorm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStopWordsKeepsByValue(t *testing.T) {
	sw := NewStopWords(BaseRussian(), DefaultKeep)
	assert.True(t, sw.Contains("и"))
	assert.True(t, sw.Contains("в"))
	assert.False(t, sw.Contains("не"), "kept word must survive regardless of its position in the list")

	all := NewStopWords(BaseRussian(), nil)
	assert.True(t, all.Contains("не"))
	assert.Len(t, all, len(sw)+1)
}

func TestNewStopWordsLowercases(t *testing.T) {
	sw := NewStopWords([]string{" Для ", "", "ИЛИ"}, []string{"ИЛИ"})
	assert.True(t, sw.Contains("для"))
	assert.False(t, sw.Contains("или"))
	assert.Len(t, sw, 1)
}

func TestLoadStopWordsSupplement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.txt")
	require.NoError(t, os.WriteFile(path, []byte("аппарат\n\n  Клиент \n"), 0o644))

	sw, err := LoadStopWords(path, DefaultKeep)
	require.NoError(t, err)
	assert.True(t, sw.Contains("аппарат"))
	assert.True(t, sw.Contains("клиент"))
	assert.True(t, sw.Contains("и"))
	assert.False(t, sw.Contains("не"))
}

func TestLoadStopWordsNoSupplement(t *testing.T) {
	sw, err := LoadStopWords("", DefaultKeep)
	require.NoError(t, err)
	assert.Equal(t, NewStopWords(BaseRussian(), DefaultKeep), sw)
}

func TestLoadStopWordsMissingFile(t *testing.T) {
	_, err := LoadStopWords(filepath.Join(t.TempDir(), "nope.txt"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "stopwords:")
}
