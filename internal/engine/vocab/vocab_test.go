package vocab

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = []string{
	"экран не включаться",
	"шум вентилятор",
	"экран полоса",
	"не включаться экран",
}

func TestBuildRanksByFrequency(t *testing.T) {
	v := Build(corpus, DefaultMaxWords)

	// экран x3, не x2, включаться x2, then singletons in first-seen order.
	want := []string{"экран", "не", "включаться", "шум", "вентилятор", "полоса"}
	require.Equal(t, len(want)+1, v.Size())
	for i, tok := range want {
		id, ok := v.Lookup(tok)
		require.True(t, ok, tok)
		assert.Equal(t, i+1, id, tok)
	}
}

func TestBuildCapsSize(t *testing.T) {
	v := Build(corpus, 3)
	assert.Equal(t, 3, v.Size())

	_, ok := v.Lookup("экран")
	assert.True(t, ok)
	_, ok = v.Lookup("не")
	assert.True(t, ok)
	_, ok = v.Lookup("включаться")
	assert.False(t, ok)
}

func TestLookupPadIsNotAToken(t *testing.T) {
	v := Build(corpus, DefaultMaxWords)
	_, ok := v.Lookup(PadToken)
	assert.False(t, ok)
	_, ok = v.Token(0)
	assert.False(t, ok)
}

var encodeTests = []struct {
	name string
	text string
	want []int
}{
	{"empty", "", []int{0, 0, 0, 0}},
	{"pre-padded", "экран шум", []int{0, 0, 1, 4}},
	{"oov dropped", "экран неизвестно шум", []int{0, 0, 1, 4}},
	{"exact", "экран не включаться шум", []int{1, 2, 3, 4}},
	{"truncated keeps head", "полоса экран не включаться шум", []int{6, 1, 2, 3}},
}

func TestEncode(t *testing.T) {
	v := Build(corpus, DefaultMaxWords)
	for _, tc := range encodeTests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, v.Encode(tc.text, 4))
		})
	}
}

func TestEncodeLengthInvariant(t *testing.T) {
	v := Build(corpus, DefaultMaxWords)
	long := strings.Repeat("экран ", 10000)
	for _, text := range []string{"", "шум", long, strings.Repeat("мусор ", 500)} {
		seq := v.Encode(text, DefaultMaxLen)
		assert.Len(t, seq, DefaultMaxLen)
	}
}

func TestEncodeAllTruncatesEachSequenceIndependently(t *testing.T) {
	v := Build(corpus, DefaultMaxWords)
	seqs := v.EncodeAll([]string{"экран экран экран", "шум"}, 2)
	assert.Equal(t, [][]int{{1, 1}, {0, 4}}, seqs)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	v := Build(corpus, DefaultMaxWords)
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, v.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, v.Size(), got.Size())
	for _, text := range corpus {
		assert.Equal(t, v.Encode(text, 8), got.Encode(text, 8))
	}
}

func TestLoadRejectsMissingPad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, fromTokens([]string{"экран"}).Save(path))
	_, err := Load(path)
	assert.Error(t, err)
}
