package textnorm

import (
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"lowercase", "НЕ ВКЛЮЧАЕТСЯ", "не включается"},
		{"quotes removed", `"Горит" индикатор`, "горит индикатор"},
		{"parens become spaces", "шум(сильный)", "шум сильный "},
		{"digits and punctuation", "код 1234: ошибка, №5 [a/b] +=", "код  ошибка  ab "},
		{"promo phrase", "Выезд! нет изображения", " нет изображения"},
		{"newlines", "строка1\nстрока2", "строка строка"},
		{"literal escaped newline", `текст\nещё`, "текст ещё"},
		{"latin n stripped", "no signal", " o sig al"},
		{"upper latin N survives as lowercase", "NO", "no"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.raw))
		})
	}
}

func TestJoinTexts(t *testing.T) {
	assert.Equal(t, "a b", JoinTexts("a", "b"))
	assert.Equal(t, "a", JoinTexts("a", ""))
	assert.Equal(t, "b", JoinTexts("", "b"))
	assert.Equal(t, "", JoinTexts("", ""))
}

func TestNormalizePromoSymptom(t *testing.T) {
	lem := NewDictionary(map[string]string{
		"включается": "включаться",
		"ошибка":     "ошибка",
	}, nil)
	n := New(lem, NewStopWords(BaseRussian(), DefaultKeep))

	got := n.Normalize("Выезд! Не включается (ошибка 123)")

	assert.Equal(t, "не включаться ошибка", got)
	assert.NotContains(t, got, "выезд")
	assert.NotContains(t, got, "(")
	assert.NotContains(t, got, ")")
	for _, r := range got {
		assert.False(t, unicode.IsDigit(r), "digit %q in %q", r, got)
		assert.False(t, unicode.IsUpper(r), "upper %q in %q", r, got)
	}
}

func TestNormalizeSnowball(t *testing.T) {
	n := New(NewCached(Snowball{}), NewStopWords(BaseRussian(), DefaultKeep))

	got := n.Normalize("Выезд! Не включается (ошибка 123)")
	tokens := strings.Fields(got)

	require.Len(t, tokens, 3)
	assert.Equal(t, "не", tokens[0])
	assert.True(t, strings.HasPrefix(tokens[1], "включа"), tokens[1])
	assert.True(t, strings.HasPrefix(tokens[2], "ошибк"), tokens[2])
}

func TestNormalizeDropsStopWords(t *testing.T) {
	n := New(Identity{}, NewStopWords(BaseRussian(), DefaultKeep))
	assert.Equal(t, "не работает экран", n.Normalize("и не работает экран и все"))
}

func TestNormalizeDropsStopWordLemma(t *testing.T) {
	lem := NewDictionary(map[string]string{"этим": "этот"}, nil)
	n := New(lem, NewStopWords(BaseRussian(), nil))
	assert.Equal(t, "экран", n.Normalize("этим экран"))
}

func TestNormalizeAllKeepsOrder(t *testing.T) {
	n := New(nil, nil)
	got := n.NormalizeAll([]string{"Один", "", "ДВА три"})
	assert.Equal(t, []string{"один", "", "два три"}, got)
}

func TestNormalizeIsTotal(t *testing.T) {
	n := New(Snowball{}, NewStopWords(BaseRussian(), DefaultKeep))
	for _, raw := range []string{"", "   ", "123 456", "!!!", "\n\r\t", "Выезд!"} {
		assert.Equal(t, "", n.Normalize(raw), "raw %q", raw)
	}
}

func TestCorpusRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cleaned.txt")
	texts := []string{"не включаться", "", "шум вентилятор"}

	require.NoError(t, WriteCorpus(path, texts))
	got, err := ReadCorpus(path)
	require.NoError(t, err)
	assert.Equal(t, texts, got)
}
