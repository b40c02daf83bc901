package textnorm

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/kljensen/snowball/russian"
	gocache "github.com/patrickmn/go-cache"
)

// Lemmatizer reduces a lowercase token to its dictionary form.
// Implementations must be pure: the same word always yields the same lemma.
type Lemmatizer interface {
	Lemma(word string) string
}

// Identity leaves tokens untouched.
type Identity struct{}

func (Identity) Lemma(word string) string { return word }

// Snowball reduces Russian tokens with the Snowball stemmer. Stop-words are
// returned unchanged so they still match the stop-word set.
type Snowball struct{}

func (Snowball) Lemma(word string) string {
	return russian.Stem(word, false)
}

// Dictionary looks tokens up in a form→lemma table and defers to Fallback
// for forms it does not know.
type Dictionary struct {
	forms    map[string]string
	Fallback Lemmatizer
}

// LoadDictionary reads a tab-separated "form<TAB>lemma" file. Blank lines and
// lines starting with '#' are ignored.
func LoadDictionary(path string, fallback Lemmatizer) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lemma dictionary: %w", err)
	}
	defer f.Close()

	forms := make(map[string]string)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		form, lemma, ok := strings.Cut(text, "\t")
		if !ok {
			return nil, fmt.Errorf("lemma dictionary: %s:%d: expected form<TAB>lemma", path, line)
		}
		forms[strings.ToLower(strings.TrimSpace(form))] = strings.ToLower(strings.TrimSpace(lemma))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("lemma dictionary: read error: %w", err)
	}
	return NewDictionary(forms, fallback), nil
}

// NewDictionary creates a Dictionary from an in-memory table.
func NewDictionary(forms map[string]string, fallback Lemmatizer) *Dictionary {
	if fallback == nil {
		fallback = Identity{}
	}
	return &Dictionary{forms: forms, Fallback: fallback}
}

func (d *Dictionary) Lemma(word string) string {
	if lemma, ok := d.forms[word]; ok {
		return lemma
	}
	return d.Fallback.Lemma(word)
}

// Cached memoizes another Lemmatizer. A repair corpus repeats the same few
// thousand word forms, so most lookups are hits.
type Cached struct {
	next  Lemmatizer
	cache *gocache.Cache
}

// NewCached wraps next with an unbounded, non-expiring cache.
func NewCached(next Lemmatizer) *Cached {
	return &Cached{next: next, cache: gocache.New(gocache.NoExpiration, 0)}
}

func (c *Cached) Lemma(word string) string {
	if v, ok := c.cache.Get(word); ok {
		return v.(string)
	}
	lemma := c.next.Lemma(word)
	c.cache.Set(word, lemma, gocache.NoExpiration)
	return lemma
}

// Len returns the number of memoized forms.
func (c *Cached) Len() int {
	return c.cache.ItemCount()
}

// NewLemmatizer resolves a lemmatizer by name: "snowball" (default),
// "identity" or "dictionary" (requires dictPath; unknown forms fall back to snowball).
// The result is always cached.
func NewLemmatizer(name, dictPath string) (Lemmatizer, error) {
	var base Lemmatizer
	switch name {
	case "", "snowball":
		base = Snowball{}
	case "identity":
		base = Identity{}
	case "dictionary":
		if dictPath == "" {
			return nil, fmt.Errorf("lemmatizer: dictionary lemmatizer requires a dictionary path")
		}
		d, err := LoadDictionary(dictPath, Snowball{})
		if err != nil {
			return nil, fmt.Errorf("lemmatizer: %w", err)
		}
		base = d
	default:
		return nil, fmt.Errorf("lemmatizer: unknown lemmatizer %q", name)
	}
	return NewCached(base), nil
}
