package textnorm

import (
	"bufio"
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed stopwords_ru.txt
var russianStopWords string

// DefaultKeep lists base stop-words that carry meaning in fault descriptions
// ("не включается" vs "включается") and are therefore never filtered.
var DefaultKeep = []string{"не"}

// StopWords is a set of tokens removed from cleaned text.
type StopWords map[string]struct{}

// BaseRussian returns the embedded Russian stop-word list.
func BaseRussian() []string {
	return parseWordList(russianStopWords)
}

// NewStopWords builds a set from base, excluding every word listed in keep.
func NewStopWords(base, keep []string) StopWords {
	sw := make(StopWords, len(base))
	for _, w := range base {
		if w = strings.TrimSpace(strings.ToLower(w)); w != "" {
			sw[w] = struct{}{}
		}
	}
	for _, w := range keep {
		delete(sw, strings.ToLower(w))
	}
	return sw
}

// LoadStopWords builds the base Russian set minus keep, merged with the
// supplemental list at path (one term per line). An empty path skips the supplement.
func LoadStopWords(path string, keep []string) (StopWords, error) {
	sw := NewStopWords(BaseRussian(), keep)
	if path == "" {
		return sw, nil
	}
	extra, err := readWordFile(path)
	if err != nil {
		return nil, fmt.Errorf("stopwords: %w", err)
	}
	sw.Add(extra...)
	return sw, nil
}

// Add merges words into the set.
func (sw StopWords) Add(words ...string) {
	for _, w := range words {
		if w = strings.TrimSpace(strings.ToLower(w)); w != "" {
			sw[w] = struct{}{}
		}
	}
}

// Contains reports whether w is a stop-word.
func (sw StopWords) Contains(w string) bool {
	_, ok := sw[w]
	return ok
}

func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if w := strings.TrimSpace(scanner.Text()); w != "" {
			words = append(words, w)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return words, nil
}

func parseWordList(s string) []string {
	var words []string
	for _, line := range strings.Split(s, "\n") {
		if w := strings.TrimSpace(line); w != "" {
			words = append(words, w)
		}
	}
	return words
}
