package vocab

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// PadToken occupies index 0; encoded sequences are left-padded with it.
const PadToken = "[PAD]"

// Defaults used by the reference training setup.
const (
	DefaultMaxWords = 12000
	DefaultMaxLen   = 50
)

// Vocabulary maps tokens to frequency-ranked indices. Index 0 is reserved for
// padding, so a vocabulary built with maxWords holds at most maxWords-1 tokens
// and Size() never exceeds maxWords.
type Vocabulary struct {
	tokenToID map[string]int
	idToToken []string
}

// Build ranks the whitespace-separated tokens of corpus by frequency
// (descending, ties broken by first occurrence) and keeps the top maxWords-1.
func Build(corpus []string, maxWords int) *Vocabulary {
	counts := make(map[string]int)
	var order []string
	for _, text := range corpus {
		for _, tok := range strings.Fields(text) {
			if _, ok := counts[tok]; !ok {
				order = append(order, tok)
			}
			counts[tok]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	limit := maxWords - 1
	if limit < 0 {
		limit = 0
	}
	if len(order) > limit {
		order = order[:limit]
	}
	return fromTokens(append([]string{PadToken}, order...))
}

func fromTokens(tokens []string) *Vocabulary {
	v := &Vocabulary{
		tokenToID: make(map[string]int, len(tokens)),
		idToToken: tokens,
	}
	for id, tok := range tokens {
		v.tokenToID[tok] = id
	}
	return v
}

// Size returns the number of indices including padding. It is the input
// dimension of the embedding layer.
func (v *Vocabulary) Size() int {
	return len(v.idToToken)
}

// Lookup returns the index of token and whether it is in the vocabulary.
// The padding token is never a valid lookup.
func (v *Vocabulary) Lookup(token string) (int, bool) {
	id, ok := v.tokenToID[token]
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}

// Token returns the token stored at id.
func (v *Vocabulary) Token(id int) (string, bool) {
	if id <= 0 || id >= len(v.idToToken) {
		return "", false
	}
	return v.idToToken[id], true
}

// Encode converts cleaned text into exactly maxLen indices. Tokens outside the
// vocabulary are dropped, the first maxLen remaining tokens are kept and the
// result is left-padded with zeros.
func (v *Vocabulary) Encode(text string, maxLen int) []int {
	seq := make([]int, maxLen)
	if maxLen <= 0 {
		return seq
	}
	ids := make([]int, 0, maxLen)
	for _, tok := range strings.Fields(text) {
		if id, ok := v.Lookup(tok); ok {
			ids = append(ids, id)
			if len(ids) == maxLen {
				break
			}
		}
	}
	copy(seq[maxLen-len(ids):], ids)
	return seq
}

// EncodeAll encodes every text with Encode.
func (v *Vocabulary) EncodeAll(texts []string, maxLen int) [][]int {
	out := make([][]int, len(texts))
	for i, t := range texts {
		out[i] = v.Encode(t, maxLen)
	}
	return out
}

// Save writes the vocabulary as one token per line; the line number
// (0-indexed) is the token index.
func (v *Vocabulary) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vocab: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, tok := range v.idToToken {
		if _, err := w.WriteString(tok + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("vocab: write: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("vocab: flush: %w", err)
	}
	return f.Close()
}

// Load reads a vocabulary written by Save.
func Load(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tokens = append(tokens, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vocab: read error: %w", err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("vocab: file is empty: %s", path)
	}
	if tokens[0] != PadToken {
		return nil, fmt.Errorf("vocab: missing %s at index 0 in %s", PadToken, path)
	}
	return fromTokens(tokens), nil
}
