package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// promoPhrase is a boilerplate marker some service centres prepend to symptoms.
const promoPhrase = "Выезд!"

var (
	noiseRe      = regexp.MustCompile(`[0-9]|[-—.,:;_%©«»?*!@#№$^•·&()]|[+=]|\[|\]|/`)
	whitespaceRe = regexp.MustCompile(`\r\n\t|\n|\\s|\r\t|\\n`)
)

// Clean applies the character-level stages of text normalization: noise
// stripping, whitespace canonicalization and lowercasing. It never fails;
// the result may be empty.
func Clean(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.NewReplacer("(", " ", ")", " ").Replace(s)
	s = strings.ReplaceAll(s, promoPhrase, "")
	s = noiseRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	// Leftover escape letters from exported "\n" sequences. This also hits
	// genuine Latin 'n'; trained vocabularies depend on it.
	s = strings.ReplaceAll(s, "n", " ")
	return cases.Lower(language.Russian).String(s)
}

// JoinTexts combines the symptom and fault descriptions of a record,
// separated by one space. Empty parts are skipped.
func JoinTexts(symptom, fault string) string {
	switch {
	case symptom == "":
		return fault
	case fault == "":
		return symptom
	default:
		return symptom + " " + fault
	}
}

// Normalizer turns raw free text into lemmatized, stop-word free token strings.
type Normalizer struct {
	lemmatizer Lemmatizer
	stopWords  StopWords
}

// New creates a Normalizer. A nil lemmatizer means Identity; nil stop-words
// means nothing is filtered.
func New(lem Lemmatizer, sw StopWords) *Normalizer {
	if lem == nil {
		lem = Identity{}
	}
	if sw == nil {
		sw = StopWords{}
	}
	return &Normalizer{lemmatizer: lem, stopWords: sw}
}

// Normalize returns the cleaned text for raw: tokens are whitespace separated,
// lemmatized and filtered. A token is dropped when either its surface form or
// its lemma is a stop-word.
func (n *Normalizer) Normalize(raw string) string {
	words := strings.Fields(Clean(raw))
	kept := words[:0]
	for _, w := range words {
		lemma := n.lemmatizer.Lemma(w)
		if lemma == "" || n.stopWords.Contains(w) || n.stopWords.Contains(lemma) {
			continue
		}
		kept = append(kept, lemma)
	}
	return strings.Join(kept, " ")
}

// NormalizeAll normalizes each text in order.
func (n *Normalizer) NormalizeAll(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = n.Normalize(t)
	}
	return out
}
