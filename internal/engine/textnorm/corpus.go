package textnorm

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// WriteCorpus stores one cleaned text per line, in record order, so a later
// run can skip text normalization.
func WriteCorpus(path string, texts []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("corpus: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, t := range texts {
		// Cleaned text never holds newlines; guard anyway so line count == record count.
		t = strings.ReplaceAll(t, "\n", " ")
		if _, err := w.WriteString(t + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("corpus: write: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("corpus: flush: %w", err)
	}
	return f.Close()
}

// ReadCorpus loads a file written by WriteCorpus. Trailing whitespace on each
// line is dropped.
func ReadCorpus(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}
	defer f.Close()

	var texts []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		texts = append(texts, strings.TrimRight(scanner.Text(), " \t\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("corpus: read error: %w", err)
	}
	return texts, nil
}
