package labels

import (
	"errors"
	"fmt"
	"sort"

	"github.com/crimson-sun/repairclass/internal/engine/tensor"
)

var (
	// ErrNoCategories is returned when no category label is available to fit.
	ErrNoCategories = errors.New("labels: no categories")
	// ErrUnknownLabel is returned when transforming a label absent at fit time.
	ErrUnknownLabel = errors.New("labels: unknown label")
)

// Encoder maps category labels to dense integer codes in sorted order.
type Encoder struct {
	classes []string
	index   map[string]int
}

// Fit collects the distinct labels, sorted.
func Fit(labels []string) (*Encoder, error) {
	seen := make(map[string]struct{}, 16)
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for l := range seen {
		classes = append(classes, l)
	}
	sort.Strings(classes)
	return FromClasses(classes)
}

// FromClasses restores an encoder from an ordered class list.
func FromClasses(classes []string) (*Encoder, error) {
	if len(classes) == 0 {
		return nil, ErrNoCategories
	}
	e := &Encoder{
		classes: append([]string(nil), classes...),
		index:   make(map[string]int, len(classes)),
	}
	for i, c := range e.classes {
		if _, dup := e.index[c]; dup {
			return nil, fmt.Errorf("labels: duplicate class %q", c)
		}
		e.index[c] = i
	}
	return e, nil
}

// Classes returns the class names ordered by code.
func (e *Encoder) Classes() []string {
	return e.classes
}

// Len returns the number of classes.
func (e *Encoder) Len() int {
	return len(e.classes)
}

// Code returns the code of a single label.
func (e *Encoder) Code(label string) (int, error) {
	c, ok := e.index[label]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	return c, nil
}

// Transform encodes labels, failing on the first unknown one.
func (e *Encoder) Transform(labels []string) ([]int, error) {
	codes := make([]int, len(labels))
	for i, l := range labels {
		c, err := e.Code(l)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		codes[i] = c
	}
	return codes, nil
}

// Inverse returns the label for a code.
func (e *Encoder) Inverse(code int) (string, error) {
	if code < 0 || code >= len(e.classes) {
		return "", fmt.Errorf("labels: code %d out of range [0,%d)", code, len(e.classes))
	}
	return e.classes[code], nil
}

// OneHot encodes codes into a len(codes) × Len() matrix.
func (e *Encoder) OneHot(codes []int) (*tensor.Matrix, error) {
	m := tensor.New(len(codes), len(e.classes))
	for i, c := range codes {
		if c < 0 || c >= len(e.classes) {
			return nil, fmt.Errorf("labels: code %d out of range [0,%d)", c, len(e.classes))
		}
		m.Set(i, c, 1)
	}
	return m, nil
}

// ClassCount is the number of records carrying one class.
type ClassCount struct {
	Class string
	Count int
}

// Distribution counts codes per class, in class order.
func (e *Encoder) Distribution(codes []int) []ClassCount {
	out := make([]ClassCount, len(e.classes))
	for i, c := range e.classes {
		out[i].Class = c
	}
	for _, c := range codes {
		if c >= 0 && c < len(out) {
			out[c].Count++
		}
	}
	return out
}
