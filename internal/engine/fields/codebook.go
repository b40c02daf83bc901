package fields

import (
	"fmt"
	"sort"

	"github.com/crimson-sun/repairclass/internal/model"
)

// CodeBook maps the distinct normalized values of one field to dense integer
// codes. Values are ordered lexicographically (byte order), so the same value
// set always yields the same codes regardless of row order or platform.
type CodeBook struct {
	Field  model.Field
	Values []string
	index  map[string]int
}

// FitCodeBook builds a CodeBook from the values of field f across records.
// Records are expected to be normalized already.
func FitCodeBook(f model.Field, records []model.RepairRecord) *CodeBook {
	seen := make(map[string]struct{})
	for _, r := range records {
		seen[r.Code(f)] = struct{}{}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return NewCodeBook(f, values)
}

// NewCodeBook restores a CodeBook from a persisted, already ordered value list.
func NewCodeBook(f model.Field, values []string) *CodeBook {
	cb := &CodeBook{Field: f, Values: values, index: make(map[string]int, len(values))}
	for i, v := range values {
		cb.index[v] = i
	}
	return cb
}

// Len returns the number of distinct values.
func (c *CodeBook) Len() int {
	return len(c.Values)
}

// Code returns the dense code for v and whether v was seen at fit time.
func (c *CodeBook) Code(v string) (int, bool) {
	i, ok := c.index[v]
	return i, ok
}

// Value returns the normalized value for a code.
func (c *CodeBook) Value(code int) (string, error) {
	if code < 0 || code >= len(c.Values) {
		return "", fmt.Errorf("codebook %s: code %d out of range [0,%d)", c.Field, code, len(c.Values))
	}
	return c.Values[code], nil
}

// CodeBooks holds one CodeBook per categorical field.
type CodeBooks [model.NumFields]*CodeBook

// FitCodeBooks fits a CodeBook for every categorical field.
func FitCodeBooks(records []model.RepairRecord) CodeBooks {
	var cbs CodeBooks
	for _, f := range model.CategoricalFields {
		cbs[f] = FitCodeBook(f, records)
	}
	return cbs
}

// Encode returns the integer codes of r in model.CategoricalFields order.
// Values absent from a CodeBook are reported as -1.
func (cbs CodeBooks) Encode(r model.RepairRecord) [model.NumFields]int {
	var codes [model.NumFields]int
	for _, f := range model.CategoricalFields {
		code, ok := cbs[f].Code(r.Code(f))
		if !ok {
			code = -1
		}
		codes[f] = code
	}
	return codes
}
