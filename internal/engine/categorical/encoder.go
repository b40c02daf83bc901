package categorical

import (
	"errors"
	"fmt"

	"github.com/crimson-sun/repairclass/internal/engine/fields"
	"github.com/crimson-sun/repairclass/internal/engine/tensor"
	"github.com/crimson-sun/repairclass/internal/model"
)

// ErrNoRecords is returned when fitting on an empty record set.
var ErrNoRecords = errors.New("categorical: no records to fit")

// Encoder one-hot encodes the categorical fields of normalized records.
// Each field gets a block of CodeBook.Len()+1 columns; the trailing column of a
// block marks a value that was not seen at fit time.
type Encoder struct {
	books   fields.CodeBooks
	offsets [model.NumFields]int
	width   int
}

// Fit builds code books from normalized records.
func Fit(records []model.RepairRecord) (*Encoder, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return NewEncoder(fields.FitCodeBooks(records))
}

// NewEncoder creates an Encoder from existing code books.
func NewEncoder(books fields.CodeBooks) (*Encoder, error) {
	e := &Encoder{books: books}
	for _, f := range model.CategoricalFields {
		if books[f] == nil {
			return nil, fmt.Errorf("categorical: missing code book for %s", f)
		}
		e.offsets[f] = e.width
		e.width += books[f].Len() + 1
	}
	return e, nil
}

// Width is the number of feature columns.
func (e *Encoder) Width() int {
	return e.width
}

// Offset returns the first column of field f's block.
func (e *Encoder) Offset(f model.Field) int {
	return e.offsets[f]
}

// UnknownColumn returns the column that flags an unseen value of field f.
func (e *Encoder) UnknownColumn(f model.Field) int {
	return e.offsets[f] + e.books[f].Len()
}

// CodeBooks returns the fitted code books.
func (e *Encoder) CodeBooks() fields.CodeBooks {
	return e.books
}

// EncodeInto writes the one-hot row of r into dst, which must have Width() zeroed values.
func (e *Encoder) EncodeInto(dst []float32, r model.RepairRecord) {
	for _, f := range model.CategoricalFields {
		code, ok := e.books[f].Code(r.Code(f))
		if !ok {
			code = e.books[f].Len()
		}
		dst[e.offsets[f]+code] = 1
	}
}

// Transform encodes records into a len(records) × Width() matrix.
func (e *Encoder) Transform(records []model.RepairRecord) *tensor.Matrix {
	m := tensor.New(len(records), e.width)
	for i, r := range records {
		e.EncodeInto(m.Row(i), r)
	}
	return m
}

// State returns the code book values keyed by field name, for persistence.
func (e *Encoder) State() map[string][]string {
	state := make(map[string][]string, model.NumFields)
	for _, f := range model.CategoricalFields {
		state[f.String()] = e.books[f].Values
	}
	return state
}

// FromState restores an Encoder persisted with State.
func FromState(state map[string][]string) (*Encoder, error) {
	var books fields.CodeBooks
	for _, f := range model.CategoricalFields {
		values, ok := state[f.String()]
		if !ok {
			return nil, fmt.Errorf("categorical: state has no values for %s", f)
		}
		books[f] = fields.NewCodeBook(f, values)
	}
	return NewEncoder(books)
}
