package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/repairclass/internal/model"
)

func TestNormalizePartcode(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"506", "K111"},
		{"K506", "K111"},
		{"k506", "K111"},
		{"537", "K536"},
		{"538X", "K536"},
		{"316", "K536"},
		{"504Q", "K505"},
		{"123q77", "K511"},
		{"304W", "K540"},
		{"K999000", "K999"},
		{"Q12", "KQ12"},
		{"", "Empty"},
		{"   ", "Empty"},
		{"Empty", "Empty"},
		{"Emptyx", "KEmp"},
	}

	for _, tt := range tests {
		got := Normalize(model.Partcode, tt.raw)
		assert.Equal(t, tt.want, got, "Normalize(Partcode, %q)", tt.raw)
	}
}

func TestNormalizeAct(t *testing.T) {
	assert.Equal(t, "A12", Normalize(model.Act, "A1234"))
	assert.Equal(t, "A1", Normalize(model.Act, "A1"))
	assert.Equal(t, "Emp", Normalize(model.Act, ""))
	assert.Equal(t, "Акт", Normalize(model.Act, "Акт выдан"))
}

func TestNormalizeCondition(t *testing.T) {
	assert.Equal(t, "C1", Normalize(model.CodeCondition, "c1"))
	assert.Equal(t, "CC", Normalize(model.CodeCondition, "cC"))
	assert.Equal(t, "Emp", Normalize(model.CodeCondition, ""))
}

func TestNormalizeOtherFieldsSentinel(t *testing.T) {
	for _, f := range []model.Field{model.CodeSymptom, model.CodeSection, model.CodeRepair, model.CodeFault, model.RepairStatus} {
		assert.Equal(t, "Emp", Normalize(f, ""), f.String())
		assert.Equal(t, "x7", Normalize(f, "x7"), f.String())
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raws := []string{
		"", "506", "k537", "q101", "Empty", "Emptyx", "K5373", "504C", "5316",
		"K1011", "abc", "Q", "k", "304w", "107Q", "c", "A12345", "Акт",
	}
	for _, f := range model.CategoricalFields {
		for _, raw := range raws {
			once := Normalize(f, raw)
			twice := Normalize(f, once)
			assert.Equal(t, once, twice, "field %s raw %q", f, raw)
		}
	}
}

func TestNormalizeRecordDoesNotMutateInput(t *testing.T) {
	in := []model.RepairRecord{{Category: "A"}}
	in[0].Codes[model.Partcode] = "506"

	out := NormalizeAll(in)

	require.Len(t, out, 1)
	assert.Equal(t, "506", in[0].Code(model.Partcode))
	assert.Equal(t, "K111", out[0].Code(model.Partcode))
	for _, f := range model.CategoricalFields {
		assert.NotEmpty(t, out[0].Code(f), f.String())
	}
}

func TestNormalizeMissingPartcodeStable(t *testing.T) {
	once := Normalize(model.Partcode, "")
	require.Equal(t, MissingPartcode, once)
	assert.Equal(t, MissingPartcode, Normalize(model.Partcode, once))
	assert.Equal(t, MissingPartcode, Normalize(model.Partcode, Normalize(model.Partcode, once)))
}
