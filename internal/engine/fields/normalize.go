package fields

import (
	"strings"

	"github.com/crimson-sun/repairclass/internal/model"
)

// Sentinels substituted for missing values.
const (
	MissingPartcode = "Empty"
	Missing         = "Emp"
)

const (
	partPrefix = "K"
	partWidth  = 4
	actWidth   = 3
)

// partcodeReplacements collapses near-duplicate part codes. Order matters: each
// rule is applied to the output of the previous one.
var partcodeReplacements = []struct{ from, to string }{
	{"537", "536"},
	{"538", "536"},
	{"316", "536"},
	{"504Q", "505Q"},
	{"504C", "540C"},
	{"506", "111"},
	{"523", "111"},
	{"403", "111"},
	{"320", "111"},
	{"209", "111"},
	{"203", "111"},
	{"202", "111"},
	{"103", "111"},
	{"102", "111"},
	{"101", "111"},
	{"205", "111"},
	{"123Q", "511Q"},
	{"107Q", "511Q"},
	{"304W", "540W"},
}

// Normalize rewrites a raw categorical value into its canonical form.
// It is total: every input, including the empty string, yields exactly one value.
func Normalize(f model.Field, raw string) string {
	v := strings.TrimSpace(raw)
	switch f {
	case model.Partcode:
		v = normalizePartcode(v)
	case model.Act:
		v = truncate(v, actWidth)
	case model.CodeCondition:
		v = strings.ReplaceAll(v, "c", "C")
	}
	if v == "" {
		return Missing
	}
	return v
}

// NormalizeRecord returns a copy of r with every categorical field normalized.
func NormalizeRecord(r model.RepairRecord) model.RepairRecord {
	for _, f := range model.CategoricalFields {
		r = r.WithCode(f, Normalize(f, r.Code(f)))
	}
	return r
}

// NormalizeAll normalizes every record; the input slice is not modified.
func NormalizeAll(records []model.RepairRecord) []model.RepairRecord {
	out := make([]model.RepairRecord, len(records))
	for i, r := range records {
		out[i] = NormalizeRecord(r)
	}
	return out
}

func normalizePartcode(v string) string {
	v = strings.ReplaceAll(v, "k", "K")
	v = strings.ReplaceAll(v, "q", "Q")
	// The sentinel bypasses prefixing and truncation so it maps to itself.
	if v == "" || v == MissingPartcode {
		return MissingPartcode
	}
	if !strings.HasPrefix(v, partPrefix) {
		v = partPrefix + v
	}
	for _, r := range partcodeReplacements {
		v = strings.ReplaceAll(v, r.from, r.to)
	}
	return truncate(v, partWidth)
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
