package categorical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/repairclass/internal/engine/fields"
	"github.com/crimson-sun/repairclass/internal/model"
)

func fixture() []model.RepairRecord {
	raw := make([]model.RepairRecord, 3)
	raw[0].Codes = [model.NumFields]string{"C1", "S1", "B1", "R1", "F1", "506", "done", "A01"}
	raw[1].Codes = [model.NumFields]string{"C2", "S1", "B2", "R1", "F2", "900", "open", "A02"}
	raw[2].Codes = [model.NumFields]string{"", "S2", "B1", "R2", "F1", "", "done", ""}
	return fields.NormalizeAll(raw)
}

func TestFitWidth(t *testing.T) {
	enc, err := Fit(fixture())
	require.NoError(t, err)

	// distinct counts: cond 3, symptom 2, section 2, repair 2, fault 2, part 3, status 2, act 3 = 19; +8 unknown columns
	assert.Equal(t, 27, enc.Width())
	assert.Equal(t, 0, enc.Offset(model.CodeCondition))
	assert.Equal(t, 4, enc.Offset(model.CodeSymptom))
	assert.Equal(t, 3, enc.UnknownColumn(model.CodeCondition))
}

func TestTransformOneHotPerBlock(t *testing.T) {
	recs := fixture()
	enc, err := Fit(recs)
	require.NoError(t, err)

	m := enc.Transform(recs)
	require.Equal(t, len(recs), m.Rows)
	require.Equal(t, enc.Width(), m.Cols)

	for i := range recs {
		var sum float32
		for _, v := range m.Row(i) {
			sum += v
		}
		assert.Equal(t, float32(model.NumFields), sum, "row %d must have one hot per field", i)
		for _, f := range model.CategoricalFields {
			assert.Zero(t, m.At(i, enc.UnknownColumn(f)), "row %d field %s", i, f)
		}
	}
}

func TestTransformUnseenUsesUnknownColumn(t *testing.T) {
	enc, err := Fit(fixture())
	require.NoError(t, err)

	var r model.RepairRecord
	r.Codes = [model.NumFields]string{"C9", "S1", "B1", "R1", "F1", "K111", "done", "ZZZ"}
	m := enc.Transform([]model.RepairRecord{r})

	assert.Equal(t, float32(1), m.At(0, enc.UnknownColumn(model.CodeCondition)))
	assert.Equal(t, float32(1), m.At(0, enc.UnknownColumn(model.Act)))
	assert.Zero(t, m.At(0, enc.UnknownColumn(model.Partcode)))
}

func TestOneHotRoundTrip(t *testing.T) {
	recs := fixture()
	enc, err := Fit(recs)
	require.NoError(t, err)
	m := enc.Transform(recs)

	for i, r := range recs {
		for _, f := range model.CategoricalFields {
			cb := enc.CodeBooks()[f]
			block := m.Row(i)[enc.Offset(f) : enc.Offset(f)+cb.Len()]
			best := 0
			for j := range block {
				if block[j] > block[best] {
					best = j
				}
			}
			got, err := cb.Value(best)
			require.NoError(t, err)
			assert.Equal(t, r.Code(f), got)
		}
	}
}

func TestStateRoundTrip(t *testing.T) {
	recs := fixture()
	enc, err := Fit(recs)
	require.NoError(t, err)

	restored, err := FromState(enc.State())
	require.NoError(t, err)
	assert.Equal(t, enc.Transform(recs).Data, restored.Transform(recs).Data)

	_, err = FromState(map[string][]string{})
	assert.Error(t, err)
}

func TestFitEmpty(t *testing.T) {
	_, err := Fit(nil)
	assert.ErrorIs(t, err, ErrNoRecords)
}
