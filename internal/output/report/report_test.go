package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/repairclass/internal/engine/evaluate"
)

func sampleReport(t *testing.T) *evaluate.Report {
	t.Helper()
	classes := []string{"Замена дисплея", "Замена платы", "Отказ в ремонте"}
	actual := []int{0, 0, 1, 1, 1, 0}
	predicted := []int{0, 1, 1, 1, 0, 0}
	r, err := evaluate.Evaluate(classes, actual, predicted)
	require.NoError(t, err)
	return r
}

func TestRenderSummaryAndTables(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(t), Options{MaxMismatches: -1}))
	out := buf.String()

	assert.Contains(t, out, "samples\t6")
	assert.Contains(t, out, "mismatched\t2 (33.33%)")
	assert.Contains(t, out, "Отказ в ремонте")
	assert.Contains(t, out, "true\\pred")
	// Row of the absent class renders as zeros.
	assert.Contains(t, out, "0.00 0.00 0.00")
	assert.Contains(t, out, "#1: Замена дисплея -> Замена платы")
	assert.Contains(t, out, "#4: Замена платы -> Замена дисплея")
}

func TestRenderCapsMismatches(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(t), Options{MaxMismatches: 1}))
	out := buf.String()

	assert.Contains(t, out, "first 1 of 2")
	assert.Equal(t, 1, strings.Count(out, " -> "))

	buf.Reset()
	require.NoError(t, Render(&buf, sampleReport(t), Options{}))
	assert.NotContains(t, buf.String(), "mismatches (")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestRenderPropagatesWriteError(t *testing.T) {
	err := Render(failingWriter{}, sampleReport(t), Options{})
	assert.ErrorContains(t, err, "closed pipe")
}
