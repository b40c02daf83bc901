package file

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/crimson-sun/repairclass/internal/model"
)

func testPrediction(row int, cat string) model.Prediction {
	return model.Prediction{
		Row:        row,
		Category:   cat,
		Confidence: 0.95,
		Actual:     cat,
		Probabilities: map[string]float64{
			cat:            0.95,
			"Замена платы": 0.05,
		},
	}
}

func TestWriteProducesValidNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := out.Write(context.Background(), testPrediction(i, "Замена дисплея")); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	out.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}
	for i, line := range lines {
		var p model.Prediction
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			t.Errorf("line %d: invalid JSON: %v", i, err)
		}
		if p.Row != i {
			t.Errorf("line %d: row = %d", i, p.Row)
		}
		if p.Probabilities != nil {
			t.Errorf("line %d: probabilities written without WithProbabilities", i)
		}
	}
}

func TestWithProbabilities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path, WithProbabilities())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	out.Write(context.Background(), testPrediction(0, "Замена дисплея"))
	out.Close()

	data, _ := os.ReadFile(path)
	var p model.Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(p.Probabilities) != 2 {
		t.Fatalf("expected 2 probabilities, got %v", p.Probabilities)
	}
}

func TestRotationTriggersAtMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.jsonl")

	// Each line is over 60 bytes, so every write after the first rotates.
	out, err := New(path, WithMaxSize(120))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := out.Write(context.Background(), testPrediction(i, "Ремонт без замены")); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	out.Close()

	if _, err := os.Stat(path + ".1"); os.IsNotExist(err) {
		t.Error("expected rotated file .1 to exist")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("current file stat error: %v", err)
	}
	if info.Size() == 0 {
		t.Error("current file is empty after rotation")
	}
}

func TestCloseFlushesData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	out.Write(context.Background(), testPrediction(0, "Отказ в ремонте"))
	out.Close()

	data, _ := os.ReadFile(path)
	if len(data) == 0 {
		t.Error("file is empty, Close did not flush buffered data")
	}
}

func TestAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	for run := 0; run < 2; run++ {
		out, err := New(path)
		if err != nil {
			t.Fatalf("New error: %v", err)
		}
		out.Write(context.Background(), testPrediction(run, "Замена платы"))
		out.Close()
	}

	data, _ := os.ReadFile(path)
	if n := len(strings.Split(strings.TrimSpace(string(data)), "\n")); n != 2 {
		t.Fatalf("got %d lines, want 2", n)
	}
}

func TestConcurrentWritesSafe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out.Write(context.Background(), testPrediction(i, "Замена платы"))
		}(i)
	}
	wg.Wait()
	out.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 50 {
		t.Errorf("got %d lines, want 50", len(lines))
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func testBatch(start, n int) []model.Prediction {
	preds := make([]model.Prediction, n)
	for i := range preds {
		preds[i] = testPrediction(start+i, "Замена дисплея")
	}
	return preds
}

func TestBatchNeverSplitAcrossRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	// Smaller than one batch: every batch after the first starts a new file.
	out, err := New(path, WithMaxSize(200))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	for run := 0; run < 3; run++ {
		if err := out.WriteBatch(context.Background(), testBatch(run*10, 4)); err != nil {
			t.Fatalf("WriteBatch error: %v", err)
		}
	}
	out.Close()

	for _, p := range []string{path + ".2", path + ".1", path} {
		lines := readLines(t, p)
		if len(lines) != 4 {
			t.Fatalf("%s: got %d lines, want a whole batch of 4", filepath.Base(p), len(lines))
		}
	}
	var first model.Prediction
	if err := json.Unmarshal([]byte(readLines(t, path+".2")[0]), &first); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if first.Row != 0 {
		t.Errorf("oldest file starts at row %d, want 0", first.Row)
	}
}

func TestRotationKeepsLimitedFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path, WithMaxSize(1), WithKeep(2))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := out.Write(context.Background(), testPrediction(i, "Замена платы")); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	out.Close()

	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Errorf("expected no %s.3 with keep=2, stat err = %v", filepath.Base(path), err)
	}
	var p model.Prediction
	if err := json.Unmarshal([]byte(readLines(t, path+".2")[0]), &p); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if p.Row != 2 {
		t.Errorf("%s.2 holds row %d, want 2", filepath.Base(path), p.Row)
	}
}

func TestInvalidKeep(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "out.jsonl"), WithKeep(0)); err == nil {
		t.Fatal("expected error for keep=0")
	}
}

func TestBatchWithUnencodablePredictionWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	batch := testBatch(0, 3)
	batch[1].Confidence = math.NaN()
	if err := out.WriteBatch(context.Background(), batch); err == nil {
		t.Fatal("expected encode error for NaN confidence")
	}
	out.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat error: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("file holds %d bytes after a failed batch, want 0", info.Size())
	}
}

func TestWriteAfterClose(t *testing.T) {
	out, err := New(filepath.Join(t.TempDir(), "out.jsonl"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := out.Write(context.Background(), testPrediction(0, "Замена платы")); err == nil {
		t.Error("expected error writing to a closed output")
	}
	if err := out.Close(); err != nil {
		t.Errorf("second Close error: %v", err)
	}
}
