package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/repairclass/internal/model"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(context.Background(), filepath.Join(t.TempDir(), "nested", "processed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecords() []ProcessedRecord {
	a := ProcessedRecord{Row: 0, Symptom: "Не включается", Fault: "Плата", Text: "не включа плат", Category: "Замена", CategoryCode: 1}
	b := ProcessedRecord{Row: 3, Symptom: "Полосы", Fault: "Дисплей", Text: "полос дисплей", Category: "Дисплей", CategoryCode: 0}
	for i := range a.Codes {
		a.Codes[i] = i
		b.Codes[i] = 2 * i
	}
	return []ProcessedRecord{b, a}
}

func TestNewSQLiteStorageRejectsEmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSaveAndLoadProcessed(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	books := map[string][]string{
		model.Partcode.String(): {"Empty", "K111", "K536"},
		model.Act.String():      {"A01", "Emp"},
	}
	require.NoError(t, s.SaveProcessed(ctx, sampleRecords(), books))

	got, err := s.LoadProcessed(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Row, "rows come back ordered")
	assert.Equal(t, "не включа плат", got[0].Text)
	assert.Equal(t, 2*int(model.CodeRepair), got[1].Codes[model.CodeRepair])
	assert.Equal(t, 1, got[0].CategoryCode)

	gotBooks, err := s.CodeBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, books, gotBooks)
}

func TestSaveProcessedReplaces(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveProcessed(ctx, sampleRecords(), nil))
	require.NoError(t, s.SaveProcessed(ctx, sampleRecords()[:1], nil))

	got, err := s.LoadProcessed(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSaveProcessedRollsBackOnDuplicateRow(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.SaveProcessed(ctx, sampleRecords(), nil))

	dup := sampleRecords()
	dup[1].Row = dup[0].Row
	assert.Error(t, s.SaveProcessed(ctx, dup, nil))

	got, err := s.LoadProcessed(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2, "failed save must leave previous contents intact")
}

func TestRuns(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := Run{ID: "a", StartedAt: start, FinishedAt: start.Add(time.Minute), Samples: 40, Classes: 5, Epochs: 20, BestEpoch: 12, BestLoss: 0.4, FinalLoss: 0.5}
	second := first
	second.ID = "b"
	second.StartedAt = start.Add(time.Hour)
	require.NoError(t, s.SaveRun(ctx, first))
	require.NoError(t, s.SaveRun(ctx, second))

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, 12, runs[1].BestEpoch)
	assert.True(t, runs[1].StartedAt.Equal(start))

	assert.ErrorIs(t, s.SaveRun(ctx, Run{}), ErrInvalidInput)
	assert.Error(t, s.SaveRun(ctx, first), "duplicate id")
}
