package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victortavares4/dsl-investments/internal/store"
	"github.com/victortavares4/dsl-investments/pkg/portlang"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openMemory(t *testing.T, now func() time.Time) *store.SQLite {
	t.Helper()

	s, err := store.Open(":memory:", store.WithClock(now))
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, s.Close()) })

	return s
}

func TestRecordAndGet(t *testing.T) {
	t.Parallel()

	s := openMemory(t, func() time.Time { return base })
	ctx := context.Background()

	run := &store.Run{
		Document:   "a.port",
		Portfolio:  "Reserva",
		Outcome:    "blocked",
		Errors:     1,
		Warnings:   2,
		Bytes:      321,
		SourceHash: "abc",
		Duration:   3 * time.Millisecond,
		Diagnostics: []portlang.Diagnostic{{
			Stage: portlang.StageSemantic, Severity: "error", Code: "SEM003",
			Message: "allocation sums to 90%", Line: 4, Column: 3,
		}},
	}

	require.NoError(t, s.Record(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, base, run.CreatedAt)

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, run.ID, got.ID)
	assert.True(t, base.Equal(got.CreatedAt))
	assert.Equal(t, "Reserva", got.Portfolio)
	assert.Equal(t, 3*time.Millisecond, got.Duration)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, "SEM003", got.Diagnostics[0].Code)
}

func TestGetUnknown(t *testing.T) {
	t.Parallel()

	s := openMemory(t, time.Now)

	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListFiltersAndOrder(t *testing.T) {
	t.Parallel()

	s := openMemory(t, time.Now)
	ctx := context.Background()

	for i, doc := range []string{"a.port", "b.port", "a.port"} {
		outcome := "valid"
		if i == 1 {
			outcome = "fatal"
		}

		require.NoError(t, s.Record(ctx, &store.Run{
			Document:  doc,
			Outcome:   outcome,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := s.List(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt))

	onlyA, err := s.List(ctx, store.Filter{Document: "a.port"})
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	fatal, err := s.List(ctx, store.Filter{Outcome: "fatal"})
	require.NoError(t, err)
	require.Len(t, fatal, 1)
	assert.Equal(t, "b.port", fatal[0].Document)

	recent, err := s.List(ctx, store.Filter{Since: base.Add(time.Minute)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	page, err := s.List(ctx, store.Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b.port", page[0].Document)
}

func TestPrune(t *testing.T) {
	t.Parallel()

	s := openMemory(t, func() time.Time { return base.Add(48 * time.Hour) })
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, &store.Run{Document: "old", Outcome: "valid", CreatedAt: base}))
	require.NoError(t, s.Record(ctx, &store.Run{Document: "new", Outcome: "valid"}))

	n, err := s.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	runs, err := s.List(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].Document)
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "runs.db")

	s, err := store.Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Record(context.Background(), &store.Run{Document: "x", Outcome: "valid"}))
	require.NoError(t, s.Close())

	reopened, err := store.Open(path)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, reopened.Close()) })

	runs, err := reopened.List(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
