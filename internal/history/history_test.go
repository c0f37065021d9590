package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/narrator/internal/config"
)

func openTemp(t *testing.T, cfg config.HistoryConfig) *Store {
	t.Helper()
	cfg.Enabled = true
	cfg.Path = filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDisabledStore(t *testing.T) {
	s, err := Open(context.Background(), config.HistoryConfig{})
	require.NoError(t, err)
	assert.False(t, s.Enabled())
	require.NoError(t, s.Record(context.Background(), Entry{RequestID: "x", Outcome: "ok"}))

	got, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, s.Prune(context.Background()))
	require.NoError(t, s.Close())
}

func TestRecordAndRecent(t *testing.T) {
	s := openTemp(t, config.HistoryConfig{})
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.clock = func() time.Time { return base }
	require.NoError(t, s.Record(ctx, Entry{RequestID: "first", Source: "http", Backend: "espeak", Words: 3, Chunks: 1, Outcome: "ok"}))
	s.clock = func() time.Time { return base.Add(time.Minute) }
	require.NoError(t, s.Record(ctx, Entry{RequestID: "second", Source: "cli", Backend: "gtts", Outcome: "synthesis_failure"}))

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].RequestID)
	assert.Equal(t, "synthesis_failure", got[0].Outcome)
	assert.Equal(t, "first", got[1].RequestID)
	assert.Equal(t, 3, got[1].Words)
	assert.Equal(t, base, got[1].CreatedAt)

	got, err = s.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestPruneByDaysAndCount(t *testing.T) {
	s := openTemp(t, config.HistoryConfig{RetentionDays: 1, MaxEntries: 2})
	ctx := context.Background()

	s.clock = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, s.Record(ctx, Entry{RequestID: "old", Outcome: "ok"}))

	s.clock = func() time.Time { return time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC) }
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Record(ctx, Entry{RequestID: id, Outcome: "ok"}))
	}
	require.NoError(t, s.Prune(ctx))

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, e := range got {
		ids = append(ids, e.RequestID)
	}
	assert.Equal(t, []string{"c", "b"}, ids)
}

func TestPing(t *testing.T) {
	s := openTemp(t, config.HistoryConfig{})
	require.NoError(t, s.Ping(context.Background()))

	var disabled *Store
	assert.NoError(t, disabled.Ping(context.Background()))
	assert.NoError(t, disabled.Close())
}
