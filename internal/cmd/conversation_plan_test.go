package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/unai/internal/config"
	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/storage"
)

func testDB(tb testing.TB) *storage.DB {
	db, err := storage.Open(":memory:")
	require.NoError(tb, err)
	tb.Cleanup(func() {
		require.NoError(tb, db.Close())
	})
	return db
}

func saveRun(tb testing.TB, db *storage.DB, title string) string {
	tb.Helper()
	id := storage.NewRunID()
	require.NoError(tb, db.Save(storage.Run{ID: id, Title: title, API: "openai", Model: "gpt-4o"}))
	return id
}

func TestPlanConversation(t *testing.T) {
	t.Run("all empty", func(t *testing.T) {
		pl, err := planConversation(&config.Config{}, testDB(t))
		require.NoError(t, err)
		require.Empty(t, pl.ReadID)
		require.Regexp(t, storage.IDRegexp, pl.WriteID)
		require.Empty(t, pl.Title)
	})

	t.Run("continue id updates in place", func(t *testing.T) {
		db := testDB(t)
		id := saveRun(t, db, "message")
		cfg := &config.Config{}
		cfg.Continue = id[:5]

		pl, err := planConversation(cfg, db)
		require.NoError(t, err)
		require.Equal(t, id, pl.ReadID)
		require.Equal(t, id, pl.WriteID)
		require.Equal(t, "message", pl.Title)
	})

	t.Run("continue title", func(t *testing.T) {
		db := testDB(t)
		id := saveRun(t, db, "message 1")
		cfg := &config.Config{}
		cfg.Continue = "message 1"

		pl, err := planConversation(cfg, db)
		require.NoError(t, err)
		require.Equal(t, id, pl.ReadID)
		require.Equal(t, id, pl.WriteID)
	})

	t.Run("continue last", func(t *testing.T) {
		db := testDB(t)
		id := saveRun(t, db, "message 1")
		cfg := &config.Config{}
		cfg.ContinueLast = true

		pl, err := planConversation(cfg, db)
		require.NoError(t, err)
		require.Equal(t, id, pl.ReadID)
		require.Equal(t, id, pl.WriteID)
		require.Equal(t, "message 1", pl.Title)
	})

	t.Run("continue last without runs", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.ContinueLast = true

		_, err := planConversation(cfg, testDB(t))
		require.ErrorIs(t, err, storage.ErrNoMatches)
	})

	t.Run("new title", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Title = "some title"

		pl, err := planConversation(cfg, testDB(t))
		require.NoError(t, err)
		require.Empty(t, pl.ReadID)
		require.Regexp(t, storage.IDRegexp, pl.WriteID)
		require.Equal(t, "some title", pl.Title)
	})

	t.Run("existing title is overwritten", func(t *testing.T) {
		db := testDB(t)
		id := saveRun(t, db, "some title")
		cfg := &config.Config{}
		cfg.Title = "some title"

		pl, err := planConversation(cfg, db)
		require.NoError(t, err)
		require.Empty(t, pl.ReadID)
		require.Equal(t, id, pl.WriteID)
	})

	t.Run("continue id and fork with title", func(t *testing.T) {
		db := testDB(t)
		id := saveRun(t, db, "message 1")
		cfg := &config.Config{}
		cfg.Title = "some title"
		cfg.Continue = id[:10]

		pl, err := planConversation(cfg, db)
		require.NoError(t, err)
		require.Equal(t, id, pl.ReadID)
		require.NotEqual(t, id, pl.WriteID)
		require.Regexp(t, storage.IDRegexp, pl.WriteID)
		require.Equal(t, "some title", pl.Title)
	})

	t.Run("continue invalid", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Continue = "aaa"

		_, err := planConversation(cfg, testDB(t))
		var e errs.Error
		require.ErrorAs(t, err, &e)
		require.Equal(t, "Could not find the conversation.", e.Reason)
		require.ErrorContains(t, e, "no runs found: aaa")
	})

	t.Run("continued run keeps its model", func(t *testing.T) {
		db := testDB(t)
		saveRun(t, db, "message 1")
		cfg := &config.Config{}
		cfg.API, cfg.Model = "anthropic", "claude-sonnet-4"
		cfg.ContinueLast = true

		pl, err := planConversation(cfg, db)
		require.NoError(t, err)
		require.Equal(t, "openai", pl.API)
		require.Equal(t, "gpt-4o", pl.Model)
	})

	t.Run("new run uses configured model", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.API, cfg.Model = "anthropic", "claude-sonnet-4"

		pl, err := planConversation(cfg, testDB(t))
		require.NoError(t, err)
		require.Equal(t, "anthropic", pl.API)
		require.Equal(t, "claude-sonnet-4", pl.Model)
	})
}
