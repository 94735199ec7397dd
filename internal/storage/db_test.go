package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testDB(tb testing.TB) *DB {
	db, err := Open(":memory:")
	require.NoError(tb, err)
	tb.Cleanup(func() {
		require.NoError(tb, db.Close())
	})
	return db
}

func run(id, title string) Run {
	return Run{ID: id, Title: title, API: "openai", Model: "gpt-4o", State: "completed", Iterations: 2}
}

func TestDB(t *testing.T) {
	const testid = "df31ae23ab8b75b5643c2f846c570997"

	t.Run("list-empty", func(t *testing.T) {
		require.Empty(t, testDB(t).List())
	})

	t.Run("save", func(t *testing.T) {
		db := testDB(t)
		require.NoError(t, db.Save(run(testid, "message 1")))

		got, err := db.Find("df31")
		require.NoError(t, err)
		require.Equal(t, testid, got.ID)
		require.Equal(t, "message 1", got.Title)
		require.Equal(t, "completed", got.State)
		require.Equal(t, 2, got.Iterations)
		require.False(t, got.UpdatedAt.IsZero())
		require.Len(t, db.List(), 1)
	})

	t.Run("save rejects missing fields", func(t *testing.T) {
		db := testDB(t)
		require.Error(t, db.Save(run("", "message 1")))
		require.Error(t, db.Save(run(NewRunID(), " ")))
	})

	t.Run("update", func(t *testing.T) {
		db := testDB(t)
		require.NoError(t, db.Save(run(testid, "message 1")))
		require.NoError(t, db.Save(run(testid, "message 2")))

		got, err := db.Find("df31")
		require.NoError(t, err)
		require.Equal(t, "message 2", got.Title)
		require.Len(t, db.List(), 1)
	})

	t.Run("head", func(t *testing.T) {
		db := testDB(t)
		_, err := db.Head()
		require.ErrorIs(t, err, ErrNoMatches)

		require.NoError(t, db.Save(run(testid, "message 1")))
		time.Sleep(10 * time.Millisecond)
		next := NewRunID()
		require.NoError(t, db.Save(run(next, "another message")))

		head, err := db.Head()
		require.NoError(t, err)
		require.Equal(t, next, head.ID)
	})

	t.Run("find", func(t *testing.T) {
		db := testDB(t)
		const other = "df31ae23ab9b75b5641c2f846c571000"
		require.NoError(t, db.Save(run(testid, "message 1")))
		require.NoError(t, db.Save(run(other, "message 2")))

		got, err := db.Find("message 2")
		require.NoError(t, err)
		require.Equal(t, other, got.ID)

		_, err = db.Find("message")
		require.ErrorIs(t, err, ErrNoMatches)
		_, err = db.Find("df3")
		require.ErrorIs(t, err, ErrNoMatches)
		_, err = db.Find("df31ae")
		require.ErrorIs(t, err, ErrManyMatches)
	})

	t.Run("delete", func(t *testing.T) {
		db := testDB(t)
		require.NoError(t, db.Save(run(testid, "message 1")))
		require.NoError(t, db.Delete(NewRunID()))
		require.NotEmpty(t, db.List())
		require.NoError(t, db.Delete(testid))
		require.Empty(t, db.List())
		require.Error(t, db.Delete(""))
	})

	t.Run("older than", func(t *testing.T) {
		db := testDB(t)
		require.NoError(t, db.Save(run(testid, "message 1")))
		require.Empty(t, db.ListOlderThan(time.Hour))
		require.Len(t, db.ListOlderThan(-time.Hour), 1)
	})

	t.Run("completions", func(t *testing.T) {
		db := testDB(t)
		const id1 = "fc5012d8c67073ea0a46a3c05488a0e1"
		const id2 = "6c33f71694bf41a18c844a96d1f62f15"
		require.NoError(t, db.Save(run(id1, "some title")))
		require.NoError(t, db.Save(run(id2, "football teams")))

		require.Equal(t, []string{
			"fc5012d8\tsome title",
			"football teams\t6c33f716",
		}, db.Completions("f"))
		require.Equal(t, []string{id1 + "\tsome title"}, db.Completions(id1[:8]))
	})

	t.Run("persists to jsonl index", func(t *testing.T) {
		dir := t.TempDir()

		db, err := Open(dir)
		require.NoError(t, err)
		require.NoError(t, db.Save(run(testid, "message 1")))
		require.NoError(t, db.Delete(testid))
		require.NoError(t, db.Save(run(testid, "message 2")))
		require.NoError(t, db.Close())

		db2, err := Open(dir)
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, db2.Close()) })

		got, err := db2.Find(testid[:8])
		require.NoError(t, err)
		require.Equal(t, "message 2", got.Title)
		require.FileExists(t, filepath.Join(dir, indexFileName))
	})

	t.Run("compacts", func(t *testing.T) {
		dir := t.TempDir()
		db, err := Open(dir)
		require.NoError(t, err)
		for range compactMinOps + 1 {
			require.NoError(t, db.Save(run(testid, "same")))
		}
		bts, err := os.ReadFile(filepath.Join(dir, indexFileName))
		require.NoError(t, err)
		require.Less(t, len(bts), 10*1024)
		require.Len(t, db.List(), 1)
	})

	t.Run("rejects corrupt index", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, indexFileName), []byte("{nope\n"), 0o600))
		_, err := Open(dir)
		require.Error(t, err)
	})
}

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	require.Regexp(t, IDRegexp, id)
	require.NotEqual(t, id, NewRunID())
	require.Equal(t, id[:IDShort], ShortID(id))
	require.Equal(t, "abc", ShortID("abc"))
}
