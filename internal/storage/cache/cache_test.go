package cache

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/unai/internal/proto"
)

func TestTranscripts(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	const id = "6c33f71694bf41a18c844a96d1f62f15"
	conv := proto.NewContext(
		proto.UserText("2+2?"),
		proto.NewMessage(proto.RoleAssistant, proto.ToolCall{ID: "c1", Name: "add", Arguments: json.RawMessage(`{"a":2,"b":2}`), Finished: true}),
		proto.ToolResults(proto.ToolResult{CallID: "c1", Name: "add", Content: "4"}),
		proto.AssistantText("4"),
	)

	t.Run("round trip", func(t *testing.T) {
		require.False(t, store.Exists(id))
		require.NoError(t, store.Save(id, conv))
		require.True(t, store.Exists(id))
		require.FileExists(t, store.filePath(id))
		require.Contains(t, store.filePath(id), "/6c/")

		got, err := store.Load(id)
		require.NoError(t, err)
		require.Equal(t, conv.Messages(), got.Messages())
	})

	t.Run("overwrite", func(t *testing.T) {
		next := conv.Append(proto.UserText("thanks"))
		require.NoError(t, store.Save(id, next))
		got, err := store.Load(id)
		require.NoError(t, err)
		require.Equal(t, 5, got.Len())
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(id))
		_, err := store.Load(id)
		require.ErrorIs(t, err, os.ErrNotExist)
		require.Error(t, store.Delete(id))
	})

	t.Run("empty id", func(t *testing.T) {
		require.ErrorIs(t, store.Save("", conv), errInvalidID)
		_, err := store.Load("")
		require.ErrorIs(t, err, errInvalidID)
		require.False(t, store.Exists(""))
	})
}
