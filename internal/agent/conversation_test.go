package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/skillbot/internal/llm"
	"github.com/aatumaykin/skillbot/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(logger.Config{
		Level:  "error",
		Format: "text",
		Output: "stdout",
	})
	require.NoError(t, err)
	return log
}

func TestConversationAppendAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	conv := NewConversation(path, testLogger(t))
	require.NoError(t, conv.Load())
	assert.Equal(t, 0, conv.Len())

	require.NoError(t, conv.Append(
		llm.Message{Role: llm.RoleUser, Content: "hello"},
		llm.Message{Role: llm.RoleAssistant, Content: "hi there"},
	))

	reloaded := NewConversation(path, testLogger(t))
	require.NoError(t, reloaded.Load())

	msgs := reloaded.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, llm.RoleAssistant, msgs[1].Role)
}

func TestConversationTruncatesToMaxHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	conv := NewConversation(path, testLogger(t))

	for i := 0; i < 25; i++ {
		require.NoError(t, conv.Append(llm.Message{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("turn %d", i),
		}))
	}

	assert.Equal(t, MaxHistory, conv.Len())

	// Persisted copy is the last-20 suffix.
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var file historyFile
	require.NoError(t, json.Unmarshal(data, &file))
	require.Len(t, file.Messages, MaxHistory)
	assert.Equal(t, "turn 5", file.Messages[0].Content)
	assert.Equal(t, "turn 24", file.Messages[MaxHistory-1].Content)
}

func TestConversationClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	conv := NewConversation(path, testLogger(t))

	require.NoError(t, conv.Append(llm.Message{Role: llm.RoleUser, Content: "hello"}))
	require.NoError(t, conv.Clear())
	assert.Equal(t, 0, conv.Len())

	reloaded := NewConversation(path, testLogger(t))
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 0, reloaded.Len())
}

func TestConversationCorruptFileDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	conv := NewConversation(path, testLogger(t))
	require.NoError(t, conv.Load())
	assert.Equal(t, 0, conv.Len())
}
