package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aatumaykin/skillbot/internal/llm"
	"github.com/aatumaykin/skillbot/internal/logger"
)

// MaxHistory bounds the conversation to the most recent entries.
// Older messages are dropped silently; the persisted file is always
// the last-MaxHistory suffix of the logical history.
const MaxHistory = 20

// Conversation is the durable chat history for the single admin
// conversation. Only final user/assistant pairs are recorded; tool
// traffic stays in the per-run scratch list.
type Conversation struct {
	path   string
	logger *logger.Logger

	mu   sync.Mutex
	msgs []llm.Message
}

type storedMessage struct {
	Role    llm.Role `json:"role"`
	Content string   `json:"content"`
}

type historyFile struct {
	Messages []storedMessage `json:"messages"`
}

func NewConversation(path string, log *logger.Logger) *Conversation {
	return &Conversation{path: path, logger: log}
}

// Load reads the persisted history. A missing file starts an empty
// conversation; a corrupt one is discarded with a warning.
func (c *Conversation) Load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read history file: %w", err)
	}

	var file historyFile
	if err := json.Unmarshal(data, &file); err != nil {
		c.logger.Warn("Discarding corrupt history file",
			logger.Field{Key: "path", Value: c.path},
			logger.Field{Key: "error", Value: err.Error()})
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.msgs = c.msgs[:0]
	for _, m := range file.Messages {
		c.msgs = append(c.msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	c.truncateLocked()

	return nil
}

// Append records messages, truncates to the bound and persists.
func (c *Conversation) Append(msgs ...llm.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.msgs = append(c.msgs, msgs...)
	c.truncateLocked()

	return c.saveLocked()
}

// Messages returns a copy of the current history.
func (c *Conversation) Messages() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]llm.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// Len returns the current history length.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

// Clear drops the history in memory and on disk.
func (c *Conversation) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.msgs = nil
	return c.saveLocked()
}

func (c *Conversation) truncateLocked() {
	if len(c.msgs) > MaxHistory {
		c.msgs = c.msgs[len(c.msgs)-MaxHistory:]
	}
}

// saveLocked rewrites the history file in full. Caller holds c.mu.
func (c *Conversation) saveLocked() error {
	file := historyFile{Messages: make([]storedMessage, 0, len(c.msgs))}
	for _, m := range c.msgs {
		file.Messages = append(file.Messages, storedMessage{Role: m.Role, Content: m.Content})
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace history file: %w", err)
	}

	return nil
}
