package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aatumaykin/skillbot/internal/logger"
)

// stateKeyActiveProvider is the key under which the active provider name
// is stored in the state file.
const stateKeyActiveProvider = "active_provider"

// embedFallbackOrder lists providers to try for embeddings when the active
// provider has no embedding capability.
var embedFallbackOrder = []string{"gemini", "ollama"}

// Manager keeps the set of registered providers and tracks which one is
// active. The active selection is persisted to a JSON state file shared with
// other components; unknown keys in that file are preserved on write.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string // registration order, for stable listings
	active    string
	statePath string
	logger    *logger.Logger
}

// NewManager creates a provider manager persisting to the given state file.
func NewManager(statePath string, log *logger.Logger) *Manager {
	return &Manager{
		providers: make(map[string]Provider),
		statePath: statePath,
		logger:    log,
	}
}

// Register adds a provider under its own name. The first registered provider
// becomes active until RestoreActive or Switch changes the selection.
// Re-registering a name replaces the previous provider.
func (m *Manager) Register(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := p.Name()
	if _, exists := m.providers[name]; !exists {
		m.order = append(m.order, name)
	}
	m.providers[name] = p

	if m.active == "" {
		m.active = name
	}

	m.logger.Info("Registered LLM provider",
		logger.Field{Key: "provider", Value: name},
		logger.Field{Key: "model", Value: p.ModelName()})
}

// Get returns a registered provider by name.
func (m *Manager) Get(name string) (Provider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.providers[name]
	return p, ok
}

// Active returns the currently active provider, or nil if none registered.
func (m *Manager) Active() Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.providers[m.active]
}

// ActiveName returns the name of the currently active provider.
func (m *Manager) ActiveName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.active
}

// Names returns registered provider names in registration order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

// Switch makes the named provider active and persists the choice.
func (m *Manager) Switch(name string) error {
	m.mu.Lock()

	if _, ok := m.providers[name]; !ok {
		available := make([]string, len(m.order))
		copy(available, m.order)
		m.mu.Unlock()
		return fmt.Errorf("provider %q is not registered (available: %v)", name, available)
	}

	m.active = name
	statePath := m.statePath
	m.mu.Unlock()

	if err := saveActiveProvider(statePath, name); err != nil {
		m.logger.Error("Failed to persist active provider", err,
			logger.Field{Key: "provider", Value: name},
			logger.Field{Key: "state_file", Value: statePath})
		return fmt.Errorf("failed to persist provider selection: %w", err)
	}

	m.logger.Info("Switched LLM provider", logger.Field{Key: "provider", Value: name})
	return nil
}

// RestoreActive selects the initial active provider. The configured default
// wins unless the state file carries a previously persisted selection that is
// still registered.
func (m *Manager) RestoreActive(defaultName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.providers[defaultName]; ok {
		m.active = defaultName
	}

	saved, err := loadActiveProvider(m.statePath)
	if err != nil {
		m.logger.Debug("No provider state to restore",
			logger.Field{Key: "state_file", Value: m.statePath},
			logger.Field{Key: "reason", Value: err.Error()})
		return
	}

	if _, ok := m.providers[saved]; ok {
		m.active = saved
		m.logger.Info("Restored active LLM provider",
			logger.Field{Key: "provider", Value: saved})
	} else if saved != "" {
		m.logger.Warn("Persisted provider is no longer registered",
			logger.Field{Key: "provider", Value: saved})
	}
}

// Embed produces an embedding using the active provider, falling back to the
// first registered provider with embedding capability. Transient failures are
// returned as-is; only ErrEmbeddingsUnsupported triggers the fallback.
func (m *Manager) Embed(ctx context.Context, text string) ([]float32, error) {
	tried := map[string]bool{}

	if active := m.Active(); active != nil {
		vec, err := active.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if !errors.Is(err, ErrEmbeddingsUnsupported) {
			return nil, err
		}
		tried[active.Name()] = true
	}

	for _, name := range embedFallbackOrder {
		if tried[name] {
			continue
		}
		p, ok := m.Get(name)
		if !ok {
			continue
		}
		vec, err := p.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if !errors.Is(err, ErrEmbeddingsUnsupported) {
			return nil, err
		}
		tried[name] = true
	}

	return nil, ErrEmbeddingsUnsupported
}

// Usage returns cumulative session usage of the active provider, if it
// tracks one.
func (m *Manager) Usage() (Usage, bool) {
	active := m.Active()
	if active == nil {
		return Usage{}, false
	}

	reporter, ok := active.(UsageReporter)
	if !ok {
		return Usage{}, false
	}
	return reporter.SessionUsage(), true
}

// loadActiveProvider reads the persisted provider name from the state file.
func loadActiveProvider(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var state map[string]any
	if err := json.Unmarshal(data, &state); err != nil {
		return "", fmt.Errorf("failed to parse state file: %w", err)
	}

	name, _ := state[stateKeyActiveProvider].(string)
	if name == "" {
		return "", fmt.Errorf("state file has no %s", stateKeyActiveProvider)
	}
	return name, nil
}

// saveActiveProvider writes the provider name into the state file, merging
// with whatever other keys the file already holds. The write is atomic.
func saveActiveProvider(path, name string) error {
	state := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		// A corrupt state file is replaced rather than fatal
		_ = json.Unmarshal(data, &state)
	}

	state[stateKeyActiveProvider] = name

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}
