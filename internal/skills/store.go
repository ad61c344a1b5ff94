package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/aatumaykin/skillbot/internal/logger"
)

// Store manages loading and caching of skill documents from the
// skills directory. It owns the authoritative in-memory copy.
type Store struct {
	dir    string
	parser *Parser
	logger *logger.Logger

	mu     sync.RWMutex
	cache  map[string]*Skill
	loaded bool
}

// NewStore creates a new Store for the given skills directory.
func NewStore(dir string, log *logger.Logger) *Store {
	return &Store{
		dir:    dir,
		parser: NewParser(),
		logger: log,
		cache:  make(map[string]*Skill),
	}
}

// Dir returns the skills directory path.
func (s *Store) Dir() string {
	return s.dir
}

// LoadAll parses every *.md document in the skills directory and
// replaces the in-memory cache atomically. A document that fails to
// parse is logged and skipped; it never aborts the rest. The Enabled
// flag of previously loaded skills survives a reload.
func (s *Store) LoadAll() ([]*Skill, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.cache = make(map[string]*Skill)
			s.loaded = true
			s.mu.Unlock()
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read skills directory: %w", err)
	}

	fresh := make(map[string]*Skill)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		skill, err := s.loadFile(path)
		if err != nil {
			s.logger.Warn("skipping skill document",
				logger.Field{Key: "path", Value: path},
				logger.Field{Key: "error", Value: err.Error()},
			)
			continue
		}

		fresh[skill.Name] = skill
	}

	s.mu.Lock()
	for name, skill := range fresh {
		if prev, ok := s.cache[name]; ok {
			skill.Enabled = prev.Enabled
		}
	}
	s.cache = fresh
	s.loaded = true
	s.mu.Unlock()

	return s.List(), nil
}

// loadFile reads and parses a single skill document.
func (s *Store) loadFile(path string) (*Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read skill file: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), ".md")

	skill, err := s.parser.Parse(name, string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse skill file: %w", err)
	}

	return skill, nil
}

// Get retrieves a skill by name.
func (s *Store) Get(name string) (*Skill, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	skill, ok := s.cache[name]
	return skill, ok
}

// List returns all loaded skills sorted by name.
func (s *Store) List() []*Skill {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Skill, 0, len(s.cache))
	for _, skill := range s.cache {
		out = append(out, skill)
	}

	slices.SortFunc(out, func(a, b *Skill) int {
		return strings.Compare(a.Name, b.Name)
	})

	return out
}

// Count returns the number of loaded skills.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// Save serializes the skill to its canonical document form and
// rewrites the backing file atomically, then updates the cache.
func (s *Store) Save(skill *Skill) error {
	if err := skill.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create skills directory: %w", err)
	}

	path := s.Path(skill.Name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, []byte(skill.Serialize()), 0o644); err != nil {
		return fmt.Errorf("failed to write skill file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename skill file: %w", err)
	}

	s.mu.Lock()
	s.cache[skill.Name] = skill
	s.mu.Unlock()

	s.logger.Info("skill saved",
		logger.Field{Key: "name", Value: skill.Name},
		logger.Field{Key: "path", Value: path},
	)

	return nil
}

// Remove deletes the skill document and its cache entry.
func (s *Store) Remove(name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove skill file: %w", err)
	}

	s.mu.Lock()
	delete(s.cache, name)
	s.mu.Unlock()

	return nil
}

// SetEnabled flips the runtime enabled flag for a skill.
// Reports whether the skill exists.
func (s *Store) SetEnabled(name string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	skill, ok := s.cache[name]
	if !ok {
		return false
	}
	skill.Enabled = enabled
	return true
}

// Search returns skills whose name, title or description contains the
// query. The search is case-insensitive; an empty query returns all.
func (s *Store) Search(query string) []*Skill {
	if query == "" {
		return s.List()
	}

	query = strings.ToLower(query)

	var matched []*Skill
	for _, skill := range s.List() {
		if strings.Contains(strings.ToLower(skill.Name), query) ||
			strings.Contains(strings.ToLower(skill.Title), query) ||
			strings.Contains(strings.ToLower(skill.Description), query) {
			matched = append(matched, skill)
		}
	}

	return matched
}

// Path returns the document path for a skill name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".md")
}

// Counts returns enabled/disabled tallies for status displays.
func Counts(skills []*Skill) (enabled, disabled int) {
	for _, skill := range skills {
		if skill.Enabled {
			enabled++
		} else {
			disabled++
		}
	}
	return enabled, disabled
}
