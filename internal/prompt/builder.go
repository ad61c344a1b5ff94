// Package prompt assembles the system prompt from the behavior
// documents SOUL.md, IDENTITY.md, USER.md and TOOLS.md.
package prompt

import (
	"os"
	"strings"
	"sync"

	"github.com/wasilibs/go-re2"

	"github.com/aatumaykin/skillbot/internal/config"
	"github.com/aatumaykin/skillbot/internal/logger"
)

// Identity holds the structured fields parsed from IDENTITY.md.
// Fields with placeholder values (text in parentheses) stay empty.
type Identity struct {
	Name     string
	Creature string
	Vibe     string
	Emoji    string
}

var identityPatterns = map[string]*re2.Regexp{
	"name":     re2.MustCompile(`(?i)\*\*Name:\*\*\s*(.+)`),
	"creature": re2.MustCompile(`(?i)\*\*Creature:\*\*\s*(.+)`),
	"vibe":     re2.MustCompile(`(?i)\*\*Vibe:\*\*\s*(.+)`),
	"emoji":    re2.MustCompile(`(?i)\*\*Emoji:\*\*\s*(.+)`),
}

// capabilities closes every prompt. It tells the model how tool calls
// surface and that teaching is how new abilities appear.
const capabilities = `# Your Capabilities

You have access to tools (skills) that let you perform tasks. The tools
are called automatically when you decide to use them - just describe
what you want to do.

When the user asks for something no skill covers, say so and suggest
teaching you with /teach. When a skill schedules something, the user
always confirms before the job is created.

Be helpful, be yourself, and remember: actions speak louder than words.`

// Builder reads the behavior documents once and caches the assembled
// prompt until Reload.
type Builder struct {
	paths  config.PathsConfig
	logger *logger.Logger

	mu       sync.Mutex
	cached   string
	identity *Identity
}

func NewBuilder(paths config.PathsConfig, log *logger.Logger) *Builder {
	return &Builder{paths: paths, logger: log}
}

// Build assembles the system prompt. Missing documents are skipped;
// the capabilities section is always present, so Build never returns
// an empty string.
func (b *Builder) Build() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cached != "" {
		return b.cached
	}

	var sections []string

	if soul := b.readFile(b.paths.SoulFile); soul != "" {
		sections = append(sections, "# Your Soul\n"+soul)
	}
	if identity := b.readFile(b.paths.IdentityFile); identity != "" {
		sections = append(sections, "# Your Identity\n"+identity)
		b.identity = parseIdentity(identity)
	}
	if user := b.readFile(b.paths.UserFile); user != "" {
		sections = append(sections, "# About Your Human\n"+user)
	}
	if tools := b.readFile(b.paths.ToolsFile); tools != "" {
		sections = append(sections, "# Your Environment\n"+tools)
	}

	sections = append(sections, capabilities)

	b.cached = strings.Join(sections, "\n\n---\n\n")
	return b.cached
}

// Identity returns the parsed identity fields, building the prompt
// first if needed. Returns nil when IDENTITY.md is absent.
func (b *Builder) Identity() *Identity {
	b.mu.Lock()
	built := b.cached != ""
	b.mu.Unlock()

	if !built {
		b.Build()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.identity
}

// Reload drops the cache and rebuilds from disk.
func (b *Builder) Reload() string {
	b.mu.Lock()
	b.cached = ""
	b.identity = nil
	b.mu.Unlock()

	return b.Build()
}

func (b *Builder) readFile(path string) string {
	if path == "" {
		return ""
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			b.logger.Warn("Failed to read behavior document",
				logger.Field{Key: "path", Value: path},
				logger.Field{Key: "error", Value: err.Error()})
		}
		return ""
	}

	return strings.TrimSpace(string(content))
}

func parseIdentity(content string) *Identity {
	id := &Identity{}

	for key, pattern := range identityPatterns {
		m := pattern.FindStringSubmatch(content)
		if m == nil {
			continue
		}

		value := strings.TrimSpace(m[1])
		if value == "" || strings.HasPrefix(value, "(") {
			continue
		}

		switch key {
		case "name":
			id.Name = value
		case "creature":
			id.Creature = value
		case "vibe":
			id.Vibe = value
		case "emoji":
			id.Emoji = value
		}
	}

	return id
}
