package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/wasilibs/go-re2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/aatumaykin/skillbot/internal/llm"
	"github.com/aatumaykin/skillbot/internal/logger"
)

const generationPrompt = `You are a Python skill generator. Create a skill based on the user's request.

CRITICAL REQUIREMENTS:
1. Include ALL necessary imports at the TOP of the code (os, sys, json, datetime, requests, etc.)
2. Have a main function called ` + "`run()`" + ` with optional parameters that have defaults
3. Return a string result (always return a string, never None)
4. Handle errors gracefully with try/except
5. Be completely self-contained

Original request: %s

User's teaching:
%s

Generate ONLY the Python code. Start with imports, then define the run function.
Do NOT include markdown code fences or explanations.

Example format:
import os
import json

def run(param1="default"):
    try:
        # implementation
        return "result string"
    except Exception as e:
        return f"Error: {e}"

Your code (start with imports):`

const improvePrompt = `The following Python skill code has an error. Fix it based on the error and user feedback.

Current code:
` + "```python\n%s\n```" + `

Error:
%s

User feedback:
%s

Generate the corrected code only, no explanation.`

const namePrompt = `Given this task description, generate a short snake_case skill name (2-4 words).

Task: %s

Reply with only the skill name, like: check_weather or get_crypto_price`

var (
	responseCodePattern = re2.MustCompile("(?s)```(?:python)?\\s*\\n(.*?)```")
	importLinePattern   = re2.MustCompile(`(?m)^(?:import|from)\s+(\w+)`)
	invalidRunePattern  = re2.MustCompile(`[^a-z0-9_]`)
	underscoreRuns      = re2.MustCompile(`_+`)
)

// asciiFold strips diacritics so non-ASCII model output still yields
// a usable snake_case name.
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Python standard library modules excluded from dependency inference.
var stdlibModules = map[string]bool{
	"os": true, "sys": true, "json": true, "datetime": true, "time": true,
	"re": true, "math": true, "random": true, "urllib": true, "base64": true,
	"hashlib": true, "io": true, "pathlib": true, "typing": true,
	"collections": true, "itertools": true, "functools": true,
	"subprocess": true, "shutil": true, "glob": true, "tempfile": true,
	"shlex": true, "platform": true, "socket": true, "http": true,
	"email": true, "html": true, "xml": true,
}

// CodeValidator checks generated python source before a skill is
// accepted. Implemented by the executor.
type CodeValidator interface {
	Validate(ctx context.Context, code string) (bool, string)
}

// TeachingMessage is one turn of the teaching exchange embedded in
// the generation prompt.
type TeachingMessage struct {
	Role    string
	Content string
}

// ErrNoProvider is returned when no LLM provider is active.
var ErrNoProvider = errors.New("no active llm provider")

// Generator builds skill documents from teaching conversations
// using the active LLM provider.
type Generator struct {
	manager   *llm.Manager
	validator CodeValidator
	store     *Store
	logger    *logger.Logger
}

// NewGenerator creates a new Generator.
func NewGenerator(manager *llm.Manager, validator CodeValidator, store *Store, log *logger.Logger) *Generator {
	return &Generator{
		manager:   manager,
		validator: validator,
		store:     store,
		logger:    log,
	}
}

// Generate creates a new skill from the original request and the
// teaching exchange. Returns nil when nothing usable was produced.
func (g *Generator) Generate(ctx context.Context, originalRequest string, teaching []TeachingMessage) (*Skill, error) {
	var exchange strings.Builder
	for _, msg := range teaching {
		role := msg.Role
		if role == "" {
			role = "user"
		}
		exchange.WriteString(fmt.Sprintf("%s: %s\n", titleCaser.String(role), msg.Content))
	}

	prompt := fmt.Sprintf(generationPrompt, originalRequest, exchange.String())

	provider := g.manager.Active()
	if provider == nil {
		return nil, ErrNoProvider
	}

	response, err := provider.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You are an expert Python developer. Generate clean, working code."},
		{Role: llm.RoleUser, Content: prompt},
	}, llm.Options{})
	if err != nil {
		return nil, fmt.Errorf("skill generation failed: %w", err)
	}

	code := extractCode(response)
	if code == "" {
		g.logger.Warn("no code extracted from generation response")
		return nil, nil
	}

	if ok, errMsg := g.validator.Validate(ctx, code); !ok {
		g.logger.Warn("generated code failed validation",
			logger.Field{Key: "error", Value: errMsg},
		)
		return nil, nil
	}

	name := g.generateName(ctx, originalRequest)
	name = g.uniqueName(name)

	return &Skill{
		Name:         name,
		Title:        titleCaser.String(strings.ReplaceAll(name, "_", " ")),
		Description:  originalRequest,
		Dependencies: extractDependencies(code),
		Code:         code,
		Author:       "user",
		Created:      time.Now().Format("2006-01-02"),
		Enabled:      true,
	}, nil
}

// Improve regenerates a skill's code from an execution error and
// user feedback. Name, title, author and creation date survive.
func (g *Generator) Improve(ctx context.Context, skill *Skill, errMsg, feedback string) (*Skill, error) {
	prompt := fmt.Sprintf(improvePrompt, skill.Code, errMsg, feedback)

	provider := g.manager.Active()
	if provider == nil {
		return nil, ErrNoProvider
	}

	response, err := provider.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You are an expert Python developer. Fix the code."},
		{Role: llm.RoleUser, Content: prompt},
	}, llm.Options{})
	if err != nil {
		return nil, fmt.Errorf("skill improvement failed: %w", err)
	}

	code := extractCode(response)
	if code == "" {
		return nil, nil
	}

	if ok, msg := g.validator.Validate(ctx, code); !ok {
		g.logger.Warn("improved code failed validation",
			logger.Field{Key: "skill", Value: skill.Name},
			logger.Field{Key: "error", Value: msg},
		)
		return nil, nil
	}

	return &Skill{
		Name:         skill.Name,
		Title:        skill.Title,
		Description:  skill.Description,
		Dependencies: extractDependencies(code),
		Code:         code,
		Author:       skill.Author,
		Created:      skill.Created,
		Enabled:      skill.Enabled,
	}, nil
}

// generateName asks the model for a short snake_case name and
// sanitizes the reply. Falls back to "new_skill".
func (g *Generator) generateName(ctx context.Context, task string) string {
	provider := g.manager.Active()
	if provider == nil {
		return "new_skill"
	}

	response, err := provider.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "Reply with only the skill name."},
		{Role: llm.RoleUser, Content: fmt.Sprintf(namePrompt, task)},
	}, llm.Options{})
	if err != nil {
		g.logger.Warn("skill name generation failed",
			logger.Field{Key: "error", Value: err.Error()},
		)
		return "new_skill"
	}

	return SanitizeName(response)
}

// uniqueName resolves collisions against the store with a numeric
// suffix: get_weather, get_weather_2, get_weather_3, ...
func (g *Generator) uniqueName(name string) string {
	if _, exists := g.store.Get(name); !exists {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if _, exists := g.store.Get(candidate); !exists {
			return candidate
		}
	}
}

// SanitizeName normalizes a model reply into a snake_case identifier:
// diacritics folded, lowercased, invalid runes replaced with
// underscores, runs collapsed, edges trimmed.
func SanitizeName(raw string) string {
	name := strings.TrimSpace(raw)

	if folded, _, err := transform.String(asciiFold, name); err == nil {
		name = folded
	}

	name = strings.ToLower(name)
	name = invalidRunePattern.ReplaceAllString(name, "_")
	name = underscoreRuns.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if name == "" {
		return "new_skill"
	}
	return name
}

// extractCode pulls python source out of a model response: the first
// fenced code block, else the run of lines starting at the first
// import/from/def statement.
func extractCode(response string) string {
	if m := responseCodePattern.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}

	var code []string
	inCode := false
	for _, line := range strings.Split(strings.TrimSpace(response), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "import ") ||
			strings.HasPrefix(trimmed, "from ") ||
			strings.HasPrefix(trimmed, "def ") {
			inCode = true
		}
		if inCode {
			code = append(code, line)
		}
	}

	return strings.Join(code, "\n")
}

// extractDependencies infers pip packages from top-level imports,
// excluding the python standard library.
func extractDependencies(code string) []string {
	seen := make(map[string]bool)
	var deps []string

	for _, m := range importLinePattern.FindAllStringSubmatch(code, -1) {
		module := m[1]
		if stdlibModules[module] || seen[module] {
			continue
		}
		seen[module] = true
		deps = append(deps, module)
	}

	return deps
}
