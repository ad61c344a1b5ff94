package tools

import (
	"sync"

	"github.com/aatumaykin/skillbot/internal/llm"
	"github.com/aatumaykin/skillbot/internal/logger"
	"github.com/aatumaykin/skillbot/internal/skills"
)

// Registry exposes enabled skills as tool definitions for the LLM
// function calling API. Parameters come from the document's explicit
// declarations when present, otherwise from the python run()
// signature. Built definitions are cached per skill name.
type Registry struct {
	store  *skills.Store
	logger *logger.Logger

	mu    sync.Mutex
	cache map[string]llm.ToolDefinition
}

// NewRegistry creates a registry backed by the given skill store.
func NewRegistry(store *skills.Store, log *logger.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: log,
		cache:  make(map[string]llm.ToolDefinition),
	}
}

// Definitions returns tool definitions for all enabled skills.
// A skill whose parameters cannot be determined is skipped with a
// warning; it never aborts the rest.
func (r *Registry) Definitions() []llm.ToolDefinition {
	list := r.store.List()

	defs := make([]llm.ToolDefinition, 0, len(list))
	for _, skill := range list {
		if !skill.Enabled {
			continue
		}

		def, err := r.definition(skill)
		if err != nil {
			r.logger.Warn("Skipping skill with unparseable signature",
				logger.Field{Key: "skill", Value: skill.Name},
				logger.Field{Key: "error", Value: err.Error()})
			continue
		}
		defs = append(defs, def)
	}

	return defs
}

// definition returns the cached tool definition for a skill,
// building it on first use.
func (r *Registry) definition(skill *skills.Skill) (llm.ToolDefinition, error) {
	r.mu.Lock()
	if def, ok := r.cache[skill.Name]; ok {
		r.mu.Unlock()
		return def, nil
	}
	r.mu.Unlock()

	params := skill.Params
	if len(params) == 0 {
		var err error
		params, err = ParseRunSignature(skill.Code)
		if err != nil {
			return llm.ToolDefinition{}, err
		}
	}

	description := skill.Description
	if description == "" {
		description = skill.Title
	}

	def := llm.ToolDefinition{
		Name:        skill.Name,
		Description: description,
		Parameters:  buildSchema(params),
	}

	r.mu.Lock()
	r.cache[skill.Name] = def
	r.mu.Unlock()

	return def, nil
}

// Refresh drops all cached definitions and reloads the skill store.
func (r *Registry) Refresh() error {
	r.ClearCache()
	_, err := r.store.LoadAll()
	return err
}

// ClearCache drops all cached definitions. The next Definitions call
// rebuilds them from the current store contents.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[string]llm.ToolDefinition)
}

// buildSchema converts parameter declarations to a JSON Schema object
// in OpenAI function calling format.
func buildSchema(params []skills.Param) map[string]interface{} {
	properties := make(map[string]interface{}, len(params))
	required := make([]string, 0)

	for _, p := range params {
		description := p.Description
		if description == "" {
			description = "Parameter: " + p.Name
		}

		prop := map[string]interface{}{
			"type":        jsonType(p.Type),
			"description": description,
		}
		if p.Default != "" {
			prop["default"] = p.Default
		}

		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
