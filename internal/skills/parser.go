package skills

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wasilibs/go-re2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ErrNoCode is returned for documents without a python code block.
// Such documents are not skills and are skipped during loading.
var ErrNoCode = errors.New("skill document has no python code block")

// Param represents an explicit parameter declaration from the
// "# Parameters" section. When present, declarations take precedence
// over the parsed function signature.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Default     string
}

// Skill represents a parsed skill document.
// The name is the file stem and serves as the stable identity;
// Enabled is runtime state and is not persisted.
type Skill struct {
	Name         string
	Title        string
	Description  string
	Dependencies []string
	Params       []Param
	Code         string
	Author       string
	Created      string
	Enabled      bool
}

// frontmatter is the YAML header between "---" fences.
type frontmatter struct {
	Title   string `yaml:"title"`
	Author  string `yaml:"author"`
	Created string `yaml:"created"`
}

// Section extraction patterns. Each section runs until the next
// heading or end of document.
var (
	descriptionPattern  = re2.MustCompile(`(?ims)^#\s*Description\s*\n(.*?)(?:\n#|\z)`)
	dependenciesPattern = re2.MustCompile(`(?ims)^#\s*Dependencies\s*\n(.*?)(?:\n#|\z)`)
	parametersPattern   = re2.MustCompile(`(?ims)^#\s*Parameters\s*\n(.*?)(?:\n#|\z)`)
	codePattern         = re2.MustCompile("(?s)```python\\s*\\n(.*?)```")
	paramLinePattern    = re2.MustCompile(`(?m)^[-*]\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(([^)]*)\)\s*:\s*(.*)$`)
)

var titleCaser = cases.Title(language.English)

// Parser handles parsing of skill markdown documents.
type Parser struct{}

// NewParser creates a new Parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses a skill document. The expected format:
//
//	---
//	title: Get Weather
//	author: user
//	created: 2024-05-01
//	---
//
//	# Description
//	Fetches the current weather for a city.
//
//	# Dependencies
//	- requests
//
//	# Code
//	```python
//	def run(city):
//	    ...
//	```
//
// The frontmatter and every section except the code block are optional.
// A document without a python code block returns ErrNoCode.
func (p *Parser) Parse(name, content string) (*Skill, error) {
	header, body := splitFrontmatter(content)

	var meta frontmatter
	if header != "" {
		if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
	}

	// The code block is cut out before section extraction so that
	// column-zero python comments are not mistaken for headings.
	code := ""
	sections := body
	if loc := codePattern.FindStringSubmatchIndex(body); loc != nil {
		code = strings.TrimSpace(body[loc[2]:loc[3]])
		sections = body[:loc[0]] + body[loc[1]:]
	}
	if code == "" {
		return nil, ErrNoCode
	}

	description := ""
	if m := descriptionPattern.FindStringSubmatch(sections); m != nil {
		description = strings.TrimSpace(m[1])
	}

	var dependencies []string
	if m := dependenciesPattern.FindStringSubmatch(sections); m != nil {
		dependencies = parseBulletList(m[1])
	}

	var params []Param
	if m := parametersPattern.FindStringSubmatch(sections); m != nil {
		params = parseParams(m[1])
	}

	title := meta.Title
	if title == "" {
		title = titleCaser.String(strings.ReplaceAll(name, "_", " "))
	}

	author := meta.Author
	if author == "" {
		author = "unknown"
	}

	return &Skill{
		Name:         name,
		Title:        title,
		Description:  description,
		Dependencies: dependencies,
		Params:       params,
		Code:         code,
		Author:       author,
		Created:      meta.Created,
		Enabled:      true,
	}, nil
}

// splitFrontmatter splits content into the YAML header and the body.
// Documents without a "---" fence have no header; the whole content
// is treated as body.
func splitFrontmatter(content string) (header, body string) {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	if !strings.HasPrefix(content, "---") {
		return "", content
	}

	rest := strings.TrimPrefix(content, "---")
	rest = strings.TrimPrefix(rest, "\n")

	end := strings.Index(rest, "\n---")
	if end == -1 {
		return "", content
	}

	header = rest[:end]
	body = rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")

	return header, body
}

// parseBulletList extracts "- item" and "* item" entries.
func parseBulletList(section string) []string {
	var items []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "*") {
			continue
		}
		item := strings.TrimSpace(strings.TrimLeft(line, "-* "))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// parseParams parses explicit parameter declarations of the form
//
//	- name (type, required): description
//	- name (type, optional, default=X): description
func parseParams(section string) []Param {
	var params []Param
	for _, m := range paramLinePattern.FindAllStringSubmatch(section, -1) {
		param := Param{
			Name:        m[1],
			Description: strings.TrimSpace(m[3]),
			Type:        "string",
		}

		for i, attr := range strings.Split(m[2], ",") {
			attr = strings.TrimSpace(attr)
			switch {
			case i == 0:
				if attr != "" {
					param.Type = attr
				}
			case attr == "required":
				param.Required = true
			case attr == "optional":
				param.Required = false
			case strings.HasPrefix(attr, "default="):
				param.Default = strings.TrimPrefix(attr, "default=")
			}
		}

		params = append(params, param)
	}
	return params
}

// Serialize converts the skill back to its canonical document form.
// Parse(Serialize(s)) preserves all persisted fields.
func (s *Skill) Serialize() string {
	var out strings.Builder

	out.WriteString("---\n")
	out.WriteString(fmt.Sprintf("title: %s\n", s.Title))
	out.WriteString(fmt.Sprintf("author: %s\n", s.Author))
	out.WriteString(fmt.Sprintf("created: %s\n", s.Created))
	out.WriteString("---\n\n")

	out.WriteString("# Description\n")
	out.WriteString(s.Description)
	out.WriteString("\n\n")

	out.WriteString("# Dependencies\n")
	for _, dep := range s.Dependencies {
		out.WriteString(fmt.Sprintf("- %s\n", dep))
	}
	out.WriteString("\n")

	if len(s.Params) > 0 {
		out.WriteString("# Parameters\n")
		for _, p := range s.Params {
			kind := "optional"
			if p.Required {
				kind = "required"
			}
			if p.Default != "" {
				out.WriteString(fmt.Sprintf("- %s (%s, %s, default=%s): %s\n", p.Name, p.Type, kind, p.Default, p.Description))
			} else {
				out.WriteString(fmt.Sprintf("- %s (%s, %s): %s\n", p.Name, p.Type, kind, p.Description))
			}
		}
		out.WriteString("\n")
	}

	out.WriteString("# Code\n")
	out.WriteString("```python\n")
	out.WriteString(s.Code)
	out.WriteString("\n```\n")

	return out.String()
}

// Validate checks the fields required for a skill to be usable.
func (s *Skill) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("skill name is required")
	}
	if s.Code == "" {
		return ErrNoCode
	}
	return nil
}

// String returns a string representation of the skill.
func (s *Skill) String() string {
	return fmt.Sprintf("Skill[%s - %s]", s.Name, s.Title)
}

// IndexText is the document stored in the semantic index for the skill.
func (s *Skill) IndexText() string {
	title := s.Title
	if title == "" {
		title = s.Name
	}
	if s.Description == "" {
		return title
	}
	return title + "\n\n" + s.Description
}
