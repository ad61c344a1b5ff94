package tools

import (
	"fmt"
	"strings"

	"github.com/wasilibs/go-re2"

	"github.com/aatumaykin/skillbot/internal/skills"
)

var runDefPattern = re2.MustCompile(`(?m)^[ \t]*def\s+run\s*\(`)

// ParseRunSignature derives parameter declarations from the python
// run() function signature. self, bare markers and *args/**kwargs are
// skipped; a parameter is required when it has no default value.
func ParseRunSignature(code string) ([]skills.Param, error) {
	argList, err := runArgList(code)
	if err != nil {
		return nil, err
	}

	var params []skills.Param
	for _, arg := range splitArgs(argList) {
		arg = strings.TrimSpace(arg)
		if arg == "" || arg == "/" || strings.HasPrefix(arg, "*") {
			continue
		}

		name, annotation, def, hasDefault := parseArg(arg)
		if name == "" || name == "self" {
			continue
		}

		params = append(params, skills.Param{
			Name:        name,
			Type:        jsonType(annotation),
			Description: "Parameter: " + name,
			Required:    !hasDefault,
			Default:     cleanDefault(def),
		})
	}

	return params, nil
}

// runArgList extracts the raw argument list between the parentheses
// of the run() definition. Handles multi-line signatures and
// parentheses inside string defaults.
func runArgList(code string) (string, error) {
	loc := runDefPattern.FindStringIndex(code)
	if loc == nil {
		return "", fmt.Errorf("no run() function found")
	}

	depth := 1
	var quote byte
	for i := loc[1]; i < len(code); i++ {
		c := code[i]

		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}

		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return code[loc[1]:i], nil
			}
		}
	}

	return "", fmt.Errorf("unterminated run() signature")
}

// splitArgs splits the argument list on top-level commas, leaving
// commas inside brackets and string literals alone.
func splitArgs(list string) []string {
	var args []string
	depth := 0
	var quote byte
	start := 0

	for i := 0; i < len(list); i++ {
		c := list[i]

		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}

		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, list[start:i])
				start = i + 1
			}
		}
	}

	return append(args, list[start:])
}

// parseArg splits a single "name: annotation = default" argument.
func parseArg(arg string) (name, annotation, def string, hasDefault bool) {
	depth := 0
	var quote byte
	colon, equals := -1, -1

	for i := 0; i < len(arg) && equals == -1; i++ {
		c := arg[i]

		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}

		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ':':
			if depth == 0 && colon == -1 {
				colon = i
			}
		case '=':
			if depth == 0 {
				equals = i
			}
		}
	}

	name = arg
	if equals >= 0 {
		def = strings.TrimSpace(arg[equals+1:])
		name = arg[:equals]
		hasDefault = true
	}
	if colon >= 0 {
		annotation = strings.TrimSpace(name[colon+1:])
		name = name[:colon]
	}
	name = strings.TrimSpace(name)

	return name, annotation, def, hasDefault
}

// cleanDefault strips quotes from literal defaults and drops None.
func cleanDefault(def string) string {
	def = strings.Trim(def, `"'`)
	if def == "None" {
		return ""
	}
	return def
}

// jsonType maps a python annotation to a JSON Schema type. One level
// of Optional[...] is unwrapped; JSON Schema names coming from
// explicit document declarations pass through; anything unrecognized
// falls back to string.
func jsonType(annotation string) string {
	t := strings.TrimSpace(annotation)
	t = strings.TrimPrefix(t, "typing.")
	if inner, ok := strings.CutPrefix(t, "Optional["); ok && strings.HasSuffix(inner, "]") {
		t = strings.TrimPrefix(strings.TrimSpace(strings.TrimSuffix(inner, "]")), "typing.")
	}

	switch {
	case t == "str":
		return "string"
	case t == "int":
		return "integer"
	case t == "float":
		return "number"
	case t == "bool":
		return "boolean"
	case t == "list" || t == "List" || strings.HasPrefix(t, "list[") || strings.HasPrefix(t, "List["):
		return "array"
	case t == "dict" || t == "Dict" || strings.HasPrefix(t, "dict[") || strings.HasPrefix(t, "Dict["):
		return "object"
	}

	switch t {
	case "string", "integer", "number", "boolean", "array", "object":
		return t
	}

	return "string"
}
