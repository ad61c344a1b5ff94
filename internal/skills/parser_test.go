package skills

import (
	"errors"
	"strings"
	"testing"
)

const weatherDoc = `---
title: Get Weather
author: user
created: 2024-05-01
---

# Description
Fetches the current weather for a city.

# Dependencies
- requests

# Code
` + "```python" + `
import requests

def run(city, units="metric"):
    resp = requests.get(f"https://wttr.in/{city}?format=3")
    return resp.text
` + "```" + `
`

func TestParse_FullDocument(t *testing.T) {
	parser := NewParser()

	skill, err := parser.Parse("get_weather", weatherDoc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if skill.Name != "get_weather" {
		t.Errorf("Expected name 'get_weather', got %q", skill.Name)
	}
	if skill.Title != "Get Weather" {
		t.Errorf("Expected title 'Get Weather', got %q", skill.Title)
	}
	if skill.Author != "user" {
		t.Errorf("Expected author 'user', got %q", skill.Author)
	}
	if skill.Created != "2024-05-01" {
		t.Errorf("Expected created '2024-05-01', got %q", skill.Created)
	}
	if skill.Description != "Fetches the current weather for a city." {
		t.Errorf("Unexpected description: %q", skill.Description)
	}
	if len(skill.Dependencies) != 1 || skill.Dependencies[0] != "requests" {
		t.Errorf("Expected dependencies [requests], got %v", skill.Dependencies)
	}
	if !strings.Contains(skill.Code, "def run(city, units=\"metric\"):") {
		t.Errorf("Code missing run definition: %q", skill.Code)
	}
	if strings.Contains(skill.Code, "```") {
		t.Errorf("Code contains fence markers: %q", skill.Code)
	}
	if !skill.Enabled {
		t.Error("Parsed skill should default to enabled")
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	doc := `# Description
Says hello.

# Dependencies

` + "```python\ndef run():\n    return \"hi\"\n```\n"

	skill, err := NewParser().Parse("say_hello", doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if skill.Title != "Say Hello" {
		t.Errorf("Expected title derived from name, got %q", skill.Title)
	}
	if skill.Author != "unknown" {
		t.Errorf("Expected default author 'unknown', got %q", skill.Author)
	}
	if skill.Description != "Says hello." {
		t.Errorf("Unexpected description: %q", skill.Description)
	}
}

func TestParse_NoCodeBlock(t *testing.T) {
	doc := `---
title: Broken
---

# Description
A document without any code.
`

	_, err := NewParser().Parse("broken", doc)
	if !errors.Is(err, ErrNoCode) {
		t.Errorf("Parse() error = %v, want ErrNoCode", err)
	}
}

func TestParse_EmptyDependencies(t *testing.T) {
	doc := `---
title: Time
---

# Description
Tells the time.

# Dependencies

# Code
` + "```python\nfrom datetime import datetime\n\ndef run():\n    return datetime.now().isoformat()\n```\n"

	skill, err := NewParser().Parse("get_time", doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(skill.Dependencies) != 0 {
		t.Errorf("Expected no dependencies, got %v", skill.Dependencies)
	}
}

func TestParse_StarBullets(t *testing.T) {
	doc := `# Dependencies
* requests
* beautifulsoup4

` + "```python\ndef run():\n    return \"ok\"\n```\n"

	skill, err := NewParser().Parse("scrape", doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(skill.Dependencies) != 2 || skill.Dependencies[1] != "beautifulsoup4" {
		t.Errorf("Expected [requests beautifulsoup4], got %v", skill.Dependencies)
	}
}

func TestParse_Parameters(t *testing.T) {
	doc := `---
title: Convert Currency
---

# Description
Converts an amount between currencies.

# Dependencies
- requests

# Parameters
- amount (number, required): Amount to convert
- from_currency (string, required): Source currency code
- to_currency (string, optional, default=USD): Target currency code

# Code
` + "```python\ndef run(amount, from_currency, to_currency=\"USD\"):\n    return \"...\"\n```\n"

	skill, err := NewParser().Parse("convert_currency", doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(skill.Params) != 3 {
		t.Fatalf("Expected 3 parameters, got %d", len(skill.Params))
	}

	amount := skill.Params[0]
	if amount.Name != "amount" || amount.Type != "number" || !amount.Required {
		t.Errorf("Unexpected first param: %+v", amount)
	}
	if amount.Description != "Amount to convert" {
		t.Errorf("Unexpected param description: %q", amount.Description)
	}

	target := skill.Params[2]
	if target.Required {
		t.Error("Optional parameter marked required")
	}
	if target.Default != "USD" {
		t.Errorf("Expected default 'USD', got %q", target.Default)
	}
}

func TestParse_CommentInCode(t *testing.T) {
	doc := `# Description
Counts words.

# Dependencies
- requests

` + "```python" + `
# top level comment
def run(text):
    # inner comment
    return str(len(text.split()))
` + "```" + `
`

	skill, err := NewParser().Parse("count_words", doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(skill.Dependencies) != 1 {
		t.Errorf("Python comments corrupted section parsing: deps = %v", skill.Dependencies)
	}
	if !strings.Contains(skill.Code, "# top level comment") {
		t.Errorf("Code lost its comments: %q", skill.Code)
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	original := &Skill{
		Name:         "get_weather",
		Title:        "Get Weather",
		Description:  "Fetches the current weather for a city.",
		Dependencies: []string{"requests", "httpx"},
		Params: []Param{
			{Name: "city", Type: "string", Required: true, Description: "City name"},
			{Name: "units", Type: "string", Required: false, Default: "metric", Description: "Unit system"},
		},
		Code:    "import requests\n\ndef run(city, units=\"metric\"):\n    return \"ok\"",
		Author:  "user",
		Created: "2024-05-01",
		Enabled: true,
	}

	parsed, err := NewParser().Parse(original.Name, original.Serialize())
	if err != nil {
		t.Fatalf("Parse(Serialize()) error = %v", err)
	}

	if parsed.Title != original.Title {
		t.Errorf("Title changed: %q != %q", parsed.Title, original.Title)
	}
	if parsed.Description != original.Description {
		t.Errorf("Description changed: %q != %q", parsed.Description, original.Description)
	}
	if len(parsed.Dependencies) != 2 || parsed.Dependencies[0] != "requests" || parsed.Dependencies[1] != "httpx" {
		t.Errorf("Dependencies changed: %v", parsed.Dependencies)
	}
	if parsed.Code != original.Code {
		t.Errorf("Code changed:\n%q\n!=\n%q", parsed.Code, original.Code)
	}
	if parsed.Author != original.Author || parsed.Created != original.Created {
		t.Errorf("Metadata changed: %s/%s", parsed.Author, parsed.Created)
	}
	if len(parsed.Params) != 2 {
		t.Fatalf("Params changed: %+v", parsed.Params)
	}
	if parsed.Params[1].Default != "metric" {
		t.Errorf("Param default lost: %+v", parsed.Params[1])
	}
}

func TestSerialize_ByteStable(t *testing.T) {
	skill := &Skill{
		Name:         "ping",
		Title:        "Ping",
		Description:  "Pings a host.",
		Dependencies: []string{"requests"},
		Code:         "def run(host):\n    return host",
		Author:       "user",
		Created:      "2024-06-01",
		Enabled:      true,
	}

	first := skill.Serialize()

	reparsed, err := NewParser().Parse(skill.Name, first)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if second := reparsed.Serialize(); second != first {
		t.Errorf("Serialize not byte-stable:\n--- first ---\n%s\n--- second ---\n%s", first, second)
	}
}

func TestSkillValidate(t *testing.T) {
	if err := (&Skill{Name: "x", Code: "def run(): pass"}).Validate(); err != nil {
		t.Errorf("Valid skill rejected: %v", err)
	}
	if err := (&Skill{Code: "def run(): pass"}).Validate(); err == nil {
		t.Error("Skill without name accepted")
	}
	if err := (&Skill{Name: "x"}).Validate(); !errors.Is(err, ErrNoCode) {
		t.Errorf("Skill without code: error = %v, want ErrNoCode", err)
	}
}
