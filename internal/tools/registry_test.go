package tools

import (
	"testing"

	"github.com/aatumaykin/skillbot/internal/logger"
	"github.com/aatumaykin/skillbot/internal/skills"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(logger.Config{
		Level:  "error",
		Format: "text",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

func testStore(t *testing.T) *skills.Store {
	t.Helper()
	return skills.NewStore(t.TempDir(), testLogger(t))
}

func saveSkill(t *testing.T, store *skills.Store, skill *skills.Skill) {
	t.Helper()
	if err := store.Save(skill); err != nil {
		t.Fatalf("Save(%s) error = %v", skill.Name, err)
	}
}

func schemaOf(t *testing.T, params map[string]interface{}) (map[string]interface{}, []string) {
	t.Helper()

	properties, ok := params["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("Schema has no properties object: %+v", params)
	}
	required, ok := params["required"].([]string)
	if !ok {
		t.Fatalf("Schema has no required list: %+v", params)
	}
	return properties, required
}

func TestRegistry_DefinitionsEnabledOnly(t *testing.T) {
	store := testStore(t)
	saveSkill(t, store, &skills.Skill{
		Name:        "get_weather",
		Title:       "Get Weather",
		Description: "Fetches weather.",
		Code:        "def run(city):\n    return city",
		Enabled:     true,
	})
	saveSkill(t, store, &skills.Skill{
		Name:        "say_hello",
		Title:       "Say Hello",
		Description: "Greets.",
		Code:        "def run():\n    return \"hi\"",
		Enabled:     true,
	})
	store.SetEnabled("say_hello", false)

	reg := NewRegistry(store, testLogger(t))

	defs := reg.Definitions()
	if len(defs) != 1 {
		t.Fatalf("Expected 1 definition, got %d", len(defs))
	}
	if defs[0].Name != "get_weather" {
		t.Errorf("Wrong definition survived: %s", defs[0].Name)
	}

	if _, ok := store.Get("say_hello"); !ok {
		t.Error("Disabled skill should still be accessible in the store")
	}
}

func TestRegistry_ExplicitParams(t *testing.T) {
	store := testStore(t)
	saveSkill(t, store, &skills.Skill{
		Name:        "convert_currency",
		Title:       "Convert Currency",
		Description: "Converts money.",
		Params: []skills.Param{
			{Name: "amount", Type: "number", Required: true, Description: "Amount to convert"},
			{Name: "from_currency", Type: "string", Required: true, Description: "Source currency"},
			{Name: "to_currency", Type: "string", Required: false, Default: "USD", Description: "Target currency"},
		},
		Code:    "def run(**kwargs):\n    return \"x\"",
		Enabled: true,
	})

	reg := NewRegistry(store, testLogger(t))
	defs := reg.Definitions()
	if len(defs) != 1 {
		t.Fatalf("Expected 1 definition, got %d", len(defs))
	}

	properties, required := schemaOf(t, defs[0].Parameters)
	if len(properties) != 3 {
		t.Errorf("Expected 3 properties, got %d", len(properties))
	}
	if len(required) != 2 {
		t.Errorf("Expected 2 required, got %v", required)
	}

	amount := properties["amount"].(map[string]interface{})
	if amount["type"] != "number" {
		t.Errorf("Expected declared type to win, got %v", amount["type"])
	}
	if amount["description"] != "Amount to convert" {
		t.Errorf("Unexpected description: %v", amount["description"])
	}

	target := properties["to_currency"].(map[string]interface{})
	if target["default"] != "USD" {
		t.Errorf("Expected default USD, got %v", target["default"])
	}
}

func TestRegistry_SignatureParams(t *testing.T) {
	store := testStore(t)
	saveSkill(t, store, &skills.Skill{
		Name:        "get_weather",
		Title:       "Get Weather",
		Description: "Fetches weather.",
		Code:        "def run(city, units=\"metric\", count: int = 5):\n    return city",
		Enabled:     true,
	})

	reg := NewRegistry(store, testLogger(t))
	defs := reg.Definitions()
	if len(defs) != 1 {
		t.Fatalf("Expected 1 definition, got %d", len(defs))
	}

	properties, required := schemaOf(t, defs[0].Parameters)
	if len(properties) != 3 {
		t.Fatalf("Expected 3 properties, got %d", len(properties))
	}
	if len(required) != 1 || required[0] != "city" {
		t.Errorf("Expected only city required, got %v", required)
	}

	count := properties["count"].(map[string]interface{})
	if count["type"] != "integer" {
		t.Errorf("Expected integer type for count, got %v", count["type"])
	}

	city := properties["city"].(map[string]interface{})
	if city["description"] != "Parameter: city" {
		t.Errorf("Unexpected generated description: %v", city["description"])
	}
}

func TestRegistry_SkipsUnparseable(t *testing.T) {
	store := testStore(t)
	saveSkill(t, store, &skills.Skill{
		Name:        "good",
		Title:       "Good",
		Description: "Works.",
		Code:        "def run(x):\n    return x",
		Enabled:     true,
	})
	saveSkill(t, store, &skills.Skill{
		Name:        "bad",
		Title:       "Bad",
		Description: "Has no run function.",
		Code:        "def main():\n    return 1",
		Enabled:     true,
	})

	reg := NewRegistry(store, testLogger(t))

	defs := reg.Definitions()
	if len(defs) != 1 {
		t.Fatalf("Expected 1 definition, got %d", len(defs))
	}
	if defs[0].Name != "good" {
		t.Errorf("Wrong definition survived: %s", defs[0].Name)
	}
}

func TestRegistry_DescriptionFallback(t *testing.T) {
	store := testStore(t)
	saveSkill(t, store, &skills.Skill{
		Name:    "say_hello",
		Title:   "Say Hello",
		Code:    "def run():\n    return \"hi\"",
		Enabled: true,
	})

	reg := NewRegistry(store, testLogger(t))
	defs := reg.Definitions()
	if len(defs) != 1 {
		t.Fatalf("Expected 1 definition, got %d", len(defs))
	}
	if defs[0].Description != "Say Hello" {
		t.Errorf("Expected title fallback, got %q", defs[0].Description)
	}
}

func TestRegistry_CacheAndRefresh(t *testing.T) {
	store := testStore(t)
	saveSkill(t, store, &skills.Skill{
		Name:        "evolving",
		Title:       "Evolving",
		Description: "Changes over time.",
		Code:        "def run(x):\n    return x",
		Enabled:     true,
	})

	reg := NewRegistry(store, testLogger(t))

	properties, _ := schemaOf(t, reg.Definitions()[0].Parameters)
	if len(properties) != 1 {
		t.Fatalf("Expected 1 property, got %d", len(properties))
	}

	saveSkill(t, store, &skills.Skill{
		Name:        "evolving",
		Title:       "Evolving",
		Description: "Changes over time.",
		Code:        "def run(x, y):\n    return x",
		Enabled:     true,
	})

	properties, _ = schemaOf(t, reg.Definitions()[0].Parameters)
	if len(properties) != 1 {
		t.Errorf("Cached definition should survive until refresh, got %d properties", len(properties))
	}

	if err := reg.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	properties, _ = schemaOf(t, reg.Definitions()[0].Parameters)
	if len(properties) != 2 {
		t.Errorf("Expected rebuilt definition with 2 properties, got %d", len(properties))
	}
}
