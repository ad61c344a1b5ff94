package tools

import "testing"

func TestParseRunSignature_Plain(t *testing.T) {
	params, err := ParseRunSignature("def run(city):\n    return city")
	if err != nil {
		t.Fatalf("ParseRunSignature() error = %v", err)
	}
	if len(params) != 1 {
		t.Fatalf("Expected 1 param, got %d", len(params))
	}
	if params[0].Name != "city" || params[0].Type != "string" || !params[0].Required {
		t.Errorf("Unexpected param: %+v", params[0])
	}
}

func TestParseRunSignature_Defaults(t *testing.T) {
	params, err := ParseRunSignature("def run(city, units=\"metric\", count=5):\n    return city")
	if err != nil {
		t.Fatalf("ParseRunSignature() error = %v", err)
	}
	if len(params) != 3 {
		t.Fatalf("Expected 3 params, got %d", len(params))
	}

	if !params[0].Required {
		t.Error("city should be required")
	}
	if params[1].Required || params[1].Default != "metric" {
		t.Errorf("units wrong: %+v", params[1])
	}
	if params[2].Required || params[2].Default != "5" {
		t.Errorf("count wrong: %+v", params[2])
	}
}

func TestParseRunSignature_Annotations(t *testing.T) {
	code := "def run(count: int, ratio: float, flag: bool, items: list[str] = [], mapping: dict[str, int] = {}):\n    return \"x\""

	params, err := ParseRunSignature(code)
	if err != nil {
		t.Fatalf("ParseRunSignature() error = %v", err)
	}
	if len(params) != 5 {
		t.Fatalf("Expected 5 params, got %d", len(params))
	}

	wantTypes := []string{"integer", "number", "boolean", "array", "object"}
	for i, want := range wantTypes {
		if params[i].Type != want {
			t.Errorf("Param %s: type = %q, want %q", params[i].Name, params[i].Type, want)
		}
	}

	for _, p := range params[:3] {
		if !p.Required {
			t.Errorf("Param %s should be required", p.Name)
		}
	}
	for _, p := range params[3:] {
		if p.Required {
			t.Errorf("Param %s should be optional", p.Name)
		}
	}
}

func TestParseRunSignature_Optional(t *testing.T) {
	params, err := ParseRunSignature("def run(limit: Optional[int] = None):\n    return \"x\"")
	if err != nil {
		t.Fatalf("ParseRunSignature() error = %v", err)
	}
	if len(params) != 1 {
		t.Fatalf("Expected 1 param, got %d", len(params))
	}
	if params[0].Type != "integer" {
		t.Errorf("Optional should unwrap to inner type, got %q", params[0].Type)
	}
	if params[0].Required {
		t.Error("Param with default should be optional")
	}
	if params[0].Default != "" {
		t.Errorf("None default should be dropped, got %q", params[0].Default)
	}
}

func TestParseRunSignature_SkipsSelfAndVarargs(t *testing.T) {
	params, err := ParseRunSignature("def run(self, city, *args, **kwargs):\n    return city")
	if err != nil {
		t.Fatalf("ParseRunSignature() error = %v", err)
	}
	if len(params) != 1 || params[0].Name != "city" {
		t.Errorf("Expected only city, got %+v", params)
	}
}

func TestParseRunSignature_MultiLine(t *testing.T) {
	code := `def run(
    city,
    units="metric",
):
    return city`

	params, err := ParseRunSignature(code)
	if err != nil {
		t.Fatalf("ParseRunSignature() error = %v", err)
	}
	if len(params) != 2 {
		t.Fatalf("Expected 2 params, got %d", len(params))
	}
	if params[1].Default != "metric" {
		t.Errorf("units wrong: %+v", params[1])
	}
}

func TestParseRunSignature_TrickyDefaults(t *testing.T) {
	params, err := ParseRunSignature("def run(text=\"a,b\", pair=(1, 2)):\n    return text")
	if err != nil {
		t.Fatalf("ParseRunSignature() error = %v", err)
	}
	if len(params) != 2 {
		t.Fatalf("Commas inside defaults split the args: %+v", params)
	}
	if params[0].Default != "a,b" {
		t.Errorf("Quoted default wrong: %q", params[0].Default)
	}
}

func TestParseRunSignature_NoParams(t *testing.T) {
	params, err := ParseRunSignature("def run():\n    return \"x\"")
	if err != nil {
		t.Fatalf("ParseRunSignature() error = %v", err)
	}
	if len(params) != 0 {
		t.Errorf("Expected no params, got %+v", params)
	}
}

func TestParseRunSignature_NoRunFunction(t *testing.T) {
	if _, err := ParseRunSignature("def main():\n    return 1"); err == nil {
		t.Error("ParseRunSignature() should fail without a run function")
	}
}

func TestParseRunSignature_Indented(t *testing.T) {
	params, err := ParseRunSignature("    def run(self, x):\n        return x")
	if err != nil {
		t.Fatalf("ParseRunSignature() error = %v", err)
	}
	if len(params) != 1 || params[0].Name != "x" {
		t.Errorf("Expected only x, got %+v", params)
	}
}

func TestJSONType(t *testing.T) {
	tests := []struct {
		annotation string
		want       string
	}{
		{"str", "string"},
		{"int", "integer"},
		{"float", "number"},
		{"bool", "boolean"},
		{"list", "array"},
		{"dict", "object"},
		{"list[str]", "array"},
		{"dict[str, int]", "object"},
		{"List[int]", "array"},
		{"Optional[int]", "integer"},
		{"typing.Optional[str]", "string"},
		{"Optional[list[str]]", "array"},
		{"", "string"},
		{"CustomThing", "string"},
		{"string", "string"},
		{"number", "number"},
	}

	for _, tt := range tests {
		if got := jsonType(tt.annotation); got != tt.want {
			t.Errorf("jsonType(%q) = %q, want %q", tt.annotation, got, tt.want)
		}
	}
}
