package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")

	content := "SKILLBOT_ENV_A=hello\n# comment line\n\nSKILLBOT_ENV_B=world\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	defer os.Unsetenv("SKILLBOT_ENV_A")
	defer os.Unsetenv("SKILLBOT_ENV_B")

	if err := LoadEnv(path); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	if got := os.Getenv("SKILLBOT_ENV_A"); got != "hello" {
		t.Errorf("SKILLBOT_ENV_A = %q, want hello", got)
	}
	if got := os.Getenv("SKILLBOT_ENV_B"); got != "world" {
		t.Errorf("SKILLBOT_ENV_B = %q, want world", got)
	}
}

func TestLoadEnvMissingFile(t *testing.T) {
	if err := LoadEnv("/nonexistent/.env"); err == nil {
		t.Fatal("Expected error for missing .env file")
	}
}

func TestLoadEnvOptionalMissingFile(t *testing.T) {
	if err := LoadEnvOptional("/nonexistent/.env"); err != nil {
		t.Fatalf("LoadEnvOptional() for missing file = %v, want nil", err)
	}
}

func TestLoadEnvOptionalExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")

	if err := os.WriteFile(path, []byte("SKILLBOT_ENV_C=42\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	defer os.Unsetenv("SKILLBOT_ENV_C")

	if err := LoadEnvOptional(path); err != nil {
		t.Fatalf("LoadEnvOptional() error = %v", err)
	}

	if got := os.Getenv("SKILLBOT_ENV_C"); got != "42" {
		t.Errorf("SKILLBOT_ENV_C = %q, want 42", got)
	}
}
