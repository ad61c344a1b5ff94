package scheduler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aatumaykin/skillbot/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stdout"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func TestStore_AddAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")

	store := NewStore(path, testLogger(t))
	job := NewJob("check the weather", "0 9 * * *", "daily at 09:00")
	store.Add(job)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("store file not written: %v", err)
	}

	var file struct {
		Jobs []Job `json:"jobs"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("store file is not valid JSON: %v", err)
	}
	if len(file.Jobs) != 1 {
		t.Fatalf("expected 1 job in file, got %d", len(file.Jobs))
	}
	if file.Jobs[0].Task != "check the weather" {
		t.Errorf("task = %q", file.Jobs[0].Task)
	}

	reloaded := NewStore(path, testLogger(t))
	got, ok := reloaded.Get(job.ID)
	if !ok {
		t.Fatal("job not found after reload")
	}
	if got.Cron != "0 9 * * *" || got.Description != "daily at 09:00" {
		t.Errorf("job fields lost on reload: %+v", got)
	}
	if !got.Enabled {
		t.Error("job should be enabled after reload")
	}
}

func TestStore_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")

	store := NewStore(path, testLogger(t))
	if store.Count() != 0 {
		t.Errorf("expected empty store, got %d jobs", store.Count())
	}
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(path, testLogger(t))
	if store.Count() != 0 {
		t.Errorf("expected empty store on corrupt file, got %d jobs", store.Count())
	}
}

func TestStore_Remove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	store := NewStore(path, testLogger(t))

	job := NewJob("task", "* * * * *", "every minute")
	store.Add(job)

	removed, ok := store.Remove(job.ID)
	if !ok {
		t.Fatal("expected removal")
	}
	if removed.ID != job.ID {
		t.Errorf("removed wrong job: %s", removed.ID)
	}

	if _, ok := store.Remove(job.ID); ok {
		t.Error("second removal should report not found")
	}
	if store.Count() != 0 {
		t.Errorf("expected empty store, got %d", store.Count())
	}
}

func TestStore_ToggleTwiceRestores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	store := NewStore(path, testLogger(t))

	job := NewJob("task", "0 9 * * *", "daily")
	store.Add(job)

	state, ok := store.Toggle(job.ID)
	if !ok || state {
		t.Fatalf("first toggle = %v, %v, want disabled", state, ok)
	}

	state, ok = store.Toggle(job.ID)
	if !ok || !state {
		t.Fatalf("second toggle = %v, %v, want enabled", state, ok)
	}

	got, _ := store.Get(job.ID)
	if !got.Enabled {
		t.Error("job should be back to enabled")
	}

	if _, ok := store.Toggle("missing"); ok {
		t.Error("toggle of unknown id should report not found")
	}
}

func TestStore_MarkRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	store := NewStore(path, testLogger(t))

	job := NewJob("task", "0 9 * * *", "daily")
	store.Add(job)

	store.MarkRun(job.ID)

	got, _ := store.Get(job.ID)
	if got.LastRun == "" {
		t.Fatal("expected last_run to be set")
	}
	if !strings.Contains(got.LastRun, "T") {
		t.Errorf("last_run not a timestamp: %q", got.LastRun)
	}

	reloaded := NewStore(path, testLogger(t))
	persisted, _ := reloaded.Get(job.ID)
	if persisted.LastRun != got.LastRun {
		t.Errorf("last_run not persisted: %q vs %q", persisted.LastRun, got.LastRun)
	}
}

func TestStore_Enabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	store := NewStore(path, testLogger(t))

	active := NewJob("a", "0 9 * * *", "daily")
	paused := NewJob("b", "* * * * *", "minutely")
	store.Add(active)
	store.Add(paused)
	store.Toggle(paused.ID)

	enabled := store.Enabled()
	if len(enabled) != 1 {
		t.Fatalf("expected 1 enabled job, got %d", len(enabled))
	}
	if enabled[0].ID != active.ID {
		t.Errorf("wrong job enabled: %s", enabled[0].ID)
	}
}
