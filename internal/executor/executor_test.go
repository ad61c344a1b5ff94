package executor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aatumaykin/skillbot/internal/config"
	"github.com/aatumaykin/skillbot/internal/logger"
	"github.com/aatumaykin/skillbot/internal/skills"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stdout"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

type stubRunner struct {
	result     *Result
	runDelay   time.Duration
	syntaxOK   bool
	syntaxMsg  string
	installErr error

	mu       sync.Mutex
	runCalls int
	lastArgs map[string]interface{}
	installs []string
}

func (s *stubRunner) Run(ctx context.Context, _ string, args map[string]interface{}) *Result {
	s.mu.Lock()
	s.runCalls++
	s.lastArgs = args
	s.mu.Unlock()

	if s.runDelay > 0 {
		select {
		case <-time.After(s.runDelay):
		case <-ctx.Done():
			return &Result{Success: false, Error: "Execution cancelled"}
		}
	}
	if s.result != nil {
		return s.result
	}
	return &Result{Success: true, Result: "ok"}
}

func (s *stubRunner) CheckSyntax(_ context.Context, _ string) (bool, string) {
	return s.syntaxOK, s.syntaxMsg
}

func (s *stubRunner) EnsureDependency(_ context.Context, pkg string) error {
	s.mu.Lock()
	s.installs = append(s.installs, pkg)
	s.mu.Unlock()
	return s.installErr
}

func (s *stubRunner) Close() error { return nil }

func testConfig() config.ExecutorConfig {
	return config.ExecutorConfig{
		Runner:            "local",
		TimeoutSeconds:    30,
		InstallDeps:       true,
		PipTimeoutSeconds: 60,
	}
}

func TestExecute_Success(t *testing.T) {
	stub := &stubRunner{result: &Result{Success: true, Result: "hello", Stdout: "log line\n"}}
	e := New(stub, testConfig(), testLogger(t))

	res := e.Execute(context.Background(), &skills.Skill{Name: "greet", Code: "def run(): pass"}, nil)
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Result != "hello" {
		t.Errorf("expected hello, got %q", res.Result)
	}
	if res.Stdout != "log line\n" {
		t.Errorf("stdout not passed through: %q", res.Stdout)
	}
}

func TestExecute_NilArgsBecomeEmptyMap(t *testing.T) {
	stub := &stubRunner{}
	e := New(stub, testConfig(), testLogger(t))

	e.Execute(context.Background(), &skills.Skill{Name: "greet", Code: "def run(): pass"}, nil)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if stub.lastArgs == nil {
		t.Fatal("expected non-nil args")
	}
	if len(stub.lastArgs) != 0 {
		t.Errorf("expected empty args, got %v", stub.lastArgs)
	}
}

func TestExecute_DependencyFailureShortCircuits(t *testing.T) {
	stub := &stubRunner{installErr: errForTest("Failed to install requests: no network")}
	e := New(stub, testConfig(), testLogger(t))

	skill := &skills.Skill{Name: "weather", Code: "def run(): pass", Dependencies: []string{"requests"}}
	res := e.Execute(context.Background(), skill, nil)

	if res.Success {
		t.Fatal("expected failure")
	}
	want := "Dependency installation failed: Failed to install requests: no network"
	if res.Error != want {
		t.Errorf("expected %q, got %q", want, res.Error)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if stub.runCalls != 0 {
		t.Errorf("code must not run after install failure, got %d calls", stub.runCalls)
	}
}

func TestExecute_DependencyMemoized(t *testing.T) {
	stub := &stubRunner{}
	e := New(stub, testConfig(), testLogger(t))

	skill := &skills.Skill{Name: "weather", Code: "def run(): pass", Dependencies: []string{"requests"}}
	e.Execute(context.Background(), skill, nil)
	e.Execute(context.Background(), skill, nil)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if len(stub.installs) != 1 {
		t.Errorf("expected 1 install attempt, got %d", len(stub.installs))
	}
}

func TestExecute_InstallDisabled(t *testing.T) {
	stub := &stubRunner{}
	cfg := testConfig()
	cfg.InstallDeps = false
	e := New(stub, cfg, testLogger(t))

	skill := &skills.Skill{Name: "weather", Code: "def run(): pass", Dependencies: []string{"requests"}}
	e.Execute(context.Background(), skill, nil)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if len(stub.installs) != 0 {
		t.Errorf("expected no install attempts, got %v", stub.installs)
	}
}

func TestExecute_Timeout(t *testing.T) {
	stub := &stubRunner{runDelay: 5 * time.Second}
	cfg := testConfig()
	cfg.TimeoutSeconds = 1
	e := New(stub, cfg, testLogger(t))

	start := time.Now()
	res := e.Execute(context.Background(), &skills.Skill{Name: "slow", Code: "def run(): pass"}, nil)
	elapsed := time.Since(start)

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "Execution timed out after 1 seconds" {
		t.Errorf("unexpected error: %q", res.Error)
	}
	if elapsed > 3*time.Second {
		t.Errorf("timeout did not fire, took %v", elapsed)
	}
}

func TestExecute_RunnerFailurePassthrough(t *testing.T) {
	stub := &stubRunner{result: &Result{Success: false, Error: "ValueError: boom", Stderr: "Traceback..."}}
	e := New(stub, testConfig(), testLogger(t))

	res := e.Execute(context.Background(), &skills.Skill{Name: "boom", Code: "def run(): pass"}, nil)
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "ValueError: boom" {
		t.Errorf("unexpected error: %q", res.Error)
	}
	if res.Stderr != "Traceback..." {
		t.Errorf("stderr not passed through: %q", res.Stderr)
	}
}

func TestValidate_SyntaxErrorWins(t *testing.T) {
	stub := &stubRunner{syntaxOK: false, syntaxMsg: "Syntax error: invalid syntax (<skill>, line 1)"}
	e := New(stub, testConfig(), testLogger(t))

	ok, msg := e.Validate(context.Background(), "def broken(:")
	if ok {
		t.Fatal("expected validation failure")
	}
	if !strings.HasPrefix(msg, "Syntax error:") {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestValidate_RequiresRunFunction(t *testing.T) {
	stub := &stubRunner{syntaxOK: true}
	e := New(stub, testConfig(), testLogger(t))

	ok, msg := e.Validate(context.Background(), "def main():\n    pass\n")
	if ok {
		t.Fatal("expected validation failure")
	}
	if msg != "Code must contain a 'def run(' function" {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestValidate_OK(t *testing.T) {
	stub := &stubRunner{syntaxOK: true}
	e := New(stub, testConfig(), testLogger(t))

	ok, msg := e.Validate(context.Background(), "def run():\n    return 1\n")
	if !ok {
		t.Fatalf("expected valid code, got %q", msg)
	}
}

func TestTest_UsesEmptyArgs(t *testing.T) {
	stub := &stubRunner{}
	e := New(stub, testConfig(), testLogger(t))

	res := e.Test(context.Background(), &skills.Skill{Name: "smoke", Code: "def run(): pass"})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if stub.lastArgs == nil || len(stub.lastArgs) != 0 {
		t.Errorf("expected empty args, got %v", stub.lastArgs)
	}
}

type errForTest string

func (e errForTest) Error() string { return string(e) }

func requirePython(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not available")
	}
	return path
}

func TestLocalRunner_Run(t *testing.T) {
	python := requirePython(t)
	r := NewLocalRunner(python, testLogger(t))

	code := "def run(name=\"world\"):\n    print(\"greeting\")\n    return \"hello \" + name\n"
	res := r.Run(context.Background(), code, map[string]interface{}{"name": "go"})

	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Result != "hello go" {
		t.Errorf("expected hello go, got %q", res.Result)
	}
	if !strings.Contains(res.Stdout, "greeting") {
		t.Errorf("expected captured stdout, got %q", res.Stdout)
	}
}

func TestLocalRunner_RunError(t *testing.T) {
	python := requirePython(t)
	r := NewLocalRunner(python, testLogger(t))

	code := "def run():\n    raise ValueError(\"boom\")\n"
	res := r.Run(context.Background(), code, nil)

	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "ValueError: boom") {
		t.Errorf("unexpected error: %q", res.Error)
	}
	if !strings.Contains(res.Stderr, "Traceback") {
		t.Errorf("expected traceback in stderr, got %q", res.Stderr)
	}
}

func TestLocalRunner_MissingRunFunction(t *testing.T) {
	python := requirePython(t)
	r := NewLocalRunner(python, testLogger(t))

	res := r.Run(context.Background(), "def main():\n    pass\n", nil)
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "Function 'run' not found in skill code") {
		t.Errorf("unexpected error: %q", res.Error)
	}
}

func TestLocalRunner_RestrictedBuiltins(t *testing.T) {
	python := requirePython(t)
	r := NewLocalRunner(python, testLogger(t))

	res := r.Run(context.Background(), "def run():\n    return eval(\"1+1\")\n", nil)
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "NameError") {
		t.Errorf("expected NameError, got %q", res.Error)
	}
}

func TestLocalRunner_OpenAllowed(t *testing.T) {
	python := requirePython(t)
	r := NewLocalRunner(python, testLogger(t))

	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	code := "def run(path):\n    with open(path) as f:\n        return f.read()\n"
	res := r.Run(context.Background(), code, map[string]interface{}{"path": path})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Result != "hello" {
		t.Errorf("expected hello, got %q", res.Result)
	}
}

// Every bundled skill document must run under the harness with its
// default arguments.
func TestLocalRunner_BundledSkills(t *testing.T) {
	python := requirePython(t)
	r := NewLocalRunner(python, testLogger(t))

	docsDir, err := filepath.Abs(filepath.Join("..", "..", "skills"))
	if err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(docsDir)
	if err != nil {
		t.Fatal(err)
	}

	parser := skills.NewParser()
	var parsed []*skills.Skill
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(docsDir, entry.Name()))
		if err != nil {
			t.Fatal(err)
		}
		name := strings.TrimSuffix(entry.Name(), ".md")
		skill, err := parser.Parse(name, string(content))
		if err != nil {
			t.Fatalf("parse %s: %v", entry.Name(), err)
		}
		parsed = append(parsed, skill)
	}
	if len(parsed) < 3 {
		t.Fatalf("expected at least 3 bundled skills, got %d", len(parsed))
	}

	t.Chdir(t.TempDir())
	if err := os.MkdirAll("data", 0o755); err != nil {
		t.Fatal(err)
	}
	jobsFile := `{"jobs":[{"id":"abc123","task":"check mail","cron":"0 9 * * *","description":"morning mail","enabled":true}]}`
	if err := os.WriteFile(filepath.Join("data", "scheduled_jobs.json"), []byte(jobsFile), 0o644); err != nil {
		t.Fatal(err)
	}

	args := map[string]map[string]interface{}{
		"schedule_task": {"task": "check mail", "cron": "0 9 * * *"},
	}

	for _, skill := range parsed {
		res := r.Run(context.Background(), skill.Code, args[skill.Name])
		if !res.Success {
			t.Errorf("%s failed: %+v", skill.Name, res)
			continue
		}
		if skill.Name == "list_reminders" && !strings.Contains(res.Result, "abc123") {
			t.Errorf("list_reminders should list the stored job, got %q", res.Result)
		}
	}
}

func TestLocalRunner_CheckSyntax(t *testing.T) {
	python := requirePython(t)
	r := NewLocalRunner(python, testLogger(t))

	ok, _ := r.CheckSyntax(context.Background(), "def run():\n    return 1\n")
	if !ok {
		t.Error("expected valid syntax")
	}

	ok, msg := r.CheckSyntax(context.Background(), "def run(:\n")
	if ok {
		t.Error("expected syntax failure")
	}
	if !strings.HasPrefix(msg, "Syntax error:") {
		t.Errorf("unexpected message: %q", msg)
	}
}
