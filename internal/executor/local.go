package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/aatumaykin/skillbot/internal/logger"
)

// LocalRunner executes skills with the host python interpreter, one
// short-lived process per call. Context cancellation kills the
// process through exec.CommandContext.
type LocalRunner struct {
	python string
	logger *logger.Logger
}

func NewLocalRunner(python string, log *logger.Logger) *LocalRunner {
	if python == "" {
		python = "python3"
	}

	return &LocalRunner{python: python, logger: log}
}

func (r *LocalRunner) Run(ctx context.Context, code string, args map[string]interface{}) *Result {
	payload, err := json.Marshal(map[string]interface{}{
		"code": code,
		"args": args,
	})
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("failed to encode request: %v", err)}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.python, "-c", runHarness)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return &Result{Success: false, Error: "Execution cancelled"}
		}
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("python process failed: %v", err),
			Stderr:  stderr.String(),
		}
	}

	var res Result
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &res); err != nil {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("failed to decode harness output: %v", err),
			Stdout:  stdout.String(),
			Stderr:  stderr.String(),
		}
	}

	return &res
}

func (r *LocalRunner) CheckSyntax(ctx context.Context, code string) (bool, string) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, r.python, "-c", syntaxHarness)
	cmd.Stdin = strings.NewReader(code)
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return false, fmt.Sprintf("Validation error: %v", err)
	}

	var verdict struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &verdict); err != nil {
		return false, fmt.Sprintf("Validation error: %v", err)
	}

	return verdict.OK, verdict.Error
}

// EnsureDependency checks that pkg is importable and installs it via
// pip when it is not. Error strings surface to the model as-is.
func (r *LocalRunner) EnsureDependency(ctx context.Context, pkg string) error {
	check := exec.CommandContext(ctx, r.python, "-c", "import importlib, sys; importlib.import_module(sys.argv[1])", pkg)
	if check.Run() == nil {
		return nil
	}

	r.logger.Info("Installing dependency", logger.Field{Key: "package", Value: pkg})

	var stderr bytes.Buffer
	install := exec.CommandContext(ctx, r.python, "-m", "pip", "install", pkg, "--quiet")
	install.Stderr = &stderr

	if err := install.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("Failed to install %s: %s", pkg, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("Error installing %s: %v", pkg, err)
	}

	return nil
}

func (r *LocalRunner) Close() error { return nil }
