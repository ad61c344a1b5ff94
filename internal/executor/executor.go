package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aatumaykin/skillbot/internal/config"
	"github.com/aatumaykin/skillbot/internal/logger"
	"github.com/aatumaykin/skillbot/internal/skills"
)

// Result is the outcome of one skill execution.
type Result struct {
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Stdout  string `json:"stdout,omitempty"`
	Stderr  string `json:"stderr,omitempty"`
}

// Runner executes python code somewhere: a local interpreter process
// or a container. Run reports failures inside the Result and reserves
// its error channel for the transport, not the code under execution.
type Runner interface {
	Run(ctx context.Context, code string, args map[string]interface{}) *Result
	CheckSyntax(ctx context.Context, code string) (bool, string)
	EnsureDependency(ctx context.Context, pkg string) error
	Close() error
}

// Executor runs skills with dependency installation and a wall-clock
// timeout. Execute never returns an error: every failure is reported
// inside the Result so the tool loop can relay it to the model.
type Executor struct {
	runner      Runner
	timeout     time.Duration
	installDeps bool
	pipTimeout  time.Duration
	logger      *logger.Logger

	mu        sync.Mutex
	installed map[string]bool
}

func New(runner Runner, cfg config.ExecutorConfig, log *logger.Logger) *Executor {
	return &Executor{
		runner:      runner,
		timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		installDeps: cfg.InstallDeps,
		pipTimeout:  time.Duration(cfg.PipTimeoutSeconds) * time.Second,
		logger:      log,
		installed:   make(map[string]bool),
	}
}

// Execute runs a skill with the given arguments. The timeout covers
// the python call only; dependency installation is bounded separately
// and a failure there short-circuits without running the code.
func (e *Executor) Execute(ctx context.Context, skill *skills.Skill, args map[string]interface{}) *Result {
	if args == nil {
		args = map[string]interface{}{}
	}

	if e.installDeps && len(skill.Dependencies) > 0 {
		if err := e.installDependencies(ctx, skill.Dependencies); err != nil {
			return &Result{
				Success: false,
				Error:   "Dependency installation failed: " + err.Error(),
			}
		}
	}

	e.logger.Debug("Executing skill",
		logger.Field{Key: "skill", Value: skill.Name},
		logger.Field{Key: "args", Value: len(args)})

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resultCh := make(chan *Result, 1)
	go func() {
		resultCh <- e.runner.Run(runCtx, skill.Code, args)
	}()

	// Таймаут обрывает ожидание, а не процесс: раннер сам убивает
	// процесс или контейнер по отмене контекста.
	select {
	case res := <-resultCh:
		return res
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return &Result{
				Success: false,
				Error:   fmt.Sprintf("Execution timed out after %d seconds", int(e.timeout.Seconds())),
			}
		}
		return &Result{Success: false, Error: "Execution cancelled"}
	}
}

func (e *Executor) installDependencies(ctx context.Context, deps []string) error {
	for _, dep := range deps {
		e.mu.Lock()
		done := e.installed[dep]
		e.mu.Unlock()
		if done {
			continue
		}

		installCtx, cancel := context.WithTimeout(ctx, e.pipTimeout)
		err := e.runner.EnsureDependency(installCtx, dep)
		cancel()
		if err != nil {
			return err
		}

		e.mu.Lock()
		e.installed[dep] = true
		e.mu.Unlock()
	}

	return nil
}

// Validate reports whether code compiles and defines the run entry
// point. Used before persisting generated skills.
func (e *Executor) Validate(ctx context.Context, code string) (bool, string) {
	ok, msg := e.runner.CheckSyntax(ctx, code)
	if !ok {
		return false, msg
	}
	if !strings.Contains(code, "def run(") {
		return false, "Code must contain a 'def run(' function"
	}

	return true, ""
}

// Test runs a skill with no arguments as a smoke test before saving.
func (e *Executor) Test(ctx context.Context, skill *skills.Skill) *Result {
	return e.Execute(ctx, skill, map[string]interface{}{})
}

func (e *Executor) Close() error {
	return e.runner.Close()
}
