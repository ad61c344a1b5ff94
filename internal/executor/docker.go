package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/aatumaykin/skillbot/internal/config"
	"github.com/aatumaykin/skillbot/internal/docker"
	"github.com/aatumaykin/skillbot/internal/logger"
)

// DockerRunner executes skills inside a single persistent worker
// container that runs the harness as a line-oriented JSON server.
// Installed packages live as long as the container does.
type DockerRunner struct {
	worker *docker.Worker
	logger *logger.Logger
}

func NewDockerRunner(cfg config.DockerConfig, log *logger.Logger) (*DockerRunner, error) {
	client, err := docker.NewDockerClient()
	if err != nil {
		return nil, err
	}

	workerCfg := docker.Config{
		Image:          cfg.Image,
		MemoryLimitMB:  cfg.MemoryLimitMB,
		CPULimit:       cfg.CPULimit,
		PidsLimit:      cfg.PidsLimit,
		NetworkEnabled: cfg.NetworkEnabled,
		SecurityOpt:    cfg.SecurityOpt,
	}
	cmd := []string{"python3", "-u", "-c", serverHarness}

	return &DockerRunner{
		worker: docker.NewWorker(client, workerCfg, cmd, log),
		logger: log,
	}, nil
}

func (r *DockerRunner) Run(ctx context.Context, code string, args map[string]interface{}) *Result {
	resp, err := r.worker.Call(ctx, docker.WorkerRequest{Op: "run", Code: code, Args: args})
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("container execution failed: %v", err)}
	}

	return &Result{
		Success: resp.Success,
		Result:  resp.Result,
		Error:   resp.Error,
		Stdout:  resp.Stdout,
		Stderr:  resp.Stderr,
	}
}

func (r *DockerRunner) CheckSyntax(ctx context.Context, code string) (bool, string) {
	resp, err := r.worker.Call(ctx, docker.WorkerRequest{Op: "check", Code: code})
	if err != nil {
		return false, fmt.Sprintf("Validation error: %v", err)
	}

	return resp.Success, resp.Error
}

func (r *DockerRunner) EnsureDependency(ctx context.Context, pkg string) error {
	resp, err := r.worker.Call(ctx, docker.WorkerRequest{Op: "install", Package: pkg})
	if err != nil {
		return fmt.Errorf("Error installing %s: %v", pkg, err)
	}
	if !resp.Success {
		return errors.New(resp.Error)
	}

	return nil
}

func (r *DockerRunner) Close() error {
	return r.worker.Close()
}
