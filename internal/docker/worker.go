package docker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/aatumaykin/skillbot/internal/logger"
)

// Worker owns one long-lived container running a line-oriented JSON
// server on its stdin/stdout. Requests are serialized: one in flight
// at a time. A request abandoned mid-read burns the stream, so the
// container is dropped and recreated on the next call.
type Worker struct {
	client Client
	cfg    Config
	cmd    []string
	logger *logger.Logger

	mu     sync.Mutex
	id     string
	conn   io.ReadWriteCloser
	reader *bufio.Reader
}

// NewWorker creates a worker that will lazily start a container from
// cfg.Image running cmd.
func NewWorker(client Client, cfg Config, cmd []string, log *logger.Logger) *Worker {
	return &Worker{
		client: client,
		cfg:    cfg,
		cmd:    cmd,
		logger: log,
	}
}

// Call sends one request and waits for the matching response. On
// context cancellation the container is torn down: the in-flight
// python call keeps running inside it and must not poison the next
// request.
func (w *Worker) Call(ctx context.Context, req WorkerRequest) (*WorkerResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureStarted(ctx); err != nil {
		return nil, err
	}

	if req.ID == "" {
		req.ID = uuid.New().String()[:8]
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal worker request: %w", err)
	}
	data = append(data, '\n')

	if _, err := w.conn.Write(data); err != nil {
		w.teardown()
		return nil, &DockerError{Op: "write", Err: err, Message: "failed to send request to worker"}
	}

	respCh := make(chan *WorkerResponse, 1)
	errCh := make(chan error, 1)
	reader := w.reader

	go func() {
		for {
			line, err := reader.ReadBytes('\n')
			if err != nil {
				errCh <- &DockerError{Op: "read", Err: err, Message: "worker output stream closed"}
				return
			}

			payload := extractJSON(line)
			if payload == nil {
				continue
			}

			var resp WorkerResponse
			if err := json.Unmarshal(payload, &resp); err != nil {
				continue
			}
			if resp.ID != req.ID {
				continue
			}

			respCh <- &resp
			return
		}
	}()

	select {
	case resp := <-respCh:
		return resp, nil
	case err := <-errCh:
		w.teardown()
		return nil, err
	case <-ctx.Done():
		w.teardown()
		return nil, ctx.Err()
	}
}

// ensureStarted starts the worker container if it is not running.
func (w *Worker) ensureStarted(ctx context.Context) error {
	if w.id != "" {
		running, err := w.client.IsRunning(ctx, w.id)
		if err == nil && running {
			return nil
		}
		w.teardown()
	}

	if err := w.client.PullImage(ctx, w.cfg); err != nil {
		w.logger.Warn("image pull failed, trying local image",
			logger.Field{Key: "image", Value: w.cfg.Image},
			logger.Field{Key: "error", Value: err.Error()})
	}

	id, err := w.client.CreateContainer(ctx, w.cfg, w.cmd)
	if err != nil {
		return err
	}

	if err := w.client.StartContainer(ctx, id); err != nil {
		_ = w.client.RemoveContainer(ctx, id)
		return err
	}

	streams, err := w.client.AttachContainer(ctx, id)
	if err != nil {
		stopTimeout := 5
		_ = w.client.StopContainer(ctx, id, &stopTimeout)
		_ = w.client.RemoveContainer(ctx, id)
		return err
	}

	w.id = id
	w.conn = streams.Conn
	w.reader = streams.Reader

	w.logger.Info("Skill worker container started",
		logger.Field{Key: "container_id", Value: shortID(id)},
		logger.Field{Key: "image", Value: w.cfg.Image})

	return nil
}

// teardown stops and removes the current container.
func (w *Worker) teardown() {
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}

	if w.id != "" {
		ctx := context.Background()
		stopTimeout := 5

		if err := w.client.StopContainer(ctx, w.id, &stopTimeout); err != nil {
			w.logger.Warn("failed to stop worker container",
				logger.Field{Key: "container_id", Value: shortID(w.id)},
				logger.Field{Key: "error", Value: err.Error()})
		}
		if err := w.client.RemoveContainer(ctx, w.id); err != nil {
			w.logger.Warn("failed to remove worker container",
				logger.Field{Key: "container_id", Value: shortID(w.id)},
				logger.Field{Key: "error", Value: err.Error()})
		}

		w.id = ""
	}

	w.reader = nil
}

// Close tears down the container and the docker client.
func (w *Worker) Close() error {
	w.mu.Lock()
	w.teardown()
	w.mu.Unlock()

	return w.client.Close()
}

// extractJSON trims attach-stream frame bytes that may precede the
// payload on a line. Returns nil when the line carries no object.
func extractJSON(line []byte) []byte {
	if i := bytes.IndexByte(line, '{'); i >= 0 {
		return bytes.TrimSpace(line[i:])
	}
	return nil
}
