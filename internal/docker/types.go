package docker

import (
	"bufio"
	"fmt"
	"io"
)

// Config describes the worker container.
type Config struct {
	Image          string
	MemoryLimitMB  int64
	CPULimit       float64
	PidsLimit      int64
	NetworkEnabled bool
	SecurityOpt    []string
	PullPolicy     string
}

// WorkerRequest is one line of the stdin protocol spoken with the
// python process inside the worker container.
type WorkerRequest struct {
	ID      string                 `json:"id"`
	Op      string                 `json:"op"`
	Code    string                 `json:"code,omitempty"`
	Args    map[string]interface{} `json:"args,omitempty"`
	Package string                 `json:"package,omitempty"`
}

// WorkerResponse is the matching stdout line.
type WorkerResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Stdout  string `json:"stdout,omitempty"`
	Stderr  string `json:"stderr,omitempty"`
}

// AttachStreams carries the hijacked connection of an attached
// container: Conn for writes, Reader for reads.
type AttachStreams struct {
	Conn   io.ReadWriteCloser
	Reader *bufio.Reader
}

// DockerError - структурированная ошибка операции с Docker
type DockerError struct {
	Op      string
	Err     error
	Message string
}

// Error реализует интерфейс error
func (e *DockerError) Error() string {
	return fmt.Sprintf("docker %s: %s: %v", e.Op, e.Message, e.Err)
}

// Unwrap возвращает исходную ошибку
func (e *DockerError) Unwrap() error {
	return e.Err
}
