package docker

import (
	"bufio"
	"context"
	"fmt"

	"github.com/moby/moby/api/types/container"
	dockerclient "github.com/moby/moby/client"
)

// Client is the Docker surface the worker needs. The indirection
// exists so tests can run without a daemon.
type Client interface {
	PullImage(ctx context.Context, cfg Config) error
	CreateContainer(ctx context.Context, cfg Config, cmd []string) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string, timeout *int) error
	RemoveContainer(ctx context.Context, id string) error
	AttachContainer(ctx context.Context, id string) (AttachStreams, error)
	IsRunning(ctx context.Context, id string) (bool, error)
	Close() error
}

type DockerClient struct {
	client *dockerclient.Client
}

func NewDockerClient() (*DockerClient, error) {
	cli, err := dockerclient.New(dockerclient.WithAPIVersionNegotiation(), dockerclient.FromEnv)
	if err != nil {
		return nil, &DockerError{Op: "connect", Err: err, Message: "failed to connect to Docker daemon"}
	}

	ctx := context.Background()
	if _, err := cli.Ping(ctx, dockerclient.PingOptions{NegotiateAPIVersion: true}); err != nil {
		return nil, &DockerError{Op: "ping", Err: err, Message: "Docker daemon not available"}
	}

	return &DockerClient{client: cli}, nil
}

func (c *DockerClient) Close() error {
	return c.client.Close()
}

func (c *DockerClient) PullImage(ctx context.Context, cfg Config) error {
	if cfg.PullPolicy == "never" {
		return nil
	}

	resp, err := c.client.ImagePull(ctx, cfg.Image, dockerclient.ImagePullOptions{})
	if err != nil {
		if cfg.PullPolicy == "if-not-present" {
			return nil
		}
		return &DockerError{Op: "pull", Err: err, Message: fmt.Sprintf("failed to pull image %s", cfg.Image)}
	}
	defer resp.Close()

	if err := resp.Wait(ctx); err != nil {
		if cfg.PullPolicy == "if-not-present" {
			return nil
		}
		return &DockerError{Op: "pull", Err: err, Message: fmt.Sprintf("failed to pull image %s", cfg.Image)}
	}

	return nil
}

func (c *DockerClient) CreateContainer(ctx context.Context, cfg Config, cmd []string) (string, error) {
	memoryLimit := cfg.MemoryLimitMB * 1024 * 1024
	if memoryLimit == 0 {
		memoryLimit = 256 * 1024 * 1024
	}

	cpuLimit := cfg.CPULimit
	if cpuLimit == 0 {
		cpuLimit = 0.5
	}

	pidsLimit := cfg.PidsLimit
	if pidsLimit == 0 {
		pidsLimit = 64
	}

	securityOpt := cfg.SecurityOpt
	if len(securityOpt) == 0 {
		securityOpt = []string{"no-new-privileges"}
	}

	networkMode := container.NetworkMode("bridge")
	if !cfg.NetworkEnabled {
		networkMode = container.NetworkMode("none")
	}

	result, err := c.client.ContainerCreate(ctx, dockerclient.ContainerCreateOptions{
		Image: cfg.Image,
		Config: &container.Config{
			Image:     cfg.Image,
			Cmd:       cmd,
			OpenStdin: true,
		},
		HostConfig: &container.HostConfig{
			Resources: container.Resources{
				Memory:    memoryLimit,
				NanoCPUs:  int64(cpuLimit * 1e9),
				PidsLimit: &pidsLimit,
			},
			NetworkMode: networkMode,
			SecurityOpt: securityOpt,
			Tmpfs:       map[string]string{"/tmp": "rw,size=50m"},
		},
	})
	if err != nil {
		return "", &DockerError{Op: "create", Err: err, Message: "failed to create container"}
	}

	return result.ID, nil
}

func (c *DockerClient) StartContainer(ctx context.Context, id string) error {
	_, err := c.client.ContainerStart(ctx, id, dockerclient.ContainerStartOptions{})
	if err != nil {
		return &DockerError{Op: "start", Err: err, Message: fmt.Sprintf("failed to start container %s", id)}
	}
	return nil
}

func (c *DockerClient) StopContainer(ctx context.Context, id string, timeout *int) error {
	_, err := c.client.ContainerStop(ctx, id, dockerclient.ContainerStopOptions{Timeout: timeout})
	if err != nil {
		return &DockerError{Op: "stop", Err: err, Message: fmt.Sprintf("failed to stop container %s", id)}
	}
	return nil
}

func (c *DockerClient) RemoveContainer(ctx context.Context, id string) error {
	_, err := c.client.ContainerRemove(ctx, id, dockerclient.ContainerRemoveOptions{Force: true})
	if err != nil {
		return &DockerError{Op: "remove", Err: err, Message: fmt.Sprintf("failed to remove container %s", id)}
	}
	return nil
}

func (c *DockerClient) AttachContainer(ctx context.Context, id string) (AttachStreams, error) {
	result, err := c.client.ContainerAttach(ctx, id, dockerclient.ContainerAttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return AttachStreams{}, &DockerError{Op: "attach", Err: err, Message: fmt.Sprintf("failed to attach to container %s", id)}
	}

	hijack := result.HijackedResponse
	return AttachStreams{
		Conn:   hijack.Conn,
		Reader: bufio.NewReader(hijack.Reader),
	}, nil
}

func (c *DockerClient) IsRunning(ctx context.Context, id string) (bool, error) {
	result, err := c.client.ContainerInspect(ctx, id, dockerclient.ContainerInspectOptions{})
	if err != nil {
		return false, err
	}
	return result.Container.State.Running, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
