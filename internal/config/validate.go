package config

import (
	"fmt"
)

// Validate проверяет конфигурацию Docker-раннера.
// Вызывается только когда executor.runner = "docker".
func (c *DockerConfig) Validate() error {
	if c.Image == "" {
		return fmt.Errorf("executor.docker.image is required when executor.runner is 'docker'")
	}

	if c.MemoryLimitMB < 0 {
		return fmt.Errorf("executor.docker.memory_limit_mb must be >= 0")
	}

	if c.CPULimit < 0 || c.CPULimit > 4 {
		return fmt.Errorf("executor.docker.cpu_limit must be between 0 and 4")
	}

	if c.PidsLimit < 0 {
		return fmt.Errorf("executor.docker.pids_limit must be >= 0")
	}

	return nil
}
