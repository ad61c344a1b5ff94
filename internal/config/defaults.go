package config

import (
	"os"
	"path/filepath"
)

// resolvePersonalityFile ищет файл поведения: сначала env переменная,
// затем директория personality/ (точка монтирования контейнера), затем корень
func resolvePersonalityFile(envKey, filename string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	mounted := filepath.Join("personality", filename)
	if _, err := os.Stat(mounted); err == nil {
		return mounted
	}
	return filename
}

// applyDefaults применяет значения по умолчанию
func applyDefaults(c *Config) {
	if c.Telegram.SendTimeoutSeconds == 0 {
		c.Telegram.SendTimeoutSeconds = 30
	}
	if c.Providers.Default == "" {
		c.Providers.Default = "gemini"
	}
	if c.Providers.Gemini.Model == "" {
		c.Providers.Gemini.Model = "gemini-1.5-flash"
	}
	if c.Providers.Gemini.EmbedModel == "" {
		c.Providers.Gemini.EmbedModel = "embedding-001"
	}
	if c.Providers.Anthropic.Model == "" {
		c.Providers.Anthropic.Model = "claude-3-haiku-20240307"
	}
	if c.Providers.Ollama.BaseURL == "" {
		c.Providers.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.Providers.Ollama.Model == "" {
		c.Providers.Ollama.Model = "llama3"
	}
	if c.Providers.Ollama.EmbedModel == "" {
		c.Providers.Ollama.EmbedModel = "nomic-embed-text"
	}
	if c.Providers.ZAI.Model == "" {
		c.Providers.ZAI.Model = "glm-4.7"
	}

	if c.Paths.SkillsDir == "" {
		c.Paths.SkillsDir = "./skills"
	}
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "./data"
	}
	if c.Paths.SoulFile == "" {
		c.Paths.SoulFile = resolvePersonalityFile("SOUL_FILE", "SOUL.md")
	}
	if c.Paths.IdentityFile == "" {
		c.Paths.IdentityFile = resolvePersonalityFile("IDENTITY_FILE", "IDENTITY.md")
	}
	if c.Paths.UserFile == "" {
		c.Paths.UserFile = resolvePersonalityFile("USER_FILE", "USER.md")
	}
	if c.Paths.ToolsFile == "" {
		c.Paths.ToolsFile = resolvePersonalityFile("TOOLS_FILE", "TOOLS.md")
	}

	if c.Agent.MaxToolRounds == 0 {
		c.Agent.MaxToolRounds = 10
	}
	if c.Agent.ProcessTimeoutSeconds == 0 {
		c.Agent.ProcessTimeoutSeconds = 120
	}
	if c.Agent.MaxTokens == 0 {
		c.Agent.MaxTokens = 4096
	}
	if c.Agent.Temperature == 0 {
		c.Agent.Temperature = 0.7
	}
	if c.Agent.HighConfidence == 0 {
		c.Agent.HighConfidence = 0.8
	}
	if c.Agent.WatchDebounceMillis == 0 {
		c.Agent.WatchDebounceMillis = 500
	}
	if c.Agent.ScheduledTaskMaxRounds == 0 {
		c.Agent.ScheduledTaskMaxRounds = 10
	}

	if c.Executor.Runner == "" {
		c.Executor.Runner = "local"
	}
	if c.Executor.Python == "" {
		c.Executor.Python = "python3"
	}
	if c.Executor.TimeoutSeconds == 0 {
		c.Executor.TimeoutSeconds = 30
	}
	if c.Executor.PipTimeoutSeconds == 0 {
		c.Executor.PipTimeoutSeconds = 60
	}
	if c.Executor.Docker.Image == "" {
		c.Executor.Docker = DefaultDockerConfig()
	}

	if c.Fetch.TimeoutSeconds == 0 {
		c.Fetch.TimeoutSeconds = 15
	}
	if c.Fetch.MaxResponseSize == 0 {
		c.Fetch.MaxResponseSize = 2 << 20 // 2 MiB
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "Skillbot/1.0"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 10
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = 30
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
}

// DefaultDockerConfig возвращает конфигурацию Docker-раннера по умолчанию
func DefaultDockerConfig() DockerConfig {
	return DockerConfig{
		Image:          "python:3.12-slim",
		MemoryLimitMB:  256,
		CPULimit:       0.5,
		PidsLimit:      64,
		NetworkEnabled: true,
		SecurityOpt:    []string{"no-new-privileges"},
	}
}
