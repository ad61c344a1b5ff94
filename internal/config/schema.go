// Package config provides configuration loading and validation for Skillbot.
// It supports TOML configuration files with environment variable expansion,
// default values, and comprehensive validation.
//
// Configuration structure:
//   - [telegram]: Bot token and admin user
//   - [providers]: LLM provider configuration (Gemini, Anthropic, Ollama, Z.AI)
//   - [paths]: Skills directory, data directory, behavior documents
//   - [agent]: Tool-calling loop limits and sampling parameters
//   - [executor]: Skill execution runner, timeouts, dependency installs
//   - [scheduler]: Scheduled job store
//   - [index]: Semantic skill index
//   - [fetch]: URL context expansion
//   - [logging]: Logging level, format, output, rotation
//   - [metrics]: Prometheus endpoint
//
// Environment variables:
// Environment variables can be referenced using ${VAR} or ${VAR:default} syntax.
// For example: api_key = "${GEMINI_API_KEY}"
package config

import "path/filepath"

// Config represents the main application configuration.
type Config struct {
	Telegram  TelegramConfig  `toml:"telegram"`
	Providers ProvidersConfig `toml:"providers"`
	Paths     PathsConfig     `toml:"paths"`
	Agent     AgentConfig     `toml:"agent"`
	Executor  ExecutorConfig  `toml:"executor"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Index     IndexConfig     `toml:"index"`
	Fetch     FetchConfig     `toml:"fetch"`
	Logging   LoggingConfig   `toml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// TelegramConfig представляет конфигурацию Telegram канала
type TelegramConfig struct {
	Token              string `toml:"token"`
	AdminID            int64  `toml:"admin_id"`
	SendTimeoutSeconds int    `toml:"send_timeout_seconds"`
}

// ProvidersConfig представляет конфигурацию LLM провайдеров
type ProvidersConfig struct {
	Default   string          `toml:"default"`
	StateFile string          `toml:"state_file"`
	Gemini    GeminiConfig    `toml:"gemini"`
	Anthropic AnthropicConfig `toml:"anthropic"`
	Ollama    OllamaConfig    `toml:"ollama"`
	ZAI       ZAIConfig       `toml:"zai"`
}

// ProviderStateFile возвращает путь к файлу активного провайдера:
// явный providers.state_file или файл состояния в data-директории
func (c *Config) ProviderStateFile() string {
	if c.Providers.StateFile != "" {
		return c.Providers.StateFile
	}
	return c.Paths.StateFile()
}

// GeminiConfig представляет конфигурацию Google Gemini
type GeminiConfig struct {
	APIKey     string `toml:"api_key"`
	Model      string `toml:"model"`
	EmbedModel string `toml:"embed_model"`
}

// AnthropicConfig представляет конфигурацию Anthropic Claude
type AnthropicConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// OllamaConfig представляет конфигурацию локального Ollama
type OllamaConfig struct {
	BaseURL    string `toml:"base_url"`
	Model      string `toml:"model"`
	EmbedModel string `toml:"embed_model"`
}

// ZAIConfig представляет конфигурацию Z.AI (GLM)
type ZAIConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// PathsConfig представляет файловые пути приложения
type PathsConfig struct {
	SkillsDir    string `toml:"skills_dir"`
	DataDir      string `toml:"data_dir"`
	SoulFile     string `toml:"soul_file"`
	IdentityFile string `toml:"identity_file"`
	UserFile     string `toml:"user_file"`
	ToolsFile    string `toml:"tools_file"`
}

// HistoryFile возвращает путь к файлу истории диалога
func (p *PathsConfig) HistoryFile() string {
	return filepath.Join(p.DataDir, "conversation_history.json")
}

// JobsFile возвращает путь к файлу хранилища заданий
func (p *PathsConfig) JobsFile() string {
	return filepath.Join(p.DataDir, "scheduled_jobs.json")
}

// StateFile возвращает путь к файлу состояния приложения
func (p *PathsConfig) StateFile() string {
	return filepath.Join(p.DataDir, "state.json")
}

// IndexFile возвращает путь к базе семантического индекса
func (p *PathsConfig) IndexFile() string {
	return filepath.Join(p.DataDir, "skills_index.db")
}

// AgentConfig представляет конфигурацию tool-calling цикла
type AgentConfig struct {
	MaxToolRounds          int     `toml:"max_tool_rounds"`
	ProcessTimeoutSeconds  int     `toml:"process_timeout_seconds"`
	MaxTokens              int     `toml:"max_tokens"`
	Temperature            float64 `toml:"temperature"`
	HighConfidence         float64 `toml:"high_confidence"`
	WatchSkills            bool    `toml:"watch_skills"`
	WatchDebounceMillis    int     `toml:"watch_debounce_millis"`
	ScheduledTaskMaxRounds int     `toml:"scheduled_task_max_rounds"`
}

// ExecutorConfig представляет конфигурацию исполнителя скиллов
type ExecutorConfig struct {
	Runner            string       `toml:"runner"` // local, docker
	Python            string       `toml:"python"`
	TimeoutSeconds    int          `toml:"timeout_seconds"`
	InstallDeps       bool         `toml:"install_deps"`
	PipTimeoutSeconds int          `toml:"pip_timeout_seconds"`
	Docker            DockerConfig `toml:"docker"`
}

// DockerConfig представляет конфигурацию Docker-раннера
type DockerConfig struct {
	Image          string   `toml:"image"`
	MemoryLimitMB  int64    `toml:"memory_limit_mb"`
	CPULimit       float64  `toml:"cpu_limit"`
	PidsLimit      int64    `toml:"pids_limit"`
	NetworkEnabled bool     `toml:"network_enabled"`
	SecurityOpt    []string `toml:"security_opt"`
}

// SchedulerConfig представляет конфигурацию планировщика
type SchedulerConfig struct {
	Enabled bool `toml:"enabled"`
}

// IndexConfig представляет конфигурацию семантического индекса
type IndexConfig struct {
	Enabled bool `toml:"enabled"`
}

// FetchConfig представляет конфигурацию разворачивания URL в контекст
type FetchConfig struct {
	Enabled         bool   `toml:"enabled"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	MaxResponseSize int64  `toml:"max_response_size"`
	UserAgent       string `toml:"user_agent"`
}

// LoggingConfig представляет конфигурацию логирования
type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Output     string `toml:"output"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// MetricsConfig представляет конфигурацию Prometheus метрик
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}
