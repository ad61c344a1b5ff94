package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load загружает конфигурацию из TOML файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandEnvVars(&cfg)

	return &cfg, nil
}

// Validate проверяет валидность конфигурации
func (c *Config) Validate() []error {
	var errors []error

	// Проверка Telegram
	if c.Telegram.Token == "" {
		errors = append(errors, fmt.Errorf("telegram.token is required"))
	} else if err := validateTelegramToken(c.Telegram.Token); err != nil {
		errors = append(errors, err)
	}
	if c.Telegram.AdminID == 0 {
		errors = append(errors, fmt.Errorf("telegram.admin_id is required"))
	}

	// Проверка провайдера по умолчанию: ключ обязателен только для выбранного
	switch c.Providers.Default {
	case "gemini":
		if c.Providers.Gemini.APIKey == "" {
			errors = append(errors, fmt.Errorf("providers.gemini.api_key is required when default provider is 'gemini'"))
		}
	case "anthropic":
		if c.Providers.Anthropic.APIKey == "" {
			errors = append(errors, fmt.Errorf("providers.anthropic.api_key is required when default provider is 'anthropic'"))
		}
	case "ollama":
		// Ollama не требует ключа
	case "zai":
		if c.Providers.ZAI.APIKey == "" {
			errors = append(errors, fmt.Errorf("providers.zai.api_key is required when default provider is 'zai'"))
		}
	default:
		errors = append(errors, fmt.Errorf("invalid providers.default: %s (expected: gemini, anthropic, ollama, zai)", c.Providers.Default))
	}

	if c.Paths.SkillsDir == "" {
		errors = append(errors, fmt.Errorf("paths.skills_dir is required"))
	} else if err := validatePath(c.Paths.SkillsDir, "paths.skills_dir"); err != nil {
		errors = append(errors, err)
	}
	if c.Paths.DataDir == "" {
		errors = append(errors, fmt.Errorf("paths.data_dir is required"))
	} else if err := validatePath(c.Paths.DataDir, "paths.data_dir"); err != nil {
		errors = append(errors, err)
	}

	switch c.Executor.Runner {
	case "local", "docker":
	default:
		errors = append(errors, fmt.Errorf("invalid executor.runner: %s (expected: local, docker)", c.Executor.Runner))
	}
	if c.Executor.TimeoutSeconds <= 0 {
		errors = append(errors, fmt.Errorf("executor.timeout_seconds must be positive"))
	}

	if c.Agent.MaxToolRounds <= 0 {
		errors = append(errors, fmt.Errorf("agent.max_tool_rounds must be positive"))
	}
	if c.Agent.ProcessTimeoutSeconds <= 0 {
		errors = append(errors, fmt.Errorf("agent.process_timeout_seconds must be positive"))
	}
	if c.Agent.HighConfidence < 0 || c.Agent.HighConfidence > 1 {
		errors = append(errors, fmt.Errorf("agent.high_confidence must be within [0, 1]"))
	}

	// Проверка logging config
	if c.Logging.Level == "" {
		errors = append(errors, fmt.Errorf("logging.level is required"))
	} else {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[strings.ToLower(c.Logging.Level)] {
			errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
		}
	}

	if c.Logging.Format == "" {
		errors = append(errors, fmt.Errorf("logging.format is required"))
	} else {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[strings.ToLower(c.Logging.Format)] {
			errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
		}
	}

	if c.Logging.Output == "" {
		errors = append(errors, fmt.Errorf("logging.output is required"))
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		errors = append(errors, fmt.Errorf("metrics.listen_addr is required when metrics are enabled"))
	}

	return errors
}

// Helper validation functions
func validateTelegramToken(token string) error {
	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return fmt.Errorf("telegram token has invalid format (expected format: <bot_id>:<token>, got: %s)", maskSecret(token))
	}

	botID := parts[0]
	botToken := parts[1]

	if len(botID) < 3 || len(botID) > 15 {
		return fmt.Errorf("telegram token has invalid bot ID length (expected 3-15 digits, got %d digits)", len(botID))
	}

	// Check that bot ID contains only digits
	for _, r := range botID {
		if r < '0' || r > '9' {
			return fmt.Errorf("telegram token has invalid bot ID (expected digits only, got: %s)", botID)
		}
	}

	if len(botToken) < 10 || len(botToken) > 50 {
		return fmt.Errorf("telegram token has invalid token length (expected 10-50 characters, got %d)", len(botToken))
	}

	return nil
}

func validatePath(path, fieldName string) error {
	if path == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	if strings.HasPrefix(path, "~") {
		return nil
	}

	if strings.Contains(path, "..") {
		return fmt.Errorf("%s contains potentially dangerous path traversal sequence", fieldName)
	}

	return nil
}

// expandEnvVars расширяет переменные окружения в строковых полях конфигурации
func expandEnvVars(c *Config) {
	c.Telegram.Token = expandEnv(c.Telegram.Token)
	c.Providers.Gemini.APIKey = expandEnv(c.Providers.Gemini.APIKey)
	c.Providers.Anthropic.APIKey = expandEnv(c.Providers.Anthropic.APIKey)
	c.Providers.Ollama.BaseURL = expandEnv(c.Providers.Ollama.BaseURL)
	c.Providers.ZAI.APIKey = expandEnv(c.Providers.ZAI.APIKey)

	c.Paths.SkillsDir = expandHome(expandEnv(c.Paths.SkillsDir))
	c.Paths.DataDir = expandHome(expandEnv(c.Paths.DataDir))
	c.Paths.SoulFile = expandHome(expandEnv(c.Paths.SoulFile))
	c.Paths.IdentityFile = expandHome(expandEnv(c.Paths.IdentityFile))
	c.Paths.UserFile = expandHome(expandEnv(c.Paths.UserFile))
	c.Paths.ToolsFile = expandHome(expandEnv(c.Paths.ToolsFile))

	c.Logging.Output = expandHome(expandEnv(c.Logging.Output))
}

// expandEnv расширяет переменную окружения формата ${VAR:default}
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		key := parts[0]
		defaultVal := parts[1]
		if val := os.Getenv(key); val != "" {
			return val
		}
		return defaultVal
	}

	// Без значения по умолчанию
	return os.Getenv(s[2:end])
}

// expandHome расширяет ~ в пути
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
