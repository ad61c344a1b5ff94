package config

import (
	"strings"
)

// maskSecret маскирует секрет, оставляя только первые 4 и последние 4 символа
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}

	// Если секрет слишком короткий, маскируем полностью
	if len(secret) < 8 {
		return "***"
	}

	// Оставляем первые 4 и последние 4 символа
	prefix := secret[:4]
	suffix := secret[len(secret)-4:]

	// Заменяем середину звездочками
	masked := strings.Repeat("*", len(secret)-8)

	return prefix + masked + suffix
}

// maskTelegramToken маскирует Telegram токен, оставляя bot_id видимым для диагностики
func maskTelegramToken(token string) string {
	if token == "" {
		return ""
	}

	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return maskSecret(token)
	}

	return parts[0] + ":" + maskSecret(parts[1])
}

// Masked возвращает копию конфигурации с заменёнными секретами,
// пригодную для вывода в лог или команду config
func (c *Config) Masked() Config {
	out := *c
	out.Telegram.Token = maskTelegramToken(c.Telegram.Token)
	out.Providers.Gemini.APIKey = maskSecret(c.Providers.Gemini.APIKey)
	out.Providers.Anthropic.APIKey = maskSecret(c.Providers.Anthropic.APIKey)
	out.Providers.ZAI.APIKey = maskSecret(c.Providers.ZAI.APIKey)
	return out
}
