package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port               int
	NatsURL            string
	NatsToken          string
	DatabaseURL        string
	LogLevel           string
	AnthropicAPIKey    string
	Model              string
	MaxTokens          int
	SystemPrompt       string
	TempSessionSeconds int
	APIToken           string
}

func Load() Config {
	return Config{
		Port:               envInt("CHATLINE_PORT", 8760),
		NatsURL:            envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:          envStr("NATS_TOKEN", ""),
		DatabaseURL:        envStr("DATABASE_URL", ""),
		LogLevel:           envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey:    envStr("ANTHROPIC_API_KEY", ""),
		Model:              envStr("CHATLINE_MODEL", "claude-sonnet-4-20250514"),
		MaxTokens:          envInt("CHATLINE_MAX_TOKENS", 4096),
		SystemPrompt:       envStr("CHATLINE_SYSTEM_PROMPT", ""),
		TempSessionSeconds: envInt("CHATLINE_TEMP_SESSION_SECONDS", 1800),
		APIToken:           envStr("CHATLINE_API_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
