package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port          int
	NatsURL       string
	NatsToken     string
	DatabaseURL   string
	RedisURL      string
	LogLevel      string
	HistoryLimit  int
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	EmailFrom     string
	EmailFromName string
}

func Load() Config {
	return Config{
		Port:          envInt("PARLEY_PORT", 8760),
		NatsURL:       envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:     envStr("NATS_TOKEN", ""),
		DatabaseURL:   envStr("DATABASE_URL", ""),
		RedisURL:      envStr("REDIS_URL", "redis://localhost:6379/0"),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		HistoryLimit:  envInt("PARLEY_HISTORY_LIMIT", 200),
		SMTPHost:      envStr("SMTP_HOST", ""),
		SMTPPort:      envInt("SMTP_PORT", 587),
		SMTPUsername:  envStr("SMTP_USERNAME", ""),
		SMTPPassword:  envStr("SMTP_PASSWORD", ""),
		EmailFrom:     envStr("EMAIL_FROM", ""),
		EmailFromName: envStr("EMAIL_FROM_NAME", "Parley"),
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
