package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port           int
	DatabaseURL    string // PostgreSQL; empty selects the SQLite file
	SQLitePath     string
	HistoryPath    string
	NatsURL        string // empty disables the event bus
	NatsToken      string
	LogLevel       string
	DeepSeekAPIKey string
	DeepSeekModel  string
	DeepSeekURL    string
	APIToken       string
	MaxUploadMB    int
}

func Load() Config {
	return Config{
		Port:           envInt("SCRIBE_PORT", 8760),
		DatabaseURL:    envStr("DATABASE_URL", ""),
		SQLitePath:     envStr("SQLITE_PATH", "scribe.db"),
		HistoryPath:    envStr("SCRIBE_HISTORY_PATH", "~/.scribe/import-history.json"),
		NatsURL:        envStr("NATS_URL", ""),
		NatsToken:      envStr("NATS_TOKEN", ""),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		DeepSeekAPIKey: envStr("DEEPSEEK_API_KEY", ""),
		DeepSeekModel:  envStr("DEEPSEEK_MODEL", "deepseek-chat"),
		DeepSeekURL:    envStr("DEEPSEEK_URL", "https://api.deepseek.com/v1/chat/completions"),
		APIToken:       envStr("SCRIBE_API_TOKEN", ""),
		MaxUploadMB:    envInt("SCRIBE_MAX_UPLOAD_MB", 512),
	}
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
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
