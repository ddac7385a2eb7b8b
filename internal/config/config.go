package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, loaded from the environment. DB_URL
// and REDIS_URL are optional: without a database the server runs against the
// in-memory message store (development mode), and without Redis presence
// stays in-process and the delivery sweep runs inline.
type Config struct {
	Port            string `env:"PORT" envDefault:"8080"`
	DatabaseURL     string `env:"DB_URL"`
	RedisURL        string `env:"REDIS_URL"`
	JWTSecret       string `env:"JWT_SECRET,required,notEmpty"`
	PresenceBackend string `env:"PRESENCE_BACKEND" envDefault:"memory"`
	HistoryPageSize int    `env:"CHAT_HISTORY_PAGE_SIZE" envDefault:"50"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if cfg.PresenceBackend != "memory" && cfg.PresenceBackend != "redis" {
		return Config{}, fmt.Errorf("config: PRESENCE_BACKEND must be memory or redis, got %q", cfg.PresenceBackend)
	}
	if cfg.PresenceBackend == "redis" && cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("config: PRESENCE_BACKEND=redis requires REDIS_URL")
	}
	return cfg, nil
}
