package server

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	RembgURL string `env:"REMBG_URL"`

	// SessionTTL 会话过期时间，过期后由定时任务清理
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	CleanupSpec string        `env:"CLEANUP_SPEC" envDefault:"@every 5m"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
