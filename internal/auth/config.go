package auth

import (
	"errors"
	"time"

	"VortexStore/pkg/kit"
)

type Config struct {
	kit.Common

	Port        string        `env:"PORT" envDefault:"8081"`
	DatabaseURL string        `env:"DATABASE_URL"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"15m"`

	LoginLimitPerMin    int `env:"LOGIN_LIMIT_PER_MIN" envDefault:"5"`
	RegisterLimitPerMin int `env:"REGISTER_LIMIT_PER_MIN" envDefault:"3"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := kit.LoadConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL <= 0 {
		return Config{}, errors.New("TOKEN_TTL must be positive")
	}
	return cfg, nil
}
