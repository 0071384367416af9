package cart

import (
	"fmt"
	"time"

	"VortexStore/pkg/kit"
)

type Config struct {
	kit.Common

	Port       string `env:"PORT" envDefault:"8083"`
	CatalogURL string `env:"CATALOG_URL" envDefault:"http://localhost:8082"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	TTL         time.Duration `env:"CART_TTL" envDefault:"168h"`
	MaxSessions int           `env:"CART_MAX_SESSIONS" envDefault:"10000"`

	DatabaseURL    string `env:"DATABASE_URL"`
	RabbitURL      string `env:"RABBITMQ_URL"`
	RabbitExchange string `env:"RABBITMQ_EXCHANGE" envDefault:"vortex.events"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := kit.LoadConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.TTL <= 0 {
		return Config{}, fmt.Errorf("CART_TTL must be positive, got %s", cfg.TTL)
	}
	if cfg.MaxSessions <= 0 {
		return Config{}, fmt.Errorf("CART_MAX_SESSIONS must be positive, got %d", cfg.MaxSessions)
	}
	return cfg, nil
}
