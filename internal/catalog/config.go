package catalog

import "VortexStore/pkg/kit"

type Config struct {
	kit.Common

	Port        string `env:"PORT" envDefault:"8082"`
	DatabaseURL string `env:"DATABASE_URL"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := kit.LoadConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
