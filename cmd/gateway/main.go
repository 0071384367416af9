package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"VortexStore/internal/gateway"
	"VortexStore/pkg/kit"
)

func main() {
	service := "gateway"

	cfg, err := gateway.LoadConfig()
	if err != nil {
		kit.NewLogger(service, "info").Fatal("load config failed", zap.Error(err))
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	h, err := gateway.NewHandler(cfg.Deps(), gateway.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       prometheus.NewRegistry(),
		MetricsEnabled: cfg.MetricsEnabled,
		MetricsToken:   cfg.MetricsToken,
	})
	if err != nil {
		log.Fatal("init gateway handler failed", zap.Error(err))
	}

	if err := kit.RunHTTPServer(":"+cfg.Port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
