package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"VortexStore/internal/auth"
	"VortexStore/pkg/kit"
)

func main() {
	service := "auth"

	cfg, err := auth.LoadConfig()
	if err != nil {
		kit.NewLogger(service, "info").Fatal("load config failed", zap.Error(err))
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	var store auth.UserStore = auth.NewMemStore()
	if cfg.DatabaseURL != "" {
		ctx := context.Background()
		db, err := kit.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("connect database failed", zap.Error(err))
		}
		defer db.Close()

		pg := auth.NewPostgresStore(db)
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal("migrate failed", zap.Error(err))
		}
		store = pg
		log.Info("using postgres user store")
	}

	s := &auth.Server{
		Log:      log,
		Store:    store,
		JWT:      auth.NewTokenMaker(cfg.JWTSecret),
		Revoked:  auth.NewRevocations(cfg.TokenTTL),
		TokenTTL: cfg.TokenTTL,
	}

	h := auth.NewHandler(s, auth.HTTPDeps{
		Log:                 log,
		Service:             service,
		Registry:            prometheus.NewRegistry(),
		MetricsEnabled:      cfg.MetricsEnabled,
		MetricsToken:        cfg.MetricsToken,
		LoginLimitPerMin:    cfg.LoginLimitPerMin,
		RegisterLimitPerMin: cfg.RegisterLimitPerMin,
	})

	if err := kit.RunHTTPServer(":"+cfg.Port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
