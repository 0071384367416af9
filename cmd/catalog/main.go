package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"VortexStore/internal/catalog"
	"VortexStore/pkg/kit"
)

func main() {
	service := "catalog"

	cfg, err := catalog.LoadConfig()
	if err != nil {
		kit.NewLogger(service, "info").Fatal("load config failed", zap.Error(err))
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	products, err := catalog.Seed()
	if err != nil {
		log.Fatal("load catalog seed failed", zap.Error(err))
	}

	var store catalog.Store = catalog.NewMemStore(products)
	if cfg.DatabaseURL != "" {
		ctx := context.Background()
		db, err := kit.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("connect database failed", zap.Error(err))
		}
		defer db.Close()

		pg := catalog.NewPostgresStore(db)
		if err := pg.Migrate(ctx, products); err != nil {
			log.Fatal("migrate failed", zap.Error(err))
		}
		store = pg
		log.Info("using postgres catalog store", zap.Int("products", len(products)))
	}

	h := catalog.NewHandler(&catalog.Server{Store: store, Log: log}, catalog.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       prometheus.NewRegistry(),
		MetricsEnabled: cfg.MetricsEnabled,
		MetricsToken:   cfg.MetricsToken,
	})

	if err := kit.RunHTTPServer(":"+cfg.Port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
