package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"VortexStore/internal/cart"
	"VortexStore/internal/order"
	"VortexStore/pkg/kit"
)

func main() {
	service := "cart"

	cfg, err := cart.LoadConfig()
	if err != nil {
		kit.NewLogger(service, "info").Fatal("load config failed", zap.Error(err))
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := cart.NewMetrics(reg)

	var snaps cart.Snapshots = cart.NopSnapshots{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("connect redis failed", zap.Error(err), zap.String("addr", cfg.RedisAddr))
		}
		snaps = cart.NewRedisSnapshots(rdb, cfg.TTL)
		log.Info("cart snapshots in redis", zap.String("addr", cfg.RedisAddr))
	}

	var orders order.Store = order.NewMemStore()
	if cfg.DatabaseURL != "" {
		db, err := kit.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("connect database failed", zap.Error(err))
		}
		defer db.Close()

		pg := order.NewPostgresStore(db)
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal("migrate failed", zap.Error(err))
		}
		orders = pg
		log.Info("using postgres order store")
	}

	var events order.Publisher = order.NopPublisher{}
	if cfg.RabbitURL != "" {
		pub, err := order.NewRabbitPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			log.Fatal("connect rabbitmq failed", zap.Error(err))
		}
		defer pub.Close()
		events = pub
		log.Info("publishing order events", zap.String("exchange", cfg.RabbitExchange))
	}

	s := &cart.Server{
		Carts: cart.NewRegistry(snaps, cart.RegistryOptions{
			MaxSessions: cfg.MaxSessions,
			TTL:         cfg.TTL,
			Log:         log,
			Metrics:     metrics,
		}),
		Catalog: cart.NewCatalogClient(cfg.CatalogURL, log),
		Orders:  order.NewService(orders, events, log),
		Log:     log,
		Metrics: metrics,
	}

	h := cart.NewHandler(s, &order.Server{Store: orders, Log: log}, cart.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.MetricsEnabled,
		MetricsToken:   cfg.MetricsToken,
	})

	if err := kit.RunHTTPServer(":"+cfg.Port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
