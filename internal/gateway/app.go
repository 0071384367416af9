package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"VortexStore/internal/auth"
	"VortexStore/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string
}

type Deps struct {
	AuthURL        string
	CatalogURL     string
	CartURL        string
	JWTSecret      string
	AllowedOrigins []string
}

const (
	readyTimeout      = 2 * time.Second
	readyProbeTimeout = 700 * time.Millisecond
	corsMaxAge        = 600
)

var readyClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	},
}

type upstream struct {
	name string
	url  string
}

func (d Deps) upstreams() []upstream {
	return []upstream{
		{"auth", d.AuthURL},
		{"catalog", d.CatalogURL},
		{"cart", d.CartURL},
	}
}

func NewHandler(deps Deps, httpDeps HTTPDeps) (http.Handler, error) {
	proxies := make(map[string]http.Handler, 3)
	for _, u := range deps.upstreams() {
		p, err := NewReverseProxy(u.name, u.url, httpDeps.Log)
		if err != nil {
			return nil, err
		}
		proxies[u.name] = p
	}

	jwt := auth.NewTokenMaker(deps.JWTSecret)

	r := chi.NewRouter()
	r.Use(newCORS(deps.AllowedOrigins).Handler)
	kit.Base(r, httpDeps.Log)
	r.Use(echoRequestID)
	kit.InstallMetrics(r, kit.MetricsOptions{
		Service:  httpDeps.Service,
		Registry: httpDeps.Registry,
		Enabled:  httpDeps.MetricsEnabled,
		Token:    httpDeps.MetricsToken,
	})

	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(deps, httpDeps.Log))

	r.Group(func(pub chi.Router) {
		pub.Use(InjectHeaders)

		pub.Handle("/auth", proxies["auth"])
		pub.Handle("/auth/*", proxies["auth"])

		pub.Handle("/products", proxies["catalog"])
		pub.Handle("/products/*", proxies["catalog"])
	})

	r.Group(func(pr chi.Router) {
		pr.Use(OptionalAuthJWT(jwt))
		pr.Use(InjectHeaders)

		pr.Handle("/cart", proxies["cart"])
		pr.Handle("/cart/*", proxies["cart"])
		pr.Handle("/orders/*", proxies["cart"])
	})

	return r, nil
}

func newCORS(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type", kit.HeaderCartSession, kit.HeaderRequestID},
		ExposedHeaders: []string{kit.HeaderCartSession, kit.HeaderRequestID},
		MaxAge:         corsMaxAge,
	})
}

func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			w.Header().Set(kit.HeaderRequestID, id)
		}
		next.ServeHTTP(w, r)
	})
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyz(deps Deps, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		for _, u := range deps.upstreams() {
			if err := checkReady(ctx, u.url+"/readyz"); err != nil {
				log.Warn("readyz failed", zap.String("upstream", u.name), zap.Error(err))
				kit.WriteError(w, r, http.StatusServiceUnavailable, u.name+" not ready", nil)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
	}
}

func checkReady(ctx context.Context, url string) error {
	cctx, cancel := context.WithTimeout(ctx, readyProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := readyClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status=%d", resp.StatusCode)
	}

	return nil
}
