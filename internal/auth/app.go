package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"VortexStore/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	LoginLimitPerMin    int
	RegisterLimitPerMin int
}

const (
	defaultLoginLimitPerMin    = 5
	defaultRegisterLimitPerMin = 3
	limitWindow                = time.Minute
)

func NewHandler(s *Server, deps HTTPDeps) http.Handler {
	if s.Log == nil {
		s.Log = zap.NewNop()
	}
	if s.Revoked == nil {
		s.Revoked = NewRevocations(s.tokenTTL())
	}

	r := chi.NewRouter()

	kit.Base(r, deps.Log)
	kit.InstallMetrics(r, kit.MetricsOptions{
		Service:  deps.Service,
		Registry: deps.Registry,
		Enabled:  deps.MetricsEnabled,
		Token:    deps.MetricsToken,
	})

	loginLimiter := kit.NewIPRateLimiter(orDefault(deps.LoginLimitPerMin, defaultLoginLimitPerMin), limitWindow)
	registerLimiter := kit.NewIPRateLimiter(orDefault(deps.RegisterLimitPerMin, defaultRegisterLimitPerMin), limitWindow)

	r.Route("/auth", func(rr chi.Router) {
		rr.With(loginLimiter.Middleware).Post("/login", s.handleLogin)
		rr.With(registerLimiter.Middleware).Post("/register", s.handleRegister)
		rr.Post("/logout", s.handleLogout)
		rr.Get("/whoami", s.handleWhoAmI)
	})

	r.Get("/healthz", healthz)
	r.Get("/readyz", s.handleReady)

	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
