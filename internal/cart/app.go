package cart

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"VortexStore/internal/order"
	"VortexStore/internal/session"
	"VortexStore/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string
}

const readyTimeout = 1 * time.Second

// NewHandler serves the cart and the order lookups that belong to the same
// owner.
func NewHandler(s *Server, orders *order.Server, deps HTTPDeps) http.Handler {
	r := chi.NewRouter()

	kit.Base(r, deps.Log)
	kit.InstallMetrics(r, kit.MetricsOptions{
		Service:  deps.Service,
		Registry: deps.Registry,
		Enabled:  deps.MetricsEnabled,
		Token:    deps.MetricsToken,
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.readyz(orders))

	r.Group(func(pr chi.Router) {
		pr.Use(session.Identify)
		s.Routes(pr)
		if orders != nil {
			orders.Routes(pr)
		}
	})

	return r
}

func (s *Server) readyz(orders *order.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if err := s.Carts.Ping(ctx); err != nil {
			s.logger().Warn("readyz failed: snapshots", zap.Error(err))
			kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
			return
		}
		if orders != nil {
			if err := orders.Store.Ping(ctx); err != nil {
				s.logger().Warn("readyz failed: orders", zap.Error(err))
				kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
