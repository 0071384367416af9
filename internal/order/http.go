package order

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"VortexStore/internal/session"
	"VortexStore/pkg/kit"
)

type Server struct {
	Store Store
	Log   *zap.Logger
}

// Routes expects session.Identify to have run.
func (s *Server) Routes(r chi.Router) {
	r.Get("/orders/{id}", s.get)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	owner, ok := session.FromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no owner", nil)
		return
	}

	id := chi.URLParam(r, "id")
	o, found, err := s.Store.Get(r.Context(), id)
	if err != nil {
		if s.Log != nil {
			s.Log.Error("store get order failed", zap.Error(err), zap.String("order_id", id))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	if o.Owner != owner.Key() {
		kit.WriteError(w, r, http.StatusForbidden, "forbidden", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, o)
}
