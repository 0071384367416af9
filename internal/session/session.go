// Package session resolves who a cart belongs to. Requests that passed the
// gateway with a valid token carry the user id; everyone else is a guest
// identified by a server-issued session id.
package session

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"VortexStore/pkg/kit"
)

type ctxKey struct{}

type Owner struct {
	UserID    string
	SessionID string
}

// Key is the registry key for the owner's cart.
func (o Owner) Key() string {
	if o.UserID != "" {
		return "u:" + o.UserID
	}
	return "s:" + o.SessionID
}

func (o Owner) IsGuest() bool { return o.UserID == "" }

func FromContext(ctx context.Context) (Owner, bool) {
	o, ok := ctx.Value(ctxKey{}).(Owner)
	return o, ok
}

func WithOwner(ctx context.Context, o Owner) context.Context {
	return context.WithValue(ctx, ctxKey{}, o)
}

// Identify attaches an Owner to every request. Guests without a usable
// session header get a fresh id, echoed back in the response header so the
// client can keep sending it.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o := Owner{UserID: strings.TrimSpace(r.Header.Get(kit.HeaderUserID))}

		if o.UserID == "" {
			sid := strings.TrimSpace(r.Header.Get(kit.HeaderCartSession))
			if _, err := uuid.Parse(sid); err != nil {
				sid = uuid.NewString()
			}
			o.SessionID = sid
			w.Header().Set(kit.HeaderCartSession, sid)
		}

		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), o)))
	})
}
