package auth

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const maxRevoked = 100_000

// Revocations remembers logged-out token ids. An entry only has to outlive
// the token it revokes, so every entry lives for the token TTL.
type Revocations struct {
	ids *expirable.LRU[string, struct{}]
}

func NewRevocations(tokenTTL time.Duration) *Revocations {
	return &Revocations{ids: expirable.NewLRU[string, struct{}](maxRevoked, nil, tokenTTL)}
}

func (r *Revocations) Revoke(jti string) {
	if jti == "" {
		return
	}
	r.ids.Add(jti, struct{}{})
}

func (r *Revocations) Revoked(jti string) bool {
	_, ok := r.ids.Get(jti)
	return ok
}
