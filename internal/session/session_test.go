package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"VortexStore/pkg/kit"
)

func identify(t *testing.T, headers map[string]string) (Owner, *httptest.ResponseRecorder) {
	t.Helper()

	var got Owner
	h := Identify(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		o, ok := FromContext(r.Context())
		if !ok {
			t.Fatalf("no owner in context")
		}
		got = o
	}))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return got, rec
}

func TestIdentify_User(t *testing.T) {
	o, rec := identify(t, map[string]string{kit.HeaderUserID: "u_42"})

	if o.Key() != "u:u_42" || o.IsGuest() {
		t.Fatalf("owner=%+v", o)
	}
	if rec.Header().Get(kit.HeaderCartSession) != "" {
		t.Fatalf("user request got a session header")
	}
}

func TestIdentify_GuestKeepsValidSession(t *testing.T) {
	sid := uuid.NewString()
	o, rec := identify(t, map[string]string{kit.HeaderCartSession: sid})

	if o.Key() != "s:"+sid || !o.IsGuest() {
		t.Fatalf("owner=%+v", o)
	}
	if rec.Header().Get(kit.HeaderCartSession) != sid {
		t.Fatalf("session header=%q", rec.Header().Get(kit.HeaderCartSession))
	}
}

func TestIdentify_GuestGetsFreshSession(t *testing.T) {
	for _, sid := range []string{"", "not-a-uuid"} {
		o, rec := identify(t, map[string]string{kit.HeaderCartSession: sid})

		if _, err := uuid.Parse(o.SessionID); err != nil {
			t.Fatalf("sid=%q: issued %q", sid, o.SessionID)
		}
		if rec.Header().Get(kit.HeaderCartSession) != o.SessionID {
			t.Fatalf("sid=%q: header not echoed", sid)
		}
	}
}
