package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	store := NewMemStore()
	store.cost = bcrypt.MinCost

	s := &Server{Store: store, JWT: NewTokenMaker("test-secret")}
	h := NewHandler(s, HTTPDeps{Service: "auth", LoginLimitPerMin: 100, RegisterLimitPerMin: 100})
	return s, h
}

func send(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.0.0.1:1234"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, h http.Handler, email string) {
	t.Helper()
	rec := send(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": "password123", "name": "Asha",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func login(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rec := send(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if resp.AccessToken == "" || resp.ExpiresAt == 0 {
		t.Fatalf("incomplete login response: %+v", resp)
	}
	return resp.AccessToken
}

func TestRegisterLoginWhoAmI(t *testing.T) {
	_, h := newTestServer(t)

	register(t, h, "asha@example.com")
	tok := login(t, h, "  ASHA@example.com ")

	rec := send(t, h, http.MethodGet, "/auth/whoami", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("whoami: expected 200, got %d", rec.Code)
	}

	var me map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode whoami: %v", err)
	}
	if me["email"] != "asha@example.com" || me["name"] != "Asha" || me["role"] != RoleUser || me["user_id"] == "" {
		t.Fatalf("unexpected whoami: %v", me)
	}
}

func TestRegister_Rejects(t *testing.T) {
	_, h := newTestServer(t)
	register(t, h, "taken@example.com")

	cases := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"duplicate", map[string]string{"email": "taken@example.com", "password": "password123", "name": "B"}, http.StatusConflict},
		{"bad email", map[string]string{"email": "nope", "password": "password123", "name": "B"}, http.StatusBadRequest},
		{"short password", map[string]string{"email": "b@example.com", "password": "short", "name": "B"}, http.StatusBadRequest},
		{"padded short password", map[string]string{"email": "b@example.com", "password": "  short  ", "name": "B"}, http.StatusBadRequest},
		{"no name", map[string]string{"email": "b@example.com", "password": "password123"}, http.StatusBadRequest},
		{"blank name", map[string]string{"email": "b@example.com", "password": "password123", "name": "   "}, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := send(t, h, http.MethodPost, "/auth/register", "", c.body)
			if rec.Code != c.status {
				t.Fatalf("expected %d, got %d: %s", c.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	_, h := newTestServer(t)
	register(t, h, "asha@example.com")

	rec := send(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "asha@example.com", "password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = send(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ghost@example.com", "password": "password123",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", rec.Code)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	_, h := newTestServer(t)
	register(t, h, "asha@example.com")
	tok := login(t, h, "asha@example.com")
	other := login(t, h, "asha@example.com")

	rec := send(t, h, http.MethodPost, "/auth/logout", tok, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", rec.Code)
	}

	rec = send(t, h, http.MethodGet, "/auth/whoami", tok, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("whoami after logout: expected 401, got %d", rec.Code)
	}

	rec = send(t, h, http.MethodGet, "/auth/whoami", other, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second session should survive logout of the first, got %d", rec.Code)
	}

	rec = send(t, h, http.MethodPost, "/auth/logout", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("logout without token: expected 401, got %d", rec.Code)
	}
}

func TestWhoAmI_BadTokens(t *testing.T) {
	_, h := newTestServer(t)

	for name, tok := range map[string]string{
		"missing": "",
		"garbage": "not-a-jwt",
	} {
		rec := send(t, h, http.MethodGet, "/auth/whoami", tok, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
	}
}

func TestTokenMaker(t *testing.T) {
	tm := NewTokenMaker("secret")
	u := User{ID: "u_1", Email: "a@example.com", Name: "A", Role: RoleUser}

	tok, claims, err := tm.New(u, time.Minute)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if claims.ID == "" {
		t.Fatal("expected a jti")
	}

	got, err := tm.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.UserID != "u_1" || got.Name != "A" || got.ID != claims.ID {
		t.Fatalf("unexpected claims: %+v", got)
	}

	if _, err := NewTokenMaker("other").Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: expected ErrInvalidToken, got %v", err)
	}

	expired := NewTokenMaker("secret")
	expired.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := expired.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired: expected ErrInvalidToken, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := none.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := tm.Parse(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign alg: expected ErrInvalidToken, got %v", err)
	}
}

func TestLoginRateLimited(t *testing.T) {
	store := NewMemStore()
	store.cost = bcrypt.MinCost
	h := NewHandler(&Server{Store: store, JWT: NewTokenMaker("s")}, HTTPDeps{LoginLimitPerMin: 2})

	body := map[string]string{"email": "x@example.com", "password": "password123"}
	for i := 0; i < 2; i++ {
		if rec := send(t, h, http.MethodPost, "/auth/login", "", body); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, rec.Code)
		}
	}

	rec := send(t, h, http.MethodPost, "/auth/login", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After")
	}
}

type brokenStore struct{ *MemStore }

func (brokenStore) Ping(context.Context) error { return errors.New("db down") }

func (brokenStore) Verify(context.Context, string, string) (User, error) {
	return User{}, errors.New("db down")
}

func TestStoreFailures(t *testing.T) {
	h := NewHandler(&Server{Store: brokenStore{NewMemStore()}, JWT: NewTokenMaker("s")}, HTTPDeps{})

	rec := send(t, h, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz: expected 503, got %d", rec.Code)
	}

	rec = send(t, h, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@example.com", "password": "password123"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("login: expected 500, got %d", rec.Code)
	}
}
