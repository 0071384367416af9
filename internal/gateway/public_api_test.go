package gateway_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"VortexStore/internal/auth"
	"VortexStore/internal/cart"
	"VortexStore/internal/catalog"
	"VortexStore/internal/gateway"
	"VortexStore/internal/order"
	"VortexStore/pkg/kit"
)

const jwtSecret = "test-secret-test-secret-test-secret"

type stack struct {
	gw      *httptest.Server
	auth    *httptest.Server
	catalog *httptest.Server
	cart    *httptest.Server
}

func newAuthTS(t *testing.T) *httptest.Server {
	t.Helper()

	s := &auth.Server{
		Log:   zap.NewNop(),
		Store: auth.NewMemStore(),
		JWT:   auth.NewTokenMaker(jwtSecret),
	}
	h := auth.NewHandler(s, auth.HTTPDeps{Log: zap.NewNop(), Service: "auth"})
	return httptest.NewServer(h)
}

func newCatalogTS(t *testing.T) *httptest.Server {
	t.Helper()

	products, err := catalog.Seed()
	if err != nil {
		t.Fatalf("catalog seed: %v", err)
	}
	s := &catalog.Server{Store: catalog.NewMemStore(products)}
	h := catalog.NewHandler(s, catalog.HTTPDeps{Log: zap.NewNop(), Service: "catalog"})
	return httptest.NewServer(h)
}

func newCartTS(t *testing.T, catalogURL string) *httptest.Server {
	t.Helper()

	orders := order.NewMemStore()
	s := &cart.Server{
		Carts:   cart.NewRegistry(nil, cart.RegistryOptions{}),
		Catalog: cart.NewCatalogClient(catalogURL, nil),
		Orders:  order.NewService(orders, nil, nil),
		Log:     zap.NewNop(),
	}
	h := cart.NewHandler(s, &order.Server{Store: orders}, cart.HTTPDeps{Log: zap.NewNop(), Service: "cart"})
	return httptest.NewServer(h)
}

func newStack(t *testing.T) *stack {
	t.Helper()

	st := &stack{auth: newAuthTS(t), catalog: newCatalogTS(t)}
	t.Cleanup(st.auth.Close)
	t.Cleanup(st.catalog.Close)

	st.cart = newCartTS(t, st.catalog.URL)
	t.Cleanup(st.cart.Close)

	h, err := gateway.NewHandler(
		gateway.Deps{
			JWTSecret:      jwtSecret,
			AuthURL:        st.auth.URL,
			CatalogURL:     st.catalog.URL,
			CartURL:        st.cart.URL,
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		gateway.HTTPDeps{Log: zap.NewNop(), Service: "gateway"},
	)
	if err != nil {
		t.Fatalf("gateway.NewHandler: %v", err)
	}
	st.gw = httptest.NewServer(h)
	t.Cleanup(st.gw.Close)

	return st
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func loginAs(t *testing.T, gw, email string) string {
	t.Helper()

	resp, raw := doJSON(t, http.MethodPost, gw+"/auth/register", map[string]any{
		"email":    email,
		"password": "password123",
		"name":     "Test User",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", resp.StatusCode, raw)
	}

	resp, raw = doJSON(t, http.MethodPost, gw+"/auth/login", map[string]any{
		"email":    email,
		"password": "password123",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status=%d body=%s", resp.StatusCode, raw)
	}

	var lr struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &lr); err != nil || lr.AccessToken == "" {
		t.Fatalf("decode login: %v body=%s", err, raw)
	}
	return lr.AccessToken
}

func bearer(tok string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + tok}
}

func TestGateway_PublicAPI_HappyPath(t *testing.T) {
	st := newStack(t)
	tok := loginAs(t, st.gw.URL, "user@example.com")

	{
		resp, raw := doJSON(t, http.MethodGet, st.gw.URL+"/products", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("products status=%d body=%s", resp.StatusCode, raw)
		}
		var products []catalog.Product
		if err := json.Unmarshal(raw, &products); err != nil || len(products) != 6 {
			t.Fatalf("products: err=%v len=%d", err, len(products))
		}
	}

	for _, id := range []int{1, 1, 2} {
		resp, raw := doJSON(t, http.MethodPost, st.gw.URL+"/cart/items", map[string]any{"product_id": id}, bearer(tok))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("add %d status=%d body=%s", id, resp.StatusCode, raw)
		}
	}

	{
		resp, raw := doJSON(t, http.MethodGet, st.gw.URL+"/cart", nil, bearer(tok))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("cart status=%d body=%s", resp.StatusCode, raw)
		}
		var v cart.View
		if err := json.Unmarshal(raw, &v); err != nil {
			t.Fatalf("decode cart: %v", err)
		}
		if v.Total != 7999*2+14999 || v.Count != 2 {
			t.Fatalf("cart total=%d count=%d", v.Total, v.Count)
		}
	}

	var placed order.Order
	{
		resp, raw := doJSON(t, http.MethodPost, st.gw.URL+"/cart/checkout", nil, bearer(tok))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("checkout status=%d body=%s", resp.StatusCode, raw)
		}
		var cr struct {
			Order   order.Order `json:"order"`
			Message string      `json:"message"`
		}
		if err := json.Unmarshal(raw, &cr); err != nil {
			t.Fatalf("decode checkout: %v body=%s", err, raw)
		}
		if cr.Message != "Payment successful!" {
			t.Fatalf("message=%q", cr.Message)
		}
		if cr.Order.Total != 30997 || cr.Order.ID == "" {
			t.Fatalf("order=%+v", cr.Order)
		}
		placed = cr.Order
	}

	{
		resp, raw := doJSON(t, http.MethodGet, st.gw.URL+"/cart/count", nil, bearer(tok))
		if resp.StatusCode != http.StatusOK || !bytes.Contains(raw, []byte(`"count":0`)) {
			t.Fatalf("count after checkout status=%d body=%s", resp.StatusCode, raw)
		}
	}

	{
		resp, raw := doJSON(t, http.MethodGet, st.gw.URL+"/orders/"+placed.ID, nil, bearer(tok))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get order status=%d body=%s", resp.StatusCode, raw)
		}
		var got order.Order
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("decode order: %v body=%s", err, raw)
		}
		if got.ID != placed.ID || got.Total != placed.Total {
			t.Fatalf("got=%+v want=%+v", got, placed)
		}
	}

	{
		resp, _ := doJSON(t, http.MethodGet, st.gw.URL+"/orders/"+placed.ID, nil, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("guest reading a user's order: status=%d", resp.StatusCode)
		}
	}
}

func TestGateway_PublicAPI_GuestCart(t *testing.T) {
	st := newStack(t)

	resp, raw := doJSON(t, http.MethodPost, st.gw.URL+"/cart/items", map[string]any{"product_id": 3}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add status=%d body=%s", resp.StatusCode, raw)
	}
	sid := resp.Header.Get(kit.HeaderCartSession)
	if sid == "" {
		t.Fatal("expected a guest session id")
	}
	if resp.Header.Get(kit.HeaderRequestID) == "" {
		t.Fatal("expected a request id")
	}

	resp, raw = doJSON(t, http.MethodGet, st.gw.URL+"/cart/count", nil, map[string]string{kit.HeaderCartSession: sid})
	if resp.StatusCode != http.StatusOK || !bytes.Contains(raw, []byte(`"count":1`)) {
		t.Fatalf("count status=%d body=%s", resp.StatusCode, raw)
	}

	resp, raw = doJSON(t, http.MethodGet, st.gw.URL+"/cart/count", nil, nil)
	if !bytes.Contains(raw, []byte(`"count":0`)) {
		t.Fatalf("a new guest should start empty, body=%s", raw)
	}
	if resp.Header.Get(kit.HeaderCartSession) == sid {
		t.Fatal("a new guest must not reuse another session")
	}
}

func TestGateway_PublicAPI_InvalidTokenRejected(t *testing.T) {
	st := newStack(t)

	for name, h := range map[string]map[string]string{
		"garbage": bearer("not-a-token"),
		"scheme":  {"Authorization": "Basic dXNlcjpwYXNz"},
	} {
		resp, raw := doJSON(t, http.MethodGet, st.gw.URL+"/cart", nil, h)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: status=%d body=%s", name, resp.StatusCode, raw)
		}
	}
}

func TestGateway_PublicAPI_IdentityHeadersStripped(t *testing.T) {
	st := newStack(t)
	tok := loginAs(t, st.gw.URL, "victim@example.com")

	resp, raw := doJSON(t, http.MethodPost, st.gw.URL+"/cart/items", map[string]any{"product_id": 1}, bearer(tok))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add status=%d body=%s", resp.StatusCode, raw)
	}

	resp, raw = doJSON(t, http.MethodGet, st.gw.URL+"/auth/whoami", nil, bearer(tok))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("whoami status=%d body=%s", resp.StatusCode, raw)
	}
	var me map[string]string
	if err := json.Unmarshal(raw, &me); err != nil {
		t.Fatalf("decode whoami: %v", err)
	}

	_, raw = doJSON(t, http.MethodGet, st.gw.URL+"/cart/count", nil, map[string]string{kit.HeaderUserID: me["user_id"]})
	if !bytes.Contains(raw, []byte(`"count":0`)) {
		t.Fatalf("spoofed user header reached the cart: %s", raw)
	}
}

func TestGateway_CORSPreflight(t *testing.T) {
	st := newStack(t)

	req, _ := http.NewRequest(http.MethodOptions, st.gw.URL+"/cart/items", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type,x-cart-session")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status=%d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow origin=%q", got)
	}

	resp, _ = doJSON(t, http.MethodGet, st.gw.URL+"/products", nil, map[string]string{"Origin": "http://localhost:5173"})
	if got := resp.Header.Get("Access-Control-Expose-Headers"); got == "" {
		t.Fatal("expected exposed headers on a simple request")
	}
}

func TestGateway_Readyz(t *testing.T) {
	st := newStack(t)

	resp, _ := doJSON(t, http.MethodGet, st.gw.URL+"/readyz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status=%d", resp.StatusCode)
	}

	st.catalog.Close()
	resp, raw := doJSON(t, http.MethodGet, st.gw.URL+"/readyz", nil, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz with catalog down status=%d body=%s", resp.StatusCode, raw)
	}

	resp, _ = doJSON(t, http.MethodGet, st.gw.URL+"/products", nil, nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("proxy to a dead upstream status=%d", resp.StatusCode)
	}
}

func TestNewHandler_RejectsRelativeURL(t *testing.T) {
	_, err := gateway.NewHandler(gateway.Deps{AuthURL: "auth:8081", CatalogURL: "http://c", CartURL: "http://x"}, gateway.HTTPDeps{})
	if err == nil {
		t.Fatal("expected an error for a relative upstream url")
	}
}
