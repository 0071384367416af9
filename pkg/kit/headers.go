package kit

// Identity headers set by the gateway after verifying a token. Services behind
// the gateway trust them; the gateway strips client-supplied copies.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"

	// HeaderCartSession carries the guest cart session id.
	HeaderCartSession = "X-Cart-Session"
	HeaderRequestID   = "X-Request-Id"
)
