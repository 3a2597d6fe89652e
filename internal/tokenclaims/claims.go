// Package tokenclaims offers best-effort introspection of a device token's
// expiry, when the token happens to be a JWT. hawkBit device tokens are
// opaque by protocol (spec.md treats DeviceToken as an arbitrary string);
// this package never validates a signature — it only extracts the `exp`
// claim, the same unverified-parse pattern the teacher's own JWT service
// (internal/service/jwt_service.go) uses internally before a verified
// parse, here used standalone because the client has no way to verify a
// server-issued token's signature without the server's key.
package tokenclaims

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiryUnix returns the token's "exp" claim as a Unix timestamp, and
// whether the token could be parsed as a JWT with that claim at all. A
// non-JWT opaque token yields ok=false, not an error: callers fall back to
// purely reactive 401 handling.
func ExpiryUnix(token string) (exp int64, ok bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return 0, false
	}
	expFloat, ok := claims["exp"].(float64)
	if !ok {
		return 0, false
	}
	return int64(expFloat), true
}

// WithinSkew reports whether expUnix is within skewSeconds of now, i.e. the
// token should be treated as effectively expired already.
func WithinSkew(expUnix int64, skewSeconds int64) bool {
	deadline := time.Unix(expUnix, 0).Add(-time.Duration(skewSeconds) * time.Second)
	return !time.Now().Before(deadline)
}
