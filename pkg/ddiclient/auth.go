package ddiclient

import (
	"crypto/tls"
	"net/http"

	"github.com/aras-services/ddi-client/internal/tokenclaims"
)

// authStrategy installs credentials into an outbound request/TLS config.
// Exactly one variant is active at a time; DefaultClientBuilder rejects a
// second assignment (spec.md §3 "construction-time exclusivity").
type authStrategy interface {
	// applyRequest sets auth headers on an outbound request, if any.
	applyRequest(req *http.Request)
	// applyTLS installs client-certificate material into a transport's TLS
	// config, if any.
	applyTLS(tlsConfig *tls.Config)
	// name identifies the strategy for logging/diagnostics.
	name() string
	// allowsCrossAuthorityRedirect reports whether this strategy's
	// credentials are safe to replay against a different authority
	// (bearer tokens are; client certificates are not — spec.md §4.3).
	allowsCrossAuthorityRedirect() bool
}

type noAuth struct{}

func (noAuth) applyRequest(*http.Request)         {}
func (noAuth) applyTLS(*tls.Config)                {}
func (noAuth) name() string                        { return "none" }
func (noAuth) allowsCrossAuthorityRedirect() bool   { return false }

type gatewayTokenAuth struct{ token string }

func (a gatewayTokenAuth) applyRequest(req *http.Request) {
	req.Header.Set("Authorization", "GatewayToken "+a.token)
}
func (gatewayTokenAuth) applyTLS(*tls.Config)              {}
func (gatewayTokenAuth) name() string                      { return "gateway-token" }
func (gatewayTokenAuth) allowsCrossAuthorityRedirect() bool { return true }

type deviceTokenAuth struct{ token string }

func (a deviceTokenAuth) applyRequest(req *http.Request) {
	req.Header.Set("Authorization", "TargetToken "+a.token)
}
func (deviceTokenAuth) applyTLS(*tls.Config)              {}
func (deviceTokenAuth) name() string                      { return "device-token" }
func (deviceTokenAuth) allowsCrossAuthorityRedirect() bool { return true }

// nearExpiry reports whether a device token looks close enough to its
// expiry that the controller should treat the upcoming request as likely to
// 401 and consult the auth-error handler proactively. It tolerates tokens
// that are not parseable JWTs (hawkBit device tokens are opaque by default)
// by simply reporting false — the reactive 401 path still applies.
func (a deviceTokenAuth) nearExpiry(skewSeconds int64) bool {
	exp, ok := tokenclaims.ExpiryUnix(a.token)
	if !ok {
		return false
	}
	return tokenclaims.WithinSkew(exp, skewSeconds)
}

type mTLSAuth struct {
	cert tls.Certificate
}

func (mTLSAuth) applyRequest(*http.Request) {}
func (a mTLSAuth) applyTLS(tlsConfig *tls.Config) {
	tlsConfig.Certificates = []tls.Certificate{a.cert}
}
func (mTLSAuth) name() string                      { return "mtls" }
func (mTLSAuth) allowsCrossAuthorityRedirect() bool { return false }

// AuthErrorHandler is consulted when a request fails with 401 (and,
// proactively, when a JWT-shaped device token is close to its expiry).
// Returning true from OnAuthError indicates credentials were rotated and
// the request should be retried once more; returning false propagates
// AuthFailure. Implementations that actually rotate credentials typically
// hold a reference to the Client obtained from DefaultClientBuilder.Build()
// and call its SetGatewayToken/SetDeviceToken/SetTLS from within
// OnAuthError; since the controller invokes OnAuthError synchronously
// between retries, on its own thread, no locking is required (spec.md §5).
type AuthErrorHandler interface {
	OnAuthError() (retry bool)
}
