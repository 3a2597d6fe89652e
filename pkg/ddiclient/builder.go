package ddiclient

import (
	"crypto/tls"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// DefaultClientBuilder stages a Client the way the original C++
// DefaultClientBuilderImpl does: chained setters, validated only at
// Build(). Auth variants are mutually exclusive (spec.md §3); a second
// call to any of SetGatewayToken/SetDeviceToken/SetTLS after the first
// records a ConfigurationError on the builder at that call, and Build()
// returns it.
type DefaultClientBuilder struct {
	endpoint     string
	controllerID string
	tenant       string

	pollingTimeout time.Duration
	requestTimeout time.Duration

	defaultHeaders map[string]string

	authErrorHandler AuthErrorHandler
	handler          EventHandler
	logger           *zap.Logger

	authSet bool
	auth    authStrategy

	verifyServerCertificate bool

	err error
}

// NewDefaultClientBuilder starts a new staged Client construction with the
// defaults the original client shipped: 30s polling timeout, 30s request
// timeout, server certificate verification on.
func NewDefaultClientBuilder() *DefaultClientBuilder {
	return &DefaultClientBuilder{
		pollingTimeout:          30 * time.Second,
		requestTimeout:          30 * time.Second,
		defaultHeaders:          map[string]string{},
		verifyServerCertificate: true,
		tenant:                  "default",
		auth:                    noAuth{},
	}
}

// SetHawkbitEndpoint sets the exact polling root URI, used as-is.
func (b *DefaultClientBuilder) SetHawkbitEndpoint(endpoint string) *DefaultClientBuilder {
	b.endpoint = endpoint
	b.controllerID = ""
	return b
}

// SetHawkbitEndpointWithIdentity recomposes the polling root URI as
// "{scheme}://{authority}/{tenant}/controller/v1/{controllerId}", the
// convention hawkBit-style servers expect.
func (b *DefaultClientBuilder) SetHawkbitEndpointWithIdentity(endpoint, controllerID string, tenant ...string) *DefaultClientBuilder {
	b.endpoint = endpoint
	b.controllerID = controllerID
	if len(tenant) > 0 && tenant[0] != "" {
		b.tenant = tenant[0]
	}
	return b
}

// SetDefaultPollingTimeout sets the floor sleep interval used until the
// server supplies its own polling hint (spec.md §4.1).
func (b *DefaultClientBuilder) SetDefaultPollingTimeout(d time.Duration) *DefaultClientBuilder {
	b.pollingTimeout = d
	return b
}

// SetRequestTimeout sets the per-request HTTP connect/read timeout.
func (b *DefaultClientBuilder) SetRequestTimeout(d time.Duration) *DefaultClientBuilder {
	b.requestTimeout = d
	return b
}

// SetEventHandler registers the device-specific EventHandler.
func (b *DefaultClientBuilder) SetEventHandler(h EventHandler) *DefaultClientBuilder {
	b.handler = h
	return b
}

// SetAuthErrorHandler registers the optional 401-recovery handler.
func (b *DefaultClientBuilder) SetAuthErrorHandler(h AuthErrorHandler) *DefaultClientBuilder {
	b.authErrorHandler = h
	return b
}

// SetLogger overrides the zero-value no-op logger with a configured one.
func (b *DefaultClientBuilder) SetLogger(l *zap.Logger) *DefaultClientBuilder {
	b.logger = l
	return b
}

// AddHeader merges a header into every outbound request.
func (b *DefaultClientBuilder) AddHeader(key, value string) *DefaultClientBuilder {
	b.defaultHeaders[key] = value
	return b
}

// NotVerifyServerCertificate disables TLS server-certificate verification.
// It is separate from the mutually exclusive auth slot: it is a transport
// trust toggle, not a credential.
func (b *DefaultClientBuilder) NotVerifyServerCertificate() *DefaultClientBuilder {
	b.verifyServerCertificate = false
	return b
}

func (b *DefaultClientBuilder) setAuthOnce(a authStrategy) *DefaultClientBuilder {
	if b.authSet {
		b.err = &ConfigurationError{Reason: "another authority type is already set"}
		return b
	}
	b.auth = a
	b.authSet = true
	return b
}

// SetGatewayToken configures GatewayToken header authentication. Exclusive
// with SetDeviceToken and SetTLS.
func (b *DefaultClientBuilder) SetGatewayToken(token string) *DefaultClientBuilder {
	return b.setAuthOnce(gatewayTokenAuth{token: token})
}

// SetDeviceToken configures TargetToken header authentication. Exclusive
// with SetGatewayToken and SetTLS.
func (b *DefaultClientBuilder) SetDeviceToken(token string) *DefaultClientBuilder {
	return b.setAuthOnce(deviceTokenAuth{token: token})
}

// SetTLS configures client-certificate (mTLS) authentication from a PEM
// certificate and key pair. Exclusive with SetGatewayToken and
// SetDeviceToken.
func (b *DefaultClientBuilder) SetTLS(certPEM, keyPEM []byte) *DefaultClientBuilder {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		b.err = &ConfigurationError{Reason: "invalid TLS keypair: " + err.Error()}
		return b
	}
	return b.setAuthOnce(mTLSAuth{cert: cert})
}

// Build validates the staged configuration and produces a Client. Build
// fails with ConfigurationError if two auth variants were set, the
// endpoint is missing, or no EventHandler was registered.
func (b *DefaultClientBuilder) Build() (*Client, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.endpoint == "" {
		return nil, &ConfigurationError{Reason: "hawkbit endpoint not set"}
	}
	if b.handler == nil {
		return nil, &ConfigurationError{Reason: "event handler not set"}
	}

	var base *url.URL
	var err error
	if b.controllerID != "" {
		base, err = buildControllerURI(b.endpoint, b.tenant, b.controllerID)
	} else {
		base, err = url.Parse(b.endpoint)
	}
	if err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{state: &pollingState{
		baseURI:                 base,
		defaultSleepTime:        b.pollingTimeout,
		currentSleepTime:        b.pollingTimeout,
		auth:                    b.auth,
		authErrorHandler:        b.authErrorHandler,
		defaultHeaders:          b.defaultHeaders,
		serverCertificateVerify: b.verifyServerCertificate,
		requestTimeout:          b.requestTimeout,
		handler:                 b.handler,
		logger:                  logger,
	}}, nil
}
