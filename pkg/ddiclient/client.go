// Package ddiclient implements the polling state machine and update-action
// controller for a Direct Device Integration (DDI) client: a device embeds
// Client, supplies an EventHandler, and lets Run drive the poll/dispatch/
// feedback loop against a hawkBit-style update server.
package ddiclient

import (
	"crypto/tls"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// pollingState is the process-wide, singleton-lifetime state described in
// spec.md §3: built once by DefaultClientBuilder and mutated only by the
// controller thread thereafter (spec.md §5) — no locking required.
type pollingState struct {
	baseURI *url.URL

	defaultSleepTime time.Duration
	currentSleepTime time.Duration
	ignoreSleep      bool

	auth             authStrategy
	authErrorHandler AuthErrorHandler
	defaultHeaders   map[string]string

	serverCertificateVerify bool
	requestTimeout          time.Duration

	handler EventHandler
	logger  *zap.Logger

	// snapshotMu guards snapshot, the only pollingState data read from a
	// goroutine other than the controller's (pkg/diagnostics's HTTP
	// handler). Nothing else on pollingState needs a lock (spec.md §5).
	snapshotMu sync.Mutex
	snapshot   StateSnapshot

	// externalPollRequest is set by RequestImmediatePoll (e.g. from
	// cmd/ddigateway's HTTP handler, a goroutine other than the
	// controller's) and consumed by sleepStep. A plain atomic flag keeps
	// this cross-goroutine signal out of the unlocked fields the
	// controller otherwise owns exclusively (spec.md §5).
	externalPollRequest atomic.Bool
}

// StateSnapshot is a point-in-time, read-only view of the controller's
// state, exposed for local diagnostics. It is not part of the DDI wire
// protocol.
type StateSnapshot struct {
	CurrentSleepInterval time.Duration
	IgnoreSleepLatch     bool
	LastCycleAction      string
	LastCycleError       string
	CycleCount           int64
}

// Snapshot returns the controller's current StateSnapshot. Safe to call
// concurrently with Run.
func (c *Client) Snapshot() StateSnapshot {
	c.state.snapshotMu.Lock()
	defer c.state.snapshotMu.Unlock()
	return c.state.snapshot
}

func (s *pollingState) recordCycle(action string, err error) {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()
	s.snapshot.CurrentSleepInterval = s.currentSleepTime
	s.snapshot.IgnoreSleepLatch = s.ignoreSleep
	s.snapshot.LastCycleAction = action
	if err != nil {
		s.snapshot.LastCycleError = err.Error()
	} else {
		s.snapshot.LastCycleError = ""
	}
	s.snapshot.CycleCount++
}

// Client is the embeddable DDI client. It is built exclusively through
// DefaultClientBuilder and driven by calling Run.
type Client struct {
	state *pollingState
}

// SetGatewayToken rotates the active auth strategy to a (possibly new)
// gateway token. It is intended to be called from an AuthErrorHandler's
// OnAuthError, which runs on the controller thread between retry attempts,
// so no locking is required (spec.md §5).
func (c *Client) SetGatewayToken(token string) {
	c.state.auth = gatewayTokenAuth{token: token}
}

// SetDeviceToken rotates the active auth strategy to a (possibly new)
// device token, for the same re-authentication use as SetGatewayToken.
func (c *Client) SetDeviceToken(token string) {
	c.state.auth = deviceTokenAuth{token: token}
}

// SetTLS rotates the active auth strategy to a new client certificate
// keypair.
func (c *Client) SetTLS(certPEM, keyPEM []byte) error {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return &ConfigurationError{Reason: "invalid TLS keypair: " + err.Error()}
	}
	c.state.auth = mTLSAuth{cert: cert}
	return nil
}

// RequestImmediatePoll shortens the next sleep to zero, the same effect
// ignoreSleep has when a handler response sets it at the end of a cycle.
// Safe to call concurrently with Run; takes effect at the start of the next
// sleep step (a sleep already in progress is not interrupted), and at most
// once per request.
func (c *Client) RequestImmediatePoll() {
	c.state.externalPollRequest.Store(true)
}
