package ddiclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const (
	maxTransientRetries = 3
	backoffBase         = 1 * time.Second
	backoffCap          = 30 * time.Second
	// authTokenExpirySkewSeconds is how close to expiry a JWT-shaped device
	// token must be before the controller proactively consults the
	// auth-error handler instead of waiting for a reactive 401.
	authTokenExpirySkewSeconds = 30
)

// redirectRefused is returned by newHTTPClient's CheckRedirect when a
// redirect must not be followed. It is a deterministic refusal (the same
// request will be refused identically on every retry), so the retry
// wrapper must classify it as UnexpectedStatus, not a transient transport
// error, and must not spend retries on it.
type redirectRefused struct {
	reason string
}

func (e *redirectRefused) Error() string { return e.reason }

// newHTTPClient builds a per-request HTTP client configured from the
// current PollingState: TLS trust policy and client-certificate material
// from the active AuthStrategy, and a connect/read timeout. A fresh client
// is built for every logical request rather than shared, so credential
// rotation (a new device token, a rebuilt mTLS keypair) takes effect
// immediately without locking (spec.md §5).
func (s *pollingState) newHTTPClient() *http.Client {
	tlsConfig := &tls.Config{InsecureSkipVerify: !s.serverCertificateVerify} //nolint:gosec // explicit opt-out
	s.auth.applyTLS(tlsConfig)

	return &http.Client{
		Timeout: s.requestTimeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// A custom CheckRedirect replaces net/http's default redirect-count
			// guard entirely, so the limit has to be re-enforced here.
			if len(via) >= 10 {
				return &redirectRefused{reason: fmt.Sprintf("stopped after %d redirects", len(via))}
			}
			if len(via) == 0 {
				return nil
			}
			if !s.auth.allowsCrossAuthorityRedirect() && !sameAuthority(via[0].URL, req.URL) {
				return &redirectRefused{reason: fmt.Sprintf("refusing cross-authority redirect to %s for %s auth", req.URL, s.auth.name())}
			}
			return nil
		},
	}
}

// asRedirectRefused reports whether err (as returned by (*http.Client).Do,
// which wraps CheckRedirect's error in a *url.Error) originated from
// CheckRedirect's own refusal rather than a connection error or timeout.
func asRedirectRefused(err error) (*redirectRefused, bool) {
	var refused *redirectRefused
	if errors.As(err, &refused) {
		return refused, true
	}
	return nil, false
}

func (s *pollingState) newRequest(ctx context.Context, method string, target *url.URL, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, err
	}
	for k, v := range s.defaultHeaders {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	s.auth.applyRequest(req)
	return req, nil
}

// requestOutcome is what the retry wrapper classifies an attempt into,
// following the table in spec.md §4.5.
type requestOutcome struct {
	status int
	body   []byte
}

// doRequest executes method/target/body via the retry wrapper, handling:
//   - 2xx: returned immediately
//   - 401: the auth-error handler is consulted once; on retry=true a fresh
//     client is built (picking up rotated credentials) and the request is
//     attempted exactly one more time
//   - 3xx left unfollowed, 4xx other than 401: returned as non-retryable
//     errors
//   - 5xx / connection errors / timeouts: attempted at most
//     maxTransientRetries times in total, with exponential backoff between
//     attempts, base 1s capped at 30s
func (s *pollingState) doRequest(ctx context.Context, method string, target *url.URL, body []byte) (*requestOutcome, error) {
	// Proactive recovery: a JWT-shaped device token within its expiry skew
	// is very likely to 401. Consulting the handler before spending a round
	// trip on a doomed request is an optimization on top of the reactive
	// 401 path below, not a replacement for it.
	if dt, ok := s.auth.(deviceTokenAuth); ok && dt.nearExpiry(authTokenExpirySkewSeconds) && s.authErrorHandler != nil {
		if s.authErrorHandler.OnAuthError() {
			s.logger.Info("device token near expiry, rotated proactively", zap.String("endpoint", target.String()))
		}
	}

	outcome, err := s.attemptWithTransientRetry(ctx, method, target, body)
	if err == nil {
		return outcome, nil
	}

	var authErr *AuthFailure
	if !isAuthFailure(err, &authErr) {
		return nil, err
	}

	if s.authErrorHandler == nil || !s.authErrorHandler.OnAuthError() {
		return nil, err
	}

	s.logger.Info("auth error handler rotated credentials, retrying once", zap.String("endpoint", target.String()))
	return s.attemptWithTransientRetry(ctx, method, target, body)
}

func isAuthFailure(err error, target **AuthFailure) bool {
	af, ok := err.(*AuthFailure)
	if ok {
		*target = af
	}
	return ok
}

// attemptWithTransientRetry runs the bounded exponential-backoff retry loop
// for 5xx/connection/timeout outcomes. A 401 short-circuits the loop
// immediately (its recovery path lives one level up in doRequest) and a
// non-retryable 4xx/3xx also short-circuits immediately.
func (s *pollingState) attemptWithTransientRetry(ctx context.Context, method string, target *url.URL, body []byte) (*requestOutcome, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = backoffBase
	b.MaxInterval = backoffCap
	b.Multiplier = 2

	outcome, err := backoff.Retry(ctx, func() (*requestOutcome, error) {
		client := s.newHTTPClient()
		req, err := s.newRequest(ctx, method, target, body)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := client.Do(req)
		if err != nil {
			if refused, ok := asRedirectRefused(err); ok {
				return nil, backoff.Permanent(&UnexpectedStatus{Endpoint: target.String(), Reason: refused.reason})
			}
			// connection error / timeout: transient, let backoff retry
			return nil, err
		}
		defer resp.Body.Close()
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, readErr
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return &requestOutcome{status: resp.StatusCode, body: respBody}, nil
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, backoff.Permanent(&AuthFailure{Endpoint: target.String()})
		case resp.StatusCode >= 300 && resp.StatusCode < 400:
			return nil, backoff.Permanent(&UnexpectedStatus{Endpoint: target.String(), StatusCode: resp.StatusCode})
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return nil, backoff.Permanent(&ClientError{Endpoint: target.String(), StatusCode: resp.StatusCode})
		default: // 5xx
			return nil, fmt.Errorf("ddiclient: server error %d from %s", resp.StatusCode, target.String())
		}
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxTransientRetries))

	if err != nil {
		return nil, transientToTransportError(target.String(), maxTransientRetries, err)
	}
	return outcome, nil
}

// streamGet issues a GET against target and returns the live response body
// for the caller to stream from, rather than buffering it the way doRequest
// does for protocol documents. It applies the same bounded retry policy as
// doRequest, but only across attempts that fail before any bytes of the
// body have been handed to the caller: once streaming has begun, a
// mid-stream error is surfaced directly rather than silently restarted
// (restarting could double-write a partially consumed sink).
func (s *pollingState) streamGet(ctx context.Context, target *url.URL) (io.ReadCloser, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = backoffBase
	b.MaxInterval = backoffCap
	b.Multiplier = 2

	stream, err := backoff.Retry(ctx, func() (io.ReadCloser, error) {
		client := s.newHTTPClient()
		req, err := s.newRequest(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			if refused, ok := asRedirectRefused(err); ok {
				return nil, backoff.Permanent(&UnexpectedStatus{Endpoint: target.String(), Reason: refused.reason})
			}
			return nil, err
		}
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp.Body, nil
		case resp.StatusCode == http.StatusUnauthorized:
			resp.Body.Close()
			return nil, backoff.Permanent(&AuthFailure{Endpoint: target.String()})
		case resp.StatusCode >= 300 && resp.StatusCode < 400:
			resp.Body.Close()
			return nil, backoff.Permanent(&UnexpectedStatus{Endpoint: target.String(), StatusCode: resp.StatusCode})
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			resp.Body.Close()
			return nil, backoff.Permanent(&ClientError{Endpoint: target.String(), StatusCode: resp.StatusCode})
		default:
			resp.Body.Close()
			return nil, fmt.Errorf("ddiclient: server error %d from %s", resp.StatusCode, target.String())
		}
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxTransientRetries))

	if err != nil {
		return nil, transientToTransportError(target.String(), maxTransientRetries, err)
	}
	return stream, nil
}

// transientToTransportError converts an exhausted-retry-budget error from
// backoff.Retry (which returns the last underlying error, unwrapped from
// backoff.Permanent) into the spec's TransportError, leaving Permanent
// errors (AuthFailure/UnexpectedStatus/ClientError) passed through as-is.
func transientToTransportError(endpoint string, attempts int, err error) error {
	switch err.(type) {
	case *AuthFailure, *UnexpectedStatus, *ClientError:
		return err
	default:
		return &TransportError{Endpoint: endpoint, Attempts: attempts, Err: err}
	}
}
