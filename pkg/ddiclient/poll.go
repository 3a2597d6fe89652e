package ddiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Run drives the polling loop described in spec.md §4.1 and does not
// return under normal operation. It returns only when ctx is canceled
// (process shutdown), with ctx's error. Per-cycle errors (UnexpectedPayload,
// AuthFailure, TransportError, ClientError, UnexpectedStatus) and handler
// errors are logged and the loop continues to its next cycle; no error
// raised inside a cycle ends the loop.
func (c *Client) Run(ctx context.Context) error {
	s := c.state
	for {
		cycleID := uuid.New().String()
		logger := s.logger.With(zap.String("cycle", cycleID))

		if err := c.sleepStep(ctx, logger); err != nil {
			return err
		}

		outcome, err := s.doRequest(ctx, http.MethodGet, s.baseURI, nil)
		if err != nil {
			logger.Warn("poll request failed, will retry next cycle", zap.Error(err))
			s.recordCycle("poll", err)
			continue
		}

		pr, err := decodePollResponse(outcome.body)
		if err != nil {
			wrapped := &UnexpectedPayload{Endpoint: s.baseURI.String(), Err: err}
			logger.Warn("malformed poll response", zap.Error(wrapped))
			s.recordCycle("poll", wrapped)
			continue
		}

		if d, ok := sleepHint(pr.Config.Polling.Sleep); ok {
			s.currentSleepTime = d
		}
		// else: retain previous interval (spec.md §9 Open Question (c))

		kind, target, err := pr.dispatch(s.baseURI)
		if err != nil {
			wrapped := &UnexpectedPayload{Endpoint: s.baseURI.String(), Err: err}
			logger.Warn("malformed action link", zap.Error(wrapped))
			s.recordCycle("dispatch", wrapped)
			continue
		}

		var nextIgnoreSleep bool
		var action string
		switch kind {
		case actionCancel:
			action = "cancelAction"
			nextIgnoreSleep = c.followCancelAction(ctx, logger, target)
		case actionDeployment:
			action = "deploymentBase"
			nextIgnoreSleep = c.followDeploymentBase(ctx, logger, target)
		case actionConfig:
			action = "configData"
			nextIgnoreSleep = c.followConfigData(ctx, logger, target)
		default:
			action = "none"
			s.handler.OnNoActions()
		}
		s.ignoreSleep = nextIgnoreSleep
		s.recordCycle(action, nil)
	}
}

func (c *Client) sleepStep(ctx context.Context, logger *zap.Logger) error {
	s := c.state
	if s.ignoreSleep {
		s.ignoreSleep = false
		return nil
	}
	if s.externalPollRequest.CompareAndSwap(true, false) {
		logger.Debug("skipping sleep, immediate poll requested")
		return nil
	}
	logger.Debug("sleeping", zap.Duration("interval", s.currentSleepTime))
	timer := newSleepTimer(s.currentSleepTime)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// followCancelAction implements spec.md §4.2. It returns whether the next
// cycle should skip its sleep step.
func (c *Client) followCancelAction(ctx context.Context, logger *zap.Logger, target *url.URL) bool {
	s := c.state

	outcome, err := s.doRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		logger.Warn("cancelAction GET failed", zap.Error(err))
		return false
	}
	action, err := decodeCancelAction(outcome.body)
	if err != nil {
		logger.Warn("malformed cancelAction document", zap.Error(&UnexpectedPayload{Endpoint: target.String(), Err: err}))
		return false
	}

	resp, err := s.handler.OnCancelAction(action)
	if err != nil {
		// Unlike OnDeploymentAction (spec.md §7), a handler error here is not
		// synthesized into feedback: the controller posts nothing and simply
		// tries again next cycle.
		logger.Warn("cancel handler returned an error", zap.Error(err))
		return false
	}

	ok := c.postFeedback(ctx, logger, feedbackURI(target), action.ID, resp)
	resp.notifyDelivery(ok)
	return resp.IgnoreSleep
}

// followDeploymentBase implements spec.md §4.3.
func (c *Client) followDeploymentBase(ctx context.Context, logger *zap.Logger, target *url.URL) bool {
	s := c.state

	outcome, err := s.doRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		logger.Warn("deploymentBase GET failed", zap.Error(err))
		return false
	}
	dp, err := decodeDeploymentBase(outcome.body)
	if err != nil {
		logger.Warn("malformed deploymentBase document", zap.Error(&UnexpectedPayload{Endpoint: target.String(), Err: err}))
		return false
	}
	dp.bindContext(c, s.baseURI)

	resp, err := s.handler.OnDeploymentAction(dp)
	if err != nil {
		// Per spec.md §7, a handler-raised error during OnDeploymentAction
		// is the one case the controller synthesizes feedback on the
		// handler's behalf, carrying the error text in the details.
		resp = synthesizeFailure(err)
	}

	ok := c.postFeedback(ctx, logger, feedbackURI(target), dp.ID, resp)
	resp.notifyDelivery(ok)
	return resp.IgnoreSleep
}

// followConfigData implements spec.md §4.4.
func (c *Client) followConfigData(ctx context.Context, logger *zap.Logger, target *url.URL) bool {
	s := c.state

	cfg, err := s.handler.OnConfigRequest()
	if err != nil {
		logger.Warn("config handler returned an error", zap.Error(err))
		return false
	}

	body, err := json.Marshal(cfg.wire())
	if err != nil {
		logger.Warn("failed to marshal config response", zap.Error(err))
		return false
	}

	outcome, err := s.doRequest(ctx, http.MethodPut, target, body)
	ok := err == nil && outcome != nil
	if err != nil {
		logger.Warn("configData PUT failed", zap.Error(err))
	}
	cfg.notifyDelivery(ok)
	return cfg.IgnoreSleep
}

// postFeedback POSTs a Response's wire form to target and reports whether
// delivery succeeded (2xx).
func (c *Client) postFeedback(ctx context.Context, logger *zap.Logger, target *url.URL, actionID string, resp *Response) bool {
	body, err := json.Marshal(resp.wire(actionID))
	if err != nil {
		logger.Warn("failed to marshal feedback", zap.Error(err))
		return false
	}
	_, err = c.state.doRequest(ctx, http.MethodPost, target, body)
	if err != nil {
		logger.Warn("feedback POST failed", zap.Error(err), zap.String("target", target.String()))
		return false
	}
	return true
}

// synthesizeFailure builds the controller-manufactured feedback for a
// handler error during OnDeploymentAction (spec.md §7).
func synthesizeFailure(err error) *Response {
	r, buildErr := NewResponseBuilder().
		SetExecution(ExecutionClosed).
		SetFinished(FinishedFailure).
		AddDetail(err.Error()).
		Build()
	if buildErr != nil {
		// Both fields are set above; Build() cannot fail here.
		panic(buildErr)
	}
	return r
}
