package ddiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedHandler struct {
	mu sync.Mutex

	cancelCalls     int
	deploymentCalls int
	configCalls     int
	noActionCalls   int

	deploymentErr error
	cancelErr     error
}

func (h *scriptedHandler) OnConfigRequest() (*ConfigResponse, error) {
	h.mu.Lock()
	h.configCalls++
	h.mu.Unlock()
	return NewConfigResponseBuilder().AddData("swVersion", "1.0.0").Build()
}

func (h *scriptedHandler) OnDeploymentAction(dp *DeploymentBase) (*Response, error) {
	h.mu.Lock()
	h.deploymentCalls++
	err := h.deploymentErr
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return NewResponseBuilder().SetExecution(ExecutionClosed).SetFinished(FinishedSuccess).Build()
}

func (h *scriptedHandler) OnCancelAction(action *CancelAction) (*Response, error) {
	h.mu.Lock()
	h.cancelCalls++
	err := h.cancelErr
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return NewResponseBuilder().SetExecution(ExecutionCanceled).SetFinished(FinishedSuccess).Build()
}

func (h *scriptedHandler) OnNoActions() {
	h.mu.Lock()
	h.noActionCalls++
	h.mu.Unlock()
}

func buildTestClient(t *testing.T, endpoint string, handler EventHandler) *Client {
	t.Helper()
	c, err := NewDefaultClientBuilder().
		SetHawkbitEndpointWithIdentity(endpoint, "dev1").
		SetEventHandler(handler).
		SetDefaultPollingTimeout(10 * time.Millisecond).
		SetLogger(zap.NewNop()).
		Build()
	require.NoError(t, err)
	return c
}

func TestRunDispatchesDeploymentBaseAndPostsFeedback(t *testing.T) {
	feedbackCh := make(chan string, 4)

	var srv *httptest.Server
	pollBody := func() string {
		return `{"config":{"polling":{"sleep":"00:00:00"}},"_links":{"deploymentBase":{"href":"` + srv.URL + `/default/controller/v1/dev1/deploymentBase/5"}}}`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/default/controller/v1/dev1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(pollBody()))
	})
	mux.HandleFunc("/default/controller/v1/dev1/deploymentBase/5", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"5","deployment":{"update":"forced","download":"forced","maintenanceWindow":"unavailable","chunks":[]}}`))
	})
	mux.HandleFunc("/default/controller/v1/dev1/deploymentBase/5/feedback", func(w http.ResponseWriter, r *http.Request) {
		feedbackCh <- "deploymentBase"
		w.WriteHeader(http.StatusOK)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	h := &scriptedHandler{}
	c := buildTestClient(t, srv.URL, h)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_ = c.Run(ctx)

	select {
	case kind := <-feedbackCh:
		assert.Equal(t, "deploymentBase", kind)
	case <-time.After(time.Second):
		t.Fatal("expected feedback to be posted")
	}
	assert.GreaterOrEqual(t, h.deploymentCalls, 1)
}

func TestRunSynthesizesFeedbackWhenDeploymentHandlerErrors(t *testing.T) {
	feedbackCh := make(chan string, 4)
	var srv *httptest.Server
	pollBody := func() string {
		return `{"config":{"polling":{"sleep":"00:00:00"}},"_links":{"deploymentBase":{"href":"` + srv.URL + `/default/controller/v1/dev1/deploymentBase/5"}}}`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/default/controller/v1/dev1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(pollBody()))
	})
	mux.HandleFunc("/default/controller/v1/dev1/deploymentBase/5", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"5","deployment":{"update":"forced","download":"forced","maintenanceWindow":"unavailable","chunks":[]}}`))
	})
	mux.HandleFunc("/default/controller/v1/dev1/deploymentBase/5/feedback", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status struct {
				Execution string   `json:"execution"`
				Details   []string `json:"details"`
			} `json:"status"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "closed", body.Status.Execution)
		require.NotEmpty(t, body.Status.Details)
		feedbackCh <- "deploymentBase"
		w.WriteHeader(http.StatusOK)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	h := &scriptedHandler{deploymentErr: assertError("handler refused deployment")}
	c := buildTestClient(t, srv.URL, h)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_ = c.Run(ctx)

	select {
	case <-feedbackCh:
	case <-time.After(time.Second):
		t.Fatal("expected synthesized feedback to be posted")
	}
}

func TestRunInvokesOnNoActionsWhenPollHasNoLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/default/controller/v1/dev1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"config":{"polling":{"sleep":"00:00:00"}},"_links":{}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	h := &scriptedHandler{}
	c := buildTestClient(t, srv.URL, h)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = c.Run(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Greater(t, h.noActionCalls, 0)
}

func TestRunPostsNoFeedbackWhenCancelHandlerErrors(t *testing.T) {
	var feedbackPosted bool
	var srv *httptest.Server
	pollBody := func() string {
		return `{"config":{"polling":{"sleep":"00:00:00"}},"_links":{"cancelAction":{"href":"` + srv.URL + `/default/controller/v1/dev1/cancelAction/7"}}}`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/default/controller/v1/dev1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(pollBody()))
	})
	mux.HandleFunc("/default/controller/v1/dev1/cancelAction/7", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"7","cancelAction":{"stopId":"5"}}`))
	})
	mux.HandleFunc("/default/controller/v1/dev1/cancelAction/7/feedback", func(w http.ResponseWriter, r *http.Request) {
		feedbackPosted = true
		w.WriteHeader(http.StatusOK)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	h := &scriptedHandler{cancelErr: assertError("handler refused cancellation")}
	c := buildTestClient(t, srv.URL, h)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_ = c.Run(ctx)

	h.mu.Lock()
	calls := h.cancelCalls
	h.mu.Unlock()
	assert.Greater(t, calls, 0)
	assert.False(t, feedbackPosted, "controller must not synthesize feedback for a cancel-handler error")
}

type assertError string

func (e assertError) Error() string { return string(e) }
