// Package diagnostics exposes a read-only local HTTP surface over a running
// ddiclient controller's state. It is not part of the DDI wire protocol and
// is never reachable by the update server; it exists for local operators and
// monitoring agents, built the way the teacher wires its own HTTP surface:
// a go-chi/chi/v5 router with the standard request-id/recoverer/logger
// middleware chain and go-chi/cors.
package diagnostics

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/aras-services/ddi-client/pkg/ddiclient"
)

// response is the JSON envelope every endpoint here replies with, matching
// the teacher's internal/delivery/http response-helper convention.
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// NewRouter builds the diagnostics router: GET /healthz (liveness only) and
// GET /status (current controller snapshot). client.Snapshot is safe to
// call concurrently with Run.
func NewRouter(client *ddiclient.Client) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{Success: true, Data: "ok"})
	})
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{Success: true, Data: client.Snapshot()})
	})
	return r
}
