// Command ddigateway is a local control front door for a running ddiclient
// agent, grounded on the teacher's pkg/client/go/examples/example_gateway.go:
// a gorilla/mux router exposing a small operator API in front of a client
// library instance, retargeted from arasauth to ddiclient. It embeds the
// same Client that cmd/ddiagent runs, so the two binaries demonstrate the
// same agent driven either headlessly or behind a local control surface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/aras-services/ddi-client/config"
	"github.com/aras-services/ddi-client/pkg/ddiclient"
)

// Gateway fronts a running ddiclient.Client with a small local control API.
type Gateway struct {
	client *ddiclient.Client
	logger *zap.Logger
}

// NewGateway creates a Gateway wrapping the given client.
func NewGateway(client *ddiclient.Client, logger *zap.Logger) *Gateway {
	return &Gateway{client: client, logger: logger}
}

// HandleStatus reports the controller's current snapshot.
func (gw *Gateway) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(gw.client.Snapshot()); err != nil {
		gw.logger.Error("failed to encode status response", zap.Error(err))
	}
}

// HandlePollNow requests an immediate poll, so the controller's next sleep
// step is skipped. This does not reorder or bypass the protocol: it only
// shortens the next sleep to zero, indistinguishable on the wire from the
// previous cycle's handler response having set ignoreSleep.
func (gw *Gateway) HandlePollNow(w http.ResponseWriter, r *http.Request) {
	gw.client.RequestImmediatePoll()
	gw.logger.Info("immediate poll requested via gateway")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "poll requested"})
}

// HandleHealthCheck reports gateway liveness.
func (gw *Gateway) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "healthy",
		"service":   "ddigateway",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// SetupRoutes sets up all gateway routes.
func (gw *Gateway) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", gw.HandleHealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/gateway/status", gw.HandleStatus).Methods(http.MethodGet)
	r.HandleFunc("/gateway/poll-now", gw.HandlePollNow).Methods(http.MethodPost)
	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync() //nolint:errcheck

	handler := noopHandler{logger: logger}

	builder := ddiclient.NewDefaultClientBuilder().
		SetHawkbitEndpointWithIdentity(cfg.Controller.Endpoint, cfg.Controller.ControllerID, cfg.Controller.Tenant).
		SetDefaultPollingTimeout(cfg.Controller.PollingTimeout).
		SetRequestTimeout(cfg.Controller.RequestTimeout).
		SetEventHandler(handler).
		SetLogger(logger)

	if !cfg.Controller.VerifyTLS {
		builder = builder.NotVerifyServerCertificate()
	}

	switch {
	case cfg.Auth.GatewayToken != "":
		builder = builder.SetGatewayToken(cfg.Auth.GatewayToken)
	case cfg.Auth.DeviceToken != "":
		builder = builder.SetDeviceToken(cfg.Auth.DeviceToken)
	case cfg.Auth.CertFile != "" && cfg.Auth.KeyFile != "":
		certPEM, err := os.ReadFile(cfg.Auth.CertFile)
		if err != nil {
			logger.Fatal("failed to read cert file", zap.Error(err))
		}
		keyPEM, err := os.ReadFile(cfg.Auth.KeyFile)
		if err != nil {
			logger.Fatal("failed to read key file", zap.Error(err))
		}
		builder = builder.SetTLS(certPEM, keyPEM)
	}

	client, err := builder.Build()
	if err != nil {
		logger.Fatal("failed to build ddiclient", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down")
		cancel()
	}()

	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Fatal("controller loop exited unexpectedly", zap.Error(err))
		}
	}()

	gateway := NewGateway(client, logger)
	router := gateway.SetupRoutes()

	port := os.Getenv("DDI_GATEWAY_PORT")
	if port == "" {
		port = "8082"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("ddigateway starting", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("gateway server stopped", zap.Error(err))
	}
	logger.Info("ddigateway exited")
}
