// Command ddiagent is a runnable demonstration of an embedded DDI client,
// grounded on original_source/example/main.cpp's bootstrap: read
// configuration from the environment, build a Client with exactly one auth
// strategy, install an EventHandler, and run until terminated.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aras-services/ddi-client/config"
	"github.com/aras-services/ddi-client/pkg/audit"
	"github.com/aras-services/ddi-client/pkg/ddiclient"
	"github.com/aras-services/ddi-client/pkg/diagnostics"
)

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

	var auditDB *audit.Store
	if cfg.Audit.Enabled {
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Audit.Host, cfg.Audit.Port, cfg.Audit.User, cfg.Audit.Password, cfg.Audit.Name, cfg.Audit.SSLMode)
		if err := audit.Migrate(dsn); err != nil {
			logger.Fatal("failed to migrate audit schema", zap.Error(err))
		}
		auditDB, err = audit.Open(context.Background(), dsn)
		if err != nil {
			logger.Fatal("failed to open audit store", zap.Error(err))
		}
		defer auditDB.Close()
	}

	handler := newDemoHandler(logger, auditDB)

	builder := ddiclient.NewDefaultClientBuilder().
		SetHawkbitEndpointWithIdentity(cfg.Controller.Endpoint, cfg.Controller.ControllerID, cfg.Controller.Tenant).
		SetDefaultPollingTimeout(cfg.Controller.PollingTimeout).
		SetRequestTimeout(cfg.Controller.RequestTimeout).
		SetEventHandler(handler).
		SetLogger(logger)

	if !cfg.Controller.VerifyTLS {
		builder = builder.NotVerifyServerCertificate()
	}

	var refresher *envTokenRefresher
	switch {
	case cfg.Auth.GatewayToken != "":
		builder = builder.SetGatewayToken(cfg.Auth.GatewayToken)
	case cfg.Auth.DeviceToken != "":
		builder = builder.SetDeviceToken(cfg.Auth.DeviceToken)
		// A device token is the one credential expected to expire on its
		// own; wire the proactive/reactive recovery path to reread it from
		// the environment, the simplest possible "rotation source" an
		// operator can swap a real one in for.
		refresher = &envTokenRefresher{logger: logger}
		builder = builder.SetAuthErrorHandler(refresher)
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
	if refresher != nil {
		refresher.client = client
	}

	var diagServer *http.Server
	if cfg.Diagnostics.Enabled {
		diagServer = &http.Server{Addr: cfg.Diagnostics.Addr, Handler: diagnostics.NewRouter(client)}
		go func() {
			logger.Info("starting diagnostics server", zap.String("addr", cfg.Diagnostics.Addr))
			if err := diagServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("diagnostics server stopped", zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down")
		cancel()
	}()

	if err := client.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("controller loop exited unexpectedly", zap.Error(err))
	}

	if diagServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = diagServer.Shutdown(shutdownCtx)
	}

	logger.Info("ddiagent exited")
}
