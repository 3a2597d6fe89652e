package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/aras-services/ddi-client/pkg/audit"
	"github.com/aras-services/ddi-client/pkg/ddiclient"
)

// demoHandler is a minimal, printable EventHandler implementation grounded
// on original_source/example/main.cpp's Handler: it logs every action it
// receives, downloads each artifact of a deploymentBase to the working
// directory, and reports success. A production embedder replaces every
// method body with device-specific logic; the shape (iterate chunks,
// download each artifact, accumulate details, close the response) is the
// one the original example demonstrates.
type demoHandler struct {
	logger  *zap.Logger
	auditDB *audit.Store // nil when the audit trail is disabled
}

func newDemoHandler(logger *zap.Logger, auditDB *audit.Store) *demoHandler {
	return &demoHandler{logger: logger, auditDB: auditDB}
}

func (h *demoHandler) OnConfigRequest() (*ddiclient.ConfigResponse, error) {
	h.logger.Info("sending config data")
	return ddiclient.NewConfigResponseBuilder().
		AddData("swVersion", "1.0.0").
		AddData("hwRevision", "rev-a").
		SetIgnoreSleep().
		Build()
}

func (h *demoHandler) OnDeploymentAction(dp *ddiclient.DeploymentBase) (*ddiclient.Response, error) {
	h.logger.Info("deployment base received",
		zap.String("id", dp.ID),
		zap.String("update", string(dp.UpdateType())),
		zap.String("download", string(dp.DownloadType())),
		zap.Bool("inMaintenanceWindow", dp.InMaintenanceWindow()),
	)

	builder := ddiclient.NewResponseBuilder().
		AddDetail("deployment base received").
		SetResponseDeliveryListener(h.listenerFor("deploymentBase", dp.ID))

	for _, chunk := range dp.Chunks() {
		h.logger.Info("chunk", zap.String("part", chunk.Part), zap.String("name", chunk.Name), zap.String("version", chunk.Version))
		for i := range chunk.Artifacts {
			artifact := &chunk.Artifacts[i]
			dest := filepath.Join(".", artifact.Filename)
			h.logger.Info("downloading artifact", zap.String("filename", artifact.Filename), zap.Int64("size", artifact.Size))
			if err := artifact.DownloadTo(context.Background(), dest); err != nil {
				return nil, fmt.Errorf("downloading %s: %w", artifact.Filename, err)
			}
			builder.AddDetail(fmt.Sprintf("downloaded %s", artifact.Filename))
		}
	}

	return builder.
		AddDetail("work done").
		SetExecution(ddiclient.ExecutionClosed).
		SetFinished(ddiclient.FinishedSuccess).
		SetIgnoreSleep().
		Build()
}

func (h *demoHandler) OnCancelAction(action *ddiclient.CancelAction) (*ddiclient.Response, error) {
	h.logger.Info("cancel action received", zap.String("id", action.ID), zap.String("stopId", action.StopID()))
	return ddiclient.NewResponseBuilder().
		SetExecution(ddiclient.ExecutionClosed).
		SetFinished(ddiclient.FinishedSuccess).
		AddDetail("cancellation acknowledged").
		SetResponseDeliveryListener(h.listenerFor("cancelAction", action.ID)).
		SetIgnoreSleep().
		Build()
}

func (h *demoHandler) OnNoActions() {
	h.logger.Debug("no actions from server")
}

// listenerFor replaces original_source/example/main.cpp's
// CancelActionFeedbackDeliveryListener/DeploymentBaseFeedbackDeliveryListener
// with a single generic listener: both did the same thing (log whether
// delivery succeeded), and this one also records a row to the audit store
// when one is configured.
func (h *demoHandler) listenerFor(kind, actionID string) *loggingDeliveryListener {
	return &loggingDeliveryListener{logger: h.logger, auditDB: h.auditDB, kind: kind, actionID: actionID}
}

type loggingDeliveryListener struct {
	logger   *zap.Logger
	auditDB  *audit.Store
	kind     string
	actionID string
}

func (l *loggingDeliveryListener) OnSuccessfulDelivery() {
	l.logger.Info("feedback delivered", zap.String("action", l.kind), zap.String("id", l.actionID))
	if l.auditDB == nil {
		return
	}
	err := l.auditDB.RecordFeedback(context.Background(), audit.Record{
		CorrelationID: l.actionID,
		ActionKind:    l.kind,
		Execution:     string(ddiclient.ExecutionClosed),
		Finished:      string(ddiclient.FinishedSuccess),
	})
	if err != nil {
		l.logger.Warn("failed to record audit row", zap.Error(err))
	}
}

func (l *loggingDeliveryListener) OnError() {
	l.logger.Warn("feedback delivery failed", zap.String("action", l.kind), zap.String("id", l.actionID))
}

// envTokenRefresher rotates the device token via the Client's setter method
// when a 401 (or imminent expiry) is observed, mirroring the original
// client's HawkbitCommunicationClient::setDeviceToken re-authentication
// flow. client is nil until the embedding main() finishes Build() and
// assigns it; OnAuthError only ever runs from the controller's own
// goroutine during Run, which starts strictly after that assignment, so no
// synchronization is needed (spec.md §5).
type envTokenRefresher struct {
	client *ddiclient.Client
	logger *zap.Logger
}

func (h *envTokenRefresher) OnAuthError() bool {
	token := os.Getenv("DDI_AUTH_DEVICE_TOKEN")
	if token == "" {
		h.logger.Error("DDI_AUTH_DEVICE_TOKEN not set, cannot rotate device token")
		return false
	}
	h.client.SetDeviceToken(token)
	h.logger.Info("device token rotated after auth error")
	return true
}
