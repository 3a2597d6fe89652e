package main

import (
	"go.uber.org/zap"

	"github.com/aras-services/ddi-client/pkg/ddiclient"
)

// noopHandler is the EventHandler the gateway runs its embedded Client
// with: the gateway's job is exposing control/status over HTTP, not
// executing deployments, so it acknowledges every action without acting on
// it and leaves device-specific handling to cmd/ddiagent.
type noopHandler struct {
	logger *zap.Logger
}

func (h noopHandler) OnConfigRequest() (*ddiclient.ConfigResponse, error) {
	return ddiclient.NewConfigResponseBuilder().
		AddData("agent", "ddigateway").
		Build()
}

func (h noopHandler) OnDeploymentAction(dp *ddiclient.DeploymentBase) (*ddiclient.Response, error) {
	h.logger.Info("deployment base received, not acted on by ddigateway", zap.String("id", dp.ID))
	return ddiclient.NewResponseBuilder().
		SetExecution(ddiclient.ExecutionClosed).
		SetFinished(ddiclient.FinishedFailure).
		AddDetail("ddigateway does not execute deployments").
		Build()
}

func (h noopHandler) OnCancelAction(action *ddiclient.CancelAction) (*ddiclient.Response, error) {
	return ddiclient.NewResponseBuilder().
		SetExecution(ddiclient.ExecutionClosed).
		SetFinished(ddiclient.FinishedSuccess).
		AddDetail("cancellation acknowledged").
		Build()
}

func (h noopHandler) OnNoActions() {
	h.logger.Debug("no actions from server")
}
