package ddiclient

// EventHandler is the device-specific collaborator supplied by the
// embedding application. The controller invokes exactly one of these per
// cycle, per the dispatch priority in spec.md §4.1.
//
// OnDeploymentAction typically iterates the deployment's chunks and
// triggers artifact downloads synchronously inside the call (spec.md
// §4.3); the controller blocks on it. There is no in-process cancellation
// of a running install — a cancelAction arriving mid-install is only
// observed on the next cycle (spec.md §5, §9 Open Question (b)). Handlers
// should be idempotent under redelivery of the same deployment identifier.
type EventHandler interface {
	// OnConfigRequest is invoked when the server offers a configData link
	// and no higher-priority action link is present.
	OnConfigRequest() (*ConfigResponse, error)
	// OnDeploymentAction is invoked when the server offers a deploymentBase
	// link (and no cancelAction link is present this cycle).
	OnDeploymentAction(dp *DeploymentBase) (*Response, error)
	// OnCancelAction is invoked when the server offers a cancelAction link,
	// regardless of any other link present this cycle (highest priority).
	OnCancelAction(action *CancelAction) (*Response, error)
	// OnNoActions is invoked when none of the three action links are
	// present. No feedback is posted afterward.
	OnNoActions()
}
