package ddiclient

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// pollResponse is the decoded shape of "GET {base}": zero or more action
// links and an optional polling-sleep hint.
type pollResponse struct {
	Config struct {
		Polling struct {
			Sleep string `json:"sleep"`
		} `json:"polling"`
	} `json:"config"`
	Links struct {
		ConfigData     *link `json:"configData"`
		CancelAction   *link `json:"cancelAction"`
		DeploymentBase *link `json:"deploymentBase"`
	} `json:"_links"`
}

func decodePollResponse(body []byte) (*pollResponse, error) {
	var pr pollResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// sleepHint parses "HH:MM:SS" into a duration. Per spec.md §9 Open Question
// (c), an absent or malformed hint is reported via ok=false so the caller
// retains the previous interval instead of resetting it.
func sleepHint(raw string) (d time.Duration, ok bool) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	s, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil || h < 0 || m < 0 || s < 0 {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second, true
}

// actionKind identifies which of the three sub-flows a cycle dispatches to.
type actionKind int

const (
	actionNone actionKind = iota
	actionCancel
	actionDeployment
	actionConfig
)

// dispatch picks exactly one action link per cycle in the priority order
// mandated by spec.md §3: cancelAction > deploymentBase > configData.
func (pr *pollResponse) dispatch(base *url.URL) (actionKind, *url.URL, error) {
	switch {
	case pr.Links.CancelAction != nil:
		u, err := resolveHref(base, pr.Links.CancelAction.Href)
		return actionCancel, u, err
	case pr.Links.DeploymentBase != nil:
		u, err := resolveHref(base, pr.Links.DeploymentBase.Href)
		return actionDeployment, u, err
	case pr.Links.ConfigData != nil:
		u, err := resolveHref(base, pr.Links.ConfigData.Href)
		return actionConfig, u, err
	default:
		return actionNone, nil, nil
	}
}
