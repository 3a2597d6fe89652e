package ddiclient

import (
	"encoding/json"
	"net/url"
)

// UpdateType and DownloadType enumerate the server's instruction for how
// forcefully an update/download should proceed.
type UpdateType string

const (
	UpdateSkip    UpdateType = "skip"
	UpdateAttempt UpdateType = "attempt"
	UpdateForced  UpdateType = "forced"
)

type DownloadType string

const (
	DownloadSkip    DownloadType = "skip"
	DownloadAttempt DownloadType = "attempt"
	DownloadForced  DownloadType = "forced"
)

// Hashes carries the informational hash triple the server advertises for an
// artifact. Per spec.md §3, verification is offered (see Artifact.Verify)
// but never enforced by the core.
type Hashes struct {
	MD5    string `json:"md5"`
	SHA1   string `json:"sha1"`
	SHA256 string `json:"sha256"`
}

// Artifact is a single downloadable file belonging to a Chunk.
type Artifact struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Hashes   Hashes `json:"hashes"`

	links struct {
		Download     *link `json:"download"`
		DownloadHTTP *link `json:"download-http"`
	} `json:"_links"`

	client *Client
	base   *artifactBase
}

// artifactBase carries per-cycle context (the controller's resolved base
// URI, used to pick the TLS-preferring download link and to resolve
// relative hrefs) without polluting the JSON-decoded struct shape.
type artifactBase struct {
	resolvedBase *url.URL
}

// bindContext attaches the controller and resolved base URI to every
// artifact in a freshly decoded DeploymentBase, so Artifact.DownloadTo can
// resolve links and issue requests without the caller threading that
// context through by hand.
func (d *DeploymentBase) bindContext(client *Client, base *url.URL) {
	ab := &artifactBase{resolvedBase: base}
	for ci := range d.Deploy.Chunks {
		for ai := range d.Deploy.Chunks[ci].Artifacts {
			d.Deploy.Chunks[ci].Artifacts[ai].client = client
			d.Deploy.Chunks[ci].Artifacts[ai].base = ab
		}
	}
}

func (a *Artifact) UnmarshalJSON(data []byte) error {
	type alias Artifact
	aux := struct {
		Links struct {
			Download     *link `json:"download"`
			DownloadHTTP *link `json:"download-http"`
		} `json:"_links"`
		*alias
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.links.Download = aux.Links.Download
	a.links.DownloadHTTP = aux.Links.DownloadHTTP
	return nil
}

// Chunk is a logical part of an update (e.g. "os", "app"), carrying one or
// more artifacts in server-declared order. Order must be preserved end to
// end: it is the order the handler is expected to download artifacts in.
type Chunk struct {
	Part      string     `json:"part"`
	Name      string     `json:"name"`
	Version   string     `json:"version"`
	Artifacts []Artifact `json:"artifacts"`
}

// DeploymentBase is the update job offered by the server for the current
// cycle, decoded from "GET {deploymentBase}".
type DeploymentBase struct {
	ID     string `json:"id"`
	Deploy struct {
		Update            UpdateType   `json:"update"`
		Download          DownloadType `json:"download"`
		MaintenanceWindow string       `json:"maintenanceWindow"`
		Chunks            []Chunk      `json:"chunks"`
	} `json:"deployment"`
}

// UpdateType returns the server-requested update forcefulness.
func (d *DeploymentBase) UpdateType() UpdateType { return d.Deploy.Update }

// DownloadType returns the server-requested download forcefulness.
func (d *DeploymentBase) DownloadType() DownloadType { return d.Deploy.Download }

// InMaintenanceWindow reports whether the server advertised the device's
// maintenance window as currently available ("available").
func (d *DeploymentBase) InMaintenanceWindow() bool {
	return d.Deploy.MaintenanceWindow == "available"
}

// Chunks returns the ordered chunk list; callers must not reorder it.
func (d *DeploymentBase) Chunks() []Chunk { return d.Deploy.Chunks }

// CancelAction identifies a previously offered action the server wants
// stopped, decoded from "GET {cancelAction}".
type CancelAction struct {
	ID     string `json:"id"`
	Cancel struct {
		StopID string `json:"stopId"`
	} `json:"cancelAction"`
}

// StopID is the identifier of the action being canceled.
func (c *CancelAction) StopID() string { return c.Cancel.StopID }

func decodeDeploymentBase(body []byte) (*DeploymentBase, error) {
	var d DeploymentBase
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func decodeCancelAction(body []byte) (*CancelAction, error) {
	var c CancelAction
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
