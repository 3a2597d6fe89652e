package ddiclient

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pollBody = `{
  "config": {"polling": {"sleep": "00:00:30"}},
  "_links": {
    "configData": {"href": "https://ddi.example.com/default/controller/v1/dev1/configData"},
    "deploymentBase": {"href": "https://ddi.example.com/default/controller/v1/dev1/deploymentBase/5"},
    "cancelAction": {"href": "https://ddi.example.com/default/controller/v1/dev1/cancelAction/9"}
  }
}`

func TestDecodePollResponse(t *testing.T) {
	pr, err := decodePollResponse([]byte(pollBody))
	require.NoError(t, err)
	assert.Equal(t, "00:00:30", pr.Config.Polling.Sleep)
	require.NotNil(t, pr.Links.CancelAction)
	require.NotNil(t, pr.Links.DeploymentBase)
	require.NotNil(t, pr.Links.ConfigData)
}

func TestSleepHint(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
		ok   bool
	}{
		{"00:00:30", 30 * time.Second, true},
		{"01:02:03", time.Hour + 2*time.Minute + 3*time.Second, true},
		{"garbage", 0, false},
		{"", 0, false},
		{"-1:00:00", 0, false},
	}
	for _, c := range cases {
		d, ok := sleepHint(c.raw)
		assert.Equal(t, c.ok, ok, "raw=%q", c.raw)
		if c.ok {
			assert.Equal(t, c.want, d, "raw=%q", c.raw)
		}
	}
}

func TestDispatchPriorityCancelWinsOverDeploymentAndConfig(t *testing.T) {
	base, _ := url.Parse("https://ddi.example.com/default/controller/v1/dev1")
	pr, err := decodePollResponse([]byte(pollBody))
	require.NoError(t, err)

	kind, target, err := pr.dispatch(base)
	require.NoError(t, err)
	assert.Equal(t, actionCancel, kind)
	assert.Equal(t, "/default/controller/v1/dev1/cancelAction/9", target.Path)
}

func TestDispatchPriorityDeploymentWinsOverConfig(t *testing.T) {
	base, _ := url.Parse("https://ddi.example.com/default/controller/v1/dev1")
	body := `{"config":{"polling":{"sleep":"00:01:00"}},"_links":{
		"configData": {"href": "https://ddi.example.com/default/controller/v1/dev1/configData"},
		"deploymentBase": {"href": "https://ddi.example.com/default/controller/v1/dev1/deploymentBase/5"}
	}}`
	pr, err := decodePollResponse([]byte(body))
	require.NoError(t, err)

	kind, target, err := pr.dispatch(base)
	require.NoError(t, err)
	assert.Equal(t, actionDeployment, kind)
	assert.Equal(t, "/default/controller/v1/dev1/deploymentBase/5", target.Path)
}

func TestDispatchFallsBackToConfig(t *testing.T) {
	base, _ := url.Parse("https://ddi.example.com/default/controller/v1/dev1")
	body := `{"config":{"polling":{"sleep":"00:01:00"}},"_links":{
		"configData": {"href": "https://ddi.example.com/default/controller/v1/dev1/configData"}
	}}`
	pr, err := decodePollResponse([]byte(body))
	require.NoError(t, err)

	kind, target, err := pr.dispatch(base)
	require.NoError(t, err)
	assert.Equal(t, actionConfig, kind)
	assert.Equal(t, "/default/controller/v1/dev1/configData", target.Path)
}

func TestDispatchNoActions(t *testing.T) {
	base, _ := url.Parse("https://ddi.example.com/default/controller/v1/dev1")
	pr, err := decodePollResponse([]byte(`{"config":{"polling":{"sleep":"00:01:00"}},"_links":{}}`))
	require.NoError(t, err)

	kind, target, err := pr.dispatch(base)
	require.NoError(t, err)
	assert.Equal(t, actionNone, kind)
	assert.Nil(t, target)
}
