package ddiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct{}

func (stubHandler) OnConfigRequest() (*ConfigResponse, error)          { return nil, nil }
func (stubHandler) OnDeploymentAction(*DeploymentBase) (*Response, error) { return nil, nil }
func (stubHandler) OnCancelAction(*CancelAction) (*Response, error)     { return nil, nil }
func (stubHandler) OnNoActions()                                       {}

func TestBuilderRejectsMissingEndpoint(t *testing.T) {
	_, err := NewDefaultClientBuilder().SetEventHandler(stubHandler{}).Build()
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*ConfigurationError))
}

func TestBuilderRejectsMissingEventHandler(t *testing.T) {
	_, err := NewDefaultClientBuilder().SetHawkbitEndpoint("https://ddi.example.com").Build()
	require.Error(t, err)
}

func TestBuilderRejectsTwoAuthVariants(t *testing.T) {
	b := NewDefaultClientBuilder().
		SetHawkbitEndpoint("https://ddi.example.com").
		SetEventHandler(stubHandler{}).
		SetGatewayToken("gw-token").
		SetDeviceToken("dev-token")

	_, err := b.Build()
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*ConfigurationError))
}

func TestBuilderAcceptsSingleAuthVariant(t *testing.T) {
	c, err := NewDefaultClientBuilder().
		SetHawkbitEndpoint("https://ddi.example.com").
		SetEventHandler(stubHandler{}).
		SetGatewayToken("gw-token").
		Build()
	require.NoError(t, err)
	assert.Equal(t, "gateway-token", c.state.auth.name())
}

func TestBuilderWithIdentityComposesControllerURI(t *testing.T) {
	c, err := NewDefaultClientBuilder().
		SetHawkbitEndpointWithIdentity("https://ddi.example.com", "dev-7", "acme").
		SetEventHandler(stubHandler{}).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "/acme/controller/v1/dev-7", c.state.baseURI.Path)
}

func TestBuilderDefaultsTenant(t *testing.T) {
	c, err := NewDefaultClientBuilder().
		SetHawkbitEndpointWithIdentity("https://ddi.example.com", "dev-7").
		SetEventHandler(stubHandler{}).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "/default/controller/v1/dev-7", c.state.baseURI.Path)
}

func TestBuilderRejectsInvalidTLSKeypair(t *testing.T) {
	b := NewDefaultClientBuilder().
		SetHawkbitEndpoint("https://ddi.example.com").
		SetEventHandler(stubHandler{}).
		SetTLS([]byte("not a cert"), []byte("not a key"))

	_, err := b.Build()
	require.Error(t, err)
}

func TestBuilderDefaultsToNoAuthAndNopLogger(t *testing.T) {
	c, err := NewDefaultClientBuilder().
		SetHawkbitEndpoint("https://ddi.example.com").
		SetEventHandler(stubHandler{}).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "none", c.state.auth.name())
	assert.NotNil(t, c.state.logger)
}
