package ddiclient

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHrefAbsolute(t *testing.T) {
	u, err := resolveHref(nil, "https://ddi.example.com/default/controller/v1/dev1/deploymentBase/5")
	require.NoError(t, err)
	assert.Equal(t, "ddi.example.com", u.Host)
}

func TestResolveHrefRelative(t *testing.T) {
	base, _ := url.Parse("https://ddi.example.com/default/controller/v1/dev1")
	u, err := resolveHref(base, "deploymentBase/5")
	require.NoError(t, err)
	assert.Equal(t, "/default/controller/v1/deploymentBase/5", u.Path)
}

func TestResolveHrefEmpty(t *testing.T) {
	_, err := resolveHref(nil, "")
	assert.Error(t, err)
}

func TestSameAuthority(t *testing.T) {
	a, _ := url.Parse("https://ddi.example.com/a")
	b, _ := url.Parse("https://DDI.example.com/b")
	c, _ := url.Parse("https://other.example.com/a")

	assert.True(t, sameAuthority(a, b))
	assert.False(t, sameAuthority(a, c))
}

func TestFeedbackURI(t *testing.T) {
	base, _ := url.Parse("https://ddi.example.com/default/controller/v1/dev1/cancelAction/9")
	fb := feedbackURI(base)
	assert.Equal(t, "/default/controller/v1/dev1/cancelAction/9/feedback", fb.Path)
}

func TestBuildControllerURI(t *testing.T) {
	u, err := buildControllerURI("https://ddi.example.com", "mytenant", "dev-42")
	require.NoError(t, err)
	assert.Equal(t, "/mytenant/controller/v1/dev-42", u.Path)
}

func TestBuildControllerURIRejectsRelativeEndpoint(t *testing.T) {
	_, err := buildControllerURI("not-a-url", "default", "dev1")
	assert.Error(t, err)
}
