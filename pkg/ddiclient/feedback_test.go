package ddiclient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseBuilderRequiresExecutionAndFinished(t *testing.T) {
	_, err := NewResponseBuilder().SetFinished(FinishedSuccess).Build()
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*IncompleteResponse))

	_, err = NewResponseBuilder().SetExecution(ExecutionClosed).Build()
	require.Error(t, err)
}

func TestResponseBuilderBuildsImmutableResponse(t *testing.T) {
	r, err := NewResponseBuilder().
		SetExecution(ExecutionClosed).
		SetFinished(FinishedSuccess).
		AddDetail("installed v1.2.3").
		SetIgnoreSleep().
		Build()
	require.NoError(t, err)

	wire := r.wire("action-5")
	assert.Equal(t, "action-5", wire.ID)
	assert.Equal(t, ExecutionClosed, wire.Status.Execution)
	assert.Equal(t, FinishedSuccess, wire.Status.Result.Finished)
	assert.Equal(t, []string{"installed v1.2.3"}, wire.Status.Details)
	assert.True(t, r.IgnoreSleep)
}

func TestResponseWireRendersNilDetailsAsEmptyArray(t *testing.T) {
	r, err := NewResponseBuilder().SetExecution(ExecutionClosed).SetFinished(FinishedNone).Build()
	require.NoError(t, err)

	body, err := json.Marshal(r.wire("a"))
	require.NoError(t, err)
	assert.Contains(t, string(body), `"details":[]`)
}

func TestConfigResponseBuilderRequiresAtLeastOneAttribute(t *testing.T) {
	_, err := NewConfigResponseBuilder().Build()
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*IncompleteResponse))
}

func TestConfigResponsePreservesInsertionOrderInWireForm(t *testing.T) {
	cfg, err := NewConfigResponseBuilder().
		AddData("zeta", "1").
		AddData("alpha", "2").
		AddData("mid", "3").
		Build()
	require.NoError(t, err)

	body, err := json.Marshal(cfg.wire())
	require.NoError(t, err)

	zetaIdx := indexOf(t, string(body), `"zeta"`)
	alphaIdx := indexOf(t, string(body), `"alpha"`)
	midIdx := indexOf(t, string(body), `"mid"`)

	assert.Less(t, zetaIdx, alphaIdx, "zeta was inserted first, must serialize first despite alphabetical key order")
	assert.Less(t, alphaIdx, midIdx)
}

func TestConfigResponseAddDataOverwriteKeepsOriginalPosition(t *testing.T) {
	cfg, err := NewConfigResponseBuilder().
		AddData("first", "1").
		AddData("second", "2").
		AddData("first", "1-updated").
		Build()
	require.NoError(t, err)

	body, err := json.Marshal(cfg.wire())
	require.NoError(t, err)

	firstIdx := indexOf(t, string(body), `"first"`)
	secondIdx := indexOf(t, string(body), `"second"`)
	assert.Less(t, firstIdx, secondIdx)
	assert.Contains(t, string(body), `"1-updated"`)
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	t.Fatalf("%q not found in %q", needle, haystack)
	return -1
}

func TestNotifyDeliveryCallsListener(t *testing.T) {
	l := &recordingListener{}
	r, err := NewResponseBuilder().
		SetExecution(ExecutionClosed).
		SetFinished(FinishedSuccess).
		SetResponseDeliveryListener(l).
		Build()
	require.NoError(t, err)

	r.notifyDelivery(true)
	assert.True(t, l.succeeded)

	r.notifyDelivery(false)
	assert.True(t, l.errored)
}

type recordingListener struct {
	succeeded bool
	errored   bool
}

func (l *recordingListener) OnSuccessfulDelivery() { l.succeeded = true }
func (l *recordingListener) OnError()              { l.errored = true }
