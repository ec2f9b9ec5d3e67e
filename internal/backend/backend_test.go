package backend

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwright/taskwright/internal/types"
)

func TestDecodeReplySuccess(t *testing.T) {
	rep, err := decodeReply("create", types.ItemTask, []byte(`{"id":"XK29dd","ok":true}`))
	require.NoError(t, err)
	assert.Equal(t, "XK29dd", rep.ID)
}

func TestDecodeReplyErrorVariant(t *testing.T) {
	raw := []byte(`{"error":"no such project","details":{"id":"ghost"}}`)
	_, err := decodeReply("update", types.ItemProject, raw)
	require.Error(t, err)

	var berr *Error
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, "update", berr.Action)
	assert.Equal(t, types.ItemProject, berr.Type)
	assert.Equal(t, "no such project", berr.Message)
	assert.JSONEq(t, `{"id":"ghost"}`, string(berr.Details))
	assert.Contains(t, err.Error(), "backend update project")
}

func TestDecodeReplyMalformed(t *testing.T) {
	_, err := decodeReply("create", types.ItemTask, []byte("not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed reply")

	var berr *Error
	assert.False(t, errors.As(err, &berr), "malformed output is not an application error")
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))

	// Application-level rejections are never retried, whatever the message.
	appErr := &Error{Action: "create", Type: types.ItemTask, Message: "request timed out upstream"}
	assert.False(t, isRetryableError(appErr))
	assert.False(t, isRetryableError(fmt.Errorf("call failed: %w", appErr)))

	assert.True(t, isRetryableError(errors.New("execution timed out")))
	assert.True(t, isRetryableError(errors.New("the connection is invalid")))
	assert.True(t, isRetryableError(errors.New("Things isn't running: application isn't running")))
	assert.True(t, isRetryableError(errors.New("target is busy")))

	assert.False(t, isRetryableError(errors.New("syntax error in runner script")))
}

func TestNewScriptDefaults(t *testing.T) {
	_, err := NewScript(ScriptOptions{})
	require.Error(t, err)

	s, err := NewScript(ScriptOptions{Command: []string{"runner"}})
	require.NoError(t, err)
	assert.Equal(t, defaultCallTimeout, s.timeout)
	assert.Equal(t, defaultRetryMaxElapsed, s.retryMaxElapsed)

	s, err = NewScript(ScriptOptions{Command: []string{"runner"}, RetryMaxElapsed: -1})
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), s.retryMaxElapsed, "negative disables retry")
}
