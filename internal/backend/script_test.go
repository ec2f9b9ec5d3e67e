package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwright/taskwright/internal/types"
)

func shBackend(t *testing.T, script string) *ScriptBackend {
	t.Helper()
	s, err := NewScript(ScriptOptions{
		Command:         []string{"sh", "-c", script},
		RetryMaxElapsed: -1,
	})
	require.NoError(t, err)
	return s
}

func TestScriptBackendCreateRoundTrip(t *testing.T) {
	s := shBackend(t, `cat >/dev/null; echo '{"id":"XK29dd","ok":true}'`)

	id, err := s.CreateItem(context.Background(), types.ItemTask, map[string]any{"name": "x"}, "")
	require.NoError(t, err)
	assert.Equal(t, "XK29dd", id)
}

func TestScriptBackendCreateWithoutID(t *testing.T) {
	s := shBackend(t, `cat >/dev/null; echo '{"ok":true}'`)

	_, err := s.CreateItem(context.Background(), types.ItemTask, nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no identifier")
}

func TestScriptBackendErrorReply(t *testing.T) {
	s := shBackend(t, `cat >/dev/null; echo '{"error":"no such task"}'`)

	err := s.UpdateItem(context.Background(), types.ItemTask, "ghost", map[string]any{"x": 1})
	require.Error(t, err)

	var berr *Error
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, "no such task", berr.Message)
}

func TestScriptBackendRunnerFailure(t *testing.T) {
	s := shBackend(t, `echo "bridge exploded" >&2; exit 1`)

	err := s.DeleteItem(context.Background(), types.ItemTask, "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runner failed: bridge exploded")
}

func TestScriptBackendForwardsRequestEnvelope(t *testing.T) {
	// The runner validates the envelope it receives and fails loudly if a
	// field is missing, so a passing call proves the payload arrived intact.
	script := `
read -r line
case "$line" in
  *'"action":"complete"'*'"id":"t1"'*'"completion_date":"2026-08-01"'*) echo '{"ok":true}' ;;
  *) echo '{"error":"bad envelope"}' ;;
esac`
	s := shBackend(t, script)

	err := s.CompleteItem(context.Background(), types.ItemTask, "t1", "2026-08-01")
	require.NoError(t, err)
}
