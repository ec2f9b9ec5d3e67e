package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/taskwright/taskwright/internal/debug"
	"github.com/taskwright/taskwright/internal/types"
)

// ScriptBackend issues each call by running a configured automation command
// (typically an osascript-style runner) with a JSON request envelope on
// stdin, and decodes a single JSON reply from stdout.
type ScriptBackend struct {
	command []string
	timeout time.Duration

	// retryMaxElapsed caps total retry time for transient failures.
	// Zero disables retry.
	retryMaxElapsed time.Duration
}

// ScriptOptions configure a ScriptBackend.
type ScriptOptions struct {
	// Command is the runner argv, e.g. ["osascript", "-l", "JavaScript", "runner.js"].
	Command []string

	// Timeout bounds one runner invocation. Defaults to 30s.
	Timeout time.Duration

	// RetryMaxElapsed caps total retry time for transient errors.
	// Defaults to 30s; negative disables retry.
	RetryMaxElapsed time.Duration
}

const (
	defaultCallTimeout     = 30 * time.Second
	defaultRetryMaxElapsed = 30 * time.Second
)

// NewScript creates a ScriptBackend.
func NewScript(opts ScriptOptions) (*ScriptBackend, error) {
	if len(opts.Command) == 0 {
		return nil, fmt.Errorf("backend: no runner command configured")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	retry := opts.RetryMaxElapsed
	if retry == 0 {
		retry = defaultRetryMaxElapsed
	}
	if retry < 0 {
		retry = 0
	}
	return &ScriptBackend{
		command:         opts.Command,
		timeout:         timeout,
		retryMaxElapsed: retry,
	}, nil
}

// request is the envelope passed to the runner on stdin.
type request struct {
	Action         string         `json:"action"`
	Type           types.ItemType `json:"type"`
	ID             string         `json:"id,omitempty"`
	Parent         string         `json:"parent,omitempty"`
	Fields         map[string]any `json:"fields,omitempty"`
	CompletionDate string         `json:"completion_date,omitempty"`
}

func (s *ScriptBackend) CreateItem(ctx context.Context, typ types.ItemType, fields map[string]any, parentRealID string) (string, error) {
	rep, err := s.call(ctx, request{Action: "create", Type: typ, Fields: fields, Parent: parentRealID})
	if err != nil {
		return "", err
	}
	if rep.ID == "" {
		return "", &Error{Action: "create", Type: typ, Message: "backend returned no identifier"}
	}
	return rep.ID, nil
}

func (s *ScriptBackend) UpdateItem(ctx context.Context, typ types.ItemType, id string, fields map[string]any) error {
	_, err := s.call(ctx, request{Action: "update", Type: typ, ID: id, Fields: fields})
	return err
}

func (s *ScriptBackend) CompleteItem(ctx context.Context, typ types.ItemType, id string, completionDate string) error {
	_, err := s.call(ctx, request{Action: "complete", Type: typ, ID: id, CompletionDate: completionDate})
	return err
}

func (s *ScriptBackend) DeleteItem(ctx context.Context, typ types.ItemType, id string) error {
	_, err := s.call(ctx, request{Action: "delete", Type: typ, ID: id})
	return err
}

// call runs the configured command once per attempt, retrying transient
// failures with exponential backoff.
func (s *ScriptBackend) call(ctx context.Context, req request) (*reply, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("backend: marshal request: %w", err)
	}

	var rep *reply
	err = s.withRetry(ctx, req.Action, func() error {
		var callErr error
		rep, callErr = s.invoke(ctx, req, payload)
		return callErr
	})
	return rep, err
}

// errTimeout marks a call whose outcome is unknown: the runner was killed at
// the deadline and the mutation may or may not have landed.
var errTimeout = errors.New("automation timed out")

func (s *ScriptBackend) invoke(ctx context.Context, req request, payload []byte) (*reply, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	debug.Logf("backend: %s %s id=%q parent=%q\n", req.Action, req.Type, req.ID, req.Parent)

	cmd := exec.CommandContext(callCtx, s.command[0], s.command[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("backend %s %s: %w after %s", req.Action, req.Type, errTimeout, s.timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("backend %s %s: runner failed: %s", req.Action, req.Type, msg)
	}

	return decodeReply(req.Action, req.Type, bytes.TrimSpace(stdout.Bytes()))
}

// withRetry executes op, retrying transient errors until the configured
// elapsed budget runs out. Non-transient errors stop immediately. Timed-out
// creates are never retried: the mutation may have landed, and a retry would
// duplicate the item.
func (s *ScriptBackend) withRetry(ctx context.Context, action string, op func() error) error {
	if s.retryMaxElapsed <= 0 {
		return op()
	}

	bo := newCallBackoff(s.retryMaxElapsed)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && action == "create" && errors.Is(err, errTimeout) {
			return backoff.Permanent(err)
		}
		if err != nil && isRetryableError(err) {
			debug.Logf("backend: retrying after transient error: %v\n", err)
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}

func newCallBackoff(maxElapsed time.Duration) backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed
	return bo
}

// isRetryableError reports whether the error looks like a transient
// automation failure worth another attempt. Failures the backend itself
// reports (the error variant of the reply envelope) are never retried: the
// call reached the application and was rejected.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var backendErr *Error
	if errors.As(err, &backendErr) {
		return false
	}
	errStr := strings.ToLower(err.Error())
	// The automation bridge drops requests when the host application is
	// starting up or busy with a modal dialog.
	if strings.Contains(errStr, "timed out") {
		return true
	}
	if strings.Contains(errStr, "connection is invalid") {
		return true
	}
	if strings.Contains(errStr, "application isn't running") {
		return true
	}
	if strings.Contains(errStr, "busy") {
		return true
	}
	return false
}
