// Package backend defines the contract with the automation collaborator that
// actually mutates the task system, and a script-runner implementation of it.
//
// Every call is an opaque remote request with its own failure modes: the
// backend has no transactions and no bulk primitives, and assigns real
// identifiers only when an individual item is created. The engine never
// treats these calls as locally computed functions.
package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskwright/taskwright/internal/types"
)

// Backend is the per-item mutation surface consumed by the orchestrator.
// Calls are synchronous; the engine blocks on each before proceeding.
type Backend interface {
	// CreateItem creates one item and returns the backend-assigned identifier.
	// parentRealID is empty for top-level items.
	CreateItem(ctx context.Context, typ types.ItemType, fields map[string]any, parentRealID string) (string, error)

	UpdateItem(ctx context.Context, typ types.ItemType, id string, fields map[string]any) error

	// CompleteItem marks an item done. completionDate is optional (RFC3339
	// or date-only); empty means "now" on the backend side.
	CompleteItem(ctx context.Context, typ types.ItemType, id string, completionDate string) error

	DeleteItem(ctx context.Context, typ types.ItemType, id string) error
}

// Error is a failure reported by the backend for a single call.
type Error struct {
	Action  string
	Type    types.ItemType
	Message string
	Details json.RawMessage
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend %s %s: %s", e.Action, e.Type, e.Message)
}

// reply is the tagged result envelope every backend call returns: a success
// variant carrying a payload, or a failure variant carrying an error. Shape
// is validated once here at the boundary, never re-checked downstream.
type reply struct {
	ID      string          `json:"id,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Err     string          `json:"error,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// decodeReply parses raw output from the automation runner into a reply and
// surfaces the failure variant as an *Error.
func decodeReply(action string, typ types.ItemType, raw []byte) (*reply, error) {
	var rep reply
	if err := json.Unmarshal(raw, &rep); err != nil {
		return nil, fmt.Errorf("backend %s %s: malformed reply %q: %w", action, typ, truncate(raw, 200), err)
	}
	if rep.Err != "" {
		return nil, &Error{Action: action, Type: typ, Message: rep.Err, Details: rep.Details}
	}
	return &rep, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
