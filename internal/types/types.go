// Package types defines core data structures for the taskwright batch engine.
package types

import (
	"fmt"
)

// ItemType identifies which creation call the backend issues for an item.
type ItemType string

const (
	ItemProject ItemType = "project"
	ItemTask    ItemType = "task"
)

// IsValid reports whether the item type is one of the supported kinds.
func (t ItemType) IsValid() bool {
	return t == ItemProject || t == ItemTask
}

// OpKind identifies the phase an operation belongs to. Phases always execute
// in the fixed order create -> update -> complete -> delete.
type OpKind string

const (
	OpCreate   OpKind = "create"
	OpUpdate   OpKind = "update"
	OpComplete OpKind = "complete"
	OpDelete   OpKind = "delete"
)

// BatchItem is a single creation request within a batch.
type BatchItem struct {
	// TempID is the caller-chosen handle, unique within the batch.
	// Auto-generated during normalization if omitted.
	TempID string `json:"temp_id,omitempty" yaml:"temp_id,omitempty"`

	Type ItemType `json:"type" yaml:"type"`

	// ParentTempID references another item's TempID in the same batch.
	ParentTempID string `json:"parent_temp_id,omitempty" yaml:"parent,omitempty"`

	// ParentID attaches the item to a pre-existing backend container.
	// Mutually exclusive with ParentTempID.
	ParentID string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`

	// Fields holds name, note, dates, tags, flags, etc. Opaque to the engine
	// except for date/tag normalization at the backend boundary.
	Fields map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Operation is one entry in a batch: a create carrying an item, or an
// update/complete/delete targeting an identifier. The target ID may be a
// TempID from the same batch's create phase, in which case it is rewritten
// to the backend-assigned identifier before the call is issued.
type Operation struct {
	Kind OpKind `json:"kind" yaml:"kind"`

	// Item is set for create operations.
	Item *BatchItem `json:"item,omitempty" yaml:"item,omitempty"`

	// Type and ID identify the target of update/complete/delete operations.
	Type ItemType `json:"type,omitempty" yaml:"type,omitempty"`
	ID   string   `json:"id,omitempty" yaml:"id,omitempty"`

	// Fields holds the changes for update operations.
	Fields map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`

	// CompletionDate optionally dates a complete operation.
	CompletionDate string `json:"completion_date,omitempty" yaml:"date,omitempty"`
}

// ExecuteOptions control batch execution.
type ExecuteOptions struct {
	// CreateSequentially orders creates so parents precede children. Must be
	// true for correctness; false skips dependency ordering and is only safe
	// for flat batches with no parent references.
	CreateSequentially bool `json:"create_sequentially" yaml:"sequential"`

	// AtomicOperation rolls back every successful creation if any creation
	// fails. Rollback is best-effort (the backend has no transactions).
	AtomicOperation bool `json:"atomic_operation" yaml:"atomic"`

	// ReturnMapping includes the tempId -> realId mapping in the result.
	ReturnMapping bool `json:"return_mapping" yaml:"return_mapping"`

	// StopOnError halts processing at the first failure in any phase.
	StopOnError bool `json:"stop_on_error" yaml:"stop_on_error"`
}

// DefaultExecuteOptions returns the options used when the caller specifies
// nothing: ordered creates, non-atomic, mapping returned, keep going on error.
func DefaultExecuteOptions() ExecuteOptions {
	return ExecuteOptions{
		CreateSequentially: true,
		ReturnMapping:      true,
	}
}

// BatchRequest is the full input to one engine invocation.
type BatchRequest struct {
	Operations []Operation    `json:"operations" yaml:"operations"`
	Options    ExecuteOptions `json:"options" yaml:"options"`
}

// Normalize assigns auto-generated temp IDs to create items that lack one.
// Generated handles use the form "item-N" where N counts up from 1, skipping
// forward on collision with caller-chosen handles.
func (r *BatchRequest) Normalize() {
	taken := make(map[string]bool)
	for _, op := range r.Operations {
		if op.Kind == OpCreate && op.Item != nil && op.Item.TempID != "" {
			taken[op.Item.TempID] = true
		}
	}
	n := 0
	for _, op := range r.Operations {
		if op.Kind != OpCreate || op.Item == nil || op.Item.TempID != "" {
			continue
		}
		for {
			n++
			candidate := fmt.Sprintf("item-%d", n)
			if !taken[candidate] {
				op.Item.TempID = candidate
				taken[candidate] = true
				break
			}
		}
	}
}

// Validate checks structural validity of the request: item types, required
// identifiers, and mutually exclusive parent references. Graph-level
// validation (duplicates, dangling references, cycles) happens separately.
func (r *BatchRequest) Validate() error {
	for i, op := range r.Operations {
		switch op.Kind {
		case OpCreate:
			if op.Item == nil {
				return fmt.Errorf("operation %d: create without item", i)
			}
			if !op.Item.Type.IsValid() {
				return fmt.Errorf("operation %d: invalid item type %q", i, op.Item.Type)
			}
			if op.Item.ParentTempID != "" && op.Item.ParentID != "" {
				return fmt.Errorf("operation %d: item %q sets both parent and parent_id", i, op.Item.TempID)
			}
		case OpUpdate, OpComplete, OpDelete:
			if op.ID == "" {
				return fmt.Errorf("operation %d: %s without id", i, op.Kind)
			}
			if !op.Type.IsValid() {
				return fmt.Errorf("operation %d: invalid item type %q", i, op.Type)
			}
			if op.Kind == OpUpdate && len(op.Fields) == 0 {
				return fmt.Errorf("operation %d: update %q with no fields", i, op.ID)
			}
		default:
			return fmt.Errorf("operation %d: unknown kind %q", i, op.Kind)
		}
	}
	return nil
}

// ItemResult is the per-operation outcome within a batch result.
type ItemResult struct {
	Phase   OpKind   `json:"phase"`
	TempID  string   `json:"temp_id,omitempty"`
	ID      string   `json:"id,omitempty"`      // target ID as given (update/complete/delete)
	RealID  string   `json:"real_id,omitempty"` // backend-assigned or resolved identifier
	Type    ItemType `json:"type,omitempty"`
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`

	// Attempted is false when processing stopped before this operation
	// was issued (StopOnError after an earlier failure).
	Attempted bool `json:"attempted"`
}

// BatchExecutionResult is the aggregate outcome of one batch.
type BatchExecutionResult struct {
	CreatedCount int `json:"created_count"`
	FailedCount  int `json:"failed_count"`
	TotalItems   int `json:"total_items"`

	// Items preserves execution order across all four phases.
	Items []ItemResult `json:"items"`

	// Mapping holds tempId -> realId for successfully created items.
	// Withheld when the batch rolled back or ReturnMapping is false.
	Mapping map[string]string `json:"mapping,omitempty"`

	RolledBack bool `json:"rolled_back"`

	// RollbackErrors records best-effort rollback deletions that failed,
	// leaving orphaned items the caller must reconcile out of band.
	RollbackErrors []string `json:"rollback_errors,omitempty"`
}

// BatchPreview is the dry-run output: validation passed, and this is what
// execution would do. No backend calls are made to produce it.
type BatchPreview struct {
	// CreationOrder lists create-phase temp IDs in execution order.
	CreationOrder []string `json:"creation_order"`

	MaxDepth int `json:"max_depth"`

	// Effects is a human-readable list of intended operations.
	Effects []string `json:"effects"`

	Creates   int `json:"creates"`
	Updates   int `json:"updates"`
	Completes int `json:"completes"`
	Deletes   int `json:"deletes"`
}
