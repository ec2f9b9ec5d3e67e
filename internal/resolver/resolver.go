// Package resolver tracks the lifecycle of every temporary identifier issued
// in a batch and maps each to the real identifier the backend assigns at
// creation time. It is the single source of truth the orchestrator consults
// to rewrite later references.
//
// A Resolver is owned by exactly one batch execution and discarded when the
// batch completes. Misuse (resolving an unregistered handle, or transitioning
// an entry twice) is a programming error and panics rather than silently
// corrupting state.
package resolver

import (
	"fmt"

	"github.com/taskwright/taskwright/internal/types"
)

// State is the lifecycle state of a registered temp ID.
type State string

const (
	StatePending State = "pending"
	StateCreated State = "created"
	StateFailed  State = "failed"
)

type entry struct {
	typ    types.ItemType
	state  State
	realID string
	err    string
}

// Created pairs a temp ID with its backend-assigned identifier.
type Created struct {
	TempID string
	RealID string
	Type   types.ItemType
}

// Resolver is a mutable registry of temp-ID resolution state. Not safe for
// concurrent use; a batch executes strictly sequentially so none is needed.
type Resolver struct {
	entries map[string]*entry
	order   []string // registration order, drives rollback ordering
}

// New creates an empty resolver.
func New() *Resolver {
	return &Resolver{entries: make(map[string]*entry)}
}

// Register creates a pending entry for tempID. Every item must be registered
// before any resolution attempt. Registering the same handle twice panics;
// duplicate detection belongs to graph validation, which runs first.
func (r *Resolver) Register(tempID string, typ types.ItemType) {
	if _, ok := r.entries[tempID]; ok {
		panic(fmt.Sprintf("resolver: %q registered twice", tempID))
	}
	r.entries[tempID] = &entry{typ: typ, state: StatePending}
	r.order = append(r.order, tempID)
}

// Registered reports whether tempID was issued in this batch. Used by later
// phases to decide whether a target identifier needs rewriting.
func (r *Resolver) Registered(tempID string) bool {
	_, ok := r.entries[tempID]
	return ok
}

// Resolve transitions tempID from pending to created with the backend's
// assigned identifier. Once created, an entry's outcome never changes.
func (r *Resolver) Resolve(tempID, realID string) {
	e := r.mustEntry(tempID)
	if e.state != StatePending {
		panic(fmt.Sprintf("resolver: %q resolved while %s", tempID, e.state))
	}
	e.state = StateCreated
	e.realID = realID
}

// MarkFailed transitions tempID from pending to failed, recording the error.
func (r *Resolver) MarkFailed(tempID, errMsg string) {
	e := r.mustEntry(tempID)
	if e.state != StatePending {
		panic(fmt.Sprintf("resolver: %q marked failed while %s", tempID, e.state))
	}
	e.state = StateFailed
	e.err = errMsg
}

// RealID returns the backend identifier for tempID, and whether the entry is
// in the created state. Pending and failed entries return ok=false: the
// caller must treat that as "parent not yet available" and fail the dependent
// item rather than proceeding with an empty parent.
func (r *Resolver) RealID(tempID string) (string, bool) {
	e := r.mustEntry(tempID)
	if e.state != StateCreated {
		return "", false
	}
	return e.realID, true
}

// State returns the lifecycle state of tempID and, for failed entries, the
// recorded error.
func (r *Resolver) State(tempID string) (State, string) {
	e := r.mustEntry(tempID)
	return e.state, e.err
}

// CreatedIDs returns the successfully created items in registration order.
// Rollback deletes them in reverse so children go before their parents.
func (r *Resolver) CreatedIDs() []Created {
	var out []Created
	for _, tempID := range r.order {
		e := r.entries[tempID]
		if e.state == StateCreated {
			out = append(out, Created{TempID: tempID, RealID: e.realID, Type: e.typ})
		}
	}
	return out
}

// CreatedCount returns the number of entries in the created state.
func (r *Resolver) CreatedCount() int { return r.count(StateCreated) }

// FailedCount returns the number of entries in the failed state.
func (r *Resolver) FailedCount() int { return r.count(StateFailed) }

// PendingCount returns the number of entries never attempted.
func (r *Resolver) PendingCount() int { return r.count(StatePending) }

// Mappings returns tempID -> realID for created entries only.
func (r *Resolver) Mappings() map[string]string {
	out := make(map[string]string)
	for tempID, e := range r.entries {
		if e.state == StateCreated {
			out[tempID] = e.realID
		}
	}
	return out
}

func (r *Resolver) count(s State) int {
	n := 0
	for _, e := range r.entries {
		if e.state == s {
			n++
		}
	}
	return n
}

func (r *Resolver) mustEntry(tempID string) *entry {
	e, ok := r.entries[tempID]
	if !ok {
		panic(fmt.Sprintf("resolver: %q was never registered", tempID))
	}
	return e
}
