// Package engine drives batch execution: it orders creates so parents precede
// children, rewrites temporary identifiers to backend-assigned ones, emulates
// atomicity by deleting created items in reverse order on failure, and
// aggregates per-item outcomes into a single result.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/taskwright/taskwright/internal/backend"
	"github.com/taskwright/taskwright/internal/debug"
	"github.com/taskwright/taskwright/internal/eventbus"
	"github.com/taskwright/taskwright/internal/fields"
	"github.com/taskwright/taskwright/internal/graph"
	"github.com/taskwright/taskwright/internal/resolver"
	"github.com/taskwright/taskwright/internal/types"
)

// Orchestrator executes batches against a backend. One ExecuteBatch call owns
// its resolver exclusively; the Orchestrator itself holds no per-batch state
// and no state survives the call.
type Orchestrator struct {
	backend    backend.Backend
	bus        *eventbus.Bus
	normalizer *fields.Normalizer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBus makes the orchestrator announce committed mutations on bus.
func WithBus(bus *eventbus.Bus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithNormalizer normalizes date and tag fields before backend calls.
func WithNormalizer(n *fields.Normalizer) Option {
	return func(o *Orchestrator) { o.normalizer = n }
}

// New creates an Orchestrator over the given backend.
func New(b backend.Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{backend: b}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// phases partitions a request's operations. Within each slice, caller order
// is preserved; across slices the engine imposes the fixed phase order.
type phases struct {
	creates   []*types.BatchItem
	updates   []types.Operation
	completes []types.Operation
	deletes   []types.Operation
}

func partition(ops []types.Operation) phases {
	var p phases
	for _, op := range ops {
		switch op.Kind {
		case types.OpCreate:
			p.creates = append(p.creates, op.Item)
		case types.OpUpdate:
			p.updates = append(p.updates, op)
		case types.OpComplete:
			p.completes = append(p.completes, op)
		case types.OpDelete:
			p.deletes = append(p.deletes, op)
		}
	}
	return p
}

// ExecuteBatch runs one batch to completion. Validation failures (duplicate
// handles, dangling references, cycles, malformed operations) return an error
// before any backend call; per-item backend failures are reported inside the
// result, which is returned with a nil error.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, req *types.BatchRequest) (*types.BatchExecutionResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := partition(req.Operations)

	// Graph validation always runs, even when ordering is disabled: a batch
	// with a bad parent graph is rejected wholesale either way.
	ordered, _, err := graph.ComputeOrder(p.creates)
	if err != nil {
		return nil, err
	}
	if !req.Options.CreateSequentially {
		ordered = p.creates
	}

	res := resolver.New()
	for _, item := range ordered {
		res.Register(item.TempID, item.Type)
	}

	result := &types.BatchExecutionResult{
		TotalItems: len(req.Operations),
	}

	stopped := o.runCreates(ctx, ordered, res, req.Options, result)

	if req.Options.AtomicOperation && res.FailedCount() > 0 {
		o.rollback(ctx, res, result)
		result.RolledBack = true
		o.markSkipped(p, result, "batch rolled back")
		o.finish(result, res, req.Options)
		return result, nil
	}

	if !stopped {
		stopped = o.runPhase(ctx, types.OpUpdate, p.updates, res, req.Options, result)
	} else {
		o.markPhaseSkipped(types.OpUpdate, p.updates, result, "not attempted (stopped after earlier failure)")
	}
	if !stopped {
		stopped = o.runPhase(ctx, types.OpComplete, p.completes, res, req.Options, result)
	} else if len(p.completes) > 0 {
		o.markPhaseSkipped(types.OpComplete, p.completes, result, "not attempted (stopped after earlier failure)")
	}
	if !stopped {
		o.runPhase(ctx, types.OpDelete, p.deletes, res, req.Options, result)
	} else if len(p.deletes) > 0 {
		o.markPhaseSkipped(types.OpDelete, p.deletes, result, "not attempted (stopped after earlier failure)")
	}

	o.finish(result, res, req.Options)
	o.announce(ctx, result)
	return result, nil
}

// runCreates executes the create phase in dependency order. Returns true if
// StopOnError halted processing.
func (o *Orchestrator) runCreates(ctx context.Context, ordered []*types.BatchItem, res *resolver.Resolver, opts types.ExecuteOptions, result *types.BatchExecutionResult) bool {
	for i, item := range ordered {
		ir := types.ItemResult{
			Phase:     types.OpCreate,
			TempID:    item.TempID,
			Type:      item.Type,
			Attempted: true,
		}

		parentRealID := item.ParentID
		if item.ParentTempID != "" {
			rid, ok := res.RealID(item.ParentTempID)
			if !ok {
				// Ordering guarantees parents precede children, so this only
				// happens after an upstream failure. Fail fast rather than
				// deferring (there is no recovery for the parent).
				msg := fmt.Sprintf("parent %q not yet created", item.ParentTempID)
				res.MarkFailed(item.TempID, msg)
				ir.Success = false
				ir.Error = msg
				result.Items = append(result.Items, ir)
				if opts.StopOnError {
					o.markCreatesSkipped(ordered[i+1:], result)
					return true
				}
				continue
			}
			parentRealID = rid
		}

		itemFields, err := o.normalizeFields(item.Fields)
		if err != nil {
			res.MarkFailed(item.TempID, err.Error())
			ir.Success = false
			ir.Error = err.Error()
			result.Items = append(result.Items, ir)
			if opts.StopOnError {
				o.markCreatesSkipped(ordered[i+1:], result)
				return true
			}
			continue
		}

		realID, err := o.backend.CreateItem(ctx, item.Type, itemFields, parentRealID)
		if err != nil {
			res.MarkFailed(item.TempID, err.Error())
			ir.Success = false
			ir.Error = err.Error()
			result.Items = append(result.Items, ir)
			if opts.StopOnError {
				o.markCreatesSkipped(ordered[i+1:], result)
				return true
			}
			continue
		}

		res.Resolve(item.TempID, realID)
		ir.Success = true
		ir.RealID = realID
		result.Items = append(result.Items, ir)
	}
	return false
}

// markCreatesSkipped reports items never attempted after an early stop.
// Their resolver entries stay pending.
func (o *Orchestrator) markCreatesSkipped(remaining []*types.BatchItem, result *types.BatchExecutionResult) {
	for _, item := range remaining {
		result.Items = append(result.Items, types.ItemResult{
			Phase:     types.OpCreate,
			TempID:    item.TempID,
			Type:      item.Type,
			Attempted: false,
			Error:     "not attempted (stopped after earlier failure)",
		})
	}
}

// runPhase executes one post-create phase. Target identifiers matching a
// temp ID from the create phase are rewritten to the backend identifier;
// anything else passes through as a pre-existing backend identifier.
// Returns true if StopOnError halted processing.
func (o *Orchestrator) runPhase(ctx context.Context, kind types.OpKind, ops []types.Operation, res *resolver.Resolver, opts types.ExecuteOptions, result *types.BatchExecutionResult) bool {
	for i, op := range ops {
		ir := types.ItemResult{
			Phase:     kind,
			ID:        op.ID,
			Type:      op.Type,
			Attempted: true,
		}

		realID := op.ID
		if res.Registered(op.ID) {
			rid, ok := res.RealID(op.ID)
			if !ok {
				_, errMsg := res.State(op.ID)
				msg := fmt.Sprintf("target %q was not created", op.ID)
				if errMsg != "" {
					msg = fmt.Sprintf("%s: %s", msg, errMsg)
				}
				ir.Success = false
				ir.Error = msg
				result.Items = append(result.Items, ir)
				if opts.StopOnError {
					o.markPhaseSkipped(kind, ops[i+1:], result, "not attempted (stopped after earlier failure)")
					return true
				}
				continue
			}
			realID = rid
			ir.TempID = op.ID
		}
		ir.RealID = realID

		err := o.issue(ctx, kind, op, realID)
		if err != nil {
			ir.Success = false
			ir.Error = err.Error()
			result.Items = append(result.Items, ir)
			if opts.StopOnError {
				o.markPhaseSkipped(kind, ops[i+1:], result, "not attempted (stopped after earlier failure)")
				return true
			}
			continue
		}

		ir.Success = true
		result.Items = append(result.Items, ir)
	}
	return false
}

func (o *Orchestrator) issue(ctx context.Context, kind types.OpKind, op types.Operation, realID string) error {
	switch kind {
	case types.OpUpdate:
		opFields, err := o.normalizeFields(op.Fields)
		if err != nil {
			return err
		}
		return o.backend.UpdateItem(ctx, op.Type, realID, opFields)
	case types.OpComplete:
		date, err := o.normalizeCompletionDate(op.CompletionDate)
		if err != nil {
			return err
		}
		return o.backend.CompleteItem(ctx, op.Type, realID, date)
	case types.OpDelete:
		return o.backend.DeleteItem(ctx, op.Type, realID)
	}
	panic(fmt.Sprintf("engine: unknown phase %q", kind))
}

func (o *Orchestrator) markPhaseSkipped(kind types.OpKind, ops []types.Operation, result *types.BatchExecutionResult, reason string) {
	for _, op := range ops {
		result.Items = append(result.Items, types.ItemResult{
			Phase:     kind,
			ID:        op.ID,
			Type:      op.Type,
			Attempted: false,
			Error:     reason,
		})
	}
}

func (o *Orchestrator) markSkipped(p phases, result *types.BatchExecutionResult, reason string) {
	o.markPhaseSkipped(types.OpUpdate, p.updates, result, reason)
	o.markPhaseSkipped(types.OpComplete, p.completes, result, reason)
	o.markPhaseSkipped(types.OpDelete, p.deletes, result, reason)
}

// rollback deletes every created item in reverse creation order so children
// are removed before their parents. Each deletion is best-effort: a failure
// is recorded and logged but does not abort the rest of the rollback. There
// is no recovery path if rollback itself partially fails; the caller must
// reconcile orphans out of band.
func (o *Orchestrator) rollback(ctx context.Context, res *resolver.Resolver, result *types.BatchExecutionResult) {
	created := res.CreatedIDs()
	for i := len(created) - 1; i >= 0; i-- {
		c := created[i]
		if err := o.backend.DeleteItem(ctx, c.Type, c.RealID); err != nil {
			msg := fmt.Sprintf("rollback of %s (%s) failed: %v", c.RealID, c.TempID, err)
			debug.Logf("engine: %s\n", msg)
			result.RollbackErrors = append(result.RollbackErrors, msg)
		}
	}
}

// finish computes aggregate counts and the temp-to-real mapping.
func (o *Orchestrator) finish(result *types.BatchExecutionResult, res *resolver.Resolver, opts types.ExecuteOptions) {
	if result.RolledBack {
		// All creations were undone; nothing counts as created and the
		// mapping would point at deleted items.
		result.CreatedCount = 0
	} else {
		result.CreatedCount = res.CreatedCount()
		if opts.ReturnMapping {
			result.Mapping = res.Mappings()
		}
	}
	for _, ir := range result.Items {
		if ir.Attempted && !ir.Success {
			result.FailedCount++
		}
	}
}

// announce emits the post-commit mutation event naming touched identifiers.
// Nothing is emitted for rolled-back batches: their net effect is zero.
func (o *Orchestrator) announce(ctx context.Context, result *types.BatchExecutionResult) {
	if o.bus == nil || result.RolledBack {
		return
	}
	var touched []eventbus.TouchedItem
	for _, ir := range result.Items {
		if !ir.Success || ir.RealID == "" {
			continue
		}
		touched = append(touched, eventbus.TouchedItem{
			RealID: ir.RealID,
			Type:   string(ir.Type),
			Action: string(ir.Phase),
		})
	}
	if len(touched) == 0 {
		return
	}
	o.bus.Dispatch(ctx, &eventbus.Event{
		Type:      eventbus.EventBatchCommitted,
		Timestamp: time.Now(),
		Touched:   touched,
	})
}

func (o *Orchestrator) normalizeFields(f map[string]any) (map[string]any, error) {
	if o.normalizer == nil {
		return f, nil
	}
	return o.normalizer.Normalize(f)
}

func (o *Orchestrator) normalizeCompletionDate(date string) (string, error) {
	if o.normalizer == nil || date == "" {
		return date, nil
	}
	t, err := o.normalizer.ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.Format(time.RFC3339), nil
}
