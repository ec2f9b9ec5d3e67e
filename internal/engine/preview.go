package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/taskwright/taskwright/internal/graph"
	"github.com/taskwright/taskwright/internal/types"
)

// Preview validates a batch and describes what executing it would do, without
// issuing a single backend call. Callers use it to inspect a batch before
// committing.
func Preview(req *types.BatchRequest) (*types.BatchPreview, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := partition(req.Operations)

	ordered, stats, err := graph.ComputeOrder(p.creates)
	if err != nil {
		return nil, err
	}
	if !req.Options.CreateSequentially {
		ordered = p.creates
	}

	preview := &types.BatchPreview{
		MaxDepth:  stats.MaxDepth,
		Creates:   len(p.creates),
		Updates:   len(p.updates),
		Completes: len(p.completes),
		Deletes:   len(p.deletes),
	}

	tempIDs := make(map[string]bool, len(ordered))
	for _, item := range ordered {
		tempIDs[item.TempID] = true
		preview.CreationOrder = append(preview.CreationOrder, item.TempID)
		preview.Effects = append(preview.Effects, describeCreate(item))
	}
	for _, op := range p.updates {
		preview.Effects = append(preview.Effects, describeOp("update", op, tempIDs))
	}
	for _, op := range p.completes {
		preview.Effects = append(preview.Effects, describeOp("complete", op, tempIDs))
	}
	for _, op := range p.deletes {
		preview.Effects = append(preview.Effects, describeOp("delete", op, tempIDs))
	}

	return preview, nil
}

func describeCreate(item *types.BatchItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "create %s %q", item.Type, item.TempID)
	if name, ok := item.Fields["name"].(string); ok && name != "" {
		fmt.Fprintf(&b, " (%s)", name)
	}
	switch {
	case item.ParentTempID != "":
		fmt.Fprintf(&b, " under %q", item.ParentTempID)
	case item.ParentID != "":
		fmt.Fprintf(&b, " under existing %s", item.ParentID)
	}
	return b.String()
}

func describeOp(verb string, op types.Operation, tempIDs map[string]bool) string {
	target := op.ID
	if tempIDs[op.ID] {
		target = fmt.Sprintf("%q (created in this batch)", op.ID)
	}
	switch op.Kind {
	case types.OpUpdate:
		keys := make([]string, 0, len(op.Fields))
		for k := range op.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("%s %s %s: set %s", verb, op.Type, target, strings.Join(keys, ", "))
	case types.OpComplete:
		if op.CompletionDate != "" {
			return fmt.Sprintf("%s %s %s as of %s", verb, op.Type, target, op.CompletionDate)
		}
	}
	return fmt.Sprintf("%s %s %s", verb, op.Type, target)
}
