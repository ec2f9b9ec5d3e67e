// Package graph builds and orders the dependency graph formed by a batch's
// parent references. Children must be created after their parents, so the
// create phase consumes the topological order computed here.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/taskwright/taskwright/internal/types"
)

// Sentinel errors for the three validation failure classes. Callers match
// with errors.Is; the wrapping ValidationError carries the offending handles.
var (
	ErrDuplicateTempID         = errors.New("duplicate temp id")
	ErrDanglingParentReference = errors.New("dangling parent reference")
	ErrCyclicDependency        = errors.New("cyclic dependency")
)

// ValidationError reports a structural problem with a batch's parent graph.
// It is raised before any backend call; the batch is rejected wholesale.
type ValidationError struct {
	Kind    error    // one of the sentinel errors above
	Handles []string // the temp IDs involved
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, strings.Join(e.Handles, ", "))
}

func (e *ValidationError) Unwrap() error { return e.Kind }

// Stats describes the shape of a validated graph, for diagnostics only.
type Stats struct {
	Nodes int `json:"nodes"`
	Roots int `json:"roots"`

	// MaxDepth is the longest parent chain from any root (a root is depth 0).
	MaxDepth int `json:"max_depth"`
}

// ComputeOrder validates the batch's parent references and returns the items
// in an order where every item appears after its parent. Among simultaneously
// eligible items, original input order is preserved, so the result is
// deterministic for a given input.
//
// Pure function of its input: no hidden state, no backend calls.
func ComputeOrder(items []*types.BatchItem) ([]*types.BatchItem, Stats, error) {
	index := make(map[string]int, len(items))

	var dups []string
	seenDup := make(map[string]bool)
	for i, item := range items {
		if _, ok := index[item.TempID]; ok {
			if !seenDup[item.TempID] {
				dups = append(dups, item.TempID)
				seenDup[item.TempID] = true
			}
			continue
		}
		index[item.TempID] = i
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return nil, Stats{}, &ValidationError{Kind: ErrDuplicateTempID, Handles: dups}
	}

	var dangling []string
	for _, item := range items {
		if item.ParentTempID == "" {
			continue
		}
		if _, ok := index[item.ParentTempID]; !ok {
			dangling = append(dangling, item.ParentTempID)
		}
	}
	if len(dangling) > 0 {
		sort.Strings(dangling)
		return nil, Stats{}, &ValidationError{Kind: ErrDanglingParentReference, Handles: dangling}
	}

	if cycle := findCycle(items, index); len(cycle) > 0 {
		return nil, Stats{}, &ValidationError{Kind: ErrCyclicDependency, Handles: cycle}
	}

	ordered := orderItems(items, index)
	return ordered, computeStats(items, index), nil
}

// Three-color DFS markers.
const (
	colorWhite = iota // unvisited
	colorGray         // in progress
	colorBlack        // done
)

// findCycle walks parent edges depth-first with three-color marking and
// returns the members of the first cycle found (in reference order), or nil.
// A self-reference is a cycle of one.
func findCycle(items []*types.BatchItem, index map[string]int) []string {
	color := make([]int, len(items))

	var visit func(i int) []string
	visit = func(i int) []string {
		color[i] = colorGray
		if pid := items[i].ParentTempID; pid != "" {
			j := index[pid]
			switch color[j] {
			case colorGray:
				// Back-edge: walk the parent chain from j back to i to
				// recover the cycle's members.
				cycle := []string{items[j].TempID}
				for k := index[items[j].ParentTempID]; k != j; k = index[items[k].ParentTempID] {
					cycle = append(cycle, items[k].TempID)
				}
				return cycle
			case colorWhite:
				if cycle := visit(j); cycle != nil {
					return cycle
				}
			}
		}
		color[i] = colorBlack
		return nil
	}

	for i := range items {
		if color[i] == colorWhite {
			if cycle := visit(i); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// orderItems emits items whose parent has already been emitted, scanning in
// input order until all items are placed. The input is acyclic at this point,
// so every pass emits at least one item. The scan keeps ties in input order
// (stable tie-break).
func orderItems(items []*types.BatchItem, index map[string]int) []*types.BatchItem {
	emitted := make([]bool, len(items))
	ordered := make([]*types.BatchItem, 0, len(items))

	for len(ordered) < len(items) {
		for i, item := range items {
			if emitted[i] {
				continue
			}
			if item.ParentTempID != "" && !emitted[index[item.ParentTempID]] {
				continue
			}
			emitted[i] = true
			ordered = append(ordered, item)
		}
	}
	return ordered
}

func computeStats(items []*types.BatchItem, index map[string]int) Stats {
	stats := Stats{Nodes: len(items)}

	depth := make([]int, len(items))
	for i := range depth {
		depth[i] = -1
	}
	var depthOf func(i int) int
	depthOf = func(i int) int {
		if depth[i] >= 0 {
			return depth[i]
		}
		d := 0
		if pid := items[i].ParentTempID; pid != "" {
			d = depthOf(index[pid]) + 1
		}
		depth[i] = d
		return d
	}

	for i := range items {
		d := depthOf(i)
		if d == 0 {
			stats.Roots++
		}
		if d > stats.MaxDepth {
			stats.MaxDepth = d
		}
	}
	return stats
}
