package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwright/taskwright/internal/types"
)

func item(tempID, parent string) *types.BatchItem {
	return &types.BatchItem{TempID: tempID, Type: types.ItemTask, ParentTempID: parent}
}

func tempIDs(items []*types.BatchItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.TempID
	}
	return out
}

func TestComputeOrderParentsPrecedeChildren(t *testing.T) {
	// Children listed before their parents in the input.
	items := []*types.BatchItem{
		item("grandchild", "child"),
		item("child", "root"),
		item("root", ""),
	}

	ordered, stats, err := ComputeOrder(items)
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "child", "grandchild"}, tempIDs(ordered))
	assert.Equal(t, Stats{Nodes: 3, Roots: 1, MaxDepth: 2}, stats)
}

func TestComputeOrderPreservesInputOrderForTies(t *testing.T) {
	items := []*types.BatchItem{
		item("b", ""),
		item("a", ""),
		item("b1", "b"),
		item("a1", "a"),
	}

	ordered, stats, err := ComputeOrder(items)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "b1", "a1"}, tempIDs(ordered))
	assert.Equal(t, 2, stats.Roots)
	assert.Equal(t, 1, stats.MaxDepth)
}

func TestComputeOrderDeterministic(t *testing.T) {
	items := []*types.BatchItem{
		item("p", ""),
		item("c3", "p"),
		item("c1", "p"),
		item("c2", "p"),
	}

	first, _, err := ComputeOrder(items)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, _, err := ComputeOrder(items)
		require.NoError(t, err)
		assert.Equal(t, tempIDs(first), tempIDs(again))
	}
}

func TestComputeOrderEmptyBatch(t *testing.T) {
	ordered, stats, err := ComputeOrder(nil)
	require.NoError(t, err)
	assert.Empty(t, ordered)
	assert.Equal(t, Stats{}, stats)
}

func TestComputeOrderDuplicateTempIDs(t *testing.T) {
	items := []*types.BatchItem{
		item("x", ""),
		item("y", ""),
		item("x", ""),
		item("y", ""),
	}

	_, _, err := ComputeOrder(items)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateTempID))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"x", "y"}, verr.Handles)
}

func TestComputeOrderDanglingParent(t *testing.T) {
	items := []*types.BatchItem{
		item("a", "nowhere"),
	}

	_, _, err := ComputeOrder(items)
	assert.True(t, errors.Is(err, ErrDanglingParentReference))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"nowhere"}, verr.Handles)
}

func TestComputeOrderSelfReferenceCycle(t *testing.T) {
	items := []*types.BatchItem{
		item("loop", "loop"),
	}

	_, _, err := ComputeOrder(items)
	assert.True(t, errors.Is(err, ErrCyclicDependency))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"loop"}, verr.Handles)
}

func TestComputeOrderTwoNodeCycle(t *testing.T) {
	items := []*types.BatchItem{
		item("a", "b"),
		item("b", "a"),
		item("c", ""),
	}

	_, _, err := ComputeOrder(items)
	assert.True(t, errors.Is(err, ErrCyclicDependency))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []string{"a", "b"}, verr.Handles)
}

func TestComputeOrderCycleReachedThroughChain(t *testing.T) {
	// d hangs off a cycle; validation must still find the cycle.
	items := []*types.BatchItem{
		item("d", "a"),
		item("a", "b"),
		item("b", "a"),
	}

	_, _, err := ComputeOrder(items)
	assert.True(t, errors.Is(err, ErrCyclicDependency))
}

func TestComputeOrderMixedParentKinds(t *testing.T) {
	// ParentID (pre-existing backend container) is not a graph edge.
	items := []*types.BatchItem{
		{TempID: "a", Type: types.ItemProject, ParentID: "XK29dd"},
		item("b", "a"),
	}

	ordered, stats, err := ComputeOrder(items)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tempIDs(ordered))
	assert.Equal(t, 1, stats.Roots)
}

func TestComputeOrderDeepChain(t *testing.T) {
	items := []*types.BatchItem{
		item("e", "d"),
		item("d", "c"),
		item("c", "b"),
		item("b", "a"),
		item("a", ""),
	}

	ordered, stats, err := ComputeOrder(items)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, tempIDs(ordered))
	assert.Equal(t, 4, stats.MaxDepth)
}
