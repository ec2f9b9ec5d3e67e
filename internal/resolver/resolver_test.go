package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwright/taskwright/internal/types"
)

func TestLifecycle(t *testing.T) {
	r := New()
	r.Register("p1", types.ItemProject)
	r.Register("t1", types.ItemTask)
	r.Register("t2", types.ItemTask)

	assert.True(t, r.Registered("p1"))
	assert.False(t, r.Registered("unknown"))
	assert.Equal(t, 3, r.PendingCount())

	r.Resolve("p1", "XK29dd")
	r.Resolve("t1", "B7aQz1")
	r.MarkFailed("t2", "backend said no")

	rid, ok := r.RealID("p1")
	assert.True(t, ok)
	assert.Equal(t, "XK29dd", rid)

	_, ok = r.RealID("t2")
	assert.False(t, ok)

	state, errMsg := r.State("t2")
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, "backend said no", errMsg)

	assert.Equal(t, 2, r.CreatedCount())
	assert.Equal(t, 1, r.FailedCount())
	assert.Equal(t, 0, r.PendingCount())
}

func TestCreatedIDsRegistrationOrder(t *testing.T) {
	r := New()
	for _, id := range []string{"a", "b", "c", "d"} {
		r.Register(id, types.ItemTask)
	}
	// Resolve out of order; CreatedIDs must still follow registration order.
	r.Resolve("c", "id-c")
	r.Resolve("a", "id-a")
	r.MarkFailed("b", "boom")
	r.Resolve("d", "id-d")

	created := r.CreatedIDs()
	require.Len(t, created, 3)
	assert.Equal(t, "a", created[0].TempID)
	assert.Equal(t, "c", created[1].TempID)
	assert.Equal(t, "d", created[2].TempID)
}

func TestMappingsCreatedOnly(t *testing.T) {
	r := New()
	r.Register("a", types.ItemTask)
	r.Register("b", types.ItemTask)
	r.Register("c", types.ItemTask)
	r.Resolve("a", "id-a")
	r.MarkFailed("b", "boom")

	assert.Equal(t, map[string]string{"a": "id-a"}, r.Mappings())
}

func TestPendingParentNotResolvable(t *testing.T) {
	r := New()
	r.Register("parent", types.ItemProject)
	r.Register("child", types.ItemTask)

	_, ok := r.RealID("parent")
	assert.False(t, ok)

	state, _ := r.State("parent")
	assert.Equal(t, StatePending, state)
}

func TestMisusePanics(t *testing.T) {
	assert.Panics(t, func() {
		r := New()
		r.Register("a", types.ItemTask)
		r.Register("a", types.ItemTask)
	}, "double registration")

	assert.Panics(t, func() {
		r := New()
		r.Resolve("ghost", "id")
	}, "resolving unregistered handle")

	assert.Panics(t, func() {
		r := New()
		r.RealID("ghost")
	}, "querying unregistered handle")

	assert.Panics(t, func() {
		r := New()
		r.Register("a", types.ItemTask)
		r.Resolve("a", "id-1")
		r.Resolve("a", "id-2")
	}, "resolving twice")

	assert.Panics(t, func() {
		r := New()
		r.Register("a", types.ItemTask)
		r.Resolve("a", "id-1")
		r.MarkFailed("a", "boom")
	}, "failing a created entry")
}
