package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAssignsTempIDs(t *testing.T) {
	req := &BatchRequest{Operations: []Operation{
		{Kind: OpCreate, Item: &BatchItem{Type: ItemProject}},
		{Kind: OpCreate, Item: &BatchItem{Type: ItemTask, TempID: "mine"}},
		{Kind: OpCreate, Item: &BatchItem{Type: ItemTask}},
	}}
	req.Normalize()

	assert.Equal(t, "item-1", req.Operations[0].Item.TempID)
	assert.Equal(t, "mine", req.Operations[1].Item.TempID)
	assert.Equal(t, "item-2", req.Operations[2].Item.TempID)
}

func TestNormalizeSkipsTakenHandles(t *testing.T) {
	req := &BatchRequest{Operations: []Operation{
		{Kind: OpCreate, Item: &BatchItem{Type: ItemTask, TempID: "item-1"}},
		{Kind: OpCreate, Item: &BatchItem{Type: ItemTask}},
	}}
	req.Normalize()

	assert.Equal(t, "item-2", req.Operations[1].Item.TempID)
}

func TestValidate(t *testing.T) {
	valid := &BatchRequest{Operations: []Operation{
		{Kind: OpCreate, Item: &BatchItem{TempID: "p", Type: ItemProject}},
		{Kind: OpUpdate, Type: ItemTask, ID: "t1", Fields: map[string]any{"flagged": true}},
		{Kind: OpComplete, Type: ItemTask, ID: "t2"},
		{Kind: OpDelete, Type: ItemProject, ID: "p2"},
	}}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name string
		op   Operation
		want string
	}{
		{"create without item", Operation{Kind: OpCreate}, "create without item"},
		{"bad item type", Operation{Kind: OpCreate, Item: &BatchItem{TempID: "x", Type: "folder"}}, "invalid item type"},
		{"both parents", Operation{Kind: OpCreate, Item: &BatchItem{TempID: "x", Type: ItemTask, ParentTempID: "p", ParentID: "XK29dd"}}, "both parent and parent_id"},
		{"update without id", Operation{Kind: OpUpdate, Type: ItemTask, Fields: map[string]any{"a": 1}}, "without id"},
		{"update without fields", Operation{Kind: OpUpdate, Type: ItemTask, ID: "t1"}, "no fields"},
		{"bad target type", Operation{Kind: OpDelete, Type: "folder", ID: "t1"}, "invalid item type"},
		{"unknown kind", Operation{Kind: "merge", ID: "t1"}, "unknown kind"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := &BatchRequest{Operations: []Operation{tc.op}}
			err := req.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestDefaultExecuteOptions(t *testing.T) {
	opts := DefaultExecuteOptions()
	assert.True(t, opts.CreateSequentially)
	assert.True(t, opts.ReturnMapping)
	assert.False(t, opts.AtomicOperation)
	assert.False(t, opts.StopOnError)
}
