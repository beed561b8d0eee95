package entity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/openbiolabs/noderepo/pkg/errors"
)

func TestAggregateEntityUpdateAssignsIDsAndParent(t *testing.T) {
	f := newManagerFixture(t)
	f.createUser(t, "alice")

	parentID, err := f.manager.CreateEntity(context.Background(), "alice", &Entity{Name: "study", NodeType: "project"})
	require.NoError(t, err)

	other := "somewhere-else"
	children := []*Entity{
		{Name: "cohort-a", NodeType: "dataset"},
		{Name: "cohort-b", NodeType: "dataset", ParentID: &other},
	}
	ids, err := f.manager.AggregateEntityUpdate(context.Background(), "alice", parentID, children)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.NotEmpty(t, ids[0])
	require.NotEmpty(t, ids[1])
	require.NotEqual(t, ids[0], ids[1])

	for i, id := range ids {
		child, err := f.manager.GetEntity(context.Background(), "alice", id)
		require.NoError(t, err)
		require.Equal(t, children[i].Name, child.Name)
		require.NotNil(t, child.ParentID)
		require.Equal(t, parentID, *child.ParentID)
	}
}

func TestAggregateEntityUpdateUpdatesExistingChildren(t *testing.T) {
	f := newManagerFixture(t)
	f.createUser(t, "alice")

	parentID, err := f.manager.CreateEntity(context.Background(), "alice", &Entity{Name: "study", NodeType: "project"})
	require.NoError(t, err)

	ids, err := f.manager.AggregateEntityUpdate(context.Background(), "alice", parentID, []*Entity{
		{Name: "before", NodeType: "dataset"},
	})
	require.NoError(t, err)

	child, err := f.manager.GetEntity(context.Background(), "alice", ids[0])
	require.NoError(t, err)
	child.Name = "after"

	again, err := f.manager.AggregateEntityUpdate(context.Background(), "alice", parentID, []*Entity{child})
	require.NoError(t, err)
	require.Equal(t, ids, again)

	got, err := f.manager.GetEntity(context.Background(), "alice", ids[0])
	require.NoError(t, err)
	require.Equal(t, "after", got.Name)
}

func TestAggregateEntityUpdateUnknownParentIsNotFound(t *testing.T) {
	f := newManagerFixture(t)
	f.createUser(t, "alice")

	_, err := f.manager.AggregateEntityUpdate(context.Background(), "alice", "no-such-parent", []*Entity{
		{Name: "orphan", NodeType: "dataset"},
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAggregateEntityUpdateRequiresChangeOnParent(t *testing.T) {
	f := newManagerFixture(t)
	f.createUser(t, "alice")
	f.createUser(t, "mallory")

	parentID, err := f.manager.CreateEntity(context.Background(), "alice", &Entity{Name: "study", NodeType: "project"})
	require.NoError(t, err)

	_, err = f.manager.AggregateEntityUpdate(context.Background(), "mallory", parentID, []*Entity{
		{Name: "intruder", NodeType: "dataset"},
	})
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestGetEntityChildrenFiltersByType(t *testing.T) {
	f := newManagerFixture(t)
	f.createUser(t, "alice")

	parentID, err := f.manager.CreateEntity(context.Background(), "alice", &Entity{Name: "study", NodeType: "project"})
	require.NoError(t, err)

	_, err = f.manager.AggregateEntityUpdate(context.Background(), "alice", parentID, []*Entity{
		{Name: "d1", NodeType: "dataset"},
		{Name: "d2", NodeType: "dataset"},
		{Name: "l1", NodeType: "layer"},
	})
	require.NoError(t, err)

	datasets, err := f.manager.GetEntityChildren(context.Background(), "alice", parentID, "dataset")
	require.NoError(t, err)
	require.Len(t, datasets, 2)
	for _, d := range datasets {
		require.Equal(t, "dataset", d.NodeType)
	}

	all, err := f.manager.GetEntityChildren(context.Background(), "alice", parentID, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestGetEntityChildrenRequiresReadOnParent(t *testing.T) {
	f := newManagerFixture(t)
	f.createUser(t, "alice")
	f.createUser(t, "mallory")

	parentID, err := f.manager.CreateEntity(context.Background(), "alice", &Entity{Name: "study", NodeType: "project"})
	require.NoError(t, err)

	_, err = f.manager.GetEntityChildren(context.Background(), "mallory", parentID, "")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
