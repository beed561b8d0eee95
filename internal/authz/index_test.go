package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openbiolabs/noderepo/internal/database/testutil"
	"github.com/openbiolabs/noderepo/internal/models"
	apperrors "github.com/openbiolabs/noderepo/pkg/errors"
)

func newTestIndex(t *testing.T) (*Index, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	index, err := NewIndex(db)
	require.NoError(t, err)
	return index, db
}

func createUser(t *testing.T, db *gorm.DB, id string) models.User {
	t.Helper()

	user := models.User{
		ID:       id,
		Username: id,
		Email:    id + "@example.com",
		Password: "secret",
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func TestPublicGroupCreatedOnce(t *testing.T) {
	index, db := newTestIndex(t)

	first, err := index.PublicGroup(context.Background())
	require.NoError(t, err)
	require.True(t, first.IsPublic)

	second, err := index.PublicGroup(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.UserGroup{}).Where("is_public = ?", true).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestGetOrCreateIndividualGroupIsIdempotent(t *testing.T) {
	index, db := newTestIndex(t)
	createUser(t, db, "alice")

	first, err := index.GetOrCreateIndividualGroup(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, first.IsIndividual)

	second, err := index.GetOrCreateIndividualGroup(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.UserGroup{}).Where("is_individual = ?", true).Count(&count).Error)
	require.EqualValues(t, 1, count)

	var group models.UserGroup
	require.NoError(t, db.Preload("Users").First(&group, "id = ?", first.ID).Error)
	require.Len(t, group.Users, 1)
	require.Equal(t, "alice", group.Users[0].ID)
}

func TestGetOrCreateIndividualGroupUnknownUser(t *testing.T) {
	index, _ := newTestIndex(t)

	_, err := index.GetOrCreateIndividualGroup(context.Background(), "ghost")
	require.Error(t, err)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAddResourceToGroupReplacesGrant(t *testing.T) {
	index, db := newTestIndex(t)
	createUser(t, db, "bob")

	group, err := index.GetOrCreateIndividualGroup(context.Background(), "bob")
	require.NoError(t, err)

	require.NoError(t, index.AddResourceToGroup(context.Background(), group.ID, "node", "n1",
		[]models.AccessType{models.AccessRead}))
	require.NoError(t, index.AddResourceToGroup(context.Background(), group.ID, "node", "n1",
		[]models.AccessType{models.AccessRead, models.AccessChange}))

	var grants []models.ResourceAccess
	require.NoError(t, db.Where("resource_type = ? AND resource_id = ?", "node", "n1").Find(&grants).Error)
	require.Len(t, grants, 1)

	ok, err := grants[0].Holds(models.AccessChange)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRemoveResourceFromAllGroups(t *testing.T) {
	index, db := newTestIndex(t)
	createUser(t, db, "carol")

	group, err := index.GetOrCreateIndividualGroup(context.Background(), "carol")
	require.NoError(t, err)
	public, err := index.PublicGroup(context.Background())
	require.NoError(t, err)

	for _, gid := range []string{group.ID, public.ID} {
		require.NoError(t, index.AddResourceToGroup(context.Background(), gid, "node", "n2",
			[]models.AccessType{models.AccessRead}))
	}

	require.NoError(t, index.RemoveResourceFromAllGroups(context.Background(), "node", "n2"))

	var count int64
	require.NoError(t, db.Model(&models.ResourceAccess{}).Where("resource_id = ?", "n2").Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestAccessGroupsFiltersByAccessType(t *testing.T) {
	index, db := newTestIndex(t)
	createUser(t, db, "dave")

	group, err := index.GetOrCreateIndividualGroup(context.Background(), "dave")
	require.NoError(t, err)
	public, err := index.PublicGroup(context.Background())
	require.NoError(t, err)

	require.NoError(t, index.AddResourceToGroup(context.Background(), group.ID, "node", "n3",
		[]models.AccessType{models.AccessRead, models.AccessChange}))
	require.NoError(t, index.AddResourceToGroup(context.Background(), public.ID, "node", "n3",
		[]models.AccessType{models.AccessRead}))

	readers, err := index.AccessGroups(context.Background(), "node", "n3", models.AccessRead)
	require.NoError(t, err)
	require.Len(t, readers, 2)

	changers, err := index.AccessGroups(context.Background(), "node", "n3", models.AccessChange)
	require.NoError(t, err)
	require.Len(t, changers, 1)
	require.Equal(t, group.ID, changers[0].ID)
}
