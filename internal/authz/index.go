package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openbiolabs/noderepo/internal/models"
	apperrors "github.com/openbiolabs/noderepo/pkg/errors"
)

// AnonymousUserID is the sentinel identifying unauthenticated callers. An
// empty user id is treated the same way.
const AnonymousUserID = "anonymous"

// IsAnonymous reports whether the user id denotes an unauthenticated caller.
func IsAnonymous(userID string) bool {
	trimmed := strings.TrimSpace(userID)
	return trimmed == "" || trimmed == AnonymousUserID
}

// Index is the access-control index: it owns UserGroup and ResourceAccess
// records and resolves group membership.
type Index struct {
	db *gorm.DB
}

// NewIndex constructs an access-control index backed by the provided database.
func NewIndex(db *gorm.DB) (*Index, error) {
	if db == nil {
		return nil, errors.New("access index: db is required")
	}
	return &Index{db: db}, nil
}

// WithTx returns an index bound to the given transaction handle so grant
// maintenance can join a caller's transaction.
func (i *Index) WithTx(tx *gorm.DB) *Index {
	return &Index{db: tx}
}

// PublicGroup returns the well-known public group, creating it on first use.
// Creation is an atomic insert-if-absent, never check-then-act.
func (i *Index) PublicGroup(ctx context.Context) (*models.UserGroup, error) {
	ctx = ensureContext(ctx)

	seed := models.UserGroup{
		Name:     models.PublicGroupName,
		IsPublic: true,
	}
	if err := i.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("access index: ensure public group: %w", err)
	}

	var group models.UserGroup
	if err := i.db.WithContext(ctx).
		First(&group, "name = ?", models.PublicGroupName).Error; err != nil {
		return nil, fmt.Errorf("access index: load public group: %w", err)
	}
	return &group, nil
}

// GetOrCreateIndividualGroup returns the per-user group used as the default
// grant target, creating it exactly once on first use. The reserved group name
// carries the user id, so the unique index on name makes creation idempotent
// under concurrent first access.
func (i *Index) GetOrCreateIndividualGroup(ctx context.Context, userID string) (*models.UserGroup, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if IsAnonymous(userID) {
		return nil, apperrors.NewInvalidModel("individual groups require an authenticated user")
	}

	var user models.User
	if err := i.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage(fmt.Sprintf("user %q does not exist", userID))
		}
		return nil, apperrors.Datastore(err)
	}

	name := models.IndividualGroupName(userID)
	seed := models.UserGroup{
		Name:         name,
		IsIndividual: true,
	}
	if err := i.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return nil, apperrors.Datastore(err)
	}

	var group models.UserGroup
	if err := i.db.WithContext(ctx).First(&group, "name = ?", name).Error; err != nil {
		return nil, apperrors.Datastore(err)
	}

	if err := i.db.WithContext(ctx).
		Model(&group).
		Association("Users").
		Append(&user); err != nil {
		return nil, apperrors.Datastore(err)
	}

	return &group, nil
}

// AddUserToGroup records group membership for the user.
func (i *Index) AddUserToGroup(ctx context.Context, groupID, userID string) error {
	ctx = ensureContext(ctx)

	var group models.UserGroup
	if err := i.db.WithContext(ctx).First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return apperrors.Datastore(err)
	}

	var user models.User
	if err := i.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return apperrors.Datastore(err)
	}

	if err := i.db.WithContext(ctx).Model(&group).Association("Users").Append(&user); err != nil {
		return apperrors.Datastore(err)
	}
	return nil
}

// RemoveUserFromGroup clears group membership for the user.
func (i *Index) RemoveUserFromGroup(ctx context.Context, groupID, userID string) error {
	ctx = ensureContext(ctx)

	var group models.UserGroup
	if err := i.db.WithContext(ctx).First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return apperrors.Datastore(err)
	}

	if err := i.db.WithContext(ctx).
		Model(&group).
		Association("Users").
		Delete(&models.User{ID: userID}); err != nil {
		return apperrors.Datastore(err)
	}
	return nil
}

// AddResourceToGroup inserts or replaces the grant record for the
// (group, resource) pair with the given access-type set.
func (i *Index) AddResourceToGroup(ctx context.Context, groupID, resourceType, resourceID string, accessTypes []models.AccessType) error {
	ctx = ensureContext(ctx)

	if groupID == "" || resourceType == "" || resourceID == "" {
		return apperrors.NewInvalidModel("group, resource type and resource id are required")
	}
	if len(accessTypes) == 0 {
		return apperrors.NewInvalidModel("at least one access type is required")
	}

	grant := models.ResourceAccess{
		GroupID:      groupID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
	if err := grant.SetAccessTypes(accessTypes); err != nil {
		return apperrors.Datastore(err)
	}
	grant.TouchEtag()

	if err := i.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "resource_type"}, {Name: "resource_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_types", "etag"}),
	}).Create(&grant).Error; err != nil {
		return apperrors.Datastore(err)
	}
	return nil
}

// RemoveResourceFromAllGroups deletes every grant referencing the resource.
// This must run in the same transaction as the resource delete; a dangling
// grant could leak stale permissions to a future resource reusing the id.
func (i *Index) RemoveResourceFromAllGroups(ctx context.Context, resourceType, resourceID string) error {
	ctx = ensureContext(ctx)

	if err := i.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Delete(&models.ResourceAccess{}).Error; err != nil {
		return apperrors.Datastore(err)
	}
	return nil
}

// AccessGroups returns all groups holding the given access type on the resource.
func (i *Index) AccessGroups(ctx context.Context, resourceType, resourceID string, accessType models.AccessType) ([]models.UserGroup, error) {
	ctx = ensureContext(ctx)

	var grants []models.ResourceAccess
	if err := i.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Find(&grants).Error; err != nil {
		return nil, apperrors.Datastore(err)
	}

	groupIDs := make([]string, 0, len(grants))
	for idx := range grants {
		ok, err := grants[idx].Holds(accessType)
		if err != nil {
			return nil, apperrors.Datastore(err)
		}
		if ok {
			groupIDs = append(groupIDs, grants[idx].GroupID)
		}
	}
	if len(groupIDs) == 0 {
		return []models.UserGroup{}, nil
	}

	var groups []models.UserGroup
	if err := i.db.WithContext(ctx).
		Where("id IN ?", groupIDs).
		Find(&groups).Error; err != nil {
		return nil, apperrors.Datastore(err)
	}
	return groups, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
