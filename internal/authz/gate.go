package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/openbiolabs/noderepo/internal/models"
	apperrors "github.com/openbiolabs/noderepo/pkg/errors"
	"github.com/openbiolabs/noderepo/pkg/metrics"
)

// Gate is the authorization decision function consulted by every repository
// read, write and delete. It is a pure read over the access-control index.
type Gate struct {
	db    *gorm.DB
	index *Index
}

// NewGate constructs an authorization gate over the given index.
func NewGate(db *gorm.DB, index *Index) (*Gate, error) {
	if db == nil {
		return nil, errors.New("authorization gate: db is required")
	}
	if index == nil {
		return nil, errors.New("authorization gate: access index is required")
	}
	return &Gate{db: db, index: index}, nil
}

// WithTx returns a gate bound to the given transaction handle.
func (g *Gate) WithTx(tx *gorm.DB) *Gate {
	return &Gate{db: tx, index: g.index.WithTx(tx)}
}

// CanAccess reports whether the user may perform the given access on the
// resource. Anonymous callers are evaluated against the public group's grants
// only; authenticated callers resolve their memberships plus the public group.
// An unknown user id is an error, never a silent deny.
func (g *Gate) CanAccess(ctx context.Context, userID, resourceType, resourceID string, accessType models.AccessType) (bool, error) {
	ctx = ensureContext(ctx)

	groupIDs, err := g.resolveGroupIDs(ctx, userID)
	if err != nil {
		metrics.AccessChecks.WithLabelValues(string(accessType), "error").Inc()
		return false, err
	}

	var grants []models.ResourceAccess
	if err := g.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ? AND group_id IN ?", resourceType, resourceID, groupIDs).
		Find(&grants).Error; err != nil {
		metrics.AccessChecks.WithLabelValues(string(accessType), "error").Inc()
		return false, apperrors.Datastore(err)
	}

	for idx := range grants {
		ok, err := grants[idx].Holds(accessType)
		if err != nil {
			metrics.AccessChecks.WithLabelValues(string(accessType), "error").Inc()
			return false, apperrors.Datastore(err)
		}
		if ok {
			metrics.AccessChecks.WithLabelValues(string(accessType), "allow").Inc()
			return true, nil
		}
	}

	metrics.AccessChecks.WithLabelValues(string(accessType), "deny").Inc()
	return false, nil
}

// IsAdmin reports whether the user carries the administrator flag; admins
// bypass access-set filtering in bulk list and count operations.
func (g *Gate) IsAdmin(ctx context.Context, userID string) (bool, error) {
	ctx = ensureContext(ctx)

	if IsAnonymous(userID) {
		return false, nil
	}

	var user models.User
	if err := g.db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(userID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperrors.ErrNotFound.WithMessage(fmt.Sprintf("user %q does not exist", userID))
		}
		return false, apperrors.Datastore(err)
	}
	return user.IsAdmin, nil
}

// AccessibleResources returns the ids of every resource of the given type the
// user can reach with the given access type. List operations intersect fetched
// records with this set before applying their pagination window.
func (g *Gate) AccessibleResources(ctx context.Context, userID, resourceType string, accessType models.AccessType) (map[string]struct{}, error) {
	ctx = ensureContext(ctx)

	groupIDs, err := g.resolveGroupIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	var grants []models.ResourceAccess
	if err := g.db.WithContext(ctx).
		Where("resource_type = ? AND group_id IN ?", resourceType, groupIDs).
		Find(&grants).Error; err != nil {
		return nil, apperrors.Datastore(err)
	}

	ids := make(map[string]struct{}, len(grants))
	for idx := range grants {
		ok, err := grants[idx].Holds(accessType)
		if err != nil {
			return nil, apperrors.Datastore(err)
		}
		if ok {
			ids[grants[idx].ResourceID] = struct{}{}
		}
	}
	return ids, nil
}

// resolveGroupIDs collects the groups whose grants apply to the caller: the
// public group always, plus every group the authenticated user belongs to.
func (g *Gate) resolveGroupIDs(ctx context.Context, userID string) ([]string, error) {
	public, err := g.index.PublicGroup(ctx)
	if err != nil {
		return nil, err
	}
	groupIDs := []string{public.ID}

	if IsAnonymous(userID) {
		return groupIDs, nil
	}

	userID = strings.TrimSpace(userID)
	var user models.User
	if err := g.db.WithContext(ctx).
		Preload("Groups").
		First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage(fmt.Sprintf("user %q does not exist", userID))
		}
		return nil, apperrors.Datastore(err)
	}

	for idx := range user.Groups {
		groupIDs = append(groupIDs, user.Groups[idx].ID)
	}
	return groupIDs, nil
}
