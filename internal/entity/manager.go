package entity

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/openbiolabs/noderepo/internal/authz"
	"github.com/openbiolabs/noderepo/internal/models"
	"github.com/openbiolabs/noderepo/internal/repo"
	apperrors "github.com/openbiolabs/noderepo/pkg/errors"
	"github.com/openbiolabs/noderepo/pkg/logger"
	"github.com/openbiolabs/noderepo/pkg/metrics"
)

// Manager composes the node store and the annotation records into the entity
// abstraction: one logical object per node, created, read, updated and deleted
// together with its annotations.
type Manager struct {
	db    *gorm.DB
	store *repo.Store[*Entity, *models.Node]
	gate  *authz.Gate
	index *authz.Index
	log   *zap.Logger
}

// NewManager constructs an entity manager over the given database handle.
func NewManager(db *gorm.DB, gate *authz.Gate, index *authz.Index) (*Manager, error) {
	if db == nil {
		return nil, errors.New("entity manager: db is required")
	}
	if gate == nil {
		return nil, errors.New("entity manager: authorization gate is required")
	}
	if index == nil {
		return nil, errors.New("entity manager: access index is required")
	}

	store, err := repo.NewStore[*Entity, *models.Node](db, gate, index, nodeMapper{})
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:    db,
		store: store,
		gate:  gate,
		index: index,
		log:   logger.WithModule("entity"),
	}, nil
}

// Store exposes the underlying node store for callers needing the generic
// CRUD/paging surface (count, ranged listing, access introspection).
func (m *Manager) Store() *repo.Store[*Entity, *models.Node] {
	return m.store
}

// CreateEntity persists a new entity: a node built from the shallow fields and
// an annotation record holding the rest. Any caller-supplied id is discarded.
func (m *Manager) CreateEntity(ctx context.Context, userID string, e *Entity) (string, error) {
	if e == nil {
		return "", apperrors.NewInvalidModel("entity is required")
	}
	e.SetID("")

	var id string
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		id, err = m.createEntityTx(ctx, tx, userID, e)
		return err
	})
	if err != nil {
		return "", apperrors.Datastore(err)
	}

	m.log.Debug("entity created", zap.String("id", id), zap.String("node_type", e.NodeType))
	return id, nil
}

func (m *Manager) createEntityTx(ctx context.Context, tx *gorm.DB, userID string, e *Entity) (string, error) {
	id, err := m.store.WithTx(tx).Create(ctx, userID, e)
	if err != nil {
		return "", err
	}

	// A conflict immediately after creation is impossible unless internal
	// state is corrupt, so failures here surface as Datastore errors.
	annos := models.NodeAnnotations{
		NodeID: id,
		Values: datatypes.JSONMap(e.Annotations),
	}
	annos.Etag = e.Etag
	if err := tx.Create(&annos).Error; err != nil {
		return "", apperrors.ErrDatastore.WithInternal(err)
	}
	return id, nil
}

// GetEntity returns the merged entity: annotation values first, then the
// node's shallow fields overlaid.
func (m *Manager) GetEntity(ctx context.Context, userID, entityID string) (*Entity, error) {
	e, _, err := m.GetEntityWithAnnotations(ctx, userID, entityID)
	return e, err
}

// GetEntityWithAnnotations returns both the merged entity and the raw
// annotation record.
func (m *Manager) GetEntityWithAnnotations(ctx context.Context, userID, entityID string) (*Entity, *Annotations, error) {
	if strings.TrimSpace(entityID) == "" {
		return nil, nil, apperrors.NewInvalidModel("entity id is required")
	}

	e, err := m.store.Get(ctx, userID, entityID)
	if err != nil {
		return nil, nil, err
	}

	annos, err := m.loadAnnotations(ctx, m.db, entityID)
	if err != nil {
		return nil, nil, err
	}

	e.Annotations = annos.Values
	return e, annos, nil
}

// UpdateEntity merges the entity's fields into the existing node and
// annotations and persists both in one transaction. A stale etag is a
// Conflict: lost updates are always detectable at this layer.
func (m *Manager) UpdateEntity(ctx context.Context, userID string, e *Entity) error {
	if e == nil {
		return apperrors.NewInvalidModel("entity is required")
	}
	if strings.TrimSpace(e.ID) == "" {
		return apperrors.NewInvalidModel("id is required")
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return m.updateEntityTx(ctx, tx, userID, e)
	})
	if err != nil {
		return apperrors.Datastore(err)
	}
	return nil
}

func (m *Manager) updateEntityTx(ctx context.Context, tx *gorm.DB, userID string, e *Entity) error {
	var node models.Node
	if err := tx.First(&node, "id = ?", e.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return apperrors.Datastore(err)
	}
	// Authorization first: a forbidden caller must not learn whether their
	// etag is current.
	ok, err := m.gate.WithTx(tx).CanAccess(ctx, userID, NodeResourceType, e.ID, models.AccessChange)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrUnauthorized
	}
	if node.Etag != e.Etag {
		return apperrors.ErrConflict
	}

	if err := m.store.WithTx(tx).Update(ctx, userID, e); err != nil {
		return err
	}

	// The node update regenerated the etag; propagate it so the annotation
	// record stays in sync with the node.
	annos, err := m.loadAnnotationRecord(tx, e.ID)
	if err != nil {
		return err
	}
	annos.Values = datatypes.JSONMap(e.Annotations)
	annos.Etag = e.Etag
	if err := tx.Save(annos).Error; err != nil {
		return apperrors.Datastore(err)
	}
	return nil
}

// DeleteEntity removes the node, its annotations and every grant referencing
// it in one transaction.
func (m *Manager) DeleteEntity(ctx context.Context, userID, entityID string) error {
	if strings.TrimSpace(entityID) == "" {
		return apperrors.NewInvalidModel("entity id is required")
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := m.store.WithTx(tx).Delete(ctx, userID, entityID); err != nil {
			return err
		}
		if err := tx.Where("node_id = ?", entityID).Delete(&models.NodeAnnotations{}).Error; err != nil {
			return apperrors.Datastore(err)
		}
		return nil
	})
	if err != nil {
		return apperrors.Datastore(err)
	}
	return nil
}

// GetAnnotations returns the annotation record for the entity after a READ check.
func (m *Manager) GetAnnotations(ctx context.Context, userID, entityID string) (*Annotations, error) {
	if strings.TrimSpace(entityID) == "" {
		return nil, apperrors.NewInvalidModel("entity id is required")
	}

	if _, err := m.store.Get(ctx, userID, entityID); err != nil {
		return nil, err
	}
	return m.loadAnnotations(ctx, m.db, entityID)
}

// UpdateAnnotations persists a new annotation map for the entity. The caller's
// etag must match the stored annotation etag; the node's etag is regenerated
// and propagated so both records stay in sync.
func (m *Manager) UpdateAnnotations(ctx context.Context, userID, entityID string, updated *Annotations) error {
	if updated == nil {
		return apperrors.NewInvalidModel("annotations are required")
	}
	if strings.TrimSpace(entityID) == "" {
		return apperrors.NewInvalidModel("entity id is required")
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var node models.Node
		if err := tx.First(&node, "id = ?", entityID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return apperrors.Datastore(err)
		}

		ok, err := m.gate.WithTx(tx).CanAccess(ctx, userID, NodeResourceType, entityID, models.AccessChange)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrUnauthorized
		}

		annos, err := m.loadAnnotationRecord(tx, entityID)
		if err != nil {
			return err
		}
		if annos.Etag != updated.Etag {
			return apperrors.ErrConflict
		}

		node.TouchEtag()
		if err := tx.Save(&node).Error; err != nil {
			return apperrors.Datastore(err)
		}

		annos.Values = datatypes.JSONMap(updated.Values)
		annos.Etag = node.Etag
		if err := tx.Save(annos).Error; err != nil {
			return apperrors.Datastore(err)
		}

		updated.Etag = annos.Etag
		return nil
	})
	if err != nil {
		return apperrors.Datastore(err)
	}
	return nil
}

// AggregateEntityUpdate creates or updates a batch of children under one
// parent. The parent is re-persisted FIRST to take its write lock before any
// child is touched: parent-before-children is the total lock order that keeps
// two concurrent aggregate updates from deadlocking. Children always get the
// given parent id, regardless of what the caller set on them. Returns the
// child ids in input order.
func (m *Manager) AggregateEntityUpdate(ctx context.Context, userID, parentID string, children []*Entity) ([]string, error) {
	if strings.TrimSpace(parentID) == "" {
		return nil, apperrors.NewInvalidModel("parent id is required")
	}

	ids := make([]string, 0, len(children))
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := m.store.WithTx(tx)

		parent, err := store.Get(ctx, userID, parentID)
		if err != nil {
			return err
		}
		// No-op field-wise update, performed purely to lock the parent.
		if err := store.Update(ctx, userID, parent); err != nil {
			return err
		}

		for _, child := range children {
			if child == nil {
				return apperrors.NewInvalidModel("child entity is required")
			}
			child.ParentID = &parentID

			var id string
			if strings.TrimSpace(child.ID) == "" {
				id, err = m.createEntityTx(ctx, tx, userID, child)
			} else {
				id = child.ID
				err = m.updateEntityTx(ctx, tx, userID, child)
			}
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Datastore(err)
	}

	metrics.AggregateUpdateChildren.Observe(float64(len(children)))
	return ids, nil
}

// GetEntityChildren returns the fully materialized children of the parent
// having the requested node type. An empty childType matches every child.
// Each child is fetched individually.
func (m *Manager) GetEntityChildren(ctx context.Context, userID, parentID, childType string) ([]*Entity, error) {
	if strings.TrimSpace(parentID) == "" {
		return nil, apperrors.NewInvalidModel("parent id is required")
	}
	if childType != "" && !KnownNodeType(childType) {
		return nil, apperrors.NewInvalidModel("unknown node type " + childType)
	}

	if _, err := m.store.Get(ctx, userID, parentID); err != nil {
		return nil, err
	}

	var nodes []models.Node
	if err := m.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("creation_date").
		Find(&nodes).Error; err != nil {
		return nil, apperrors.Datastore(err)
	}

	children := make([]*Entity, 0, len(nodes))
	for idx := range nodes {
		if childType != "" && nodes[idx].NodeType != childType {
			continue
		}
		child, err := m.GetEntity(ctx, userID, nodes[idx].ID)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func (m *Manager) loadAnnotations(ctx context.Context, db *gorm.DB, nodeID string) (*Annotations, error) {
	record, err := m.loadAnnotationRecord(db.WithContext(ctx), nodeID)
	if err != nil {
		return nil, err
	}
	return &Annotations{
		NodeID: record.NodeID,
		Etag:   record.Etag,
		Values: map[string]any(record.Values),
	}, nil
}

func (m *Manager) loadAnnotationRecord(db *gorm.DB, nodeID string) (*models.NodeAnnotations, error) {
	var record models.NodeAnnotations
	if err := db.First(&record, "node_id = ?", nodeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("annotations missing for node " + nodeID)
		}
		return nil, apperrors.Datastore(err)
	}
	return &record, nil
}
