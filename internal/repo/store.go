package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openbiolabs/noderepo/internal/authz"
	"github.com/openbiolabs/noderepo/internal/models"
	apperrors "github.com/openbiolabs/noderepo/pkg/errors"
	"github.com/openbiolabs/noderepo/pkg/metrics"
	pkgvalidator "github.com/openbiolabs/noderepo/pkg/validator"
)

// Store provides generic, access-controlled CRUD and paging over one resource
// kind. Every operation runs in exactly one transaction with rollback on any
// error path; no cross-call state is retained.
type Store[D DTO, R Record] struct {
	db     *gorm.DB
	gate   *authz.Gate
	index  *authz.Index
	mapper Mapper[D, R]
}

// NewStore constructs a store for the mapper's resource kind. The resource
// type must have been registered beforehand.
func NewStore[D DTO, R Record](db *gorm.DB, gate *authz.Gate, index *authz.Index, mapper Mapper[D, R]) (*Store[D, R], error) {
	if db == nil {
		return nil, errors.New("repository store: db is required")
	}
	if gate == nil {
		return nil, errors.New("repository store: authorization gate is required")
	}
	if index == nil {
		return nil, errors.New("repository store: access index is required")
	}
	if mapper == nil {
		return nil, errors.New("repository store: mapper is required")
	}
	if _, ok := TypeByName(mapper.ResourceType()); !ok {
		return nil, fmt.Errorf("repository store: resource type %q is not registered", mapper.ResourceType())
	}
	return &Store[D, R]{db: db, gate: gate, index: index, mapper: mapper}, nil
}

// WithTx returns a store bound to the given transaction handle so composed
// operations can persist several records atomically.
func (s *Store[D, R]) WithTx(tx *gorm.DB) *Store[D, R] {
	return &Store[D, R]{db: tx, gate: s.gate.WithTx(tx), index: s.index.WithTx(tx), mapper: s.mapper}
}

// ResourceType returns the store's registered resource-type tag.
func (s *Store[D, R]) ResourceType() string {
	return s.mapper.ResourceType()
}

// Create validates and persists a new resource, stamps its creation date and
// grants READ, CHANGE and SHARE to the creator's individual group, or to the
// public group for anonymous callers. Returns the assigned id; the DTO is
// refreshed in place with the generated id and etag.
func (s *Store[D, R]) Create(ctx context.Context, userID string, dto D) (string, error) {
	ctx = ensureContext(ctx)

	// Validation failures surface before any persistence is attempted.
	if err := pkgvalidator.ValidateStruct(dto); err != nil {
		s.observe("create", apperrors.ErrInvalidModel)
		return "", apperrors.NewInvalidModel(err.Error())
	}

	dto.SetCreationDate(time.Now().UTC())

	var id string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := s.mapper.NewRecord()
		if err := s.mapper.FromDTO(dto, record); err != nil {
			return err
		}
		record.Meta().ID = "" // ids are always server-assigned
		record.Meta().CreationDate = dto.GetCreationDate()

		group, err := s.creatorGroup(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := s.checkCreatable(group); err != nil {
			return err
		}

		if err := tx.Create(record).Error; err != nil {
			return apperrors.Datastore(err)
		}

		if err := s.index.WithTx(tx).AddResourceToGroup(ctx, group.ID,
			s.ResourceType(), record.Meta().ID, models.DefaultCreatorAccess()); err != nil {
			return err
		}

		id = record.Meta().ID
		return s.mapper.ToDTO(record, dto)
	})
	s.observe("create", err)
	if err != nil {
		return "", apperrors.Datastore(err)
	}
	return id, nil
}

// Get fetches a resource by id. The READ authorization check is performed only
// after a successful fetch: a missing object reports NotFound to every caller,
// and a present-but-forbidden object reports Unauthorized, never NotFound.
func (s *Store[D, R]) Get(ctx context.Context, userID, id string) (D, error) {
	ctx = ensureContext(ctx)
	var zero D

	record := s.mapper.NewRecord()
	if err := s.db.WithContext(ctx).First(record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.observe("get", apperrors.ErrNotFound)
			return zero, apperrors.ErrNotFound
		}
		s.observe("get", err)
		return zero, apperrors.Datastore(err)
	}

	ok, err := s.gate.CanAccess(ctx, userID, s.ResourceType(), id, models.AccessRead)
	if err != nil {
		s.observe("get", err)
		return zero, err
	}
	if !ok {
		s.observe("get", apperrors.ErrUnauthorized)
		return zero, apperrors.ErrUnauthorized
	}

	dto := s.mapper.NewDTO()
	if err := s.mapper.ToDTO(record, dto); err != nil {
		s.observe("get", err)
		return zero, apperrors.Datastore(err)
	}
	s.observe("get", nil)
	return dto, nil
}

// Update applies the DTO's shallow fields onto the stored record after a
// CHANGE authorization check and regenerates the etag. This primitive does NOT
// compare etags; callers relying on optimistic concurrency compare them before
// calling (the entity layer does).
func (s *Store[D, R]) Update(ctx context.Context, userID string, dto D) error {
	ctx = ensureContext(ctx)

	id := strings.TrimSpace(dto.GetID())
	if id == "" {
		s.observe("update", apperrors.ErrInvalidModel)
		return apperrors.NewInvalidModel("id is required")
	}
	if err := pkgvalidator.ValidateStruct(dto); err != nil {
		s.observe("update", apperrors.ErrInvalidModel)
		return apperrors.NewInvalidModel(err.Error())
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := s.mapper.NewRecord()
		if err := tx.First(record, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return apperrors.Datastore(err)
		}

		ok, err := s.gate.WithTx(tx).CanAccess(ctx, userID, s.ResourceType(), id, models.AccessChange)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrUnauthorized
		}

		meta := *record.Meta()
		if err := s.mapper.FromDTO(dto, record); err != nil {
			return err
		}
		*record.Meta() = meta // identifier and creation date are immutable
		record.Meta().TouchEtag()

		if err := tx.Save(record).Error; err != nil {
			return apperrors.Datastore(err)
		}
		return s.mapper.ToDTO(record, dto)
	})
	s.observe("update", err)
	if err != nil {
		return apperrors.Datastore(err)
	}
	return nil
}

// Delete removes the resource and every grant referencing it in the same
// transaction, so no window exists in which grants point at a deleted record.
func (s *Store[D, R]) Delete(ctx context.Context, userID, id string) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := s.mapper.NewRecord()
		if err := tx.First(record, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return apperrors.Datastore(err)
		}

		ok, err := s.gate.WithTx(tx).CanAccess(ctx, userID, s.ResourceType(), id, models.AccessChange)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrUnauthorized
		}

		if err := s.index.WithTx(tx).RemoveResourceFromAllGroups(ctx, s.ResourceType(), id); err != nil {
			return err
		}

		if err := tx.Delete(record).Error; err != nil {
			return apperrors.Datastore(err)
		}
		return nil
	})
	s.observe("delete", err)
	if err != nil {
		return apperrors.Datastore(err)
	}
	return nil
}

// Count returns the number of resources the caller can READ. Admins count the
// full table.
func (s *Store[D, R]) Count(ctx context.Context, userID string) (int, error) {
	ctx = ensureContext(ctx)

	ids, err := s.allIDs(ctx)
	if err != nil {
		return 0, err
	}

	admin, err := s.gate.IsAdmin(ctx, userID)
	if err != nil {
		return 0, err
	}
	if admin {
		return len(ids), nil
	}

	accessible, err := s.gate.AccessibleResources(ctx, userID, s.ResourceType(), models.AccessRead)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		if _, ok := accessible[id]; ok {
			count++
		}
	}
	return count, nil
}

// ListInRange returns the caller-readable resources inside the [start, end)
// window. The access filter is applied BEFORE pagination: two callers with
// different access sets see different page contents at the same offset.
func (s *Store[D, R]) ListInRange(ctx context.Context, userID string, start, end int) ([]D, error) {
	return s.list(ctx, userID, start, end, func(tx *gorm.DB) *gorm.DB { return tx })
}

// ListSorted behaves like ListInRange with results ordered by the given
// registered sort field.
func (s *Store[D, R]) ListSorted(ctx context.Context, userID string, start, end int, sortBy string, asc bool) ([]D, error) {
	if !SortableField(s.ResourceType(), sortBy) {
		return nil, apperrors.NewInvalidModel(fmt.Sprintf("cannot sort %s by %q", s.ResourceType(), sortBy))
	}
	return s.list(ctx, userID, start, end, func(tx *gorm.DB) *gorm.DB {
		return tx.Order(clause.OrderByColumn{
			Column: clause.Column{Name: sortBy},
			Desc:   !asc,
		})
	})
}

// ListHaving behaves like ListInRange restricted to records whose registered
// field equals the given value.
func (s *Store[D, R]) ListHaving(ctx context.Context, userID, field string, value any, start, end int) ([]D, error) {
	if !SortableField(s.ResourceType(), field) {
		return nil, apperrors.NewInvalidModel(fmt.Sprintf("cannot filter %s by %q", s.ResourceType(), field))
	}
	return s.list(ctx, userID, start, end, func(tx *gorm.DB) *gorm.DB {
		return tx.Where(fmt.Sprintf("%s = ?", field), value)
	})
}

// HasAccess is a read-only pass-through to the authorization gate.
func (s *Store[D, R]) HasAccess(ctx context.Context, userID, resourceID string, accessType models.AccessType) (bool, error) {
	return s.gate.CanAccess(ensureContext(ctx), userID, s.ResourceType(), resourceID, accessType)
}

// WhoHasAccess returns every group holding the given access type on the resource.
func (s *Store[D, R]) WhoHasAccess(ctx context.Context, resourceID string, accessType models.AccessType) ([]models.UserGroup, error) {
	return s.index.AccessGroups(ensureContext(ctx), s.ResourceType(), resourceID, accessType)
}

func (s *Store[D, R]) list(ctx context.Context, userID string, start, end int, scope func(*gorm.DB) *gorm.DB) ([]D, error) {
	ctx = ensureContext(ctx)

	if start < 0 || end < start {
		return nil, apperrors.NewInvalidModel("invalid pagination range")
	}

	var records []R
	if err := scope(s.db.WithContext(ctx).Model(s.mapper.NewRecord())).Find(&records).Error; err != nil {
		return nil, apperrors.Datastore(err)
	}

	admin, err := s.gate.IsAdmin(ctx, userID)
	if err != nil {
		return nil, err
	}

	var accessible map[string]struct{}
	if !admin {
		accessible, err = s.gate.AccessibleResources(ctx, userID, s.ResourceType(), models.AccessRead)
		if err != nil {
			return nil, err
		}
	}

	results := make([]D, 0)
	position := 0
	for _, record := range records {
		if !admin {
			if _, ok := accessible[record.Meta().ID]; !ok {
				continue
			}
		}
		if position >= start && position < end {
			dto := s.mapper.NewDTO()
			if err := s.mapper.ToDTO(record, dto); err != nil {
				return nil, apperrors.Datastore(err)
			}
			results = append(results, dto)
		}
		position++
	}
	return results, nil
}

func (s *Store[D, R]) allIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(s.mapper.NewRecord()).
		Pluck("id", &ids).Error; err != nil {
		return nil, apperrors.Datastore(err)
	}
	return ids, nil
}

// creatorGroup resolves the default grant target for a create: the public
// group for anonymous callers, the caller's individual group otherwise.
func (s *Store[D, R]) creatorGroup(ctx context.Context, tx *gorm.DB, userID string) (*models.UserGroup, error) {
	index := s.index.WithTx(tx)
	if authz.IsAnonymous(userID) {
		return index.PublicGroup(ctx)
	}
	return index.GetOrCreateIndividualGroup(ctx, userID)
}

// checkCreatable enforces the group's creatable-type restriction when one is
// declared. An empty set places no restriction.
func (s *Store[D, R]) checkCreatable(group *models.UserGroup) error {
	set, err := group.CreatableTypeSet()
	if err != nil {
		return apperrors.Datastore(err)
	}
	if len(set) == 0 {
		return nil
	}
	if _, ok := set[s.ResourceType()]; !ok {
		return apperrors.ErrUnauthorized.WithMessage(
			fmt.Sprintf("group %q cannot create resources of type %q", group.Name, s.ResourceType()))
	}
	return nil
}

func (s *Store[D, R]) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = apperrors.FromError(err).Code
	}
	metrics.RepositoryOps.WithLabelValues(s.ResourceType(), op, result).Inc()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
