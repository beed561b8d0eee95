package revision

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/openbiolabs/noderepo/internal/models"
	apperrors "github.com/openbiolabs/noderepo/pkg/errors"
)

// Revision is the caller-facing view of one version in a series.
type Revision struct {
	SeriesID     string         `json:"series_id"`
	Version      int64          `json:"version"`
	IsLatest     bool           `json:"is_latest"`
	RevisionDate time.Time      `json:"revision_date"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	NodeType     string         `json:"node_type"`
	ParentID     *string        `json:"parent_id,omitempty"`
	Annotations  map[string]any `json:"annotations,omitempty"`
}

// Manager maintains revision series. A series is identified by a stable
// logical id; each Revise call appends one physical version and moves the
// latest flag to it in the same transaction, so a reader never observes zero
// or two latest versions.
type Manager struct {
	db *gorm.DB
}

func NewManager(db *gorm.DB) (*Manager, error) {
	if db == nil {
		return nil, errors.New("revision manager requires a database handle")
	}
	return &Manager{db: db}, nil
}

// Revise appends a new version to the series. The new version carries the
// shallow fields of next; its annotations are inherited from the prior latest
// unless next supplies its own. Returns the assigned version number.
func (m *Manager) Revise(ctx context.Context, seriesID string, next *Revision, revisionDate time.Time) (int64, error) {
	if next == nil {
		return 0, apperrors.NewInvalidModel("revision is required")
	}
	if strings.TrimSpace(seriesID) == "" {
		return 0, apperrors.NewInvalidModel("series id is required")
	}
	if strings.TrimSpace(next.Name) == "" {
		return 0, apperrors.NewInvalidModel("revision name is required")
	}
	if revisionDate.IsZero() {
		revisionDate = time.Now().UTC()
	}

	var version int64
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prior models.NodeRevision
		hasPrior := true
		err := tx.Where("series_id = ? AND is_latest = ?", seriesID, true).
			First(&prior).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.Datastore(err)
			}
			hasPrior = false
		}

		record := models.NodeRevision{
			SeriesID:     seriesID,
			Version:      1,
			IsLatest:     true,
			RevisionDate: revisionDate,
			Name:         next.Name,
			Description:  next.Description,
			NodeType:     next.NodeType,
			ParentID:     next.ParentID,
		}
		if len(next.Annotations) > 0 {
			record.Annotations = datatypes.JSONMap(next.Annotations)
		}

		if hasPrior {
			record.Version = prior.Version + 1
			if record.Annotations == nil {
				record.Annotations = prior.Annotations
			}
			if err := tx.Model(&models.NodeRevision{}).
				Where("id = ?", prior.ID).
				Update("is_latest", false).Error; err != nil {
				return apperrors.Datastore(err)
			}
		}

		if err := tx.Create(&record).Error; err != nil {
			return apperrors.Datastore(err)
		}
		version = record.Version
		return nil
	})
	if err != nil {
		return 0, apperrors.Datastore(err)
	}
	return version, nil
}

// GetLatest returns the latest version of the series.
func (m *Manager) GetLatest(ctx context.Context, seriesID string) (*Revision, error) {
	var record models.NodeRevision
	err := m.db.WithContext(ctx).
		Where("series_id = ? AND is_latest = ?", seriesID, true).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Datastore(err)
	}
	return toRevision(&record), nil
}

// GetVersion returns one specific version of the series.
func (m *Manager) GetVersion(ctx context.Context, seriesID string, version int64) (*Revision, error) {
	var record models.NodeRevision
	err := m.db.WithContext(ctx).
		Where("series_id = ? AND version = ?", seriesID, version).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Datastore(err)
	}
	return toRevision(&record), nil
}

// AllVersions returns every version of the series in ascending version order.
func (m *Manager) AllVersions(ctx context.Context, seriesID string) ([]*Revision, error) {
	var records []models.NodeRevision
	err := m.db.WithContext(ctx).
		Where("series_id = ?", seriesID).
		Order("version").
		Find(&records).Error
	if err != nil {
		return nil, apperrors.Datastore(err)
	}

	revisions := make([]*Revision, 0, len(records))
	for idx := range records {
		revisions = append(revisions, toRevision(&records[idx]))
	}
	return revisions, nil
}

// DeleteAllVersions removes the whole series.
func (m *Manager) DeleteAllVersions(ctx context.Context, seriesID string) error {
	err := m.db.WithContext(ctx).
		Where("series_id = ?", seriesID).
		Delete(&models.NodeRevision{}).Error
	if err != nil {
		return apperrors.Datastore(err)
	}
	return nil
}

func toRevision(record *models.NodeRevision) *Revision {
	return &Revision{
		SeriesID:     record.SeriesID,
		Version:      record.Version,
		IsLatest:     record.IsLatest,
		RevisionDate: record.RevisionDate,
		Name:         record.Name,
		Description:  record.Description,
		NodeType:     record.NodeType,
		ParentID:     record.ParentID,
		Annotations:  map[string]any(record.Annotations),
	}
}
