package revision

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openbiolabs/noderepo/internal/database/testutil"
	"github.com/openbiolabs/noderepo/internal/models"
	apperrors "github.com/openbiolabs/noderepo/pkg/errors"
)

func newTestManager(t *testing.T) (*Manager, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	manager, err := NewManager(db)
	require.NoError(t, err)
	return manager, db
}

func TestReviseNumbersVersionsFromOne(t *testing.T) {
	manager, _ := newTestManager(t)
	series := uuid.NewString()

	v1, err := manager.Revise(context.Background(), series, &Revision{Name: "first", NodeType: "dataset"}, time.Time{})
	require.NoError(t, err)
	require.EqualValues(t, 1, v1)

	v2, err := manager.Revise(context.Background(), series, &Revision{Name: "second", NodeType: "dataset"}, time.Time{})
	require.NoError(t, err)
	require.EqualValues(t, 2, v2)

	latest, err := manager.GetLatest(context.Background(), series)
	require.NoError(t, err)
	require.Equal(t, "second", latest.Name)
	require.EqualValues(t, 2, latest.Version)
	require.True(t, latest.IsLatest)
}

func TestReviseMovesLatestFlagExactlyOnce(t *testing.T) {
	manager, db := newTestManager(t)
	series := uuid.NewString()

	for _, name := range []string{"a", "b", "c"} {
		_, err := manager.Revise(context.Background(), series, &Revision{Name: name, NodeType: "dataset"}, time.Time{})
		require.NoError(t, err)
	}

	var latestCount int64
	require.NoError(t, db.Model(&models.NodeRevision{}).
		Where("series_id = ? AND is_latest = ?", series, true).
		Count(&latestCount).Error)
	require.EqualValues(t, 1, latestCount)
}

func TestReviseInheritsAnnotationsFromPriorLatest(t *testing.T) {
	manager, _ := newTestManager(t)
	series := uuid.NewString()

	_, err := manager.Revise(context.Background(), series, &Revision{
		Name: "first", NodeType: "dataset",
		Annotations: map[string]any{"tissue": "liver"},
	}, time.Time{})
	require.NoError(t, err)

	_, err = manager.Revise(context.Background(), series, &Revision{Name: "second", NodeType: "dataset"}, time.Time{})
	require.NoError(t, err)

	latest, err := manager.GetLatest(context.Background(), series)
	require.NoError(t, err)
	require.Equal(t, "liver", latest.Annotations["tissue"])

	_, err = manager.Revise(context.Background(), series, &Revision{
		Name: "third", NodeType: "dataset",
		Annotations: map[string]any{"tissue": "kidney"},
	}, time.Time{})
	require.NoError(t, err)

	latest, err = manager.GetLatest(context.Background(), series)
	require.NoError(t, err)
	require.Equal(t, "kidney", latest.Annotations["tissue"])
}

func TestReviseStampsRevisionDate(t *testing.T) {
	manager, _ := newTestManager(t)
	series := uuid.NewString()
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := manager.Revise(context.Background(), series, &Revision{Name: "dated", NodeType: "dataset"}, stamp)
	require.NoError(t, err)

	latest, err := manager.GetLatest(context.Background(), series)
	require.NoError(t, err)
	require.True(t, stamp.Equal(latest.RevisionDate))
}

func TestReviseValidatesInput(t *testing.T) {
	manager, _ := newTestManager(t)

	_, err := manager.Revise(context.Background(), "", &Revision{Name: "x"}, time.Time{})
	require.ErrorIs(t, err, apperrors.ErrInvalidModel)

	_, err = manager.Revise(context.Background(), uuid.NewString(), nil, time.Time{})
	require.ErrorIs(t, err, apperrors.ErrInvalidModel)

	_, err = manager.Revise(context.Background(), uuid.NewString(), &Revision{Name: "  "}, time.Time{})
	require.ErrorIs(t, err, apperrors.ErrInvalidModel)
}

func TestGetLatestUnknownSeriesIsNotFound(t *testing.T) {
	manager, _ := newTestManager(t)

	_, err := manager.GetLatest(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetVersionReturnsSpecificVersion(t *testing.T) {
	manager, _ := newTestManager(t)
	series := uuid.NewString()

	for _, name := range []string{"a", "b"} {
		_, err := manager.Revise(context.Background(), series, &Revision{Name: name, NodeType: "dataset"}, time.Time{})
		require.NoError(t, err)
	}

	first, err := manager.GetVersion(context.Background(), series, 1)
	require.NoError(t, err)
	require.Equal(t, "a", first.Name)
	require.False(t, first.IsLatest)

	_, err = manager.GetVersion(context.Background(), series, 9)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAllVersionsAscending(t *testing.T) {
	manager, _ := newTestManager(t)
	series := uuid.NewString()

	for _, name := range []string{"a", "b", "c"} {
		_, err := manager.Revise(context.Background(), series, &Revision{Name: name, NodeType: "dataset"}, time.Time{})
		require.NoError(t, err)
	}

	versions, err := manager.AllVersions(context.Background(), series)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for idx, v := range versions {
		require.EqualValues(t, idx+1, v.Version)
	}
	require.True(t, versions[2].IsLatest)
}

func TestDeleteAllVersionsRemovesSeries(t *testing.T) {
	manager, db := newTestManager(t)
	series := uuid.NewString()
	other := uuid.NewString()

	for _, s := range []string{series, other} {
		_, err := manager.Revise(context.Background(), s, &Revision{Name: "keep", NodeType: "dataset"}, time.Time{})
		require.NoError(t, err)
	}

	require.NoError(t, manager.DeleteAllVersions(context.Background(), series))

	var count int64
	require.NoError(t, db.Model(&models.NodeRevision{}).Where("series_id = ?", series).Count(&count).Error)
	require.EqualValues(t, 0, count)

	_, err := manager.GetLatest(context.Background(), other)
	require.NoError(t, err)
}
