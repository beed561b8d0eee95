package maintenance

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openbiolabs/noderepo/internal/entity"
	"github.com/openbiolabs/noderepo/internal/models"
	"github.com/openbiolabs/noderepo/pkg/logger"
)

const defaultSchedule = "@hourly"

// Cleaner runs background maintenance sweeps: access grants whose node no
// longer exists and annotation records orphaned by a failed delete are both
// latent permission/storage leaks, so they are pruned on a schedule.
type Cleaner struct {
	db       *gorm.DB
	cron     *cron.Cron
	log      *zap.Logger
	schedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithSchedule overrides the cron specification for the sweep.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:       db,
		schedule: defaultSchedule,
		log:      logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

// Start registers the sweep with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.db == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("maintenance sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// SweepStats captures the number of records removed by one sweep.
type SweepStats struct {
	DanglingGrants     int64
	OrphanedAnnotation int64
}

// RunOnce executes all sweeps sequentially. Also used during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	stats, err := Sweep(ctx, c.db)
	if stats.DanglingGrants > 0 || stats.OrphanedAnnotation > 0 {
		c.log.Info("maintenance sweep removed records",
			zap.Int64("dangling_grants", stats.DanglingGrants),
			zap.Int64("orphaned_annotations", stats.OrphanedAnnotation),
		)
	}
	return err
}

// Sweep removes grants referencing deleted nodes and annotation records whose
// node is gone.
func Sweep(ctx context.Context, db *gorm.DB) (SweepStats, error) {
	var stats SweepStats
	if db == nil {
		return stats, nil
	}

	var errs error

	grants := db.WithContext(ctx).
		Where("resource_type = ?", entity.NodeResourceType).
		Where("resource_id NOT IN (?)", db.Model(&models.Node{}).Select("id")).
		Delete(&models.ResourceAccess{})
	if grants.Error != nil {
		errs = multierr.Append(errs, grants.Error)
	} else {
		stats.DanglingGrants = grants.RowsAffected
	}

	annotations := db.WithContext(ctx).
		Where("node_id NOT IN (?)", db.Model(&models.Node{}).Select("id")).
		Delete(&models.NodeAnnotations{})
	if annotations.Error != nil {
		errs = multierr.Append(errs, annotations.Error)
	} else {
		stats.OrphanedAnnotation = annotations.RowsAffected
	}

	return stats, errs
}
