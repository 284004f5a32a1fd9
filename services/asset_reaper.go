package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/photoshare/models"
	"github.com/cppla/photoshare/storage"
	"github.com/cppla/photoshare/utils"
)

// AssetReaper periodically retries deletion of orphaned image host objects.
type AssetReaper struct {
	db     *gorm.DB
	host   storage.ImageHost
	logger *zap.Logger
	batch  int
	cron   *cron.Cron
}

// NewAssetReaper creates a reaper processing at most batch rows per run.
func NewAssetReaper(db *gorm.DB, host storage.ImageHost, logger *zap.Logger, batch int) *AssetReaper {
	if batch <= 0 {
		batch = 100
	}
	return &AssetReaper{db: db, host: host, logger: logger, batch: batch}
}

// Start schedules RunOnce using a cron expression such as "@every 5m".
func (r *AssetReaper) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if n, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("asset reaper run failed", zap.Error(err))
		} else if n > 0 {
			r.logger.Info("asset reaper deleted orphans", zap.Int("count", n))
		}
	}); err != nil {
		return fmt.Errorf("invalid reaper schedule %q: %w", schedule, err)
	}
	c.Start()
	r.cron = c
	return nil
}

// Stop waits for a running job to finish and stops the schedule.
func (r *AssetReaper) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}

// RunOnce retries one batch of orphan assets and returns how many were deleted.
// Rows are removed on success; failures bump the attempt counter.
func (r *AssetReaper) RunOnce(ctx context.Context) (int, error) {
	var items []models.OrphanAsset
	if err := r.db.WithContext(ctx).Order("updated_at ASC").Limit(r.batch).Find(&items).Error; err != nil {
		return 0, fmt.Errorf("load orphan assets: %w", err)
	}

	deleted := 0
	for _, it := range items {
		if err := r.host.Delete(ctx, it.PublicID); err != nil {
			if uerr := r.db.WithContext(ctx).Model(&models.OrphanAsset{}).Where("id = ?", it.ID).Updates(map[string]interface{}{
				"attempts":   gorm.Expr("attempts + 1"),
				"last_error": truncate(err.Error(), 1024),
			}).Error; uerr != nil {
				r.logger.Warn("failed to record orphan attempt", zap.Uint("id", it.ID), zap.String("public_id", it.PublicID), zap.Error(uerr))
			}
			continue
		}
		if err := r.db.WithContext(ctx).Delete(&models.OrphanAsset{}, it.ID).Error; err != nil {
			r.logger.Warn("failed to remove reaped orphan row", zap.Uint("id", it.ID), zap.Error(err))
			continue
		}
		deleted++
		utils.OrphanAssetsReaped.Inc()
	}
	return deleted, nil
}
