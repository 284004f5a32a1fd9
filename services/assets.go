package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/photoshare/models"
	"github.com/cppla/photoshare/storage"
	"github.com/cppla/photoshare/utils"
)

// assetReleaser deletes image host objects that are no longer referenced. Deletion failures
// are queued as orphan assets so the reaper can retry them later.
type assetReleaser struct {
	db     *gorm.DB
	host   storage.ImageHost
	logger *zap.Logger
}

func (r *assetReleaser) release(ctx context.Context, reason string, publicIDs ...string) {
	for _, id := range publicIDs {
		if id == "" {
			continue
		}
		dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := r.host.Delete(dctx, id)
		cancel()
		if err == nil {
			continue
		}
		r.logger.Warn("asset delete failed, queued for retry",
			zap.String("public_id", id), zap.String("reason", reason), zap.Error(err))
		orphan := models.OrphanAsset{PublicID: id, Reason: reason, LastError: truncate(err.Error(), 1024)}
		if qerr := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "public_id"}}, DoNothing: true}).
			Create(&orphan).Error; qerr != nil {
			r.logger.Error("failed to record orphan asset", zap.String("public_id", id), zap.Error(qerr))
			continue
		}
		utils.OrphanAssetsRecorded.Inc()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
