package service

import (
	"context"
	"time"

	"github.com/Pablo-Wynistorf/DataDrop/model"
	"go.uber.org/zap"
)

// ReapExpired sweeps records whose TTL marker has passed. Each row is
// removed first, with its field values captured as a before-image, then
// the storage object is torn down from that snapshot. Deleting the row
// conditioned on the ttl value it was read with keeps the sweep from
// racing an edit that just extended the expiry.
func (d *Coordinator) ReapExpired(ctx context.Context) {
	now := time.Now().Unix()

	var expired []model.File

	err := d.DB.WithContext(ctx).
		Where("ttl IS NOT NULL AND ttl < ?", now).
		Find(&expired).
		Error
	if err != nil {
		zap.L().Error("Failed to query expired files", zap.Error(err))
		return
	}

	for _, before := range expired {
		res := d.DB.WithContext(ctx).
			Where("id = ? AND ttl = ?", before.ID, *before.TTL).
			Delete(model.File{})
		if res.Error != nil {
			zap.L().Error("Failed to reap expired record", zap.String("fileID", before.ID), zap.Error(res.Error))
			continue
		}

		// Someone extended the expiry between the scan and the delete
		if res.RowsAffected == 0 {
			continue
		}

		if err := d.DeleteExpired(ctx, before); err != nil {
			// The row is already gone, so all that's left is to log.
			// The object delete is retried by nothing, which mirrors
			// the source-of-truth ordering: metadata is authoritative
			zap.L().Error("Failed to tear down expired file", zap.String("fileID", before.ID), zap.Error(err))
			continue
		}

		zap.L().Info("Deletion trigger processed",
			zap.String("fileID", before.ID),
			zap.String("status", StatusDeletedTTL),
		)
	}
}
