package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StartJobs schedules the TTL reaper and the session cleanup and starts
// the scheduler.
func StartJobs(db *gorm.DB, d *Coordinator) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc("@every 1m", func() {
		d.ReapExpired(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule reaper, %w", err)
	}

	if _, err := c.AddFunc("@every 10m", func() {
		CleanupSessions(db)
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule session cleanup, %w", err)
	}

	c.Start()
	zap.L().Debug("Background jobs attached")

	return c, nil
}

// CleanupSessions drops expired auth handshake rows. CLI handshakes and
// OIDC state records are only ever minutes-lived, anything past its TTL
// is garbage.
func CleanupSessions(db *gorm.DB) {
	res := db.
		Where("ttl < ?", time.Now().Unix()).
		Delete(model.Session{})
	if res.Error != nil {
		zap.L().Error("Failed to cleanup sessions", zap.Error(res.Error))
		return
	}

	if res.RowsAffected > 0 {
		zap.L().Debug("Cleaned up expired sessions", zap.Int64("count", res.RowsAffected))
	}
}
