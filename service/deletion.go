// Package service contains the deletion coordinator and the background
// jobs that keep storage and metadata in sync
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TypeFileDelete is the queue task type carrying explicit deletion triggers.
const TypeFileDelete = "file:delete"

// Reasons attached to explicit deletion triggers.
const (
	ReasonUserRequest   = "user_request"
	ReasonDownloadLimit = "download_limit_reached"
)

// Teardown outcomes, reported for logging and by tests.
const (
	StatusDeleted      = "deleted"
	StatusDeletedTTL   = "deleted_ttl"
	StatusNotFound     = "not_found"
	StatusUnauthorized = "unauthorized"
)

// DeleteTrigger is the explicit trigger variant: the record still exists
// and is re-fetched and ownership-checked before any teardown happens.
// The auto-expired variant has no message shape, the reaper calls
// DeleteExpired directly with the captured before-image.
type DeleteTrigger struct {
	FileID string `json:"fileId"`
	UserID string `json:"userId"`
	Reason string `json:"reason,omitempty"`
}

func NewDeleteTask(t DeleteTrigger) (*asynq.Task, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TypeFileDelete, payload), nil
}

// ObjectStore is the slice of the storage backend the coordinator needs.
type ObjectStore interface {
	DeleteObject(ctx context.Context, bucket, key string) error
}

// CDNPurger invalidates edge-cached copies of CDN files. Best effort only.
type CDNPurger interface {
	PurgeURLs(ctx context.Context, urls []string) error
}

// Coordinator performs the idempotent teardown shared by both deletion
// trigger sources.
type Coordinator struct {
	DB    *gorm.DB
	Store ObjectStore
	CDN   CDNPurger
}

func NewCoordinator(db *gorm.DB, store ObjectStore, cdn CDNPurger) *Coordinator {
	return &Coordinator{DB: db, Store: store, CDN: cdn}
}

// HandleDeleteTask consumes explicit triggers from the queue. A returned
// error makes asynq redeliver the task, so only upstream failures are
// propagated; terminal outcomes (missing record, ownership mismatch) are
// swallowed after logging.
func (d *Coordinator) HandleDeleteTask(ctx context.Context, t *asynq.Task) error {
	var trig DeleteTrigger

	if err := json.Unmarshal(t.Payload(), &trig); err != nil {
		return fmt.Errorf("malformed deletion trigger: %v, %w", err, asynq.SkipRetry)
	}

	status, err := d.DeleteExplicit(ctx, trig)
	if err != nil {
		return err
	}

	zap.L().Info("Deletion trigger processed",
		zap.String("fileID", trig.FileID),
		zap.String("reason", trig.Reason),
		zap.String("status", status),
	)

	return nil
}

// DeleteExplicit re-fetches the record, verifies ownership and tears down
// storage before metadata. An already-absent record is a successful no-op,
// not an error, so racing the TTL reaper is harmless.
func (d *Coordinator) DeleteExplicit(ctx context.Context, trig DeleteTrigger) (string, error) {
	var file model.File

	err := d.DB.WithContext(ctx).
		Where("id = ?", trig.FileID).
		First(&file).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StatusNotFound, nil
		}

		return "", fmt.Errorf("failed to fetch file for deletion, %w", err)
	}

	// Guards against a stale or forged trigger. Dropped, not retried
	if file.UserID != trig.UserID {
		zap.L().Warn("Deletion trigger ownership mismatch",
			zap.String("fileID", trig.FileID),
			zap.String("userID", trig.UserID),
		)
		return StatusUnauthorized, nil
	}

	// Object first, metadata second: a crash in between leaves an orphaned
	// record the next retry can clean up, never an unreferenced object
	if err := d.Store.DeleteObject(ctx, file.Bucket, file.S3Key); err != nil {
		return "", err
	}

	d.purge(ctx, &file)

	err = d.DB.WithContext(ctx).
		Where("id = ?", file.ID).
		Delete(model.File{}).
		Error
	if err != nil {
		return "", fmt.Errorf("failed to delete file record, %w", err)
	}

	return StatusDeleted, nil
}

// DeleteExpired tears down storage for a record whose metadata row is
// already gone, using the captured before-image. The record's own expiry
// authorized the deletion, no ownership check is possible or needed.
func (d *Coordinator) DeleteExpired(ctx context.Context, before model.File) error {
	if err := d.Store.DeleteObject(ctx, before.Bucket, before.S3Key); err != nil {
		return err
	}

	d.purge(ctx, &before)
	return nil
}

// purge drops edge caches for CDN files. Failures are logged and swallowed,
// invalidation must never block or reverse the deletion itself.
func (d *Coordinator) purge(ctx context.Context, file *model.File) {
	if file.UploadType != model.UploadTypeCDN || file.CdnURL == nil {
		return
	}

	if err := d.CDN.PurgeURLs(ctx, []string{*file.CdnURL}); err != nil {
		zap.L().Error("CDN purge failed",
			zap.String("fileID", file.ID),
			zap.Error(err),
		)
	}
}
