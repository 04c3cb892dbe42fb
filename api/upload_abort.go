package api

import (
	"net/http"

	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UploadAbort discards any uploaded parts and marks the record aborted.
// Aborting a record with no open session is a no-op that still lands on
// aborted, so retries are harmless.
func (a *API) UploadAbort(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	file, ok := a.fetchOwned(c)
	if !ok {
		return
	}

	if file.MultipartOpen() {
		err := a.S3.AbortMultipart(c.Request.Context(), file.Bucket, file.S3Key, *file.S3UploadID)
		if err != nil {
			// The storage-side session will linger until the bucket's own
			// cleanup catches it, the record is still marked aborted
			zap.L().Error("Failed to abort multipart session", zap.String("fileID", file.ID), zap.Error(err))
		}
	}

	err := a.DB.
		Model(model.File{}).
		Where("id = ?", file.ID).
		Updates(map[string]any{
			"status":       model.StatusAborted,
			"s3_upload_id": nil,
			"part_count":   nil,
			"part_size":    nil,
		}).
		Error
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to mark file aborted", zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  model.StatusAborted,
	})
}
