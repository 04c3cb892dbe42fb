package api

import (
	"net/http"

	"github.com/Pablo-Wynistorf/DataDrop/aws"
	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type uploadCompleteOpts struct {
	Parts []aws.Part `json:"parts"`
}

// UploadComplete hands the client-supplied part manifest to the storage
// backend for assembly. On success the record becomes ready and the
// multipart scratch fields are stripped. On a backend rejection the record
// stays pending with the scratch intact so the client can retry or abort.
func (a *API) UploadComplete(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	file, ok := a.fetchOwned(c)
	if !ok {
		return
	}

	var data uploadCompleteOpts
	if err := c.BindJSON(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Malformed or invalid JSON request body",
			"requestID": requestID,
		})
		return
	}

	if !file.MultipartOpen() {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":     "No multipart upload in progress for this file",
			"requestID": requestID,
		})
		return
	}

	if len(data.Parts) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "No parts provided",
			"requestID": requestID,
		})
		return
	}

	err := a.S3.CompleteMultipart(c.Request.Context(), file.Bucket, file.S3Key, *file.S3UploadID, data.Parts)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error":     "Failed to assemble multipart upload",
			"requestID": requestID,
		})

		zap.L().Error("Multipart completion rejected", zap.String("fileID", file.ID), zap.Error(err))
		return
	}

	err = a.DB.
		Model(model.File{}).
		Where("id = ?", file.ID).
		Updates(map[string]any{
			"status":       model.StatusReady,
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

		zap.L().Error("Failed to finalize file record", zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  model.StatusReady,
	})
}
