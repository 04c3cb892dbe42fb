package api

import (
	"net/http"

	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UploadConfirm flips a single-shot upload from pending to uploaded. The
// client's word is taken for it, nothing verifies the object actually
// landed in the bucket.
func (a *API) UploadConfirm(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	file, ok := a.fetchOwned(c)
	if !ok {
		return
	}

	// A chunked transfer finishes through its own completion endpoint,
	// confirming it here would leave scratch state on a non-pending record
	if file.MultipartOpen() {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":     "File has a multipart upload in progress",
			"requestID": requestID,
		})
		return
	}

	err := a.DB.
		Model(model.File{}).
		Where("id = ?", file.ID).
		Update("status", model.StatusUploaded).
		Error
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to update file status", zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
	})
}
