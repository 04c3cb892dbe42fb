package api

import (
	"net/http"
	"time"

	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type fileListEntry struct {
	model.File

	// Derived at read time, never persisted, so they can't drift from
	// wall-clock time. downloadsRemaining is null for unlimited files
	// and a non-negative integer otherwise, never omitted
	IsExpired          bool `json:"isExpired"`
	DownloadsRemaining *int `json:"downloadsRemaining"`
}

func (a *API) FileList(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var files []model.File

	err := a.DB.
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&files).
		Error
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to lookup user files", zap.Error(err))
		return
	}

	now := time.Now()
	entries := make([]fileListEntry, len(files))

	for i, f := range files {
		entries[i] = fileListEntry{
			File:               f,
			IsExpired:          f.UploadType != model.UploadTypeCDN && f.Expired(now),
			DownloadsRemaining: f.DownloadsRemaining(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"files": entries,
	})
}
