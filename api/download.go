package api

import (
	"net/http"

	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/Pablo-Wynistorf/DataDrop/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Download issues a short-lived read location and counts the download.
// The counter bump is a single conditional update at the database so
// concurrent downloads racing on the same record can't lose an increment
// or slip past the ceiling. Exactly the request that lands on the ceiling
// queues the deletion trigger.
func (a *API) Download(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	file, _, ok := a.resolveShare(c)
	if !ok {
		return
	}

	downloadURL, err := a.S3.PresignDownload(c.Request.Context(), file.Bucket, file.S3Key, file.FileName, downloadURLExpiry)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to presign download", zap.String("fileID", file.ID), zap.Error(err))
		return
	}

	updated := model.File{ID: file.ID}
	res := a.DB.
		Model(&updated).
		Clauses(clause.Returning{Columns: []clause.Column{
			{Name: "download_count"},
			{Name: "max_downloads"},
		}}).
		Where("max_downloads IS NULL OR COALESCE(download_count, 0) < max_downloads").
		UpdateColumn("download_count", gorm.Expr("COALESCE(download_count, 0) + 1"))
	if res.Error != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to count download", zap.String("fileID", file.ID), zap.Error(res.Error))
		return
	}

	// Lost the race with the last allowed download
	if res.RowsAffected == 0 {
		c.AbortWithStatusJSON(http.StatusGone, gin.H{
			"error":     "Download limit reached",
			"requestID": requestID,
		})
		return
	}

	if updated.MaxDownloads != nil && updated.DownloadCount != nil && *updated.DownloadCount == *updated.MaxDownloads {
		// Fire-and-forget relative to the response, the download URL is
		// already signed and stays usable for its five minutes
		task, err := service.NewDeleteTask(service.DeleteTrigger{
			FileID: file.ID,
			UserID: file.UserID,
			Reason: service.ReasonDownloadLimit,
		})
		if err == nil {
			_, err = a.Queue.Enqueue(task)
		}
		if err != nil {
			zap.L().Error("Failed to enqueue limit-reached deletion", zap.String("fileID", file.ID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"downloadUrl":        downloadURL,
		"fileName":           file.FileName,
		"downloadsRemaining": updated.DownloadsRemaining(),
	})
}
