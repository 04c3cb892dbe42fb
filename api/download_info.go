package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/Pablo-Wynistorf/DataDrop/security"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// resolveShare verifies a share token and loads the file it references,
// writing the error response itself when any gate fails. An expired link
// is reported distinctly from a malformed one: the file may still exist
// and the owner can re-issue a fresh link. A record deleted underneath a
// still-valid token is simply not found.
func (a *API) resolveShare(c *gin.Context) (*model.File, time.Time, bool) {
	requestID := c.MustGet("requestID").(string)

	fileID, linkExpiry, err := a.Codec.VerifyShare(c.Param("token"))
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			c.AbortWithStatusJSON(http.StatusGone, gin.H{
				"error":     "Link expired",
				"requestID": requestID,
			})
			return nil, time.Time{}, false
		}

		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid link",
			"requestID": requestID,
		})
		return nil, time.Time{}, false
	}

	var file model.File

	err = a.DB.
		Where("id = ?", fileID).
		First(&file).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":     "File not found",
				"requestID": requestID,
			})
			return nil, time.Time{}, false
		}

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch shared file", zap.String("fileID", fileID), zap.Error(err))
		return nil, time.Time{}, false
	}

	if file.UploadType != model.UploadTypePrivate {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid file type for this endpoint",
			"requestID": requestID,
		})
		return nil, time.Time{}, false
	}

	// The TTL marker is authoritative ahead of physical deletion
	if file.Expired(time.Now()) {
		c.AbortWithStatusJSON(http.StatusGone, gin.H{
			"error":     "File has expired",
			"requestID": requestID,
		})
		return nil, time.Time{}, false
	}

	if remaining := file.DownloadsRemaining(); remaining != nil && *remaining <= 0 {
		c.AbortWithStatusJSON(http.StatusGone, gin.H{
			"error":     "Download limit reached",
			"requestID": requestID,
		})
		return nil, time.Time{}, false
	}

	return &file, linkExpiry, true
}

// DownloadInfo resolves a share token into display info without counting
// a download.
func (a *API) DownloadInfo(c *gin.Context) {
	file, linkExpiry, ok := a.resolveShare(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"fileName":           file.FileName,
		"fileSize":           file.FileSize,
		"expiresAt":          linkExpiry.UTC(),
		"fileExpiresAt":      file.ExpiresAt,
		"maxDownloads":       file.MaxDownloads,
		"downloadsRemaining": file.DownloadsRemaining(),
	})
}
