package api

import (
	"net/http"
	"time"

	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultShareSeconds = int64(24 * 60 * 60)

type fileShareOpts struct {
	ExpiresAt        string `json:"expiresAt"`
	ExpiresInSeconds *int64 `json:"expiresInSeconds"`
}

// FileShare mints a download link. CDN files already have a permanent
// public URL so no token is involved. For private files the link window is
// clamped to the file's own remaining lifetime: a link should not outlive
// the file it points to. The clamp still floors at 60 seconds, so a link
// can overshoot a nearly-dead file by a few seconds.
func (a *API) FileShare(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	file, ok := a.fetchOwned(c)
	if !ok {
		return
	}

	if file.UploadType == model.UploadTypeCDN {
		c.JSON(http.StatusOK, gin.H{
			"shareUrl":           file.CdnURL,
			"type":               model.UploadTypeCDN,
			"expiresAt":          nil,
			"maxDownloads":       nil,
			"downloadsRemaining": nil,
		})
		return
	}

	var data fileShareOpts
	if err := c.BindJSON(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Malformed or invalid JSON request body",
			"requestID": requestID,
		})
		return
	}

	linkSeconds := resolveRetention(data.ExpiresAt, data.ExpiresInSeconds, defaultShareSeconds)
	if linkSeconds < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid expiry date format",
			"requestID": requestID,
		})
		return
	}

	if linkSeconds < minRetentionSeconds {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Link expiry must be at least 60 seconds",
			"requestID": requestID,
		})
		return
	}

	if file.TTL != nil {
		fileRemaining := *file.TTL - time.Now().Unix()
		if linkSeconds > fileRemaining {
			linkSeconds = max(minRetentionSeconds, fileRemaining)
		}
	}

	token, err := a.Codec.SignShare(file.ID, time.Duration(linkSeconds)*time.Second)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to sign share token", zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"shareUrl":           a.FrontendURL + "/file?token=" + token,
		"type":               model.UploadTypePrivate,
		"expiresAt":          time.Now().Add(time.Duration(linkSeconds) * time.Second).UTC(),
		"fileExpiresAt":      file.ExpiresAt,
		"maxDownloads":       file.MaxDownloads,
		"downloadsRemaining": file.DownloadsRemaining(),
	})
}
