package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type fileEditOpts struct {
	ExpiresAt        string `json:"expiresAt"`
	ExpiresInSeconds *int64 `json:"expiresInSeconds"`

	// Three-state: absent = no change, null/""/"unlimited" = remove the
	// ceiling, positive integer = new ceiling
	MaxDownloads json.RawMessage `json:"maxDownloads"`
}

// FileEdit updates expiry and download-limit settings of a private file.
// Setting a new download limit restarts the budget, removing it drops both
// the ceiling and the counter.
func (a *API) FileEdit(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	file, ok := a.fetchOwned(c)
	if !ok {
		return
	}

	if file.UploadType == model.UploadTypeCDN {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "CDN files cannot be edited",
			"requestID": requestID,
		})
		return
	}

	var data fileEditOpts
	if err := c.BindJSON(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Malformed or invalid JSON request body",
			"requestID": requestID,
		})
		return
	}

	updates := map[string]any{}

	if data.ExpiresAt != "" || data.ExpiresInSeconds != nil {
		var ttl int64

		if data.ExpiresAt != "" {
			instant, err := time.Parse(time.RFC3339, data.ExpiresAt)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error":     "Invalid expiry date format",
					"requestID": requestID,
				})
				return
			}

			ttl = instant.Unix()
		} else {
			seconds := *data.ExpiresInSeconds
			if seconds == 0 {
				seconds = defaultRetentionSeconds
			}

			ttl = time.Now().Unix() + max(seconds, minRetentionSeconds)
		}

		// ttl and expires_at describe the same instant and are always
		// written together
		updates["ttl"] = ttl
		updates["expires_at"] = time.Unix(ttl, 0).UTC()
	}

	if limit, unlimited, ok := parseMaxDownloads(data.MaxDownloads); ok {
		if unlimited {
			updates["max_downloads"] = nil
			updates["download_count"] = nil
		} else {
			updates["max_downloads"] = limit
			updates["download_count"] = 0
		}
	}

	if len(updates) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "No valid updates provided",
			"requestID": requestID,
		})
		return
	}

	err := a.DB.
		Model(model.File{}).
		Where("id = ?", file.ID).
		Updates(updates).
		Error
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to update file settings", zap.Error(err))
		return
	}

	var updated model.File
	err = a.DB.
		Where("id = ?", file.ID).
		First(&updated).
		Error
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to re-read file settings", zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"expiresAt":          updated.ExpiresAt,
		"maxDownloads":       updated.MaxDownloads,
		"downloadsRemaining": updated.DownloadsRemaining(),
	})
}

// parseMaxDownloads decodes the three-state maxDownloads field. ok is false
// when the field was absent or carried a value that can't produce a change,
// unlimited is true for the explicit null/""/"unlimited" sentinels.
func parseMaxDownloads(raw json.RawMessage) (limit int, unlimited bool, ok bool) {
	if len(raw) == 0 {
		return 0, false, false
	}

	if string(raw) == "null" {
		return 0, true, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" || s == "unlimited" {
			return 0, true, true
		}
		return 0, false, false
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		return n, false, true
	}

	return 0, false, false
}
