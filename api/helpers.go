package api

import (
	"errors"
	"net/http"

	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// fetchOwned loads a file owned by the caller and writes the error response
// itself when that fails. A missing record and a record owned by someone
// else produce the same 404 so ids can't be probed for existence.
func (a *API) fetchOwned(c *gin.Context) (*model.File, bool) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	fileID := c.Param("fileID")
	if fileID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "No file ID provided",
			"requestID": requestID,
		})
		return nil, false
	}

	var file model.File

	err := a.DB.
		Where("id = ? AND user_id = ?", fileID, userID).
		First(&file).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":     "File not found. It either doesn't exist or you don't own it",
				"requestID": requestID,
			})
			return nil, false
		}

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch file", zap.String("fileID", fileID), zap.Error(err))
		return nil, false
	}

	return &file, true
}
