package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type uploadPartOpts struct {
	PartNumber int `json:"partNumber"`
}

// UploadPart presigns a write location scoped to one part index of the
// record's open multipart session.
func (a *API) UploadPart(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	file, ok := a.fetchOwned(c)
	if !ok {
		return
	}

	var data uploadPartOpts
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

	if data.PartNumber < 1 || data.PartNumber > *file.PartCount {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Part number out of range",
			"requestID": requestID,
		})
		return
	}

	uploadURL, err := a.S3.PresignPart(c.Request.Context(), file.Bucket, file.S3Key, *file.S3UploadID, int32(data.PartNumber), uploadURLExpiry)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to presign part", zap.Int("part", data.PartNumber), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uploadUrl":  uploadURL,
		"partNumber": data.PartNumber,
	})
}
