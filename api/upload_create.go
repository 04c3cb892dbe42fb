package api

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/Pablo-Wynistorf/DataDrop/security"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// S3 rejects single PUTs above 5 GiB, anything bigger goes multipart
	multipartThreshold = int64(5) << 30
	multipartPartSize  = int64(100) << 20

	defaultRetentionSeconds = int64(7 * 24 * 60 * 60)
	maxRetentionSeconds     = int64(30 * 24 * 60 * 60)
	minRetentionSeconds     = int64(60)

	uploadURLExpiry   = time.Hour
	downloadURLExpiry = 5 * time.Minute
)

type uploadCreateOpts struct {
	FileName         string `json:"fileName"`
	FileType         string `json:"fileType"`
	FileSize         int64  `json:"fileSize"`
	UploadType       string `json:"uploadType"`
	ExpiresAt        string `json:"expiresAt"`
	ExpiresInSeconds *int64 `json:"expiresInSeconds"`
	MaxDownloads     *int   `json:"maxDownloads"`
}

// UploadCreate decides the transfer strategy from the declared size,
// creates the pending file record and hands out presigned transfer
// locations. The record exists before any URL is returned so an abandoned
// transfer still leaves discoverable, cleanable metadata.
func (a *API) UploadCreate(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)
	perms := c.MustGet("perms").(security.Permissions)

	var data uploadCreateOpts
	if err := c.BindJSON(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Malformed or invalid JSON request body",
			"requestID": requestID,
		})
		return
	}

	if data.FileName == "" || data.FileType == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Missing fileName or fileType",
			"requestID": requestID,
		})
		return
	}

	if data.FileSize <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Missing or invalid fileSize",
			"requestID": requestID,
		})
		return
	}

	isCdn := data.UploadType == model.UploadTypeCDN

	if isCdn && !perms.CanUploadCdn {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":     "You don't have permission to upload CDN files. Required role: " + security.RoleCDNUser,
			"requestID": requestID,
		})
		return
	}

	if !isCdn && !perms.CanUploadFile {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":     "You don't have permission to upload private files. Required role: " + security.RoleFileUser,
			"requestID": requestID,
		})
		return
	}

	if data.FileSize > perms.MaxFileSizeBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":            fmt.Sprintf("File size exceeds your limit of %dGB. Add fileSize_X role to increase.", perms.MaxFileSizeBytes>>30),
			"maxFileSizeBytes": perms.MaxFileSizeBytes,
			"requestID":        requestID,
		})
		return
	}

	fileID := uuid.NewString()

	bucket := a.Bucket
	s3Key := "uploads/" + fileID + "/" + data.FileName
	uploadType := model.UploadTypePrivate

	var cdnURL *string
	if isCdn {
		bucket = a.CDNBucket
		s3Key = fileID + "/" + data.FileName
		uploadType = model.UploadTypeCDN

		u := a.CDNURL + "/" + fileID + "/" + url.PathEscape(data.FileName)
		cdnURL = &u
	}

	file := model.File{
		ID:         fileID,
		UserID:     userID,
		FileName:   data.FileName,
		FileType:   data.FileType,
		FileSize:   data.FileSize,
		S3Key:      s3Key,
		Bucket:     bucket,
		UploadType: uploadType,
		CdnURL:     cdnURL,
		Status:     model.StatusPending,
		CreatedAt:  time.Now(),
	}

	if !isCdn {
		retention := resolveRetention(data.ExpiresAt, data.ExpiresInSeconds, defaultRetentionSeconds)
		if retention < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":     "Invalid expiry date format",
				"requestID": requestID,
			})
			return
		}

		retention = min(max(retention, minRetentionSeconds), maxRetentionSeconds)

		ttl := time.Now().Unix() + retention
		expiresAt := time.Unix(ttl, 0).UTC()
		file.TTL = &ttl
		file.ExpiresAt = &expiresAt

		if data.MaxDownloads != nil {
			limit := max(1, *data.MaxDownloads)
			count := 0
			file.MaxDownloads = &limit
			file.DownloadCount = &count
		}
	}

	ctx := c.Request.Context()
	resp := gin.H{
		"fileId":           fileID,
		"s3Key":            s3Key,
		"cdnUrl":           cdnURL,
		"expiresAt":        file.ExpiresAt,
		"maxDownloads":     file.MaxDownloads,
		"maxFileSizeBytes": perms.MaxFileSizeBytes,
	}

	if data.FileSize > multipartThreshold {
		uploadID, err := a.S3.CreateMultipart(ctx, bucket, s3Key, data.FileType)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to open multipart session", zap.Error(err))
			return
		}

		partSize := multipartPartSize
		partCount := int((data.FileSize + partSize - 1) / partSize)

		file.S3UploadID = &uploadID
		file.PartCount = &partCount
		file.PartSize = &partSize

		resp["multipart"] = gin.H{
			"uploadId":  uploadID,
			"partCount": partCount,
			"partSize":  partSize,
		}
	} else {
		uploadURL, err := a.S3.PresignUpload(ctx, bucket, s3Key, data.FileType, data.FileSize, uploadURLExpiry)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to presign upload", zap.Error(err))
			return
		}

		resp["uploadUrl"] = uploadURL
	}

	err := a.DB.Create(&file).Error
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to save file record to db", zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// resolveRetention turns the two optional expiry inputs into a relative
// retention in seconds. An explicit instant takes precedence over the
// relative form. Returns -1 on an unparseable instant.
func resolveRetention(expiresAt string, expiresInSeconds *int64, fallback int64) int64 {
	if expiresAt != "" {
		instant, err := time.Parse(time.RFC3339, expiresAt)
		if err != nil {
			return -1
		}

		return int64(time.Until(instant).Seconds())
	}

	if expiresInSeconds != nil {
		return *expiresInSeconds
	}

	return fallback
}
