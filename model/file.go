// Package model defines database models
package model

import "time"

// Upload visibility classes. CDN files live forever behind the public CDN,
// private files expire and are reached through signed share links.
const (
	UploadTypeCDN     = "cdn"
	UploadTypePrivate = "private"
)

// File lifecycle states.
const (
	StatusPending  = "pending"
	StatusUploaded = "uploaded"
	StatusReady    = "ready"
	StatusAborted  = "aborted"
)

type File struct {
	ID     string `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"index;not null" json:"userId"`

	// Original file name as declared by the client. The S3 key is derived
	// from the ID and this name so different users can upload files with
	// the same name
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`

	S3Key  string `json:"s3Key"`
	Bucket string `json:"bucket"`

	UploadType string  `json:"uploadType"`
	CdnURL     *string `json:"cdnUrl,omitempty"`

	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`

	// Private files only. TTL is the unix second the reaper watches,
	// ExpiresAt is the same instant in a display-friendly form.
	// The two must never diverge
	// expiresAt stays in the JSON shape for every file, an explicit null
	// is how CDN files report that they never expire
	TTL       *int64     `gorm:"column:ttl;index" json:"-"`
	ExpiresAt *time.Time `json:"expiresAt"`

	// Download accounting for private files. A nil MaxDownloads means
	// unlimited; the counter still increments on every download and is
	// nil only until the first one
	MaxDownloads  *int `json:"maxDownloads,omitempty"`
	DownloadCount *int `json:"-"`

	// Multipart scratch state, present only while Status is pending and a
	// chunked transfer is open
	S3UploadID *string `json:"-"`
	PartCount  *int    `json:"-"`
	PartSize   *int64  `json:"-"`
}

// MultipartOpen reports whether a chunked transfer is in progress.
func (f *File) MultipartOpen() bool {
	return f.S3UploadID != nil && f.PartCount != nil && f.PartSize != nil
}

// Expired reports whether the TTL marker is already in the past. The marker
// is authoritative ahead of physical deletion by the reaper.
func (f *File) Expired(now time.Time) bool {
	return f.TTL != nil && *f.TTL < now.Unix()
}

// DownloadsRemaining returns max(0, maxDownloads - downloadCount), or nil
// for unlimited files. Computed on every read, never stored.
func (f *File) DownloadsRemaining() *int {
	if f.MaxDownloads == nil {
		return nil
	}

	count := 0
	if f.DownloadCount != nil {
		count = *f.DownloadCount
	}

	remaining := max(0, *f.MaxDownloads-count)
	return &remaining
}
