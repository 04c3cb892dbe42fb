package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/Pablo-Wynistorf/DataDrop/aws"
	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadCreateRequiresRole(t *testing.T) {
	env := newTestEnv(t)
	env.id.Roles = nil

	for _, uploadType := range []string{model.UploadTypeCDN, model.UploadTypePrivate} {
		w := env.do(http.MethodPost, "/api/upload", map[string]any{
			"fileName":   "report.pdf",
			"fileType":   "application/pdf",
			"fileSize":   1024,
			"uploadType": uploadType,
		}, nil)

		assert.Equal(t, http.StatusForbidden, w.Code, uploadType)
	}
}

func TestUploadCreateSizeLimit(t *testing.T) {
	env := newTestEnv(t)
	env.id.Roles = []string{"fileUser"}

	var resp struct {
		MaxFileSizeBytes int64 `json:"maxFileSizeBytes"`
	}

	w := env.do(http.MethodPost, "/api/upload", map[string]any{
		"fileName": "big.bin",
		"fileType": "application/octet-stream",
		"fileSize": int64(2) << 30,
	}, &resp)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, int64(1)<<30, resp.MaxFileSizeBytes)
}

func TestUploadCreateSinglePut(t *testing.T) {
	env := newTestEnv(t)

	var resp struct {
		FileID    string `json:"fileId"`
		S3Key     string `json:"s3Key"`
		UploadURL string `json:"uploadUrl"`
		Multipart any    `json:"multipart"`
	}

	w := env.do(http.MethodPost, "/api/upload", map[string]any{
		"fileName":         "report.pdf",
		"fileType":         "application/pdf",
		"fileSize":         1 << 20,
		"expiresInSeconds": 120,
		"maxDownloads":     3,
	}, &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "uploads/"+resp.FileID+"/report.pdf", resp.S3Key)
	assert.Contains(t, resp.UploadURL, "https://s3.test/put/files-test/")
	assert.Nil(t, resp.Multipart)

	f := env.reload(resp.FileID)
	assert.Equal(t, model.StatusPending, f.Status)
	assert.Equal(t, "files-test", f.Bucket)

	require.NotNil(t, f.TTL)
	assert.InDelta(t, time.Now().Unix()+120, *f.TTL, 5)

	require.NotNil(t, f.MaxDownloads)
	assert.Equal(t, 3, *f.MaxDownloads)
	require.NotNil(t, f.DownloadCount)
	assert.Equal(t, 0, *f.DownloadCount)

	assert.False(t, f.MultipartOpen())
}

func TestUploadCreateRetentionClamp(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name    string
		seconds int64
		want    int64
	}{
		{"below minimum", 5, 60},
		{"above maximum", 100 * 24 * 60 * 60, 30 * 24 * 60 * 60},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var resp struct {
				FileID string `json:"fileId"`
			}

			w := env.do(http.MethodPost, "/api/upload", map[string]any{
				"fileName":         "clamp.bin",
				"fileType":         "application/octet-stream",
				"fileSize":         1024,
				"expiresInSeconds": tc.seconds,
			}, &resp)

			require.Equal(t, http.StatusOK, w.Code)

			f := env.reload(resp.FileID)
			require.NotNil(t, f.TTL)
			assert.InDelta(t, time.Now().Unix()+tc.want, *f.TTL, 5)
		})
	}
}

func TestUploadCreateMultipart(t *testing.T) {
	env := newTestEnv(t)
	env.id.Roles = []string{"fileUser", "fileSize_20"}

	var resp struct {
		FileID    string `json:"fileId"`
		UploadURL string `json:"uploadUrl"`
		Multipart *struct {
			UploadID  string `json:"uploadId"`
			PartCount int    `json:"partCount"`
			PartSize  int64  `json:"partSize"`
		} `json:"multipart"`
	}

	w := env.do(http.MethodPost, "/api/upload", map[string]any{
		"fileName": "backup.tar",
		"fileType": "application/x-tar",
		"fileSize": int64(10) << 30,
	}, &resp)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Multipart)
	assert.Empty(t, resp.UploadURL)
	assert.Equal(t, "mp-upload-id", resp.Multipart.UploadID)
	assert.Equal(t, int64(100)<<20, resp.Multipart.PartSize)

	// ceil(10 GiB / 100 MiB)
	assert.Equal(t, 103, resp.Multipart.PartCount)

	f := env.reload(resp.FileID)
	assert.True(t, f.MultipartOpen())
	assert.Len(t, env.s3.multipartKeys, 1)
}

func TestUploadCreateCdn(t *testing.T) {
	env := newTestEnv(t)

	var resp struct {
		FileID string  `json:"fileId"`
		CdnURL *string `json:"cdnUrl"`
	}

	w := env.do(http.MethodPost, "/api/upload", map[string]any{
		"fileName":     "logo 2.png",
		"fileType":     "image/png",
		"fileSize":     2048,
		"uploadType":   model.UploadTypeCDN,
		"maxDownloads": 3,
	}, &resp)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.CdnURL)
	assert.Equal(t, "https://cdn.test/"+resp.FileID+"/logo%202.png", *resp.CdnURL)

	// CDN files never expire and carry no download accounting
	f := env.reload(resp.FileID)
	assert.Equal(t, "cdn-test", f.Bucket)
	assert.Equal(t, resp.FileID+"/logo 2.png", f.S3Key)
	assert.Nil(t, f.TTL)
	assert.Nil(t, f.MaxDownloads)
}

func TestUploadConfirm(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedFile(func(f *model.File) { f.Status = model.StatusPending })

	w := env.do(http.MethodPost, "/api/files/"+f.ID+"/confirm", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusUploaded, env.reload(f.ID).Status)
}

func TestUploadConfirmMultipartRejected(t *testing.T) {
	env := newTestEnv(t)
	f := seedMultipart(env)

	w := env.do(http.MethodPost, "/api/files/"+f.ID+"/confirm", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// The open session is untouched
	updated := env.reload(f.ID)
	assert.Equal(t, model.StatusPending, updated.Status)
	assert.True(t, updated.MultipartOpen())
}

func TestUploadConfirmForeignFile(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedFile(func(f *model.File) { f.UserID = "someone-else" })

	w := env.do(http.MethodPost, "/api/files/"+f.ID+"/confirm", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func seedMultipart(env *testEnv) *model.File {
	return env.seedFile(func(f *model.File) {
		uploadID := "mp-upload-id"
		partCount := 3
		partSize := int64(100) << 20

		f.Status = model.StatusPending
		f.S3UploadID = &uploadID
		f.PartCount = &partCount
		f.PartSize = &partSize
	})
}

func TestUploadPart(t *testing.T) {
	env := newTestEnv(t)
	f := seedMultipart(env)

	var resp struct {
		UploadURL  string `json:"uploadUrl"`
		PartNumber int    `json:"partNumber"`
	}

	w := env.do(http.MethodPost, "/api/upload/"+f.ID+"/part", map[string]any{"partNumber": 2}, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, resp.PartNumber)
	assert.Contains(t, resp.UploadURL, "/2")
}

func TestUploadPartOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	f := seedMultipart(env)

	for _, part := range []int{0, 4} {
		w := env.do(http.MethodPost, "/api/upload/"+f.ID+"/part", map[string]any{"partNumber": part}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, part)
	}
}

func TestUploadPartNoSession(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedFile(nil)

	w := env.do(http.MethodPost, "/api/upload/"+f.ID+"/part", map[string]any{"partNumber": 1}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUploadComplete(t *testing.T) {
	env := newTestEnv(t)
	f := seedMultipart(env)

	w := env.do(http.MethodPost, "/api/upload/"+f.ID+"/complete", map[string]any{
		"parts": []aws.Part{
			{PartNumber: 1, ETag: "etag-1"},
			{PartNumber: 2, ETag: "etag-2"},
			{PartNumber: 3, ETag: "etag-3"},
		},
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, env.s3.completed, 1)
	assert.Len(t, env.s3.completed[0], 3)

	updated := env.reload(f.ID)
	assert.Equal(t, model.StatusReady, updated.Status)
	assert.False(t, updated.MultipartOpen())
}

func TestUploadCompleteRejected(t *testing.T) {
	env := newTestEnv(t)
	env.s3.failComplete = true
	f := seedMultipart(env)

	w := env.do(http.MethodPost, "/api/upload/"+f.ID+"/complete", map[string]any{
		"parts": []aws.Part{{PartNumber: 1, ETag: "etag-1"}},
	}, nil)

	require.Equal(t, http.StatusBadGateway, w.Code)

	// The session stays open so the client can retry or abort
	updated := env.reload(f.ID)
	assert.Equal(t, model.StatusPending, updated.Status)
	assert.True(t, updated.MultipartOpen())
}

func TestUploadCompleteNoParts(t *testing.T) {
	env := newTestEnv(t)
	f := seedMultipart(env)

	w := env.do(http.MethodPost, "/api/upload/"+f.ID+"/complete", map[string]any{"parts": []aws.Part{}}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadAbortIdempotent(t *testing.T) {
	env := newTestEnv(t)
	f := seedMultipart(env)

	for range 2 {
		w := env.do(http.MethodDelete, "/api/upload/"+f.ID, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	// The storage abort only ran while the session was still open
	assert.Equal(t, 1, env.s3.aborted)

	updated := env.reload(f.ID)
	assert.Equal(t, model.StatusAborted, updated.Status)
	assert.False(t, updated.MultipartOpen())
}
