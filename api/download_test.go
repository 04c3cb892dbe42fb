package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/Pablo-Wynistorf/DataDrop/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) shareToken(fileID string, lifetime time.Duration) string {
	e.t.Helper()

	token, err := e.api.Codec.SignShare(fileID, lifetime)
	require.NoError(e.t, err)
	return token
}

func TestDownloadInfo(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedFile(func(f *model.File) {
		limit, count := 5, 2
		f.MaxDownloads = &limit
		f.DownloadCount = &count
	})
	token := env.shareToken(f.ID, time.Minute)

	var resp struct {
		FileName           string `json:"fileName"`
		FileSize           int64  `json:"fileSize"`
		DownloadsRemaining *int   `json:"downloadsRemaining"`
	}

	w := env.do(http.MethodGet, "/api/file/"+token+"/info", nil, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "report.pdf", resp.FileName)
	assert.Equal(t, int64(1)<<20, resp.FileSize)
	require.NotNil(t, resp.DownloadsRemaining)
	assert.Equal(t, 3, *resp.DownloadsRemaining)

	// Reading info never consumes a download
	require.NotNil(t, env.reload(f.ID).DownloadCount)
	assert.Equal(t, 2, *env.reload(f.ID).DownloadCount)
}

func TestDownloadTokenGates(t *testing.T) {
	env := newTestEnv(t)

	t.Run("expired link", func(t *testing.T) {
		f := env.seedFile(nil)
		token := env.shareToken(f.ID, -time.Minute)

		w := env.do(http.MethodPost, "/api/file/"+token, nil, nil)
		assert.Equal(t, http.StatusGone, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/file/not-a-token", nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("deleted file", func(t *testing.T) {
		token := env.shareToken("no-such-file", time.Minute)

		w := env.do(http.MethodPost, "/api/file/"+token, nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("expired file behind valid link", func(t *testing.T) {
		f := env.seedFile(func(f *model.File) {
			ttl := time.Now().Add(-time.Minute).Unix()
			f.TTL = &ttl
		})
		token := env.shareToken(f.ID, time.Minute)

		w := env.do(http.MethodPost, "/api/file/"+token, nil, nil)
		assert.Equal(t, http.StatusGone, w.Code)
	})

	t.Run("cdn file", func(t *testing.T) {
		f := env.seedFile(func(f *model.File) {
			f.UploadType = model.UploadTypeCDN
			f.TTL = nil
			f.ExpiresAt = nil
		})
		token := env.shareToken(f.ID, time.Minute)

		w := env.do(http.MethodPost, "/api/file/"+token, nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDownload(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedFile(nil)
	token := env.shareToken(f.ID, time.Minute)

	var resp struct {
		DownloadURL        string `json:"downloadUrl"`
		FileName           string `json:"fileName"`
		DownloadsRemaining *int   `json:"downloadsRemaining"`
	}

	w := env.do(http.MethodPost, "/api/file/"+token, nil, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://s3.test/get/files-test/"+f.S3Key, resp.DownloadURL)
	assert.Equal(t, "report.pdf", resp.FileName)

	// Unlimited file: the download is still counted, nothing is enforced
	assert.Nil(t, resp.DownloadsRemaining)
	require.NotNil(t, env.reload(f.ID).DownloadCount)
	assert.Equal(t, 1, *env.reload(f.ID).DownloadCount)
	assert.Empty(t, env.queue.tasks)
}

func TestDownloadLimitAccounting(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedFile(func(f *model.File) {
		limit, count := 3, 0
		f.MaxDownloads = &limit
		f.DownloadCount = &count
	})
	token := env.shareToken(f.ID, time.Minute)

	for want := 2; want >= 0; want-- {
		var resp struct {
			DownloadsRemaining *int `json:"downloadsRemaining"`
		}

		w := env.do(http.MethodPost, "/api/file/"+token, nil, &resp)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, resp.DownloadsRemaining)
		assert.Equal(t, want, *resp.DownloadsRemaining)
	}

	// The budget is spent, the fourth attempt is refused
	w := env.do(http.MethodPost, "/api/file/"+token, nil, nil)
	assert.Equal(t, http.StatusGone, w.Code)

	require.NotNil(t, env.reload(f.ID).DownloadCount)
	assert.Equal(t, 3, *env.reload(f.ID).DownloadCount)

	// Exactly the download that landed on the ceiling queued the teardown
	require.Len(t, env.queue.tasks, 1)

	var trig service.DeleteTrigger
	require.NoError(t, json.Unmarshal(env.queue.tasks[0].Payload(), &trig))
	assert.Equal(t, f.ID, trig.FileID)
	assert.Equal(t, service.ReasonDownloadLimit, trig.Reason)
}

func TestDownloadConcurrentAtLimit(t *testing.T) {
	env := newTestEnv(t)

	const limit = 4

	f := env.seedFile(func(f *model.File) {
		ceiling, count := limit, 0
		f.MaxDownloads = &ceiling
		f.DownloadCount = &count
	})
	token := env.shareToken(f.ID, time.Minute)

	// With exactly as many racing downloads as the budget allows, every
	// one of them must win: the conditional increment serializes the
	// counter at the database
	var wg sync.WaitGroup
	codes := make([]int, limit)

	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = env.do(http.MethodPost, "/api/file/"+token, nil, nil).Code
		}()
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, i)
	}

	require.NotNil(t, env.reload(f.ID).DownloadCount)
	assert.Equal(t, limit, *env.reload(f.ID).DownloadCount)

	// Only the request that landed on the ceiling queued the teardown
	assert.Len(t, env.queue.tasks, 1)
}
