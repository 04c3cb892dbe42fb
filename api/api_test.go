package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Pablo-Wynistorf/DataDrop/aws"
	"github.com/Pablo-Wynistorf/DataDrop/middleware"
	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/Pablo-Wynistorf/DataDrop/security"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeStorage stands in for the S3 wrapper. Presigned URLs are synthesized
// from the key so assertions can check which object a handler touched.
type fakeStorage struct {
	multipartKeys []string
	completed     [][]aws.Part
	aborted       int
	failComplete  bool
}

func (f *fakeStorage) PresignUpload(ctx context.Context, bucket, key, contentType string, size int64, expires time.Duration) (string, error) {
	return "https://s3.test/put/" + bucket + "/" + key, nil
}

func (f *fakeStorage) PresignDownload(ctx context.Context, bucket, key, fileName string, expires time.Duration) (string, error) {
	return "https://s3.test/get/" + bucket + "/" + key, nil
}

func (f *fakeStorage) CreateMultipart(ctx context.Context, bucket, key, contentType string) (string, error) {
	f.multipartKeys = append(f.multipartKeys, key)
	return "mp-upload-id", nil
}

func (f *fakeStorage) PresignPart(ctx context.Context, bucket, key, uploadID string, partNumber int32, expires time.Duration) (string, error) {
	return fmt.Sprintf("https://s3.test/part/%s/%d", key, partNumber), nil
}

func (f *fakeStorage) CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []aws.Part) error {
	if f.failComplete {
		return errors.New("entity too small")
	}

	f.completed = append(f.completed, parts)
	return nil
}

func (f *fakeStorage) AbortMultipart(ctx context.Context, bucket, key, uploadID string) error {
	f.aborted++
	return nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (f *fakeQueue) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

type testEnv struct {
	t     *testing.T
	api   *API
	s3    *fakeStorage
	queue *fakeQueue

	// Identity injected by the stub authenticator, swap it to act as a
	// different caller
	id *security.Identity
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.File{}, model.Session{}))

	env := &testEnv{
		t:     t,
		s3:    &fakeStorage{},
		queue: &fakeQueue{},
		id: &security.Identity{
			UserID: "user-1",
			Email:  "user@example.com",
			Name:   "User One",
			Roles:  []string{security.RoleFileUser, security.RoleCDNUser},
		},
	}

	env.api = &API{
		DB:          db,
		Router:      gin.New(),
		S3:          env.s3,
		Queue:       env.queue,
		Codec:       security.NewCodec("test-secret"),
		Bucket:      "files-test",
		CDNBucket:   "cdn-test",
		CDNURL:      "https://cdn.test",
		FrontendURL: "https://app.test",
	}

	env.api.Router.Use(middleware.NewRequestIDMiddleware())
	env.api.registerRoutes(func(c *gin.Context) {
		c.Set("userID", env.id.UserID)
		c.Set("identity", env.id)
		c.Set("perms", security.ParseRoles(env.id.Roles))
		c.Next()
	})

	return env
}

// do runs one request through the full router and decodes the JSON
// response into out when out is non-nil.
func (e *testEnv) do(method, path string, body, out any) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.api.Router.ServeHTTP(w, req)

	if out != nil && w.Body.Len() > 0 {
		require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), out))
	}

	return w
}

// seedFile writes a file record directly and returns it.
func (e *testEnv) seedFile(mutate func(*model.File)) *model.File {
	e.t.Helper()

	ttl := time.Now().Add(time.Hour).Unix()
	expiresAt := time.Unix(ttl, 0).UTC()

	f := &model.File{
		ID:         fmt.Sprintf("file-%d", time.Now().UnixNano()),
		UserID:     e.id.UserID,
		FileName:   "report.pdf",
		FileType:   "application/pdf",
		FileSize:   1 << 20,
		Bucket:     "files-test",
		UploadType: model.UploadTypePrivate,
		Status:     model.StatusUploaded,
		CreatedAt:  time.Now(),
		TTL:        &ttl,
		ExpiresAt:  &expiresAt,
	}
	f.S3Key = "uploads/" + f.ID + "/" + f.FileName

	if mutate != nil {
		mutate(f)
	}

	require.NoError(e.t, e.api.DB.Create(f).Error)
	return f
}

// reload fetches the current state of a file record.
func (e *testEnv) reload(id string) *model.File {
	e.t.Helper()

	var f model.File
	require.NoError(e.t, e.api.DB.Where("id = ?", id).First(&f).Error)
	return &f
}
