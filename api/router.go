// Package api contains all endpoints available
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/Pablo-Wynistorf/DataDrop/aws"
	"github.com/Pablo-Wynistorf/DataDrop/cloudflare"
	"github.com/Pablo-Wynistorf/DataDrop/db"
	"github.com/Pablo-Wynistorf/DataDrop/middleware"
	"github.com/Pablo-Wynistorf/DataDrop/security"
	"github.com/Pablo-Wynistorf/DataDrop/service"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	ginzap "github.com/gin-contrib/zap"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

// Storage is the slice of the object storage backend the handlers use.
// Satisfied by aws.S3Client.
type Storage interface {
	PresignUpload(ctx context.Context, bucket, key, contentType string, size int64, expires time.Duration) (string, error)
	PresignDownload(ctx context.Context, bucket, key, fileName string, expires time.Duration) (string, error)
	CreateMultipart(ctx context.Context, bucket, key, contentType string) (string, error)
	PresignPart(ctx context.Context, bucket, key, uploadID string, partNumber int32, expires time.Duration) (string, error)
	CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []aws.Part) error
	AbortMultipart(ctx context.Context, bucket, key, uploadID string) error
}

// Enqueuer is the producer side of the deletion queue. Satisfied by
// asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type API struct {
	DB      *gorm.DB
	Router  *gin.Engine
	S3      Storage
	Queue   Enqueuer
	Codec   *security.Codec
	OIDC    *security.OIDCVerifier
	Deleter *service.Coordinator

	// Bucket names and public URLs the handlers compose responses from
	Bucket      string
	CDNBucket   string
	CDNURL      string
	FrontendURL string
}

var store persist.CacheStore = persist.NewMemoryStore(time.Minute)

// newCacheStore picks the response cache backend. gin-cache's redis store
// is built on go-redis v8, which is a separate module from the v9 client
// asynq pulls in.
func newCacheStore() persist.CacheStore {
	if viper.GetBool("cache.redis") {
		return persist.NewRedisStore(redis.NewClient(&redis.Options{
			Addr: viper.GetString("redis.addr"),
		}))
	}

	return persist.NewMemoryStore(time.Minute)
}

func NewRouter() (*API, error) {
	a := &API{}

	database, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}
	a.DB = database

	makeLogger()

	s3, err := aws.NewS3()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client, %w", err)
	}

	a.S3 = s3
	a.Bucket = s3.Bucket
	a.CDNBucket = s3.CDNBucket
	a.CDNURL = viper.GetString("aws.cdn_url")
	a.FrontendURL = viper.GetString("host.frontend_url")
	a.Codec = security.NewCodec(viper.GetString("jwt.secret"))
	a.OIDC = security.NewOIDCVerifier()
	a.Queue = service.NewQueueClient()
	a.Deleter = service.NewCoordinator(database, s3, cloudflare.NewPurgeClient())

	store = newCacheStore()

	router := gin.New()
	a.Router = router

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     []string{a.FrontendURL},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	a.registerRoutes(middleware.NewAuthMiddleware(a.Codec, a.OIDC))

	return a, nil
}

// registerRoutes wires up the route table. Split out so tests can mount
// the handlers on a fake backend behind a stub authenticator.
func (a *API) registerRoutes(auth gin.HandlerFunc) {
	main := a.Router.Group("/api")
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		main.HEAD("/heartbeat", a.Heartbeat)
	}

	authGroup := main.Group("/auth", middleware.BodySizeLimiter(1<<20))
	{
		// GET /api/auth/login		-> Redirects to the identity provider
		authGroup.GET("/login", a.AuthLogin)

		// GET /api/auth/callback	-> OIDC code exchange, sets the session cookie
		authGroup.GET("/callback", a.AuthCallback)

		// GET /api/auth/verify		-> Echoes the caller's identity and permissions
		authGroup.GET("/verify", auth, a.AuthVerify)

		// POST /api/auth/logout	-> Clears the session cookie
		authGroup.POST("/logout", a.AuthLogout)

		// POST /api/auth/cli/login	-> Starts a CLI device authorization
		authGroup.POST("/cli/login", a.CLILogin)

		// GET /api/auth/cli/poll/:code	-> CLI polls for its 30-day token
		authGroup.GET("/cli/poll/:code", a.CLIPoll)

		// POST /api/auth/cli/authorize	-> Browser approves a pending CLI login
		authGroup.POST("/cli/authorize", auth, a.CLIAuthorize)
	}

	upload := main.Group("/upload", auth, middleware.BodySizeLimiter(1<<20))
	{
		// POST /api/upload		-> Creates an upload session and returns transfer locations
		upload.POST("", a.UploadCreate)

		// POST /api/upload/:fileID/part	-> Presigns one part of an open multipart session
		upload.POST("/:fileID/part", a.UploadPart)

		// POST /api/upload/:fileID/complete	-> Assembles an open multipart session
		upload.POST("/:fileID/complete", a.UploadComplete)

		// DELETE /api/upload/:fileID	-> Aborts an open multipart session
		upload.DELETE("/:fileID", a.UploadAbort)
	}

	files := main.Group("/files", auth, middleware.BodySizeLimiter(1<<20))
	{
		// GET /api/files		-> Lists the caller's files with derived expiry fields
		files.GET("", a.FileList)

		// POST /api/files/:fileID/confirm	-> Marks a single-shot upload as done
		files.POST("/:fileID/confirm", a.UploadConfirm)

		// POST /api/files/:fileID/share	-> Mints a share link
		files.POST("/:fileID/share", a.FileShare)

		// PATCH /api/files/:fileID	-> Edits expiry / download limit
		files.PATCH("/:fileID", a.FileEdit)

		// DELETE /api/files/:fileID	-> Queues the file for deletion
		files.DELETE("/:fileID", a.FileDelete)
	}

	file := main.Group("/file")
	{
		// GET /api/file/:token/info	-> Resolves a share token into display info
		file.GET("/:token/info", cacheFor(10), a.DownloadInfo)

		// POST /api/file/:token	-> Issues a download URL and counts the download
		file.POST("/:token", a.Download)
	}
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

func cacheFor(sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}
