package service

import (
	"github.com/hibiken/asynq"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// NewQueueClient returns the producer side of the deletion queue.
func NewQueueClient() *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{Addr: viper.GetString("redis.addr")})
}

// StartWorker runs the queue consumer for deletion triggers in the
// background. Handler errors make asynq redeliver, which is safe because
// the teardown is idempotent.
func StartWorker(d *Coordinator) *asynq.Server {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: viper.GetString("redis.addr")},
		asynq.Config{Concurrency: 5},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeFileDelete, d.HandleDeleteTask)

	go func() {
		if err := srv.Run(mux); err != nil {
			zap.L().Error("Deletion worker stopped", zap.Error(err))
		}
	}()

	return srv
}
