package api

import (
	"net/http"

	"github.com/Pablo-Wynistorf/DataDrop/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileDelete queues the file for teardown. The actual deletion is done by
// the coordinator worker, which re-checks ownership against the trigger
// before touching anything.
func (a *API) FileDelete(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	file, ok := a.fetchOwned(c)
	if !ok {
		return
	}

	task, err := service.NewDeleteTask(service.DeleteTrigger{
		FileID: file.ID,
		UserID: userID,
		Reason: service.ReasonUserRequest,
	})
	if err == nil {
		_, err = a.Queue.Enqueue(task)
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to enqueue deletion", zap.String("fileID", file.ID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "File deletion queued",
	})
}
