package api

import (
	"net/http"
	"time"

	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/Pablo-Wynistorf/DataDrop/security"
	"github.com/gin-gonic/gin"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// cliAuthTTL is how long a device code stays redeemable. The CLI polls
// within this window, after it the handshake has to start over.
const cliAuthTTL = 10 * time.Minute

// CLILogin starts the device authorization handshake. The CLI shows the
// returned URL to the user and polls the code until a logged-in browser
// approves it.
func (a *API) CLILogin(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	code, err := gonanoid.New(16)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to generate device code", zap.Error(err))
		return
	}

	handshake := model.Session{
		ID:     code,
		Type:   model.SessionCLIAuth,
		Status: model.CLIStatusPending,
		TTL:    time.Now().Add(cliAuthTTL).Unix(),
	}

	if err := a.DB.Create(&handshake).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to persist device code", zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":      code,
		"verifyUrl": a.FrontendURL + "/cli?code=" + code,
		"expiresIn": int(cliAuthTTL.Seconds()),
	})
}

// CLIPoll reports the state of a device code. An authorized code is
// consumed on first read, the token is handed out exactly once.
func (a *API) CLIPoll(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	code := c.Param("code")

	var handshake model.Session
	err := a.DB.
		Where("id = ? AND type = ? AND ttl > ?", code, model.SessionCLIAuth, time.Now().Unix()).
		First(&handshake).Error
	if err != nil {
		status := http.StatusNotFound
		msg := "Unknown or expired code"

		if err != gorm.ErrRecordNotFound {
			status = http.StatusInternalServerError
			msg = "Internal server error"
			zap.L().Error("Failed to load device code", zap.Error(err))
		}

		c.AbortWithStatusJSON(status, gin.H{"error": msg, "requestID": requestID})
		return
	}

	if handshake.Status != model.CLIStatusAuthorized || handshake.CLIToken == nil {
		c.JSON(http.StatusOK, gin.H{"status": model.CLIStatusPending})
		return
	}

	if err := a.DB.Delete(&model.Session{}, "id = ?", handshake.ID).Error; err != nil {
		zap.L().Error("Failed to consume device code", zap.String("code", handshake.ID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"status": model.CLIStatusAuthorized,
		"token":  *handshake.CLIToken,
	})
}

type cliAuthorizeOpts struct {
	Code string `json:"code" binding:"required"`
}

// CLIAuthorize lets a logged-in browser approve a pending device code.
// The minted token carries the approving user's identity and roles.
func (a *API) CLIAuthorize(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	id := c.MustGet("identity").(*security.Identity)

	var opts cliAuthorizeOpts
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Missing code",
			"requestID": requestID,
		})
		return
	}

	token, err := a.Codec.SignCLI(*id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to sign CLI token", zap.Error(err))
		return
	}

	res := a.DB.
		Model(&model.Session{}).
		Where("id = ? AND type = ? AND status = ? AND ttl > ?",
			opts.Code, model.SessionCLIAuth, model.CLIStatusPending, time.Now().Unix()).
		Updates(map[string]any{
			"status":    model.CLIStatusAuthorized,
			"cli_token": token,
			"user_id":   id.UserID,
			"email":     id.Email,
			"name":      id.Name,
		})
	if res.Error != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to authorize device code", zap.Error(res.Error))
		return
	}

	if res.RowsAffected == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error":     "Unknown or expired code",
			"requestID": requestID,
		})
		return
	}

	zap.L().Info("CLI login authorized", zap.String("userID", id.UserID))

	c.JSON(http.StatusOK, gin.H{"success": true})
}
