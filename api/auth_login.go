package api

import (
	"net/http"
	"time"

	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/Pablo-Wynistorf/DataDrop/util"
	oidc "github.com/coreos/go-oidc"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// loginStateTTL bounds how long a login redirect may sit unfinished before
// its state record is garbage.
const loginStateTTL = 10 * time.Minute

// AuthLogin starts the browser login flow. A one-shot state record pins
// the redirect to this attempt, the nonce it carries is checked again when
// the id_token comes back.
func (a *API) AuthLogin(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	conf, err := a.OIDC.OAuthConfig(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Identity provider unavailable",
			"requestID": requestID,
		})

		zap.L().Error("Failed to load OIDC configuration", zap.Error(err))
		return
	}

	state := model.Session{
		ID:    util.RandStr(32),
		Type:  model.SessionAuthState,
		Nonce: util.RandStr(32),
		TTL:   time.Now().Add(loginStateTTL).Unix(),
	}

	if err := a.DB.Create(&state).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to persist login state", zap.Error(err))
		return
	}

	c.Redirect(http.StatusFound, conf.AuthCodeURL(state.ID, oidc.Nonce(state.Nonce)))
}
