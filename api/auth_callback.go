package api

import (
	"net/http"
	"time"

	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuthCallback finishes the browser login flow. The state record is
// consumed before the code exchange so a replayed callback can't mint a
// second session.
func (a *API) AuthCallback(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	stateID := c.Query("state")
	code := c.Query("code")
	if stateID == "" || code == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Missing state or code",
			"requestID": requestID,
		})
		return
	}

	var state model.Session
	err := a.DB.
		Where("id = ? AND type = ? AND ttl > ?", stateID, model.SessionAuthState, time.Now().Unix()).
		First(&state).Error
	if err != nil {
		status := http.StatusInternalServerError
		msg := "Internal server error"

		if err == gorm.ErrRecordNotFound {
			status = http.StatusBadRequest
			msg = "Unknown or expired login attempt"
		} else {
			zap.L().Error("Failed to load login state", zap.Error(err))
		}

		c.AbortWithStatusJSON(status, gin.H{"error": msg, "requestID": requestID})
		return
	}

	if err := a.DB.Delete(&model.Session{}, "id = ?", state.ID).Error; err != nil {
		zap.L().Error("Failed to consume login state", zap.String("state", state.ID), zap.Error(err))
	}

	conf, err := a.OIDC.OAuthConfig(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Identity provider unavailable",
			"requestID": requestID,
		})

		zap.L().Error("Failed to load OIDC configuration", zap.Error(err))
		return
	}

	token, err := conf.Exchange(c.Request.Context(), code)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error":     "Code exchange failed",
			"requestID": requestID,
		})

		zap.L().Error("OIDC code exchange failed", zap.Error(err))
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error":     "Identity provider returned no id_token",
			"requestID": requestID,
		})
		return
	}

	id, expiry, err := a.OIDC.VerifyLogin(c.Request.Context(), rawIDToken, state.Nonce)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":     "Invalid token",
			"requestID": requestID,
		})

		zap.L().Warn("Rejected id_token on callback", zap.Error(err))
		return
	}

	// The cookie is the session, its lifetime tracks the token's
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("session", rawIDToken, int(time.Until(expiry).Seconds()), "/", "", true, true)

	zap.L().Info("User logged in", zap.String("userID", id.UserID))

	c.Redirect(http.StatusFound, a.FrontendURL)
}
