package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Pablo-Wynistorf/DataDrop/security"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionVerifier checks a browser session token against the identity
// provider. Satisfied by security.OIDCVerifier.
type SessionVerifier interface {
	Verify(ctx context.Context, rawToken string) (*security.Identity, error)
}

// NewAuthMiddleware authenticates a request either through a Bearer CLI
// token or through the session cookie set by the OIDC callback. Both paths
// attach the same identity and resolved permissions to the context.
func NewAuthMiddleware(codec *security.Codec, sessions SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.MustGet("requestID").(string)

		var id *security.Identity

		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			cliID, err := codec.VerifyCLI(strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":     "Invalid CLI token",
					"requestID": requestID,
				})
				return
			}

			id = cliID
		} else {
			cookie, err := c.Cookie("session")
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":     "Unauthorized",
					"requestID": requestID,
				})
				return
			}

			sessID, err := sessions.Verify(c.Request.Context(), cookie)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":     "Invalid token",
					"requestID": requestID,
				})

				zap.L().Debug("Session verification failed", zap.Error(err), zap.String("requestID", requestID))
				return
			}

			id = sessID
		}

		c.Set("userID", id.UserID)
		c.Set("identity", id)
		c.Set("perms", security.ParseRoles(id.Roles))
		c.Next()
	}
}
