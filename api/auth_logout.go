package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AuthLogout clears the session cookie. The id_token itself stays valid
// until its expiry, there is nothing server-side to revoke.
func (a *API) AuthLogout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("session", "", -1, "/", "", true, true)

	c.JSON(http.StatusOK, gin.H{"success": true})
}
