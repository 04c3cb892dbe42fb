package api

import (
	"net/http"

	"github.com/Pablo-Wynistorf/DataDrop/security"
	"github.com/gin-gonic/gin"
)

// AuthVerify echoes the caller's identity and resolved permissions so the
// frontend and the CLI can gate their UI without re-deriving roles.
func (a *API) AuthVerify(c *gin.Context) {
	id := c.MustGet("identity").(*security.Identity)
	perms := c.MustGet("perms").(security.Permissions)

	c.JSON(http.StatusOK, gin.H{
		"userId":      id.UserID,
		"email":       id.Email,
		"name":        id.Name,
		"permissions": perms,
	})
}
