package middleware

import (
	"crypto/subtle"
	"strconv"

	"amulet-controlplane/pkg/config"
	"amulet-controlplane/pkg/errutil"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// OperatorKey is the gin context key holding the authenticated admin user.
const OperatorKey = "operator"

// BasicAuth guards admin routes with HTTP basic credentials. Invalid or
// missing credentials abort before any handler (and therefore any store
// access) runs.
func BasicAuth(cfg *config.Config) gin.HandlerFunc {
	realm := "Basic realm=" + strconv.Quote(cfg.Admin.Realm)

	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		if !ok || !credentialsMatch(cfg, user, pass) {
			c.Header("WWW-Authenticate", realm)
			unauthorized := errutil.Unauthorized("login required").(errutil.BaseError)
			c.AbortWithStatusJSON(unauthorized.Code.HTTPStatus(), unauthorized.JSON())
			return
		}

		c.Set(OperatorKey, user)
		c.Next()
	}
}

func credentialsMatch(cfg *config.Config, user, pass string) bool {
	// no configured credential means no access, never open access
	if cfg.Admin.Password == "" && cfg.Admin.PasswordHash == "" {
		return false
	}

	if subtle.ConstantTimeCompare([]byte(user), []byte(cfg.Admin.User)) != 1 {
		return false
	}

	if cfg.Admin.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(cfg.Admin.PasswordHash), []byte(pass)) == nil
	}

	return subtle.ConstantTimeCompare([]byte(pass), []byte(cfg.Admin.Password)) == 1
}
