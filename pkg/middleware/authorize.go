package middleware

import (
	"net/http"
	"strings"

	"amulet-controlplane/pkg/errutil"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Authorize enforces the optional casbin policy: subject is the
// authenticated operator, object the admin resource segment, action
// read/write by HTTP method. A nil enforcer allows everything, matching
// deployments without an access-control policy.
func Authorize(enforcer *casbin.Enforcer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if enforcer == nil {
			c.Next()
			return
		}

		sub := c.GetString(OperatorKey)
		obj := resourceFromPath(c.FullPath())
		act := "write"
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			act = "read"
		}

		allowed, err := enforcer.Enforce(sub, obj, act)
		if err != nil {
			zap.L().Error("casbin enforce failed", zap.Error(err))
			internal := errutil.Internal("authorization failure").(errutil.BaseError)
			c.AbortWithStatusJSON(internal.Code.HTTPStatus(), internal.JSON())
			return
		}
		if !allowed {
			forbidden := errutil.Forbidden("operation not permitted").(errutil.BaseError)
			c.AbortWithStatusJSON(forbidden.Code.HTTPStatus(), forbidden.JSON())
			return
		}

		c.Next()
	}
}

// resourceFromPath extracts the first path segment after the admin prefix,
// e.g. /admin/api/licenses/:id/credit -> licenses.
func resourceFromPath(path string) string {
	trimmed := strings.TrimPrefix(path, "/admin/api/")
	if idx := strings.IndexByte(trimmed, '/'); idx > 0 {
		return trimmed[:idx]
	}
	return trimmed
}
