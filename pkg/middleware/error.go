package middleware

import (
	"errors"
	"net/http"

	"amulet-controlplane/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last error attached to the gin context. Domain errors
// keep their CoreStatus mapping; anything else is masked as internal.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err

		var be errutil.BaseError
		if errors.As(err, &be) {
			c.JSON(be.Code.HTTPStatus(), be.JSON())
			return
		}

		zap.L().Error("unhandled request error",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		internal := errutil.Internal("internal error").(errutil.BaseError)
		c.JSON(http.StatusInternalServerError, internal.JSON())
	}
}
