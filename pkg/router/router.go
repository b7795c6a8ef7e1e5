package router

import (
	"net/http"
	"time"

	"amulet-controlplane/pkg/config"
	"amulet-controlplane/pkg/health"
	"amulet-controlplane/pkg/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("router", fx.Provide(New))

// AdminRouter is the authenticated /admin/api group. Every route registered
// on it sits behind basic auth and the optional casbin policy.
type AdminRouter struct {
	*gin.RouterGroup
}

// PublicRouter carries the unauthenticated console surface (/api, health).
type PublicRouter struct {
	*gin.RouterGroup
}

type Params struct {
	fx.In
	Config   *config.Config
	Enforcer *casbin.Enforcer `optional:"true"`
	Health   health.HealthService
}

type Result struct {
	fx.Out
	Engine  *gin.Engine
	Handler http.Handler
	Admin   AdminRouter
	Public  PublicRouter
}

func New(p Params) Result {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(), middleware.Error())

	engine.GET("/healthz", p.Health.Liveness)
	engine.GET("/readyz", p.Health.Readiness)

	admin := engine.Group("/admin/api",
		middleware.BasicAuth(p.Config),
		middleware.Authorize(p.Enforcer),
	)

	public := engine.Group("/")

	return Result{
		Engine:  engine,
		Handler: engine,
		Admin:   AdminRouter{admin},
		Public:  PublicRouter{public},
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		zap.L().Info("http.request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
