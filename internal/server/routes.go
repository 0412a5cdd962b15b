package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/foldernotify/internal/server/handlers/api"
	completionh "github.com/openmined/foldernotify/internal/server/handlers/completion"
	"github.com/openmined/foldernotify/internal/server/handlers/folders"
	"github.com/openmined/foldernotify/internal/server/handlers/push"
	"github.com/openmined/foldernotify/internal/server/handlers/status"
	"github.com/openmined/foldernotify/internal/server/middlewares"
	"github.com/openmined/foldernotify/internal/version"
)

var (
	errNotFound         = errors.New("not found")
	errMethodNotAllowed = errors.New("method not allowed")
)

var healthPaths = []string{"/healthz", "/health", "/_ah/warmup"}

func SetupRoutes(cfg *Config, svc *Services) (http.Handler, error) {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	pushH := push.New(svc.Gate, &cfg.Push)
	foldersH := folders.New(svc.Folders, svc.Gate)
	statusH := status.New(svc.Folders, status.Info{
		Prefixes:   svc.Gate.Prefixes(),
		Notifier:   svc.Notifier.Name(),
		Analytics:  svc.AnalyticsName(),
		Completion: svc.CompletionName(),
	})

	var sweeper completionh.Sweeper
	if svc.Completion != nil {
		sweeper = svc.Completion
	}
	completionH := completionh.New(sweeper)

	r.Use(middlewares.Logger(healthPaths...))
	r.Use(gin.Recovery())
	if cfg.HTTP.TLSEnabled() {
		r.Use(middlewares.HSTS())
	} else {
		r.Use(middlewares.SecureHeaders())
	}
	// global so preflights reach it before method routing
	r.Use(middlewares.CORS(cfg.HTTP.CORSOrigins))

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)
	r.GET("/health", HealthHandler)
	r.GET("/_ah/warmup", WarmupHandler)

	// push subscriptions are configured with either path
	r.POST("/", pushH.Push)
	r.POST("/push", pushH.Push)

	rate := cfg.HTTP.AdminRate
	if rate == "" {
		rate = DefaultAdminRate
	}
	limiter, err := middlewares.RateLimiter(rate)
	if err != nil {
		return nil, err
	}

	v1 := r.Group("/api/v1")
	v1.Use(limiter)
	v1.Use(middlewares.JWTAuth(svc.Auth))
	v1.Use(middlewares.GZIP())
	{
		v1.GET("/status", statusH.Status)

		v1.GET("/folders", foldersH.List)
		v1.GET("/folders/*key", foldersH.Get)
		v1.DELETE("/folders/*key", foldersH.Delete)
		v1.POST("/folders/purge", foldersH.Purge)

		v1.POST("/completion/sweep", completionH.Sweep)
	}

	r.NoRoute(func(c *gin.Context) {
		api.AbortWithError(c, http.StatusNotFound, api.CodeInvalidRequest, errNotFound)
	})

	r.NoMethod(func(c *gin.Context) {
		api.AbortWithError(c, http.StatusMethodNotAllowed, api.CodeInvalidRequest, errMethodNotAllowed)
	})

	return r.Handler(), nil
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// WarmupHandler answers App Engine style warmup requests
func WarmupHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, "OK")
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
