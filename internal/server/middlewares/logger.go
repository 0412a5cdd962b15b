package middlewares

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"
)

// Logger logs requests under the "http" group. skipPaths are left out so
// health checks do not drown out push deliveries.
func Logger(skipPaths ...string) gin.HandlerFunc {
	httpLogger := slog.Default().WithGroup("http")

	filters := make([]slogGin.Filter, 0, 1)
	if len(skipPaths) > 0 {
		filters = append(filters, slogGin.IgnorePath(skipPaths...))
	}

	return slogGin.NewWithConfig(httpLogger, slogGin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
		WithUserAgent:    true,
		Filters:          filters,
	})
}
