package middlewares

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/openmined/foldernotify/internal/server/auth"
	"github.com/openmined/foldernotify/internal/server/handlers/api"
)

const (
	bearerPrefix      = "Bearer "
	authHeader        = "Authorization"
	SubjectContextKey = "subject"
)

var (
	errMissingHeader = errors.New("authorization header is missing")
	errBadHeader     = errors.New("authorization header format must be Bearer {token}")
)

// JWTAuth guards the admin API with tokens minted by the `token` command
func JWTAuth(authService *auth.AuthService) gin.HandlerFunc {
	if !authService.IsEnabled() {
		slog.Info("auth middleware disabled")
		return func(ctx *gin.Context) {
			ctx.Next()
		}
	}

	slog.Info("auth middleware enabled")
	return func(ctx *gin.Context) {
		value := ctx.GetHeader(authHeader)
		if value == "" {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeUnauthorized, errMissingHeader)
			return
		}

		if !strings.HasPrefix(value, bearerPrefix) {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeUnauthorized, errBadHeader)
			return
		}

		claims, err := authService.ValidateToken(ctx.Request.Context(), strings.TrimPrefix(value, bearerPrefix))
		if err != nil {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeUnauthorized, err)
			return
		}

		ctx.Set(SubjectContextKey, claims.Subject)
		ctx.Next()
	}
}
