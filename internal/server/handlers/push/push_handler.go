package push

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/foldernotify/internal/server/gate"
	"github.com/openmined/foldernotify/internal/server/handlers/api"
)

type PushHandler struct {
	gate Gate
	cfg  Config
}

func New(g Gate, cfg *Config) *PushHandler {
	c := *cfg
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = DefaultMaxBodySize
	}
	return &PushHandler{gate: g, cfg: c}
}

// Push handles one push delivery.
// 200 acknowledges (including filtered and already notified), 400 is a
// payload that retries cannot fix, 500 asks the transport to redeliver.
func (h *PushHandler) Push(ctx *gin.Context) {
	if h.cfg.VerificationToken != "" {
		token := ctx.Query("token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.VerificationToken)) != 1 {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeUnauthorized, errors.New("invalid verification token"))
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, h.cfg.MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.AbortWithError(ctx, http.StatusRequestEntityTooLarge, api.CodeBodyTooLarge, fmt.Errorf("body exceeds %d bytes", tooLarge.Limit))
			return
		}
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("read body: %w", err))
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), h.cfg.Timeout)
	defer cancel()

	res, err := h.gate.HandlePayload(reqCtx, body)
	switch {
	case err == nil:
		ctx.PureJSON(http.StatusOK, &PushResponse{
			Notified:  res.Notified,
			Outcome:   string(res.Outcome),
			FolderKey: res.FolderKey,
		})

	case errors.Is(err, gate.ErrValidation):
		slog.Warn("push rejected", "error", err, "size", len(body))
		if h.cfg.AckMalformed {
			ctx.Error(err)
			ctx.PureJSON(http.StatusOK, &PushResponse{Outcome: outcomeMalformed})
			return
		}
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)

	case errors.Is(err, gate.ErrStore):
		slog.Error("push store failure", "error", err)
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeStoreUnavailable, err)

	default:
		slog.Error("push failed", "error", err)
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
	}
}
