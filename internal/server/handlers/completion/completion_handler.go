package completion

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/foldernotify/internal/server/completion"
	"github.com/openmined/foldernotify/internal/server/handlers/api"
)

var errDisabled = errors.New("completion pass is not enabled")

type Sweeper interface {
	Sweep(ctx context.Context) (*completion.SweepResult, error)
}

type CompletionHandler struct {
	sweeper Sweeper
}

// New creates the handler. A nil sweeper answers every request with 404.
func New(sweeper Sweeper) *CompletionHandler {
	return &CompletionHandler{sweeper: sweeper}
}

// Sweep runs one completion pass now instead of waiting for the ticker
func (h *CompletionHandler) Sweep(ctx *gin.Context) {
	if h.sweeper == nil {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeCompletionDisabled, errDisabled)
		return
	}

	res, err := h.sweeper.Sweep(ctx.Request.Context())
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeCompletionFailed, err)
		return
	}

	ctx.PureJSON(http.StatusOK, res)
}
