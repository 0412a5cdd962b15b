package folders

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/openmined/foldernotify/internal/server/folder"
	"github.com/openmined/foldernotify/internal/server/handlers/api"
)

type FoldersHandler struct {
	store Store
	cache Cache
}

// New creates the admin handler. cache may be nil.
func New(store Store, cache Cache) *FoldersHandler {
	return &FoldersHandler{store: store, cache: cache}
}

func (h *FoldersHandler) List(ctx *gin.Context) {
	var req ListRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = 100
	}
	req.Limit = min(req.Limit, maxListLimit)

	records, err := h.store.List(ctx.Request.Context(), folder.ListParams{
		Prefix: req.Prefix,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeFolderListFailed, err)
		return
	}

	total, err := h.store.Count(ctx.Request.Context())
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeFolderListFailed, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &ListResponse{
		Folders: records,
		Total:   total,
		Limit:   req.Limit,
		Offset:  req.Offset,
	})
}

func (h *FoldersHandler) Get(ctx *gin.Context) {
	key, ok := folderKeyParam(ctx)
	if !ok {
		return
	}

	rec, err := h.store.Get(ctx.Request.Context(), key)
	if errors.Is(err, folder.ErrNotFound) {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeFolderNotFound, err)
		return
	} else if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, rec)
}

// Delete removes one record so the next event for the folder notifies again
func (h *FoldersHandler) Delete(ctx *gin.Context) {
	key, ok := folderKeyParam(ctx)
	if !ok {
		return
	}

	err := h.store.Delete(ctx.Request.Context(), key)
	if errors.Is(err, folder.ErrNotFound) {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeFolderNotFound, err)
		return
	} else if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	if h.cache != nil {
		h.cache.Forget(key)
	}

	slog.Info("folder record deleted", "folder", key, "by", ctx.GetString("user"))
	ctx.Status(http.StatusNoContent)
}

func (h *FoldersHandler) Purge(ctx *gin.Context) {
	var req PurgeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	n, err := h.store.Purge(ctx.Request.Context(), req.Prefix)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeFolderPurgeFailed, err)
		return
	}

	if h.cache != nil {
		h.cache.ForgetAll()
	}

	slog.Info("folder records purged", "prefix", req.Prefix, "count", n, "by", ctx.GetString("user"))
	ctx.PureJSON(http.StatusOK, &PurgeResponse{Purged: n})
}

func folderKeyParam(ctx *gin.Context) (string, bool) {
	key := strings.TrimPrefix(ctx.Param("key"), "/")
	if key == "" {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("folder key is required"))
		return "", false
	}
	return key, true
}
