package folders

import (
	"context"

	"github.com/openmined/foldernotify/internal/server/folder"
)

const maxListLimit = 1000

type Store interface {
	List(ctx context.Context, params folder.ListParams) ([]*folder.Record, error)
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, folderKey string) (*folder.Record, error)
	Delete(ctx context.Context, folderKey string) error
	Purge(ctx context.Context, prefix string) (int64, error)
}

// Cache is the gate's notified-folder cache, invalidated on operator deletes
type Cache interface {
	Forget(key string)
	ForgetAll()
}

type ListRequest struct {
	Prefix string `form:"prefix"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

type ListResponse struct {
	Folders []*folder.Record `json:"folders"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

type PurgeRequest struct {
	Prefix string `json:"prefix"`
}

type PurgeResponse struct {
	Purged int64 `json:"purged"`
}
