package status

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openmined/foldernotify/internal/server/handlers/api"
	"github.com/openmined/foldernotify/internal/utils"
	"github.com/openmined/foldernotify/internal/version"
	"github.com/shirou/gopsutil/v4/process"
)

type Counter interface {
	Count(ctx context.Context) (int, error)
}

// PendingCounter is implemented by stores that track completion claims
type PendingCounter interface {
	CountPendingFinal(ctx context.Context) (int, error)
}

type StatusResponse struct {
	Version    string    `json:"version"`
	InstanceID string    `json:"instanceId"`
	StartedAt  time.Time `json:"startedAt"`
	Uptime     string    `json:"uptime"`
	Folders    int       `json:"folders"`
	// Pending counts folders still waiting for their completion message
	Pending    int       `json:"pending"`
	Prefixes   []string  `json:"prefixes"`
	Notifier   string    `json:"notifier"`
	Analytics  string    `json:"analytics"`
	Completion string    `json:"completion"`
	Process    Process   `json:"process"`
}

type Process struct {
	PID        int     `json:"pid"`
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
	Goroutines int     `json:"goroutines"`
}

// Info is static data shown on the status page
type Info struct {
	Prefixes   []string
	Notifier   string
	Analytics  string
	Completion string
}

type StatusHandler struct {
	counter   Counter
	info      Info
	startedAt time.Time
	proc      *process.Process
}

func New(counter Counter, info Info) *StatusHandler {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		slog.Warn("process stats unavailable", "error", err)
	}

	return &StatusHandler{
		counter:   counter,
		info:      info,
		startedAt: time.Now(),
		proc:      proc,
	}
}

func (h *StatusHandler) Status(ctx *gin.Context) {
	count, err := h.counter.Count(ctx.Request.Context())
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeStoreUnavailable, err)
		return
	}

	var pending int
	if pc, ok := h.counter.(PendingCounter); ok {
		if pending, err = pc.CountPendingFinal(ctx.Request.Context()); err != nil {
			api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeStoreUnavailable, err)
			return
		}
	}

	ctx.PureJSON(http.StatusOK, &StatusResponse{
		Version:    version.Detailed(),
		InstanceID: utils.InstanceID(),
		StartedAt:  h.startedAt.UTC(),
		Uptime:     time.Since(h.startedAt).Round(time.Second).String(),
		Folders:    count,
		Pending:    pending,
		Prefixes:   h.info.Prefixes,
		Notifier:   h.info.Notifier,
		Analytics:  h.info.Analytics,
		Completion: h.info.Completion,
		Process:    h.processStats(ctx.Request.Context()),
	})
}

func (h *StatusHandler) processStats(ctx context.Context) Process {
	p := Process{
		PID:        os.Getpid(),
		Goroutines: runtime.NumGoroutine(),
	}
	if h.proc == nil {
		return p
	}

	if mem, err := h.proc.MemoryInfoWithContext(ctx); err == nil {
		p.RSSBytes = mem.RSS
	}
	if cpu, err := h.proc.CPUPercentWithContext(ctx); err == nil {
		p.CPUPercent = cpu
	}
	return p
}
