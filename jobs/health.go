package jobs

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/signhub/signhub/internal/platform/httpx"
)

// QueueInspector reads queue statistics. *asynq.Inspector satisfies it.
type QueueInspector interface {
	Queues() ([]string, error)
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Handler exposes HTTP endpoints for job observability.
type Handler struct {
	inspector QueueInspector
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints. inspector may be nil.
func NewHandler(inspector QueueInspector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

type queueStats struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
	Active  int    `json:"active"`
	Retry   int    `json:"retry"`
	Failed  int    `json:"failed"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(queuePriorities))
	for name := range queuePriorities {
		names = append(names, name)
	}
	sort.Strings(names)

	known := map[string]bool{}
	if h.inspector != nil {
		queues, err := h.inspector.Queues()
		if err != nil {
			h.unavailable(w, err)
			return
		}
		for _, q := range queues {
			known[q] = true
		}
	}

	stats := make([]queueStats, 0, len(names))
	for _, name := range names {
		s := queueStats{Queue: name}
		// asynq only knows a queue once something was enqueued on it.
		if known[name] {
			info, err := h.inspector.GetQueueInfo(name)
			if err != nil {
				h.unavailable(w, err)
				return
			}
			s.Pending, s.Active, s.Retry, s.Failed = info.Pending, info.Active, info.Retry, info.Archived
		}
		stats = append(stats, s)
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) unavailable(w http.ResponseWriter, err error) {
	h.logger.Warn("jobs health", slog.Any("error", err))
	httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "Job queue unreachable")
}
