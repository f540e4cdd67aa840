package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/signhub/signhub/internal/jobs"
)

// FontCache is the part of the font cache the job needs.
type FontCache interface {
	Invalidate(ctx context.Context) error
}

// FontsJob rebuilds nothing itself; it drops the stylesheet so the next reader
// regenerates it.
type FontsJob struct {
	Cache   FontCache
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewFontsJob wires the invalidation handler.
func NewFontsJob(cache FontCache, logger *slog.Logger, metrics *jobmetrics.Metrics) *FontsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &FontsJob{Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes TaskFontsInvalidate tasks.
func (j *FontsJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.Metrics.Track(TaskFontsInvalidate)
	err := j.Cache.Invalidate(ctx)
	if err != nil {
		j.Logger.Error("invalidate font cache", slog.Any("error", err))
	} else {
		j.Logger.Info("font cache invalidated")
	}
	return tracker.End(err)
}
