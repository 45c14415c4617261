package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Replay purge settings.
const (
	TypePurgeReplays = "idempotency:purge"
	QueueMaintenance = "maintenance"

	DefaultPurgeEvery = time.Hour
)

// ReplayPurger deletes expired idempotency records (repo.IdempotencyStore).
type ReplayPurger interface {
	Purge(ctx context.Context) (int64, error)
}

// PurgeHandler processes idempotency:purge tasks.
type PurgeHandler struct {
	Store ReplayPurger
	Log   zerolog.Logger
}

// ProcessTask implements asynq.Handler. A failed purge is retried on the
// next tick rather than by asynq.
func (h *PurgeHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	n, err := h.Store.Purge(ctx)
	if err != nil {
		h.Log.Warn().Err(err).Msg("replay purge failed")
		return fmt.Errorf("purge replays: %v: %w", err, asynq.SkipRetry)
	}
	h.Log.Debug().Int64("deleted", n).Msg("expired replays purged")
	return nil
}

// Registrar is the subset of *asynq.Scheduler used to install periodic tasks.
type Registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// SchedulePurge installs an idempotency:purge task running every interval
// (DefaultPurgeEvery when <= 0) on the maintenance queue.
func SchedulePurge(s Registrar, every time.Duration) (string, error) {
	if every <= 0 {
		every = DefaultPurgeEvery
	}
	id, err := s.Register("@every "+every.String(), asynq.NewTask(TypePurgeReplays, nil),
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(0),
		asynq.Unique(every),
	)
	if err != nil {
		return "", fmt.Errorf("schedule %s: %w", TypePurgeReplays, err)
	}
	return id, nil
}

// NewScheduler builds the asynq scheduler for periodic maintenance tasks.
func NewScheduler(redis asynq.RedisConnOpt, lg zerolog.Logger) *asynq.Scheduler {
	return asynq.NewScheduler(redis, &asynq.SchedulerOpts{
		Location: time.UTC,
		EnqueueErrorHandler: func(task *asynq.Task, _ []asynq.Option, err error) {
			lg.Warn().Err(err).Str("type", task.Type()).Msg("periodic enqueue failed")
		},
	})
}
