// Package jobs runs deck narration generation in the background on asynq.
// The API enqueues narration:generate tasks; cmd/worker consumes them and
// also schedules the periodic purge of expired idempotency records.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-narration-backend/internal/services"
)

// Task names and queue settings.
const (
	TypeGenerateNarrations = "narration:generate"
	QueueNarrations        = "narrations"

	MaxRetry    = 3
	TaskTimeout = 15 * time.Minute
	// UniqueFor blocks a second generation of the same deck while one is
	// queued or running.
	UniqueFor = 30 * time.Minute
)

// ErrAlreadyQueued is returned when a generation for the deck is pending.
var ErrAlreadyQueued = errors.New("generation already queued for deck")

// GeneratePayload is the task body.
type GeneratePayload struct {
	DeckID       string   `json:"deck_id"`
	BaseLanguage string   `json:"base_language"`
	Languages    []string `json:"languages,omitempty"`
}

// NewGenerateTask encodes p as a narration:generate task.
func NewGenerateTask(p GeneratePayload) (*asynq.Task, error) {
	if strings.TrimSpace(p.DeckID) == "" {
		return nil, errors.New("deck id required")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeGenerateNarrations, b), nil
}

// TaskEnqueuer is the subset of *asynq.Client used here.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer submits generation tasks.
type Enqueuer struct {
	Client TaskEnqueuer
	Log    zerolog.Logger
}

// EnqueueGenerate queues a generation of p.DeckID and returns the task id.
func (e *Enqueuer) EnqueueGenerate(ctx context.Context, p GeneratePayload) (string, error) {
	task, err := NewGenerateTask(p)
	if err != nil {
		return "", err
	}
	info, err := e.Client.EnqueueContext(ctx, task,
		asynq.Queue(QueueNarrations),
		asynq.MaxRetry(MaxRetry),
		asynq.Timeout(TaskTimeout),
		asynq.Unique(UniqueFor),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return "", ErrAlreadyQueued
	}
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", TypeGenerateNarrations, err)
	}
	e.Log.Info().
		Str("task_id", info.ID).
		Str("deck_id", p.DeckID).
		Str("queue", info.Queue).
		Msg("generation task enqueued")
	return info.ID, nil
}

// DeckGenerator runs the pipeline (implemented by services.GenerationService).
type DeckGenerator interface {
	GenerateDeck(ctx context.Context, deckID, baseLanguage string, targets []string) (*services.GenerationReport, error)
}

// ReloadNotifier tells API processes that a deck's narrations changed
// (implemented by cache.ReloadBus).
type ReloadNotifier interface {
	PublishReload(ctx context.Context, deckID string) error
}

// GenerateHandler processes narration:generate tasks. Notifier is optional;
// without it live sessions keep their narrations until reloaded.
type GenerateHandler struct {
	Generator DeckGenerator
	Notifier  ReloadNotifier
	Log       zerolog.Logger
}

// ProcessTask implements asynq.Handler. Malformed payloads and unknown decks
// are not retried.
func (h *GenerateHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p GeneratePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.Log.Error().Err(err).Msg("invalid generate payload")
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.DeckID == "" {
		return fmt.Errorf("missing deck id: %w", asynq.SkipRetry)
	}

	lg := h.Log.With().Str("deck_id", p.DeckID).Logger()
	lg.Info().Str("base_language", p.BaseLanguage).Strs("languages", p.Languages).Msg("generating narrations")

	rep, err := h.Generator.GenerateDeck(ctx, p.DeckID, p.BaseLanguage, p.Languages)
	if errors.Is(err, services.ErrDeckNotFound) {
		lg.Warn().Msg("deck vanished before generation")
		return fmt.Errorf("deck %s: %v: %w", p.DeckID, err, asynq.SkipRetry)
	}
	if err != nil {
		lg.Error().Err(err).Bool("retryable", services.IsRetryable(err)).Msg("generation failed")
		return fmt.Errorf("generate deck: %w", err)
	}

	if h.Notifier != nil {
		if err := h.Notifier.PublishReload(ctx, p.DeckID); err != nil {
			lg.Warn().Err(err).Msg("session reload not announced")
		}
	}

	lg.Info().
		Int("slides", rep.Slides).
		Int("calls", rep.Calls).
		Int("degraded_batches", rep.DegradedBatches).
		Msg("generation task done")
	return nil
}

// NewServeMux routes generation tasks to gen and, when purge is non-nil,
// replay purges to purge.
func NewServeMux(gen *GenerateHandler, purge *PurgeHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeGenerateNarrations, gen)
	if purge != nil {
		mux.Handle(TypePurgeReplays, purge)
	}
	return mux
}

// NewServer builds an asynq server consuming the narrations queue, with the
// maintenance queue served at low priority.
func NewServer(redis asynq.RedisConnOpt, concurrency int, lg zerolog.Logger) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 2
	}
	return asynq.NewServer(redis, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueNarrations: 6, QueueMaintenance: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			lg.Error().Err(err).Str("type", task.Type()).Int("retried", retried).Msg("task failed")
		}),
	})
}
