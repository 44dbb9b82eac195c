package worker

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// SubmissionStore is where drained results end up.
type SubmissionStore interface {
	InsertBatch(ctx context.Context, batch []*model.SubmissionResult) error
	Insert(ctx context.Context, res *model.SubmissionResult) error
}

// SubmissionWorker drains final results into PostgreSQL. Inserts are
// idempotent per attempt, so a requeued result never lands twice.
type SubmissionWorker struct {
	d *drainer[*model.SubmissionResult]
}

func NewSubmissionWorker(store SubmissionStore, rdb *redis.Client, log zerolog.Logger) *SubmissionWorker {
	l := log.With().Str("component", "submission_worker").Logger()
	return &SubmissionWorker{
		d: newDrainer[*model.SubmissionResult](config.WorkerKey.PersistSubmissionsQueue, rdb, submissionSink{store}, l),
	}
}

// Start blocks until ctx is cancelled, then flushes what it buffered.
func (w *SubmissionWorker) Start(ctx context.Context) {
	w.d.log.Info().Msg("SubmissionWorker started")
	w.d.run(ctx)
}

type submissionSink struct {
	store SubmissionStore
}

func (s submissionSink) bulk(ctx context.Context, batch []*model.SubmissionResult) error {
	return s.store.InsertBatch(ctx, batch)
}

func (s submissionSink) single(ctx context.Context, res *model.SubmissionResult) error {
	return s.store.Insert(ctx, res)
}
