package worker

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ViolationStore is where drained violation logs end up.
type ViolationStore interface {
	CopyBatch(ctx context.Context, logs []model.ViolationLog) error
	Insert(ctx context.Context, l model.ViolationLog) error
}

// ViolationWorker drains the violation queue into PostgreSQL with COPY.
type ViolationWorker struct {
	d *drainer[model.ViolationLog]
}

func NewViolationWorker(store ViolationStore, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	l := log.With().Str("component", "violation_worker").Logger()
	return &ViolationWorker{
		d: newDrainer[model.ViolationLog](config.WorkerKey.PersistViolationsQueue, rdb, violationSink{store}, l),
	}
}

// Start blocks until ctx is cancelled, then flushes what it buffered.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.d.log.Info().Msg("ViolationWorker started")
	w.d.run(ctx)
}

type violationSink struct {
	store ViolationStore
}

func (s violationSink) bulk(ctx context.Context, batch []model.ViolationLog) error {
	return s.store.CopyBatch(ctx, batch)
}

func (s violationSink) single(ctx context.Context, l model.ViolationLog) error {
	return s.store.Insert(ctx, l)
}
