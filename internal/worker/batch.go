package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// sink persists one batch, falling back to row-by-row writes.
type sink[T any] interface {
	bulk(ctx context.Context, batch []T) error
	single(ctx context.Context, item T) error
}

// drainer moves JSON items from a Redis list into a sink in batches.
type drainer[T any] struct {
	queue        string
	rdb          *redis.Client
	sink         sink[T]
	log          zerolog.Logger
	batchSize    int
	batchTimeout time.Duration
	requeuePause time.Duration
}

func newDrainer[T any](queue string, rdb *redis.Client, s sink[T], log zerolog.Logger) *drainer[T] {
	return &drainer[T]{
		queue:        queue,
		rdb:          rdb,
		sink:         s,
		log:          log,
		batchSize:    BatchSize,
		batchTimeout: BatchTimeout,
		requeuePause: 2 * time.Second,
	}
}

func (d *drainer[T]) run(ctx context.Context) {
	buffer := make([]T, 0, d.batchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Check Flush Conditions (Time or Size)
		if len(buffer) > 0 {
			if len(buffer) >= d.batchSize || time.Since(lastFlushTime) >= d.batchTimeout {
				d.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		// 2. Check Context (Graceful Shutdown)
		select {
		case <-ctx.Done():
			d.shutdown(buffer)
			return
		default:
		}

		// 3. Fetch from Redis
		result, err := d.rdb.BLPop(ctx, PollTimeout, d.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			d.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			sleep(ctx, 3*time.Second)
			continue
		}

		// 4. Process Data
		if len(result) < 2 {
			continue
		}

		var item T
		if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
			// Malformed JSON cannot be retried.
			d.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}
		buffer = append(buffer, item)
	}
}

// flushSafe attempts the bulk write, then row-by-row, then requeue.
func (d *drainer[T]) flushSafe(ctx context.Context, batch []T) {
	if err := d.sink.bulk(ctx, batch); err != nil {
		d.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		d.fallbackInsert(ctx, batch)
		return
	}
	d.log.Debug().Int("count", len(batch)).Msg("Batch persisted")
}

func (d *drainer[T]) fallbackInsert(ctx context.Context, batch []T) {
	var requeueList []T
	for _, item := range batch {
		if err := d.sink.single(ctx, item); err != nil {
			d.log.Error().Err(err).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, item)
		}
	}
	if len(requeueList) > 0 {
		d.requeue(ctx, requeueList)
	}
}

func (d *drainer[T]) requeue(ctx context.Context, items []T) {
	// The shutdown context may already be spent; the push must still happen.
	ctx = context.WithoutCancel(ctx)

	pipe := d.rdb.Pipeline()
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			continue
		}
		pipe.RPush(ctx, d.queue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		d.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	d.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// Avoid thrashing while the database is down.
	time.Sleep(d.requeuePause)
}

func (d *drainer[T]) shutdown(buffer []T) {
	d.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		d.flushSafe(shutdownCtx, buffer)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
