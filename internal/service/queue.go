package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// QueueSubmitter hands final results to the submission worker through a
// Redis list. A successful RPush is the delivery: the worker owns the rest.
type QueueSubmitter struct {
	rdb *redis.Client
}

// NewQueueSubmitter creates a new QueueSubmitter.
func NewQueueSubmitter(rdb *redis.Client) *QueueSubmitter {
	return &QueueSubmitter{rdb: rdb}
}

// Submit queues result for persistence.
func (q *QueueSubmitter) Submit(ctx context.Context, result *model.SubmissionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, payload).Err(); err != nil {
		return fmt.Errorf("queue result: %w", err)
	}
	return nil
}

// QueueViolationLogger queues violation records for the violation worker.
type QueueViolationLogger struct {
	rdb *redis.Client
}

// NewQueueViolationLogger creates a new QueueViolationLogger.
func NewQueueViolationLogger(rdb *redis.Client) *QueueViolationLogger {
	return &QueueViolationLogger{rdb: rdb}
}

// LogViolations pushes every record in one round trip.
func (q *QueueViolationLogger) LogViolations(ctx context.Context, logs ...model.ViolationLog) error {
	if len(logs) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(logs))
	for _, l := range logs {
		payload, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("marshal violation: %w", err)
		}
		values = append(values, payload)
	}

	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, values...).Err(); err != nil {
		return fmt.Errorf("queue violations: %w", err)
	}
	return nil
}

// RedisPublisher broadcasts room events on the exam's monitor channel.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher creates a new RedisPublisher.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// Publish sends ev to every admin watching the exam.
func (p *RedisPublisher) Publish(ctx context.Context, ev model.MonitorEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	channel := config.CacheKey.ExamMonitorChannel(ev.ExamID.String())
	return p.rdb.Publish(ctx, channel, payload).Err()
}
