package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

type fakeViolationStore struct {
	mu        sync.Mutex
	bulkErr   error
	rejectFor int
	rows      []model.ViolationLog
}

func (f *fakeViolationStore) CopyBatch(_ context.Context, logs []model.ViolationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return f.bulkErr
	}
	f.rows = append(f.rows, logs...)
	return nil
}

func (f *fakeViolationStore) Insert(_ context.Context, l model.ViolationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l.StudentID == f.rejectFor {
		return errors.New("connection reset")
	}
	f.rows = append(f.rows, l)
	return nil
}

func (f *fakeViolationStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func pushViolations(t *testing.T, rdb *redis.Client, logs ...model.ViolationLog) {
	t.Helper()
	for _, l := range logs {
		data, _ := json.Marshal(l)
		if err := rdb.RPush(context.Background(), config.WorkerKey.PersistViolationsQueue, data).Err(); err != nil {
			t.Fatalf("rpush: %v", err)
		}
	}
}

func TestViolationWorkerDrainsQueue(t *testing.T) {
	rdb := newTestRedis(t)
	store := &fakeViolationStore{}
	w := NewViolationWorker(store, rdb, zerolog.Nop())
	w.d.batchTimeout = 10 * time.Millisecond

	examID := uuid.New()
	pushViolations(t, rdb,
		model.ViolationLog{ExamID: examID, StudentID: 1, Type: "tab_switching"},
		model.ViolationLog{ExamID: examID, StudentID: 1, Type: "missing_face", Duration: 10},
	)
	// Malformed entries are dropped, not retried.
	rdb.RPush(context.Background(), config.WorkerKey.PersistViolationsQueue, "{not json")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for store.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	<-done

	if store.count() != 2 {
		t.Fatalf("expected 2 persisted violations, got %d", store.count())
	}
	if n := rdb.LLen(context.Background(), config.WorkerKey.PersistViolationsQueue).Val(); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
}

func TestViolationWorkerFallbackRequeuesFailures(t *testing.T) {
	rdb := newTestRedis(t)
	store := &fakeViolationStore{bulkErr: errors.New("copy failed"), rejectFor: 2}
	w := NewViolationWorker(store, rdb, zerolog.Nop())
	w.d.requeuePause = 0

	examID := uuid.New()
	w.d.flushSafe(context.Background(), []model.ViolationLog{
		{ExamID: examID, StudentID: 1, Type: "window_blur"},
		{ExamID: examID, StudentID: 2, Type: "window_blur"},
	})

	if store.count() != 1 {
		t.Fatalf("expected the healthy row to be inserted, got %d rows", store.count())
	}
	items := rdb.LRange(context.Background(), config.WorkerKey.PersistViolationsQueue, 0, -1).Val()
	if len(items) != 1 {
		t.Fatalf("expected 1 requeued item, got %d", len(items))
	}
	var back model.ViolationLog
	if err := json.Unmarshal([]byte(items[0]), &back); err != nil || back.StudentID != 2 {
		t.Fatalf("unexpected requeued item %q (%v)", items[0], err)
	}
}

type fakeSubmissionStore struct {
	mu      sync.Mutex
	batches int
	results map[int]*model.SubmissionResult
}

func (f *fakeSubmissionStore) InsertBatch(_ context.Context, batch []*model.SubmissionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	for _, r := range batch {
		if _, ok := f.results[r.StudentID]; !ok {
			f.results[r.StudentID] = r
		}
	}
	return nil
}

func (f *fakeSubmissionStore) Insert(ctx context.Context, r *model.SubmissionResult) error {
	return f.InsertBatch(ctx, []*model.SubmissionResult{r})
}

func TestSubmissionWorkerFlushesOnShutdown(t *testing.T) {
	rdb := newTestRedis(t)
	store := &fakeSubmissionStore{results: map[int]*model.SubmissionResult{}}
	w := NewSubmissionWorker(store, rdb, zerolog.Nop())
	// Never flush on time; only shutdown may persist the buffer.
	w.d.batchTimeout = time.Hour

	res := &model.SubmissionResult{ExamID: uuid.New(), StudentID: 5, Reason: model.SubmitTimeUp}
	data, _ := json.Marshal(res)
	rdb.RPush(context.Background(), config.WorkerKey.PersistSubmissionsQueue, data)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for rdb.LLen(context.Background(), config.WorkerKey.PersistSubmissionsQueue).Val() > 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	// Let the popped item reach the buffer.
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	store.mu.Lock()
	defer store.mu.Unlock()
	got, ok := store.results[5]
	if !ok || got.Reason != model.SubmitTimeUp {
		t.Fatalf("expected result of student 5 to be persisted, got %+v", store.results)
	}
}
