package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// RedisSessionStore keeps the resumable state of every attempt in Redis,
// one key per field, so a change rewrites only what moved.
type RedisSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSessionStore creates a new RedisSessionStore. Keys expire after
// ttl of inactivity; zero keeps them forever.
func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

func (s *RedisSessionStore) keys(key model.SessionKey) []string {
	out := make([]string, len(config.SessionFields))
	for i, f := range config.SessionFields {
		out[i] = config.CacheKey.StudentSessionFieldKey(key.ExamID.String(), key.StudentID, f)
	}
	return out
}

// Load reads every field of an attempt. Missing fields keep their zero
// value, so a fresh attempt loads as an empty state.
func (s *RedisSessionStore) Load(ctx context.Context, key model.SessionKey) (*model.SessionState, error) {
	vals, err := s.rdb.MGet(ctx, s.keys(key)...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget session: %w", err)
	}

	st := model.NewSessionState()
	for i, f := range config.SessionFields {
		raw, ok := vals[i].(string)
		if !ok {
			continue
		}
		if err := decodeField(st, f, []byte(raw)); err != nil {
			return nil, fmt.Errorf("decode %s: %w", f, err)
		}
	}
	if st.Answers == nil {
		st.Answers = make(model.Answers)
	}
	return st, nil
}

// Save writes the non-nil fields of patch in one pipeline.
func (s *RedisSessionStore) Save(ctx context.Context, key model.SessionKey, patch model.SessionPatch) error {
	fields, err := encodePatch(patch)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	pipe := s.rdb.TxPipeline()
	for f, v := range fields {
		pipe.Set(ctx, config.CacheKey.StudentSessionFieldKey(key.ExamID.String(), key.StudentID, f), v, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Finish drops every field of the attempt and leaves the terminal status
// behind in the same transaction.
func (s *RedisSessionStore) Finish(ctx context.Context, key model.SessionKey, status model.SessionStatus) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, s.keys(key)...)
	pipe.Set(ctx, s.endedKey(key), string(status), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

// Ended returns the terminal status left by Finish, or "" for an open attempt.
func (s *RedisSessionStore) Ended(ctx context.Context, key model.SessionKey) (model.SessionStatus, error) {
	v, err := s.rdb.Get(ctx, s.endedKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get session end: %w", err)
	}
	return model.SessionStatus(v), nil
}

func (s *RedisSessionStore) endedKey(key model.SessionKey) string {
	return config.CacheKey.StudentSessionFieldKey(key.ExamID.String(), key.StudentID, config.FieldEnded)
}

// encodePatch maps each non-nil patch field onto its key suffix.
func encodePatch(p model.SessionPatch) (map[string][]byte, error) {
	out := make(map[string][]byte)
	put := func(field string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", field, err)
		}
		out[field] = b
		return nil
	}

	var err error
	if p.Answers != nil {
		err = put(config.FieldAnswers, p.Answers)
	}
	if err == nil && p.ReviewMarked != nil {
		err = put(config.FieldReviewMarked, p.ReviewMarked)
	}
	if err == nil && p.Visited != nil {
		err = put(config.FieldVisitedQuestions, p.Visited)
	}
	if err == nil && p.CurrentSubject != nil {
		err = put(config.FieldCurrentSubject, *p.CurrentSubject)
	}
	if err == nil && p.CurrentQuestion != nil {
		err = put(config.FieldCurrentQuestion, *p.CurrentQuestion)
	}
	if err == nil && p.Violations != nil {
		err = put(config.FieldViolations, *p.Violations)
	}
	if err == nil && p.CommonViolations != nil {
		err = put(config.FieldCommonViolations, *p.CommonViolations)
	}
	if err == nil && p.StartedAt != nil {
		err = put(config.FieldStartedAt, *p.StartedAt)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeField(st *model.SessionState, field string, raw []byte) error {
	switch field {
	case config.FieldAnswers:
		return json.Unmarshal(raw, &st.Answers)
	case config.FieldReviewMarked:
		return json.Unmarshal(raw, &st.ReviewMarked)
	case config.FieldVisitedQuestions:
		return json.Unmarshal(raw, &st.Visited)
	case config.FieldCurrentSubject:
		return json.Unmarshal(raw, &st.CurrentSubject)
	case config.FieldCurrentQuestion:
		return json.Unmarshal(raw, &st.CurrentQuestion)
	case config.FieldViolations:
		return json.Unmarshal(raw, &st.Violations)
	case config.FieldCommonViolations:
		return json.Unmarshal(raw, &st.CommonViolations)
	case config.FieldStartedAt:
		return json.Unmarshal(raw, &st.StartedAt)
	}
	return nil
}
