package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// Domain Errors
var (
	ErrExamNotFound = errors.New("exam not found")
	ErrNoQuestions  = errors.New("exam has no questions")
)

type examSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListOpenIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// ExamService serves exam definitions through a Redis cache.
type ExamService struct {
	exams examSource
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(exams examSource, rdb *redis.Client, log zerolog.Logger) *ExamService {
	return &ExamService{
		exams: exams,
		rdb:   rdb,
		log:   log.With().Str("component", "exam_service").Logger(),
	}
}

// GetExam returns the full definition, answer key included. A cache miss
// loads the exam from PostgreSQL and warms the cache.
func (s *ExamService) GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	key := config.CacheKey.ExamDefinitionKey(examID.String())
	data, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var exam model.Exam
		if err := json.Unmarshal(data, &exam); err == nil {
			return &exam, nil
		}
		s.log.Warn().Str("exam_id", examID.String()).Msg("Corrupt exam cache entry, reloading")
	case !errors.Is(err, redis.Nil):
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Exam cache read failed")
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.TotalQuestions() == 0 {
		return nil, ErrNoQuestions
	}

	if err := s.WarmExamCache(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to warm exam cache")
	}
	return exam, nil
}

// GetPaper returns the exam as shown to students, without the answer key.
func (s *ExamService) GetPaper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	paper := exam.Paper()
	return &paper, nil
}

// WarmExamCache writes the definition to Redis. The entry expires when the
// exam window closes, with an hour of slack for late submitters.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.Exam) error {
	data, err := json.Marshal(exam)
	if err != nil {
		return fmt.Errorf("marshal exam: %w", err)
	}

	_, end := exam.Window()
	ttl := time.Until(end) + time.Hour
	if ttl < time.Hour {
		ttl = time.Hour
	}

	key := config.CacheKey.ExamDefinitionKey(exam.ID.String())
	if err := s.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("questions", exam.TotalQuestions()).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads every exam whose window is open or upcoming into
// Redis on application startup.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	ids, err := s.exams.ListOpenIDs(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("list open exams: %w", err)
	}

	if len(ids) == 0 {
		s.log.Info().Msg("No open exams to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(ids)).Msg("Prewarming open exams...")

	warmed := 0
	for _, id := range ids {
		exam, err := s.exams.GetByID(ctx, id)
		if err == nil {
			err = s.WarmExamCache(ctx, exam)
		}
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", id.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(ids)).
		Msg("Prewarming complete")
	return nil
}
