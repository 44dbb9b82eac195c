package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam with its subjects and questions, in order.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	var end *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, duration_minutes, start_time, end_time
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.DurationMinutes, &e.StartTime, &end)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if end != nil {
		e.EndTime = *end
	}

	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.name, q.id, q.question_text, q.options, q.correct_option,
		        q.marks, q.negative_marks, q.difficulty
		 FROM exam_subjects s
		 LEFT JOIN questions q ON q.subject_id = s.id
		 WHERE s.exam_id = $1
		 ORDER BY s.order_num, s.id, q.order_num, q.id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			subjectID   uuid.UUID
			subjectName string
			qID         *uuid.UUID
			text        *string
			options     []string
			correct     *int
			marks, neg  *float64
			difficulty  *string
		)
		if err := rows.Scan(&subjectID, &subjectName, &qID, &text, &options, &correct, &marks, &neg, &difficulty); err != nil {
			return nil, err
		}

		if n := len(e.Subjects); n == 0 || e.Subjects[n-1].ID != subjectID {
			e.Subjects = append(e.Subjects, model.Subject{ID: subjectID, Name: subjectName})
		}
		if qID == nil {
			continue // subject without questions
		}
		subj := &e.Subjects[len(e.Subjects)-1]
		subj.Questions = append(subj.Questions, model.Question{
			ID:            *qID,
			QuestionText:  *text,
			Options:       options,
			CorrectOption: *correct,
			Marks:         *marks,
			NegativeMarks: *neg,
			Difficulty:    model.Difficulty(*difficulty),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return e, nil
}

// ListOpenIDs returns the ids of exams whose window has not closed at now.
// Used for cache prewarming on application startup.
func (r *ExamRepository) ListOpenIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM exams
		 WHERE COALESCE(end_time, start_time + make_interval(mins => duration_minutes)) > $1
		 ORDER BY start_time`, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
