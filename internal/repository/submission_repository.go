package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// SubmissionRepository stores final exam results.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Exists reports whether a result was already stored for the attempt.
func (r *SubmissionRepository) Exists(ctx context.Context, examID uuid.UUID, studentID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM exam_submissions WHERE exam_id = $1 AND student_id = $2)`,
		examID, studentID,
	).Scan(&exists)
	return exists, err
}

const insertSubmissionSQL = `INSERT INTO exam_submissions
	(exam_id, student_id, reason, is_banned, total_marks, max_marks, percentage, common_violations, result, submitted_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (exam_id, student_id) DO NOTHING`

func submissionArgs(res *model.SubmissionResult) ([]any, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	m := res.ResultMetrics
	return []any{
		res.ExamID, res.StudentID, string(res.Reason), res.IsBanned,
		m.TotalMarks, m.MaxMarks, m.Percentage, res.CommonViolations,
		raw, res.TimeTracking.SubmittedAt,
	}, nil
}

// Insert stores one result. A second result for the same attempt is ignored.
func (r *SubmissionRepository) Insert(ctx context.Context, res *model.SubmissionResult) error {
	args, err := submissionArgs(res)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, insertSubmissionSQL, args...)
	return err
}

// InsertBatch stores many results in one round trip.
func (r *SubmissionRepository) InsertBatch(ctx context.Context, batch []*model.SubmissionResult) error {
	b := &pgx.Batch{}
	for _, res := range batch {
		args, err := submissionArgs(res)
		if err != nil {
			return err
		}
		b.Queue(insertSubmissionSQL, args...)
	}
	return r.pool.SendBatch(ctx, b).Close()
}
