package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ViolationRepository writes the violation log.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

var violationColumns = []string{"exam_id", "student_id", "violation_type", "duration_seconds", "head_position", "recorded_at"}

func violationRow(v model.ViolationLog) []any {
	var pose *string
	if v.HeadPosition != "" {
		p := string(v.HeadPosition)
		pose = &p
	}
	return []any{v.ExamID, v.StudentID, v.Type, v.Duration, pose, v.Timestamp}
}

// CopyBatch bulk-loads logs with COPY.
func (r *ViolationRepository) CopyBatch(ctx context.Context, logs []model.ViolationLog) error {
	rows := make([][]any, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, violationRow(l))
	}
	_, err := r.pool.CopyFrom(ctx, pgx.Identifier{"exam_violations"}, violationColumns, pgx.CopyFromRows(rows))
	return err
}

// Insert writes one log.
func (r *ViolationRepository) Insert(ctx context.Context, l model.ViolationLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_violations (exam_id, student_id, violation_type, duration_seconds, head_position, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		violationRow(l)...,
	)
	return err
}
