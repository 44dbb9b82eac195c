package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// MonitorRepository provides data access for the live exam monitor.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// GetViolationCounts returns, per student, the number of logged violations
// by type and the time of the latest one.
func (r *MonitorRepository) GetViolationCounts(ctx context.Context, examID uuid.UUID) (map[int]*model.StudentViolationSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT v.student_id, COALESCE(s.name, ''), v.violation_type, COUNT(*), MAX(v.recorded_at)
		 FROM exam_violations v
		 LEFT JOIN students s ON s.id = v.student_id
		 WHERE v.exam_id = $1
		 GROUP BY v.student_id, s.name, v.violation_type`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]*model.StudentViolationSummary)
	for rows.Next() {
		var (
			sid   int
			name  string
			typ   string
			count int
			last  time.Time
		)
		if err := rows.Scan(&sid, &name, &typ, &count, &last); err != nil {
			return nil, err
		}
		sum, ok := out[sid]
		if !ok {
			sum = &model.StudentViolationSummary{StudentID: sid, StudentName: name, ByType: make(map[string]int)}
			out[sid] = sum
		}
		sum.ByType[typ] += count
		sum.Total += count
		if last.After(sum.LastSeen) {
			sum.LastSeen = last
		}
	}
	return out, rows.Err()
}

// GetSubmissionReasons returns how each submitted student's attempt ended.
func (r *MonitorRepository) GetSubmissionReasons(ctx context.Context, examID uuid.UUID) (map[int]model.SubmitReason, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, reason FROM exam_submissions WHERE exam_id = $1`,
		examID,
	)
	if err != nil {
		return nil, err
	}

	type row struct {
		StudentID int
		Reason    string
	}
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByPos[row])
	if err != nil {
		return nil, err
	}

	out := make(map[int]model.SubmitReason, len(collected))
	for _, c := range collected {
		out[c.StudentID] = model.SubmitReason(c.Reason)
	}
	return out, nil
}
