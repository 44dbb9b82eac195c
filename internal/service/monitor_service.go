package service

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
)

type monitorSource interface {
	GetViolationCounts(ctx context.Context, examID uuid.UUID) (map[int]*model.StudentViolationSummary, error)
	GetSubmissionReasons(ctx context.Context, examID uuid.UUID) (map[int]model.SubmitReason, error)
}

// MonitorService orchestrates live exam monitoring business logic.
type MonitorService struct {
	monitorRepo monitorSource
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(monitorRepo monitorSource) *MonitorService {
	return &MonitorService{monitorRepo: monitorRepo}
}

// MonitorSnapshot is the per-student integrity picture of one exam.
type MonitorSnapshot struct {
	Students        []model.StudentViolationSummary `json:"students"`
	TotalViolations int                             `json:"total_violations"`
	TotalSubmitted  int                             `json:"total_submitted"`
	TotalExpelled   int                             `json:"total_expelled"`
}

// GetSnapshot returns violation counts and submission outcomes concurrently.
// Violation counts are critical; submission reasons are best-effort.
func (s *MonitorService) GetSnapshot(ctx context.Context, examID uuid.UUID) (*MonitorSnapshot, error) {
	var (
		counts     map[int]*model.StudentViolationSummary
		reasons    map[int]model.SubmitReason
		countsErr  error
		reasonsErr error
		wg         sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		counts, countsErr = s.monitorRepo.GetViolationCounts(ctx, examID)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		reasons, reasonsErr = s.monitorRepo.GetSubmissionReasons(ctx, examID)
	}()

	wg.Wait()

	if countsErr != nil {
		return nil, countsErr
	}
	if counts == nil {
		counts = make(map[int]*model.StudentViolationSummary)
	}

	snapshot := &MonitorSnapshot{}
	if reasonsErr == nil {
		for sid, reason := range reasons {
			sum, ok := counts[sid]
			if !ok {
				sum = &model.StudentViolationSummary{StudentID: sid, ByType: map[string]int{}}
				counts[sid] = sum
			}
			sum.Submitted = true
			sum.SubmitReason = reason
		}
	}

	snapshot.Students = make([]model.StudentViolationSummary, 0, len(counts))
	for _, sum := range counts {
		snapshot.TotalViolations += sum.Total
		if sum.Submitted {
			snapshot.TotalSubmitted++
		}
		if sum.SubmitReason == model.SubmitExpelled {
			snapshot.TotalExpelled++
		}
		snapshot.Students = append(snapshot.Students, *sum)
	}
	sort.Slice(snapshot.Students, func(i, j int) bool {
		a, b := snapshot.Students[i], snapshot.Students[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.StudentID < b.StudentID
	})

	return snapshot, nil
}
