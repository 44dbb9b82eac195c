package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// ErrNotAllowed is returned when a student may not sit an exam.
var ErrNotAllowed = errors.New("student is not allowed to take this exam")

type registrationSource interface {
	Get(ctx context.Context, examID uuid.UUID, studentID int) (*model.Registration, error)
}

// RegistrationService answers the pre-exam registration check.
type RegistrationService struct {
	regs registrationSource
	log  zerolog.Logger
}

// NewRegistrationService creates a new RegistrationService.
func NewRegistrationService(regs registrationSource, log zerolog.Logger) *RegistrationService {
	return &RegistrationService{
		regs: regs,
		log:  log.With().Str("component", "registration_service").Logger(),
	}
}

// Verify returns the student's registration, or ErrNotAllowed when the
// student is unregistered or blocked.
func (s *RegistrationService) Verify(ctx context.Context, examID uuid.UUID, studentID int) (*model.Registration, error) {
	reg, err := s.regs.Get(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotRegistered) {
			return nil, ErrNotAllowed
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	if !reg.Allowed {
		s.log.Info().
			Str("exam_id", examID.String()).
			Int("student_id", studentID).
			Msg("Blocked student tried to open exam")
		return nil, ErrNotAllowed
	}
	return reg, nil
}
