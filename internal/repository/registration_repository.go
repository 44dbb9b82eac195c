package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ErrNotRegistered is returned when a student has no registration row for an exam.
var ErrNotRegistered = errors.New("student is not registered for this exam")

// RegistrationRepository reads exam registrations and reference photos.
type RegistrationRepository struct {
	pool *pgxpool.Pool
}

// NewRegistrationRepository creates a new RegistrationRepository.
func NewRegistrationRepository(pool *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{pool: pool}
}

// Get returns the registration of a student for an exam.
func (r *RegistrationRepository) Get(ctx context.Context, examID uuid.UUID, studentID int) (*model.Registration, error) {
	var (
		allowed                bool
		front, left, right, up *string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT allowed, front_image, left_image, right_image, up_image
		 FROM exam_registrations
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&allowed, &front, &left, &right, &up)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotRegistered
		}
		return nil, err
	}

	reg := &model.Registration{
		Allowed:         allowed,
		ReferenceImages: make(map[model.HeadPose]string, len(model.Poses)),
	}
	for pose, url := range map[model.HeadPose]*string{
		model.HeadFront: front,
		model.HeadLeft:  left,
		model.HeadRight: right,
		model.HeadUp:    up,
	} {
		if url != nil && *url != "" {
			reg.ReferenceImages[pose] = *url
		}
	}
	return reg, nil
}
