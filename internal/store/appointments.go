package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookday/backend/internal/domain"
)

// AppointmentRepository is the persistence contract for appointments. The
// implementation must enforce slot uniqueness for non-canceled rows at the
// storage layer: Create and UpdateDate return ErrConflict when the target
// slot is already held, even under concurrent callers.
type AppointmentRepository interface {
	Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error)

	// ListAll returns every appointment, newest first.
	ListAll(ctx context.Context) ([]domain.Appointment, error)
	// ListActiveRange returns non-canceled appointments with
	// appointment_date in [start, end], ascending.
	ListActiveRange(ctx context.Context, start, end time.Time) ([]domain.Appointment, error)

	UpdateDate(ctx context.Context, id uuid.UUID, date time.Time) (domain.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
