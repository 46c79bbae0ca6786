package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookday/backend/internal/domain"
	"bookday/backend/internal/store"
)

// Validation rule identifiers carried on ValidationError so the transport
// layer can report which rule a request broke.
const (
	RulePastDate         = "past_date"
	RuleDayNotAvailable  = "day_not_available"
	RuleOutsideHours     = "outside_business_hours"
	RuleInvalidStatus    = "invalid_status"
	RuleMissingUser      = "missing_user_id"
	RuleEmptyUpdate      = "empty_update"
	RuleInvalidSlotRange = "invalid_slot_range"
)

type ValidationError struct {
	Rule string
	msg  string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(rule, msg string) error {
	return &ValidationError{Rule: rule, msg: msg}
}

type Service struct {
	repo store.AppointmentRepository
	av   domain.Availability
	now  func() time.Time
}

func NewService(repo store.AppointmentRepository, av domain.Availability) *Service {
	return &Service{repo: repo, av: av, now: time.Now}
}

// Availability exposes the booking template for clients that render the
// calendar themselves.
func (s *Service) Availability() domain.Availability {
	return s.av
}

type BookInput struct {
	UserID          string
	AppointmentDate time.Time
	Status          domain.AppointmentStatus
}

// Book validates the requested slot against the availability template and
// reserves it. The conflict rule is enforced by the store inside one atomic
// insert, so a lost race comes back as store.ErrConflict, never as a double
// booking.
func (s *Service) Book(ctx context.Context, in BookInput) (domain.Appointment, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return domain.Appointment{}, validationError(RuleMissingUser, "user_id is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return domain.Appointment{}, validationError(RuleInvalidStatus,
			fmt.Sprintf("status must be scheduled, completed, or canceled, got %q", in.Status))
	}
	if err := s.validateDate(in.AppointmentDate); err != nil {
		return domain.Appointment{}, err
	}

	appt := domain.Appointment{
		UserID:          strings.TrimSpace(in.UserID),
		AppointmentDate: in.AppointmentDate.UTC(),
		Status:          in.Status,
	}
	return s.repo.Create(ctx, appt)
}

type UpdateInput struct {
	AppointmentDate *time.Time
	Status          *domain.AppointmentStatus
}

// Update reschedules and/or changes the status of an appointment. A new date
// re-runs the full booking validation; the store's uniqueness guarantee
// excludes the appointment's own row from the conflict check.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (domain.Appointment, error) {
	if in.AppointmentDate == nil && in.Status == nil {
		return domain.Appointment{}, validationError(RuleEmptyUpdate, "nothing to update")
	}
	if in.Status != nil && !in.Status.Valid() {
		return domain.Appointment{}, validationError(RuleInvalidStatus,
			fmt.Sprintf("status must be scheduled, completed, or canceled, got %q", *in.Status))
	}
	if in.AppointmentDate != nil {
		if err := s.validateDate(*in.AppointmentDate); err != nil {
			return domain.Appointment{}, err
		}
	}

	var (
		appt domain.Appointment
		err  error
	)
	if in.AppointmentDate != nil {
		appt, err = s.repo.UpdateDate(ctx, id, in.AppointmentDate.UTC())
		if err != nil {
			return domain.Appointment{}, err
		}
	}
	if in.Status != nil {
		appt, err = s.repo.UpdateStatus(ctx, id, *in.Status)
		if err != nil {
			return domain.Appointment{}, err
		}
	}
	return appt, nil
}

// Cancel releases the appointment's slot. Canceling an already-canceled
// appointment is a no-op returning the current state.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if appt.Status == domain.StatusCanceled {
		return appt, nil
	}
	return s.repo.UpdateStatus(ctx, id, domain.StatusCanceled)
}

// Delete removes the record entirely. Administrative; cancel is the normal
// way to free a slot.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]domain.Appointment, error) {
	return s.repo.ListAll(ctx)
}

// ListSlots returns the merged calendar view for [rangeStart, rangeEnd]:
// every candidate slot annotated as available or booked, past unbooked slots
// dropped.
func (s *Service) ListSlots(ctx context.Context, rangeStart, rangeEnd time.Time) ([]domain.Slot, error) {
	if rangeEnd.Before(rangeStart) {
		return nil, validationError(RuleInvalidSlotRange, "end must not be before start")
	}

	slots := domain.GenerateSlots(rangeStart, rangeEnd, s.av)
	if len(slots) == 0 {
		return []domain.Slot{}, nil
	}

	appts, err := s.repo.ListActiveRange(ctx, slots[0].Start, slots[len(slots)-1].Start)
	if err != nil {
		return nil, err
	}
	idx, err := domain.BuildBookingIndex(appts, s.av)
	if err != nil {
		return nil, err
	}
	return domain.MergeSlots(slots, idx, s.now()), nil
}

func (s *Service) validateDate(date time.Time) error {
	if !date.After(s.now()) {
		return validationError(RulePastDate, "appointment must be scheduled for a future date")
	}
	if !s.av.AllowsDay(date) {
		return validationError(RuleDayNotAvailable,
			fmt.Sprintf("appointments are only available on %s", weekdayList(s.av)))
	}
	if !s.av.WithinBusinessHours(date) {
		return validationError(RuleOutsideHours,
			fmt.Sprintf("appointments are only available between %02d:00 and %02d:00",
				domain.BusinessStartHour, domain.BusinessEndHour))
	}
	return nil
}

func weekdayList(av domain.Availability) string {
	days := make([]time.Weekday, 0, len(av.Weekdays))
	for wd := range av.Weekdays {
		days = append(days, wd)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	names := make([]string, len(days))
	for i, wd := range days {
		names[i] = wd.String()
	}
	return strings.Join(names, ", ")
}
