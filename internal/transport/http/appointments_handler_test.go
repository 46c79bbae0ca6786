package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"bookday/backend/internal/domain"
	"bookday/backend/internal/service/booking"
	"bookday/backend/internal/store"
)

type fakeBookingService struct {
	bookFn      func(ctx context.Context, in booking.BookInput) (domain.Appointment, error)
	updateFn    func(ctx context.Context, id uuid.UUID, in booking.UpdateInput) (domain.Appointment, error)
	cancelFn    func(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	deleteFn    func(ctx context.Context, id uuid.UUID) error
	getFn       func(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	listFn      func(ctx context.Context) ([]domain.Appointment, error)
	listSlotsFn func(ctx context.Context, rangeStart, rangeEnd time.Time) ([]domain.Slot, error)
}

func (f *fakeBookingService) Book(ctx context.Context, in booking.BookInput) (domain.Appointment, error) {
	if f.bookFn == nil {
		panic("Book not configured")
	}
	return f.bookFn(ctx, in)
}

func (f *fakeBookingService) Update(ctx context.Context, id uuid.UUID, in booking.UpdateInput) (domain.Appointment, error) {
	if f.updateFn == nil {
		panic("Update not configured")
	}
	return f.updateFn(ctx, id, in)
}

func (f *fakeBookingService) Cancel(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if f.cancelFn == nil {
		panic("Cancel not configured")
	}
	return f.cancelFn(ctx, id)
}

func (f *fakeBookingService) Delete(ctx context.Context, id uuid.UUID) error {
	if f.deleteFn == nil {
		panic("Delete not configured")
	}
	return f.deleteFn(ctx, id)
}

func (f *fakeBookingService) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if f.getFn == nil {
		panic("Get not configured")
	}
	return f.getFn(ctx, id)
}

func (f *fakeBookingService) List(ctx context.Context) ([]domain.Appointment, error) {
	if f.listFn == nil {
		panic("List not configured")
	}
	return f.listFn(ctx)
}

func (f *fakeBookingService) ListSlots(ctx context.Context, rangeStart, rangeEnd time.Time) ([]domain.Slot, error) {
	if f.listSlotsFn == nil {
		panic("ListSlots not configured")
	}
	return f.listSlotsFn(ctx, rangeStart, rangeEnd)
}

func (f *fakeBookingService) Availability() domain.Availability {
	av, err := domain.NewAvailability(
		[]time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		20,
		time.UTC,
	)
	if err != nil {
		panic(err)
	}
	return av
}

func newHandlerContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestCreate_Success(t *testing.T) {
	date := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	svc := &fakeBookingService{
		bookFn: func(ctx context.Context, in booking.BookInput) (domain.Appointment, error) {
			if in.UserID != "u1" {
				t.Errorf("user id = %q, want u1", in.UserID)
			}
			if !in.AppointmentDate.Equal(date) {
				t.Errorf("date = %v, want %v", in.AppointmentDate, date)
			}
			return domain.Appointment{
				ID:              uuid.MustParse("00000000-0000-0000-0000-000000000001"),
				UserID:          in.UserID,
				AppointmentDate: in.AppointmentDate,
				Status:          domain.StatusScheduled,
			}, nil
		},
	}
	h := NewAppointmentsHandler(svc, zerolog.Nop())

	c, rec := newHandlerContext(http.MethodPost, "/api/appointments",
		`{"user_id":"u1","appointment_date":"2024-06-10T09:00:00Z"}`)
	if err := h.Create(c); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var got domain.Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.UserID != "u1" || got.Status != domain.StatusScheduled {
		t.Errorf("response = %+v", got)
	}
}

func TestCreate_DefaultsUserToCaller(t *testing.T) {
	svc := &fakeBookingService{
		bookFn: func(ctx context.Context, in booking.BookInput) (domain.Appointment, error) {
			if in.UserID != "caller-7" {
				t.Errorf("user id = %q, want caller-7", in.UserID)
			}
			return domain.Appointment{UserID: in.UserID}, nil
		},
	}
	h := NewAppointmentsHandler(svc, zerolog.Nop())

	c, _ := newHandlerContext(http.MethodPost, "/api/appointments",
		`{"appointment_date":"2024-06-10 09:00:00"}`)
	c.Set("caller_id", "caller-7")
	if err := h.Create(c); err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestCreate_WallClockDateInConfiguredZone(t *testing.T) {
	svc := &fakeBookingService{
		bookFn: func(ctx context.Context, in booking.BookInput) (domain.Appointment, error) {
			want := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
			if !in.AppointmentDate.Equal(want) {
				t.Errorf("date = %v, want %v", in.AppointmentDate, want)
			}
			return domain.Appointment{}, nil
		},
	}
	h := NewAppointmentsHandler(svc, zerolog.Nop())

	c, _ := newHandlerContext(http.MethodPost, "/api/appointments",
		`{"user_id":"u1","appointment_date":"2024-06-10 09:00:00"}`)
	if err := h.Create(c); err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestCreate_BadDateRejected(t *testing.T) {
	h := NewAppointmentsHandler(&fakeBookingService{}, zerolog.Nop())

	c, _ := newHandlerContext(http.MethodPost, "/api/appointments",
		`{"user_id":"u1","appointment_date":"next tuesday"}`)
	err := h.Create(c)

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400 HTTPError", err)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantRule   string
	}{
		{
			name:       "validation error",
			err:        &booking.ValidationError{Rule: booking.RuleDayNotAvailable},
			wantStatus: http.StatusUnprocessableEntity,
			wantRule:   booking.RuleDayNotAvailable,
		},
		{name: "conflict", err: store.ErrConflict, wantStatus: http.StatusConflict},
		{name: "not found", err: store.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "unavailable", err: store.ErrUnavailable, wantStatus: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeBookingService{
				bookFn: func(ctx context.Context, in booking.BookInput) (domain.Appointment, error) {
					return domain.Appointment{}, tt.err
				},
			}
			h := NewAppointmentsHandler(svc, zerolog.Nop())

			c, rec := newHandlerContext(http.MethodPost, "/api/appointments",
				`{"user_id":"u1","appointment_date":"2024-06-10T09:00:00Z"}`)
			if err := h.Create(c); err != nil {
				t.Fatalf("Create error: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body.Rule != tt.wantRule {
				t.Errorf("rule = %q, want %q", body.Rule, tt.wantRule)
			}
		})
	}
}

func TestGet_InvalidID(t *testing.T) {
	h := NewAppointmentsHandler(&fakeBookingService{}, zerolog.Nop())

	c, _ := newHandlerContext(http.MethodGet, "/api/appointments/not-a-uuid", "")
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.Get(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400 HTTPError", err)
	}
}

func TestCancel_ReturnsCanceledAppointment(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	svc := &fakeBookingService{
		cancelFn: func(ctx context.Context, gotID uuid.UUID) (domain.Appointment, error) {
			if gotID != id {
				t.Errorf("id = %v, want %v", gotID, id)
			}
			return domain.Appointment{ID: id, Status: domain.StatusCanceled}, nil
		},
	}
	h := NewAppointmentsHandler(svc, zerolog.Nop())

	c, rec := newHandlerContext(http.MethodPatch, "/api/appointments/"+id.String()+"/cancel", "")
	c.SetParamNames("id")
	c.SetParamValues(id.String())
	if err := h.Cancel(c); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got domain.Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != domain.StatusCanceled {
		t.Errorf("status = %q, want canceled", got.Status)
	}
}

func TestDelete_NoContent(t *testing.T) {
	id := uuid.New()
	svc := &fakeBookingService{
		deleteFn: func(ctx context.Context, gotID uuid.UUID) error { return nil },
	}
	h := NewAppointmentsHandler(svc, zerolog.Nop())

	c, rec := newHandlerContext(http.MethodDelete, "/api/appointments/"+id.String(), "")
	c.SetParamNames("id")
	c.SetParamValues(id.String())
	if err := h.Delete(c); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestList_EmptyIsJSONArray(t *testing.T) {
	svc := &fakeBookingService{
		listFn: func(ctx context.Context) ([]domain.Appointment, error) { return nil, nil },
	}
	h := NewAppointmentsHandler(svc, zerolog.Nop())

	c, rec := newHandlerContext(http.MethodGet, "/api/appointments", "")
	if err := h.List(c); err != nil {
		t.Fatalf("List error: %v", err)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("body = %s, want []", got)
	}
}

func TestListSlots_PassesParsedRange(t *testing.T) {
	wantStart := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 6, 14, 23, 59, 0, 0, time.UTC)
	svc := &fakeBookingService{
		listSlotsFn: func(ctx context.Context, rangeStart, rangeEnd time.Time) ([]domain.Slot, error) {
			if !rangeStart.Equal(wantStart) || !rangeEnd.Equal(wantEnd) {
				t.Errorf("range = [%v, %v], want [%v, %v]", rangeStart, rangeEnd, wantStart, wantEnd)
			}
			return []domain.Slot{
				{Start: wantStart.Add(8 * time.Hour), End: wantStart.Add(8*time.Hour + 20*time.Minute), Status: domain.SlotAvailable},
			}, nil
		},
	}
	h := NewAppointmentsHandler(svc, zerolog.Nop())

	c, rec := newHandlerContext(http.MethodGet,
		"/api/appointments/slots?start=2024-06-10+00:00:00&end=2024-06-14+23:59:00", "")
	if err := h.ListSlots(c); err != nil {
		t.Fatalf("ListSlots error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var slots []domain.Slot
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(slots) != 1 || slots[0].Status != domain.SlotAvailable {
		t.Errorf("slots = %+v", slots)
	}
}

func TestListSlots_MissingRangeRejected(t *testing.T) {
	h := NewAppointmentsHandler(&fakeBookingService{}, zerolog.Nop())

	c, _ := newHandlerContext(http.MethodGet, "/api/appointments/slots", "")
	err := h.ListSlots(c)

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400 HTTPError", err)
	}
}

func TestCalendarConfig(t *testing.T) {
	h := NewAppointmentsHandler(&fakeBookingService{}, zerolog.Nop())

	c, rec := newHandlerContext(http.MethodGet, "/api/appointments/config", "")
	if err := h.CalendarConfig(c); err != nil {
		t.Fatalf("CalendarConfig error: %v", err)
	}

	var got calendarConfigResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	wantDays := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	if len(got.DaysAvailable) != len(wantDays) {
		t.Fatalf("days = %v, want %v", got.DaysAvailable, wantDays)
	}
	for i, d := range wantDays {
		if got.DaysAvailable[i] != d {
			t.Errorf("days[%d] = %q, want %q", i, got.DaysAvailable[i], d)
		}
	}
	if got.AppointmentDuration != 20 {
		t.Errorf("duration = %d, want 20", got.AppointmentDuration)
	}
	if got.BusinessStartHour != 8 || got.BusinessEndHour != 18 {
		t.Errorf("hours = [%d, %d], want [8, 18]", got.BusinessStartHour, got.BusinessEndHour)
	}
	if got.Timezone != "UTC" {
		t.Errorf("timezone = %q, want UTC", got.Timezone)
	}
}
