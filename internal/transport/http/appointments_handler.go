package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"bookday/backend/internal/domain"
	"bookday/backend/internal/service/booking"
	"bookday/backend/internal/store"
)

type bookingService interface {
	Book(ctx context.Context, in booking.BookInput) (domain.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, in booking.UpdateInput) (domain.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	List(ctx context.Context) ([]domain.Appointment, error)
	ListSlots(ctx context.Context, rangeStart, rangeEnd time.Time) ([]domain.Slot, error)
	Availability() domain.Availability
}

type AppointmentsHandler struct {
	svc bookingService
	log zerolog.Logger
}

func NewAppointmentsHandler(svc bookingService, log zerolog.Logger) *AppointmentsHandler {
	return &AppointmentsHandler{
		svc: svc,
		log: log.With().Str("component", "http.appointments").Logger(),
	}
}

func (h *AppointmentsHandler) Register(g *echo.Group) {
	g.GET("/appointments", h.List)
	g.GET("/appointments/slots", h.ListSlots)
	g.GET("/appointments/config", h.CalendarConfig)
	g.POST("/appointments", h.Create)
	g.GET("/appointments/:id", h.Get)
	g.PATCH("/appointments/:id", h.Update)
	g.PATCH("/appointments/:id/cancel", h.Cancel)
	g.DELETE("/appointments/:id", h.Delete)
}

type createAppointmentRequest struct {
	UserID          string `json:"user_id"`
	AppointmentDate string `json:"appointment_date"`
	Status          string `json:"status"`
}

func (h *AppointmentsHandler) Create(c echo.Context) error {
	var req createAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	date, err := h.parseDate(req.AppointmentDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "appointment_date must be a valid timestamp")
	}

	userID := req.UserID
	if userID == "" {
		userID = CallerID(c)
	}

	appt, err := h.svc.Book(c.Request().Context(), booking.BookInput{
		UserID:          userID,
		AppointmentDate: date,
		Status:          domain.AppointmentStatus(req.Status),
	})
	if err != nil {
		return h.writeError(c, err)
	}

	h.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("user_id", appt.UserID).
		Time("appointment_date", appt.AppointmentDate).
		Msg("appointment created")
	return c.JSON(http.StatusCreated, appt)
}

type updateAppointmentRequest struct {
	AppointmentDate *string `json:"appointment_date"`
	Status          *string `json:"status"`
}

func (h *AppointmentsHandler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var in booking.UpdateInput
	if req.AppointmentDate != nil {
		date, err := h.parseDate(*req.AppointmentDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "appointment_date must be a valid timestamp")
		}
		in.AppointmentDate = &date
	}
	if req.Status != nil {
		status := domain.AppointmentStatus(*req.Status)
		in.Status = &status
	}

	appt, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return h.writeError(c, err)
	}

	h.log.Info().Str("appointment_id", appt.ID.String()).Msg("appointment updated")
	return c.JSON(http.StatusOK, appt)
}

func (h *AppointmentsHandler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	appt, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return h.writeError(c, err)
	}

	h.log.Info().Str("appointment_id", appt.ID.String()).Msg("appointment canceled")
	return c.JSON(http.StatusOK, appt)
}

func (h *AppointmentsHandler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return h.writeError(c, err)
	}

	h.log.Info().Str("appointment_id", id.String()).Msg("appointment deleted")
	return c.NoContent(http.StatusNoContent)
}

func (h *AppointmentsHandler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	appt, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *AppointmentsHandler) List(c echo.Context) error {
	appts, err := h.svc.List(c.Request().Context())
	if err != nil {
		return h.writeError(c, err)
	}
	if appts == nil {
		appts = []domain.Appointment{}
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *AppointmentsHandler) ListSlots(c echo.Context) error {
	start, err := h.parseDate(c.QueryParam("start"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start must be a valid timestamp")
	}
	end, err := h.parseDate(c.QueryParam("end"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "end must be a valid timestamp")
	}

	slots, err := h.svc.ListSlots(c.Request().Context(), start, end)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, slots)
}

type calendarConfigResponse struct {
	DaysAvailable       []string `json:"days_available"`
	AppointmentDuration int      `json:"appointment_duration_minutes"`
	BusinessStartHour   int      `json:"business_start_hour"`
	BusinessEndHour     int      `json:"business_end_hour"`
	Timezone            string   `json:"timezone"`
}

func (h *AppointmentsHandler) CalendarConfig(c echo.Context) error {
	av := h.svc.Availability()

	days := make([]time.Weekday, 0, len(av.Weekdays))
	for wd := range av.Weekdays {
		days = append(days, wd)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	names := make([]string, len(days))
	for i, wd := range days {
		names[i] = wd.String()
	}

	return c.JSON(http.StatusOK, calendarConfigResponse{
		DaysAvailable:       names,
		AppointmentDuration: int(av.SlotDuration / time.Minute),
		BusinessStartHour:   domain.BusinessStartHour,
		BusinessEndHour:     domain.BusinessEndHour,
		Timezone:            av.Location.String(),
	})
}

const wallClockLayout = "2006-01-02 15:04:05"

// parseDate accepts RFC 3339 timestamps and wall-clock timestamps in the
// configured timezone (the format calendar clients send).
func (h *AppointmentsHandler) parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(wallClockLayout, s, h.svc.Availability().Location)
}

type errorResponse struct {
	Error string `json:"error"`
	Rule  string `json:"rule,omitempty"`
}

func (h *AppointmentsHandler) writeError(c echo.Context, err error) error {
	var vErr *booking.ValidationError
	switch {
	case errors.As(err, &vErr):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: vErr.Error(), Rule: vErr.Rule})
	case errors.Is(err, store.ErrConflict):
		return c.JSON(http.StatusConflict, errorResponse{Error: "this slot is already booked, pick another one"})
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "appointment not found"})
	case errors.Is(err, store.ErrUnavailable):
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "storage temporarily unavailable, retry later"})
	default:
		h.log.Error().Err(err).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
