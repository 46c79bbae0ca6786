package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
)

// SlotTime is a raw candidate slot produced by the generator, before any
// booking or range filtering.
type SlotTime struct {
	Start time.Time
	End   time.Time
}

// SlotAppointment is a reference to the appointment occupying a booked slot.
type SlotAppointment struct {
	ID     uuid.UUID         `json:"id"`
	UserID string            `json:"user_id"`
	Status AppointmentStatus `json:"status"`
}

// Slot is the merged view served to clients.
type Slot struct {
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	Status      SlotStatus       `json:"status"`
	Appointment *SlotAppointment `json:"appointment,omitempty"`
}

// GenerateSlots enumerates every candidate slot between rangeStart and
// rangeEnd inclusive, in chronological order. Days outside the available
// weekday set produce nothing; allowed days produce boundaries from the start
// of business up to, but not including, the end of business. Slots in the
// past or already booked are not filtered here.
func GenerateSlots(rangeStart, rangeEnd time.Time, av Availability) []SlotTime {
	if rangeEnd.Before(rangeStart) {
		return nil
	}

	end := rangeEnd.In(av.Location)
	var out []SlotTime

	day := rangeStart.In(av.Location)
	for {
		y, m, d := day.Date()
		midnight := time.Date(y, m, d, 0, 0, 0, 0, av.Location)
		if midnight.After(end) {
			break
		}

		if av.Weekdays[midnight.Weekday()] {
			opens := time.Date(y, m, d, BusinessStartHour, 0, 0, 0, av.Location)
			closes := time.Date(y, m, d, BusinessEndHour, 0, 0, 0, av.Location)
			for t := opens; t.Before(closes); t = t.Add(av.SlotDuration) {
				out = append(out, SlotTime{Start: t, End: t.Add(av.SlotDuration)})
			}
		}

		day = midnight.AddDate(0, 0, 1)
	}

	return out
}

const slotKeyLayout = "2006-01-02 15:04:05"

// ErrSlotIntegrity reports two active appointments occupying the same slot.
// The store's uniqueness guarantee makes this unreachable in normal operation,
// so it is surfaced as data corruption rather than resolved silently.
var ErrSlotIntegrity = errors.New("multiple active appointments share a slot")

// BookingIndex answers "is this exact slot instant occupied" in O(1). Keys are
// appointment dates at second precision in the configured timezone.
type BookingIndex struct {
	loc     *time.Location
	entries map[string]Appointment
}

// BuildBookingIndex builds the index from one range read of active
// appointments.
func BuildBookingIndex(appts []Appointment, av Availability) (BookingIndex, error) {
	entries := make(map[string]Appointment, len(appts))
	for _, a := range appts {
		key := a.AppointmentDate.In(av.Location).Format(slotKeyLayout)
		if _, taken := entries[key]; taken {
			return BookingIndex{}, fmt.Errorf("%w: %s", ErrSlotIntegrity, key)
		}
		entries[key] = a
	}
	return BookingIndex{loc: av.Location, entries: entries}, nil
}

func (idx BookingIndex) Lookup(t time.Time) (Appointment, bool) {
	a, ok := idx.entries[t.In(idx.loc).Format(slotKeyLayout)]
	return a, ok
}

// MergeSlots annotates generated slots against the booking index. Booked slots
// carry a reference to their appointment; unbooked future slots are available;
// unbooked past slots are dropped since nothing can be done with them.
func MergeSlots(slots []SlotTime, idx BookingIndex, now time.Time) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, st := range slots {
		if appt, ok := idx.Lookup(st.Start); ok {
			out = append(out, Slot{
				Start:  st.Start,
				End:    st.End,
				Status: SlotBooked,
				Appointment: &SlotAppointment{
					ID:     appt.ID,
					UserID: appt.UserID,
					Status: appt.Status,
				},
			})
			continue
		}
		if st.Start.After(now) {
			out = append(out, Slot{Start: st.Start, End: st.End, Status: SlotAvailable})
		}
	}
	return out
}
