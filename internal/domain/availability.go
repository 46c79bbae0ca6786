package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Business hours are fixed in this version; only the weekday set, slot
// duration, and timezone come from configuration.
const (
	BusinessStartHour = 8
	BusinessEndHour   = 18
)

// Availability is the weekly booking template. It is loaded once at startup
// and passed explicitly into the slot generator, merger, and booking service.
type Availability struct {
	Weekdays     map[time.Weekday]bool
	SlotDuration time.Duration
	Location     *time.Location
}

func NewAvailability(weekdays []time.Weekday, slotDurationMinutes int, loc *time.Location) (Availability, error) {
	if len(weekdays) == 0 {
		return Availability{}, errors.New("at least one available weekday is required")
	}
	if slotDurationMinutes <= 0 {
		return Availability{}, fmt.Errorf("slot duration must be positive, got %d", slotDurationMinutes)
	}
	if BusinessStartHour >= BusinessEndHour {
		return Availability{}, errors.New("business hours window is empty")
	}
	if loc == nil {
		loc = time.UTC
	}

	set := make(map[time.Weekday]bool, len(weekdays))
	for _, wd := range weekdays {
		set[wd] = true
	}

	return Availability{
		Weekdays:     set,
		SlotDuration: time.Duration(slotDurationMinutes) * time.Minute,
		Location:     loc,
	}, nil
}

// ParseWeekdays parses a comma-separated list of English weekday names.
// Surrounding braces are tolerated and stripped.
func ParseWeekdays(s string) ([]time.Weekday, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")

	names := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}

	var out []time.Weekday
	seen := make(map[time.Weekday]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		wd, ok := names[strings.ToLower(part)]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		if _, dup := seen[wd]; dup {
			continue
		}
		seen[wd] = struct{}{}
		out = append(out, wd)
	}
	return out, nil
}

func (a Availability) AllowsDay(t time.Time) bool {
	return a.Weekdays[t.In(a.Location).Weekday()]
}

func (a Availability) WithinBusinessHours(t time.Time) bool {
	h := t.In(a.Location).Hour()
	return h >= BusinessStartHour && h < BusinessEndHour
}
