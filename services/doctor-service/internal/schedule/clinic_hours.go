// Package schedule holds the clinic-wide slot grid: opening hours and slot granularity,
// identical for every doctor.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const day = 24 * time.Hour

// ErrInvalidHours is wrapped by every validation failure of New, Parse and Validate.
var ErrInvalidHours = errors.New("invalid clinic hours")

// ClinicHours is the daily operating window and slot length. OpensAt and ClosesAt are offsets
// from local midnight in Location. Values are immutable once built by New or Parse.
type ClinicHours struct {
	OpensAt      time.Duration
	ClosesAt     time.Duration
	SlotDuration time.Duration
	Location     *time.Location
}

// Window is a half-open [Start, End) interval on the slot grid.
type Window struct {
	Start time.Time
	End   time.Time
}

// New validates and builds ClinicHours. A nil loc means UTC.
func New(opensAt, closesAt, slotDuration time.Duration, loc *time.Location) (ClinicHours, error) {
	if loc == nil {
		loc = time.UTC
	}
	h := ClinicHours{
		OpensAt:      opensAt,
		ClosesAt:     closesAt,
		SlotDuration: slotDuration,
		Location:     loc,
	}
	if err := h.Validate(); err != nil {
		return ClinicHours{}, err
	}
	return h, nil
}

// Parse builds ClinicHours from "HH:MM" clock strings. "24:00" is accepted as a closing time.
func Parse(opens, closes string, slotDuration time.Duration, loc *time.Location) (ClinicHours, error) {
	o, err := ParseClock(opens)
	if err != nil {
		return ClinicHours{}, fmt.Errorf("%w: opens_at: %v", ErrInvalidHours, err)
	}
	c, err := ParseClock(closes)
	if err != nil {
		return ClinicHours{}, fmt.Errorf("%w: closes_at: %v", ErrInvalidHours, err)
	}
	return New(o, c, slotDuration, loc)
}

// ParseClock converts "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" {
		return day, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// FormatClock is the inverse of ParseClock.
func FormatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

// Validate reports why h cannot form a slot grid, or nil.
func (h ClinicHours) Validate() error {
	switch {
	case h.Location == nil:
		return fmt.Errorf("%w: location is required", ErrInvalidHours)
	case h.OpensAt < 0 || h.OpensAt >= day:
		return fmt.Errorf("%w: opens_at %s outside the day", ErrInvalidHours, h.OpensAt)
	case h.ClosesAt <= 0 || h.ClosesAt > day:
		return fmt.Errorf("%w: closes_at %s outside the day", ErrInvalidHours, h.ClosesAt)
	case h.OpensAt >= h.ClosesAt:
		return fmt.Errorf("%w: opens_at %s must be before closes_at %s", ErrInvalidHours, FormatClock(h.OpensAt), FormatClock(h.ClosesAt))
	case h.SlotDuration <= 0:
		return fmt.Errorf("%w: slot duration must be positive (got %s)", ErrInvalidHours, h.SlotDuration)
	case h.SlotDuration > h.ClosesAt-h.OpensAt:
		return fmt.Errorf("%w: slot duration %s exceeds the opening window", ErrInvalidHours, h.SlotDuration)
	}
	return nil
}

// SlotCount is the number of whole slots on a day without a clock change; a trailing remainder
// is not a slot. Use SlotCountOn for a specific date.
func (h ClinicHours) SlotCount() int {
	if h.SlotDuration <= 0 || h.ClosesAt <= h.OpensAt {
		return 0
	}
	return int((h.ClosesAt - h.OpensAt) / h.SlotDuration)
}

// SlotCountOn is the number of whole slots between opening and closing on date. It differs from
// SlotCount when a DST transition shortens or lengthens the window.
func (h ClinicHours) SlotCountOn(date time.Time) int {
	open, close := h.Window(date)
	return h.slotsBetween(open, close)
}

func (h ClinicHours) slotsBetween(open, close time.Time) int {
	if h.SlotDuration <= 0 || !open.Before(close) {
		return 0
	}
	return int(close.Sub(open) / h.SlotDuration)
}

// Midnight anchors the calendar date of date in the clinic location. Only the year, month and
// day of date are used; its clock and zone are ignored.
func (h ClinicHours) Midnight(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, h.Location)
}

// Window returns the opening and closing instants for date.
func (h ClinicHours) Window(date time.Time) (open, close time.Time) {
	return h.at(date, h.OpensAt), h.at(date, h.ClosesAt)
}

// EnumerateSlots walks the day from opening time in SlotDuration steps and returns every slot
// that ends at or before closing time, in chronological order.
func (h ClinicHours) EnumerateSlots(date time.Time) []Window {
	open, close := h.Window(date)
	n := h.slotsBetween(open, close)
	if n == 0 {
		return nil
	}
	slots := make([]Window, 0, n)
	for i := 0; i < n; i++ {
		start := open.Add(time.Duration(i) * h.SlotDuration)
		slots = append(slots, Window{Start: start, End: start.Add(h.SlotDuration)})
	}
	return slots
}

// at converts a wall-clock offset on date into an instant, so opening and closing stay at their
// wall-clock times on DST transition days. The elapsed time between them can then differ from
// ClosesAt-OpensAt.
func (h ClinicHours) at(date time.Time, offset time.Duration) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, int(offset), h.Location)
}
