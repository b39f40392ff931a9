package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/schedule"
)

// Status is the state of a slot or of a point in time for one doctor.
type Status string

const (
	StatusFree       Status = "free"
	StatusBooked     Status = "booked"
	StatusOutOfHours Status = "out_of_hours"
)

// Available reports whether a new appointment could take the slot.
func (s Status) Available() bool {
	return s == StatusFree
}

// Accepted calendar years for queries.
const (
	MinYear = 1970
	MaxYear = 2999
)

var (
	ErrInvalidInterval = errors.New("invalid booked interval")
	ErrDateOutOfRange  = errors.New("date out of range")
)

// Interval is a committed booking. Bounds are half-open: [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Slot is one grid window of a day report with its status for the doctor.
type Slot struct {
	Start  time.Time
	End    time.Time
	Status Status
}

// Engine computes day reports and point availability against a fixed slot grid.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	hours schedule.ClinicHours
}

// NewEngine returns an Engine for hours, or the validation error if hours is unusable.
func NewEngine(hours schedule.ClinicHours) (*Engine, error) {
	if err := hours.Validate(); err != nil {
		return nil, err
	}
	return &Engine{hours: hours}, nil
}

func (e *Engine) Hours() schedule.ClinicHours {
	return e.hours
}

// DayReport partitions the clinic day for date into free and booked slots. booked is expected to
// be the doctor's bookings for that date; a booking that overlaps a slot by any amount books the
// whole slot.
func (e *Engine) DayReport(doctorID string, date time.Time, booked []Interval) ([]Slot, error) {
	if err := checkDate(date); err != nil {
		return nil, fmt.Errorf("doctor %s: %w", doctorID, err)
	}
	if err := validateIntervals(booked); err != nil {
		return nil, fmt.Errorf("doctor %s: %w", doctorID, err)
	}

	windows := e.hours.EnumerateSlots(date)
	report := make([]Slot, 0, len(windows))
	for _, w := range windows {
		status := StatusFree
		if overlapsAny(w.Start, w.End, booked) {
			status = StatusBooked
		}
		report = append(report, Slot{Start: w.Start, End: w.End, Status: status})
	}
	return report, nil
}

// StatusAt reports whether the doctor is free or booked at the instant at, or StatusOutOfHours
// when no slot on at's clinic date contains it. Closing time itself is out of hours.
func (e *Engine) StatusAt(doctorID string, at time.Time, booked []Interval) (Status, error) {
	local := at.In(e.hours.Location)
	if err := checkDate(local); err != nil {
		return "", fmt.Errorf("doctor %s: %w", doctorID, err)
	}
	if err := validateIntervals(booked); err != nil {
		return "", fmt.Errorf("doctor %s: %w", doctorID, err)
	}

	open, close := e.hours.Window(local)
	if at.Before(open) || !at.Before(close) {
		return StatusOutOfHours, nil
	}
	idx := int(at.Sub(open) / e.hours.SlotDuration)
	if idx >= e.hours.SlotCountOn(local) {
		// Inside the trailing remainder that is too short to be a slot.
		return StatusOutOfHours, nil
	}

	start := open.Add(time.Duration(idx) * e.hours.SlotDuration)
	if overlapsAny(start, start.Add(e.hours.SlotDuration), booked) {
		return StatusBooked, nil
	}
	return StatusFree, nil
}

// Free returns the free slots of report, keeping order.
func Free(report []Slot) []Slot {
	out := make([]Slot, 0, len(report))
	for _, s := range report {
		if s.Status == StatusFree {
			out = append(out, s)
		}
	}
	return out
}

type Summary struct {
	Total  int
	Free   int
	Booked int
}

// Summarize counts the slots of report by status.
func Summarize(report []Slot) Summary {
	sum := Summary{Total: len(report)}
	for _, s := range report {
		switch s.Status {
		case StatusFree:
			sum.Free++
		case StatusBooked:
			sum.Booked++
		}
	}
	return sum
}

func checkDate(date time.Time) error {
	if y := date.Year(); y < MinYear || y > MaxYear {
		return fmt.Errorf("%w: year %d not in [%d, %d]", ErrDateOutOfRange, y, MinYear, MaxYear)
	}
	return nil
}

func validateIntervals(booked []Interval) error {
	for i, b := range booked {
		if b.Start.IsZero() || b.End.IsZero() {
			return fmt.Errorf("%w: entry %d has a zero timestamp", ErrInvalidInterval, i)
		}
		if !b.Start.Before(b.End) {
			return fmt.Errorf("%w: entry %d starts at %s but ends at %s", ErrInvalidInterval, i,
				b.Start.Format(time.RFC3339), b.End.Format(time.RFC3339))
		}
	}
	return nil
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
