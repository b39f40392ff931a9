package availability

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/schedule"
)

var testDay = time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return testDay.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func newTestEngine(t *testing.T, opens, closes string) *Engine {
	t.Helper()
	hours, err := schedule.Parse(opens, closes, 30*time.Minute, time.UTC)
	if err != nil {
		t.Fatalf("schedule.Parse: %v", err)
	}
	e, err := NewEngine(hours)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func bookedStarts(report []Slot) []time.Time {
	var out []time.Time
	for _, s := range report {
		if s.Status == StatusBooked {
			out = append(out, s.Start)
		}
	}
	return out
}

func sameInstants(a, b []time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func TestDayReport_NoBookings(t *testing.T) {
	e := newTestEngine(t, "09:00", "18:00")
	report, err := e.DayReport("doc-1", testDay, nil)
	if err != nil {
		t.Fatalf("DayReport: %v", err)
	}
	if len(report) != 18 {
		t.Fatalf("expected 18 slots, got %d", len(report))
	}
	if sum := Summarize(report); sum.Free != 18 || sum.Booked != 0 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if len(Free(report)) != 18 {
		t.Fatal("every slot should be free")
	}
}

func TestDayReport_AlignedBooking(t *testing.T) {
	e := newTestEngine(t, "09:00", "18:00")
	report, err := e.DayReport("doc-1", testDay, []Interval{{Start: at(10, 0), End: at(11, 0)}})
	if err != nil {
		t.Fatalf("DayReport: %v", err)
	}
	got := bookedStarts(report)
	want := []time.Time{at(10, 0), at(10, 30)}
	if !sameInstants(got, want) {
		t.Fatalf("booked slots = %v, want %v", got, want)
	}
	if sum := Summarize(report); sum.Total != 18 || sum.Booked != 2 || sum.Free != 16 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestDayReport_UnalignedBookingConsumesWholeSlots(t *testing.T) {
	e := newTestEngine(t, "09:00", "18:00")
	report, err := e.DayReport("doc-1", testDay, []Interval{{Start: at(10, 15), End: at(10, 45)}})
	if err != nil {
		t.Fatalf("DayReport: %v", err)
	}
	got := bookedStarts(report)
	want := []time.Time{at(10, 0), at(10, 30)}
	if !sameInstants(got, want) {
		t.Fatalf("booked slots = %v, want %v", got, want)
	}
}

func TestDayReport_TouchingBoundaryIsNotOverlap(t *testing.T) {
	e := newTestEngine(t, "09:00", "18:00")
	booked := []Interval{
		{Start: at(8, 0), End: at(9, 0)},   // ends exactly at opening
		{Start: at(18, 0), End: at(19, 0)}, // starts exactly at closing
		{Start: at(12, 0), End: at(12, 30)},
	}
	report, err := e.DayReport("doc-1", testDay, booked)
	if err != nil {
		t.Fatalf("DayReport: %v", err)
	}
	got := bookedStarts(report)
	if len(got) != 1 || !got[0].Equal(at(12, 0)) {
		t.Fatalf("only 12:00 should be booked, got %v", got)
	}
}

func TestDayReport_OverlapProperty(t *testing.T) {
	e := newTestEngine(t, "09:00", "18:00")
	booked := []Interval{
		{Start: at(9, 10), End: at(9, 20)},
		{Start: at(13, 0), End: at(14, 45)},
		{Start: at(17, 59), End: at(20, 0)},
	}
	report, err := e.DayReport("doc-1", testDay, booked)
	if err != nil {
		t.Fatalf("DayReport: %v", err)
	}
	for _, s := range report {
		overlapping := false
		for _, b := range booked {
			if b.Start.Before(s.End) && s.Start.Before(b.End) {
				overlapping = true
			}
		}
		if overlapping && s.Status != StatusBooked {
			t.Fatalf("slot %v overlaps a booking but is %s", s.Start, s.Status)
		}
		if !overlapping && s.Status != StatusFree {
			t.Fatalf("slot %v has no overlap but is %s", s.Start, s.Status)
		}
	}
}

func TestDayReport_Idempotent(t *testing.T) {
	e := newTestEngine(t, "09:00", "18:00")
	booked := []Interval{{Start: at(11, 0), End: at(11, 30)}}
	a, err := e.DayReport("doc-1", testDay, booked)
	if err != nil {
		t.Fatalf("DayReport: %v", err)
	}
	b, err := e.DayReport("doc-1", testDay, booked)
	if err != nil {
		t.Fatalf("DayReport: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("identical inputs must give identical reports")
	}
}

func TestDayReport_TrailingRemainder(t *testing.T) {
	e := newTestEngine(t, "09:00", "18:15")
	report, err := e.DayReport("doc-1", testDay, []Interval{{Start: at(18, 0), End: at(18, 15)}})
	if err != nil {
		t.Fatalf("DayReport: %v", err)
	}
	if len(report) != 18 {
		t.Fatalf("expected 18 slots, got %d", len(report))
	}
	if len(bookedStarts(report)) != 0 {
		t.Fatal("a booking inside the remainder should not book any slot")
	}
}

func TestDayReport_RejectsInvalidInput(t *testing.T) {
	e := newTestEngine(t, "09:00", "18:00")

	_, err := e.DayReport("doc-7", testDay, []Interval{{Start: at(11, 0), End: at(10, 0)}})
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
	_, err = e.DayReport("doc-7", testDay, []Interval{{Start: at(11, 0), End: at(11, 0)}})
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("empty interval should be rejected, got %v", err)
	}
	_, err = e.DayReport("doc-7", testDay, []Interval{{End: at(11, 0)}})
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("zero start should be rejected, got %v", err)
	}
	_, err = e.DayReport("doc-7", time.Date(1066, 10, 14, 0, 0, 0, 0, time.UTC), nil)
	if !errors.Is(err, ErrDateOutOfRange) {
		t.Fatalf("expected ErrDateOutOfRange, got %v", err)
	}
}

func TestStatusAt_Boundaries(t *testing.T) {
	e := newTestEngine(t, "09:00", "18:00")
	cases := []struct {
		name string
		at   time.Time
		want Status
	}{
		{"opening time", at(9, 0), StatusFree},
		{"one minute before opening", at(8, 59), StatusOutOfHours},
		{"closing time", at(18, 0), StatusOutOfHours},
		{"last minute", at(17, 59), StatusFree},
		{"midnight", at(0, 0), StatusOutOfHours},
	}
	for _, tc := range cases {
		got, err := e.StatusAt("doc-1", tc.at, nil)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, got, tc.want)
		}
		if got.Available() != (tc.want == StatusFree) {
			t.Fatalf("%s: Available() = %v for %s", tc.name, got.Available(), got)
		}
	}
}

func TestStatusAt_Booked(t *testing.T) {
	e := newTestEngine(t, "09:00", "18:00")
	booked := []Interval{{Start: at(10, 15), End: at(10, 45)}}

	for _, ts := range []time.Time{at(10, 0), at(10, 29), at(10, 30), at(10, 59)} {
		got, err := e.StatusAt("doc-1", ts, booked)
		if err != nil {
			t.Fatalf("StatusAt: %v", err)
		}
		if got != StatusBooked {
			t.Fatalf("%s: expected booked, got %s", ts.Format("15:04"), got)
		}
	}
	got, err := e.StatusAt("doc-1", at(11, 0), booked)
	if err != nil || got != StatusFree {
		t.Fatalf("11:00 should be free, got %s (%v)", got, err)
	}

	if _, err := e.StatusAt("doc-1", at(10, 0), []Interval{{Start: at(12, 0), End: at(11, 0)}}); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestStatusAt_TrailingRemainderIsOutOfHours(t *testing.T) {
	e := newTestEngine(t, "09:00", "18:15")
	got, err := e.StatusAt("doc-1", at(18, 5), nil)
	if err != nil {
		t.Fatalf("StatusAt: %v", err)
	}
	if got != StatusOutOfHours {
		t.Fatalf("expected out_of_hours inside the remainder, got %s", got)
	}
}

func TestStatusAt_AgreesWithDayReport(t *testing.T) {
	e := newTestEngine(t, "09:00", "18:15")
	booked := []Interval{
		{Start: at(9, 45), End: at(10, 5)},
		{Start: at(14, 0), End: at(15, 0)},
		{Start: at(17, 50), End: at(18, 10)},
	}
	report, err := e.DayReport("doc-1", testDay, booked)
	if err != nil {
		t.Fatalf("DayReport: %v", err)
	}

	for ts := at(9, 0); ts.Before(at(18, 0)); ts = ts.Add(7 * time.Minute) {
		var want Status
		for _, s := range report {
			if !ts.Before(s.Start) && ts.Before(s.End) {
				want = s.Status
			}
		}
		got, err := e.StatusAt("doc-1", ts, booked)
		if err != nil {
			t.Fatalf("StatusAt(%s): %v", ts.Format("15:04"), err)
		}
		if got != want {
			t.Fatalf("StatusAt(%s) = %s, day report says %s", ts.Format("15:04"), got, want)
		}
	}
}

func TestStatusAt_ConvertsToClinicLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	hours, err := schedule.Parse("09:00", "18:00", 30*time.Minute, tokyo)
	if err != nil {
		t.Fatalf("schedule.Parse: %v", err)
	}
	e, err := NewEngine(hours)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	// 01:00 UTC is 10:00 in Tokyo.
	got, err := e.StatusAt("doc-1", time.Date(2026, 1, 28, 1, 0, 0, 0, time.UTC), nil)
	if err != nil || got != StatusFree {
		t.Fatalf("expected free, got %s (%v)", got, err)
	}
	// 10:00 UTC is 19:00 in Tokyo.
	got, err = e.StatusAt("doc-1", time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC), nil)
	if err != nil || got != StatusOutOfHours {
		t.Fatalf("expected out_of_hours, got %s (%v)", got, err)
	}
}

func TestNewEngine_RejectsInvalidHours(t *testing.T) {
	if _, err := NewEngine(schedule.ClinicHours{OpensAt: 9 * time.Hour, ClosesAt: 18 * time.Hour, Location: time.UTC}); !errors.Is(err, schedule.ErrInvalidHours) {
		t.Fatalf("expected ErrInvalidHours, got %v", err)
	}
}

func TestStatusAt_DSTTransitionDays(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	hours, err := schedule.Parse("00:00", "06:00", 30*time.Minute, newYork)
	if err != nil {
		t.Fatalf("schedule.Parse: %v", err)
	}
	e, err := NewEngine(hours)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	for _, date := range []time.Time{
		time.Date(2026, 3, 8, 0, 0, 0, 0, newYork),
		time.Date(2026, 11, 1, 0, 0, 0, 0, newYork),
	} {
		_, close := hours.Window(date)
		lastQuarter := close.Add(-15 * time.Minute)

		got, err := e.StatusAt("doc-1", lastQuarter, nil)
		if err != nil || got != StatusFree {
			t.Fatalf("%s: expected free just before close, got %s (%v)", date.Format(time.DateOnly), got, err)
		}
		got, err = e.StatusAt("doc-1", close, nil)
		if err != nil || got != StatusOutOfHours {
			t.Fatalf("%s: expected out_of_hours at close, got %s (%v)", date.Format(time.DateOnly), got, err)
		}

		booked := []Interval{{Start: close.Add(-30 * time.Minute), End: close}}
		report, err := e.DayReport("doc-1", date, booked)
		if err != nil {
			t.Fatalf("DayReport: %v", err)
		}
		last := report[len(report)-1]
		if !last.End.Equal(close) || last.Status != StatusBooked {
			t.Fatalf("%s: last slot %v-%v %s, want booked slot ending at %v", date.Format(time.DateOnly), last.Start, last.End, last.Status, close)
		}
		got, err = e.StatusAt("doc-1", lastQuarter, booked)
		if err != nil || got != StatusBooked {
			t.Fatalf("%s: expected booked just before close, got %s (%v)", date.Format(time.DateOnly), got, err)
		}
	}
}
