package schedule

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func mustParse(t *testing.T, opens, closes string, slot time.Duration) ClinicHours {
	t.Helper()
	h, err := Parse(opens, closes, slot, time.UTC)
	if err != nil {
		t.Fatalf("Parse(%s, %s, %s): %v", opens, closes, slot, err)
	}
	return h
}

func TestEnumerateSlots_DefaultClinicDay(t *testing.T) {
	h := mustParse(t, "09:00", "18:00", 30*time.Minute)
	date := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)

	slots := h.EnumerateSlots(date)
	if len(slots) != 18 {
		t.Fatalf("expected 18 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(date.Add(9*time.Hour)) || !slots[0].End.Equal(date.Add(9*time.Hour+30*time.Minute)) {
		t.Fatalf("unexpected first slot %v-%v", slots[0].Start, slots[0].End)
	}
	last := slots[len(slots)-1]
	if !last.Start.Equal(date.Add(17*time.Hour+30*time.Minute)) || !last.End.Equal(date.Add(18*time.Hour)) {
		t.Fatalf("unexpected last slot %v-%v", last.Start, last.End)
	}
}

func TestEnumerateSlots_TilesWithoutGaps(t *testing.T) {
	cases := []struct {
		opens, closes string
		slot          time.Duration
	}{
		{"09:00", "18:00", 30 * time.Minute},
		{"08:15", "12:45", 15 * time.Minute},
		{"00:00", "24:00", time.Hour},
		{"07:00", "19:00", 20 * time.Minute},
	}
	for _, tc := range cases {
		h := mustParse(t, tc.opens, tc.closes, tc.slot)
		date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
		open, close := h.Window(date)

		slots := h.EnumerateSlots(date)
		if !slots[0].Start.Equal(open) {
			t.Fatalf("%s-%s: first slot starts at %v, want %v", tc.opens, tc.closes, slots[0].Start, open)
		}
		for i, s := range slots {
			if s.End.Sub(s.Start) != tc.slot {
				t.Fatalf("%s-%s: slot %d has length %s", tc.opens, tc.closes, i, s.End.Sub(s.Start))
			}
			if i > 0 && !slots[i-1].End.Equal(s.Start) {
				t.Fatalf("%s-%s: gap or overlap between slot %d and %d", tc.opens, tc.closes, i-1, i)
			}
		}
		if !slots[len(slots)-1].End.Equal(close) {
			t.Fatalf("%s-%s: last slot ends at %v, want %v", tc.opens, tc.closes, slots[len(slots)-1].End, close)
		}
	}

	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	h, err := Parse("00:00", "06:00", 30*time.Minute, newYork)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	transitions := []struct {
		date  time.Time
		slots int
	}{
		{time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), 10},  // spring forward: five elapsed hours
		{time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), 14}, // fall back: seven elapsed hours
	}
	for _, tc := range transitions {
		open, close := h.Window(tc.date)
		slots := h.EnumerateSlots(tc.date)
		if len(slots) != tc.slots || h.SlotCountOn(tc.date) != tc.slots {
			t.Fatalf("%s: expected %d slots, got %d (SlotCountOn=%d)", tc.date.Format(time.DateOnly), tc.slots, len(slots), h.SlotCountOn(tc.date))
		}
		if !slots[0].Start.Equal(open) {
			t.Fatalf("%s: first slot starts at %v, want %v", tc.date.Format(time.DateOnly), slots[0].Start, open)
		}
		for i := 1; i < len(slots); i++ {
			if !slots[i-1].End.Equal(slots[i].Start) {
				t.Fatalf("%s: gap or overlap between slot %d and %d", tc.date.Format(time.DateOnly), i-1, i)
			}
		}
		if last := slots[len(slots)-1]; !last.End.Equal(close) {
			t.Fatalf("%s: last slot ends at %v, want %v", tc.date.Format(time.DateOnly), last.End, close)
		}
	}
}

func TestEnumerateSlots_DropsTrailingPartialSlot(t *testing.T) {
	h := mustParse(t, "09:00", "18:15", 30*time.Minute)
	date := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)

	slots := h.EnumerateSlots(date)
	if len(slots) != 18 || h.SlotCount() != 18 {
		t.Fatalf("expected 18 whole slots, got %d (SlotCount=%d)", len(slots), h.SlotCount())
	}
	if !slots[17].End.Equal(date.Add(18 * time.Hour)) {
		t.Fatalf("last slot should end at 18:00, got %v", slots[17].End)
	}
}

func TestEnumerateSlots_Restartable(t *testing.T) {
	h := mustParse(t, "09:00", "18:00", 30*time.Minute)
	date := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	if !reflect.DeepEqual(h.EnumerateSlots(date), h.EnumerateSlots(date)) {
		t.Fatal("enumeration must be deterministic")
	}
}

func TestEnumerateSlots_UsesCalendarDateOnly(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	h, err := Parse("09:00", "18:00", 30*time.Minute, berlin)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// 23:30 UTC on the 27th is still "the 27th" as a calendar date.
	date := time.Date(2026, 1, 27, 23, 30, 0, 0, time.UTC)
	slots := h.EnumerateSlots(date)
	want := time.Date(2026, 1, 27, 9, 0, 0, 0, berlin)
	if !slots[0].Start.Equal(want) {
		t.Fatalf("expected first slot %v, got %v", want, slots[0].Start)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name          string
		opens, closes time.Duration
		slot          time.Duration
	}{
		{"opens equals closes", 9 * time.Hour, 9 * time.Hour, 30 * time.Minute},
		{"opens after closes", 18 * time.Hour, 9 * time.Hour, 30 * time.Minute},
		{"zero slot", 9 * time.Hour, 18 * time.Hour, 0},
		{"negative slot", 9 * time.Hour, 18 * time.Hour, -time.Minute},
		{"slot longer than window", 9 * time.Hour, 10 * time.Hour, 2 * time.Hour},
		{"closes past midnight", 9 * time.Hour, 25 * time.Hour, 30 * time.Minute},
		{"negative opening", -time.Hour, 18 * time.Hour, 30 * time.Minute},
	}
	for _, tc := range cases {
		if _, err := New(tc.opens, tc.closes, tc.slot, time.UTC); !errors.Is(err, ErrInvalidHours) {
			t.Fatalf("%s: expected ErrInvalidHours, got %v", tc.name, err)
		}
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]time.Duration{
		"09:00": 9 * time.Hour,
		"17:45": 17*time.Hour + 45*time.Minute,
		"00:00": 0,
		"24:00": 24 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseClock(in)
		if err != nil || got != want {
			t.Fatalf("ParseClock(%q) = %s, %v; want %s", in, got, err, want)
		}
		if FormatClock(got) != in {
			t.Fatalf("FormatClock(%s) = %q, want %q", got, FormatClock(got), in)
		}
	}
	for _, bad := range []string{"9am", "25:00", "", "12:60"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("ParseClock(%q) should fail", bad)
		}
	}
	if _, err := Parse("nine", "18:00", 30*time.Minute, time.UTC); !errors.Is(err, ErrInvalidHours) {
		t.Fatalf("expected ErrInvalidHours from Parse, got %v", err)
	}
}
