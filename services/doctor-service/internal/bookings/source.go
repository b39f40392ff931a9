package bookings

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/availability"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/model"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/schedule"
)

// Source supplies a doctor's committed bookings for one clinic date.
type Source interface {
	BookedIntervals(ctx context.Context, doctorID int64, date time.Time) ([]availability.Interval, error)
}

type intervalLister interface {
	ListForWindow(ctx context.Context, doctorID int64, start, end time.Time) ([]model.BookedInterval, error)
}

// RepositorySource reads the booked_intervals projection.
type RepositorySource struct {
	repo  intervalLister
	hours schedule.ClinicHours
}

func NewRepositorySource(repo intervalLister, hours schedule.ClinicHours) *RepositorySource {
	return &RepositorySource{repo: repo, hours: hours}
}

func (s *RepositorySource) BookedIntervals(ctx context.Context, doctorID int64, date time.Time) ([]availability.Interval, error) {
	open, close := s.hours.Window(date)
	rows, err := s.repo.ListForWindow(ctx, doctorID, open, close)
	if err != nil {
		return nil, err
	}
	out := make([]availability.Interval, 0, len(rows))
	for _, r := range rows {
		out = append(out, availability.Interval{Start: r.StartTime, End: r.EndTime})
	}
	return out, nil
}

// DatesTouching lists the calendar dates in loc covered by [start, end).
func DatesTouching(start, end time.Time, loc *time.Location) []time.Time {
	if !start.Before(end) {
		return nil
	}
	first := start.In(loc)
	last := end.Add(-time.Nanosecond).In(loc)

	day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
	stop := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, loc)
	var out []time.Time
	for !day.After(stop) {
		out = append(out, day)
		day = day.AddDate(0, 0, 1)
	}
	return out
}
