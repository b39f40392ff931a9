package model

import "time"

type Doctor struct {
	ID             int64
	Name           string
	Email          string
	Phone          string
	Department     string
	Specialization string
	CreatedAt      time.Time
}

// BookedInterval is the local projection of an appointment held by the booking service.
type BookedInterval struct {
	AppointmentID string
	DoctorID      int64
	StartTime     time.Time
	EndTime       time.Time
	Status        string
	UpdatedAt     time.Time
}

const (
	IntervalBooked    = "booked"
	IntervalCancelled = "cancelled"
)
