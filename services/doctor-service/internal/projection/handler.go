package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/doctorsched/libs/kafkax"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/bookings"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/model"
	"github.com/segmentio/kafka-go"
)

const (
	TopicAppointmentBooked    = "booking.appointment.booked.v1"
	TopicAppointmentCancelled = "booking.appointment.cancelled.v1"
)

var errMalformed = errors.New("malformed booking event")

type intervalStore interface {
	UpsertBooked(ctx context.Context, iv model.BookedInterval) (prev model.BookedInterval, found bool, err error)
	Cancel(ctx context.Context, iv model.BookedInterval) (model.BookedInterval, error)
}

type invalidator interface {
	Invalidate(ctx context.Context, doctorID int64, dates ...time.Time) error
}

// Handler folds booking events into the booked_intervals projection.
type Handler struct {
	store  intervalStore
	cache  invalidator
	loc    *time.Location
	logger *slog.Logger

	bookedTopic    string
	cancelledTopic string
}

type Config struct {
	BookedTopic    string
	CancelledTopic string
	Location       *time.Location
}

// New builds a Handler. cache may be nil when caching is disabled.
func New(store intervalStore, cache invalidator, logger *slog.Logger, cfg Config) *Handler {
	if cfg.BookedTopic == "" {
		cfg.BookedTopic = TopicAppointmentBooked
	}
	if cfg.CancelledTopic == "" {
		cfg.CancelledTopic = TopicAppointmentCancelled
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Handler{
		store:          store,
		cache:          cache,
		loc:            cfg.Location,
		logger:         logger,
		bookedTopic:    cfg.BookedTopic,
		cancelledTopic: cfg.CancelledTopic,
	}
}

func (h *Handler) Topics() []string {
	return []string{h.bookedTopic, h.cancelledTopic}
}

type appointmentEvent struct {
	AppointmentID string    `json:"appointment_id"`
	DoctorID      doctorID  `json:"doctor_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

// doctorID accepts both JSON numbers and numeric strings.
type doctorID int64

func (d *doctorID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("doctor_id: %w", err)
	}
	*d = doctorID(v)
	return nil
}

func decode(payload []byte) (model.BookedInterval, error) {
	var evt appointmentEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return model.BookedInterval{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	evt.AppointmentID = strings.TrimSpace(evt.AppointmentID)
	switch {
	case evt.AppointmentID == "":
		return model.BookedInterval{}, fmt.Errorf("%w: appointment_id is required", errMalformed)
	case evt.DoctorID <= 0:
		return model.BookedInterval{}, fmt.Errorf("%w: doctor_id must be positive", errMalformed)
	case evt.StartTime.IsZero() || evt.EndTime.IsZero():
		return model.BookedInterval{}, fmt.Errorf("%w: start_time and end_time are required", errMalformed)
	case !evt.StartTime.Before(evt.EndTime):
		return model.BookedInterval{}, fmt.Errorf("%w: start_time must be before end_time", errMalformed)
	}
	return model.BookedInterval{
		AppointmentID: evt.AppointmentID,
		DoctorID:      int64(evt.DoctorID),
		StartTime:     evt.StartTime.UTC(),
		EndTime:       evt.EndTime.UTC(),
	}, nil
}

// Handle is a consumer.Handler. Malformed payloads and unknown topics are logged and skipped;
// storage errors are returned so the consumer retries the event before committing it.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	eventType := kafkax.ExtractEventMeta(msg).EventType

	iv, err := decode(msg.Value)
	if err != nil {
		h.logger.Warn("skipping booking event", "event_type", eventType, "err", err)
		return nil
	}

	switch eventType {
	case h.bookedTopic:
		iv.Status = model.IntervalBooked
		prev, found, err := h.store.UpsertBooked(ctx, iv)
		if err != nil {
			return fmt.Errorf("upsert appointment %s: %w", iv.AppointmentID, err)
		}
		if found && prev.Status == model.IntervalCancelled {
			h.logger.Info("booking for cancelled appointment ignored", "appointment_id", iv.AppointmentID)
			return nil
		}
		if found && (prev.DoctorID != iv.DoctorID || !prev.StartTime.Equal(iv.StartTime) || !prev.EndTime.Equal(iv.EndTime)) {
			// Rescheduled: the old days can no longer show the slot as booked.
			h.invalidate(ctx, prev)
		}
	case h.cancelledTopic:
		stored, err := h.store.Cancel(ctx, iv)
		if err != nil {
			return fmt.Errorf("cancel appointment %s: %w", iv.AppointmentID, err)
		}
		iv = stored
	default:
		h.logger.Warn("skipping booking event", "event_type", eventType, "err", "unknown event type")
		return nil
	}

	h.logger.Info("booking projection updated",
		"appointment_id", iv.AppointmentID,
		"doctor_id", iv.DoctorID,
		"status", iv.Status,
	)

	h.invalidate(ctx, iv)
	return nil
}

func (h *Handler) invalidate(ctx context.Context, iv model.BookedInterval) {
	if h.cache == nil {
		return
	}
	dates := bookings.DatesTouching(iv.StartTime, iv.EndTime, h.loc)
	if err := h.cache.Invalidate(ctx, iv.DoctorID, dates...); err != nil {
		h.logger.Warn("booking cache invalidation failed", "doctor_id", iv.DoctorID, "err", err)
	}
}
