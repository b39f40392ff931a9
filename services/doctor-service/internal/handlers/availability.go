package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/doctorsched/libs/httpx"
	otelx "github.com/md-rashed-zaman/doctorsched/libs/otel"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/availability"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/bookings"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/schedule"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type AvailabilityHandler struct {
	doctors DoctorStore
	source  bookings.Source
	engine  *availability.Engine
	logger  *slog.Logger
	now     func() time.Time
}

func NewAvailabilityHandler(doctors DoctorStore, source bookings.Source, engine *availability.Engine, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		doctors: doctors,
		source:  source,
		engine:  engine,
		logger:  logger,
		now:     time.Now,
	}
}

func (h *AvailabilityHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/doctors/{doctorID}/availability", h.DayReport)
	mux.HandleFunc("GET /v1/doctors/{doctorID}/availability/at", h.StatusAt)
}

type clinicHoursResponse struct {
	Start               string `json:"start"`
	End                 string `json:"end"`
	SlotDurationMinutes int    `json:"slot_duration_minutes"`
	Timezone            string `json:"timezone"`
}

type slotResponse struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Status string    `json:"status,omitempty"`
}

type summaryResponse struct {
	Total  int `json:"total"`
	Free   int `json:"free"`
	Booked int `json:"booked"`
}

type dayReportResponse struct {
	DoctorID       int64               `json:"doctor_id"`
	Date           string              `json:"date"`
	ClinicHours    clinicHoursResponse `json:"clinic_hours"`
	Slots          []slotResponse      `json:"slots"`
	AvailableSlots []slotResponse      `json:"available_slots"`
	Summary        summaryResponse     `json:"summary"`
}

func clinicHours(hours schedule.ClinicHours) clinicHoursResponse {
	return clinicHoursResponse{
		Start:               schedule.FormatClock(hours.OpensAt),
		End:                 schedule.FormatClock(hours.ClosesAt),
		SlotDurationMinutes: int(hours.SlotDuration / time.Minute),
		Timezone:            hours.Location.String(),
	}
}

func (h *AvailabilityHandler) DayReport(w http.ResponseWriter, r *http.Request) {
	d, ok := loadDoctor(w, r, h.doctors, h.logger)
	if !ok {
		return
	}

	hours := h.engine.Hours()
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		httpx.WriteError(w, http.StatusBadRequest, "date is required (YYYY-MM-DD)")
		return
	}
	date, err := time.ParseInLocation(time.DateOnly, raw, hours.Location)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	if date.Before(hours.Midnight(h.now().In(hours.Location))) {
		httpx.WriteError(w, http.StatusBadRequest, "cannot book in the past")
		return
	}

	ctx, span := otelx.Tracer("availability").Start(r.Context(), "availability.day_report",
		trace.WithAttributes(
			attribute.Int64("doctor.id", d.ID),
			attribute.String("availability.date", raw),
		),
	)
	defer span.End()

	booked, err := h.source.BookedIntervals(ctx, d.ID, date)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("load bookings failed", "doctor_id", d.ID, "date", raw, "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, "booking data unavailable")
		return
	}

	report, err := h.engine.DayReport(strconv.FormatInt(d.ID, 10), date, booked)
	if err != nil {
		h.writeEngineError(w, span, d.ID, err)
		return
	}

	resp := dayReportResponse{
		DoctorID:       d.ID,
		Date:           raw,
		ClinicHours:    clinicHours(hours),
		Slots:          make([]slotResponse, 0, len(report)),
		AvailableSlots: []slotResponse{},
	}
	for _, s := range report {
		resp.Slots = append(resp.Slots, slotResponse{Start: s.Start, End: s.End, Status: string(s.Status)})
	}
	for _, s := range availability.Free(report) {
		resp.AvailableSlots = append(resp.AvailableSlots, slotResponse{Start: s.Start, End: s.End})
	}
	sum := availability.Summarize(report)
	resp.Summary = summaryResponse{Total: sum.Total, Free: sum.Free, Booked: sum.Booked}
	span.SetAttributes(attribute.Int("availability.free", sum.Free))

	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *AvailabilityHandler) StatusAt(w http.ResponseWriter, r *http.Request) {
	d, ok := loadDoctor(w, r, h.doctors, h.logger)
	if !ok {
		return
	}

	raw := strings.TrimSpace(r.URL.Query().Get("time"))
	if raw == "" {
		httpx.WriteError(w, http.StatusBadRequest, "time is required (RFC 3339)")
		return
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid time, expected RFC 3339")
		return
	}

	ctx, span := otelx.Tracer("availability").Start(r.Context(), "availability.status_at",
		trace.WithAttributes(attribute.Int64("doctor.id", d.ID)),
	)
	defer span.End()

	hours := h.engine.Hours()
	local := at.In(hours.Location)
	var booked []availability.Interval
	if y := local.Year(); y >= availability.MinYear && y <= availability.MaxYear {
		booked, err = h.source.BookedIntervals(ctx, d.ID, hours.Midnight(local))
		if err != nil {
			span.RecordError(err)
			h.logger.Error("load bookings failed", "doctor_id", d.ID, "err", err)
			httpx.WriteError(w, http.StatusServiceUnavailable, "booking data unavailable")
			return
		}
	}

	status, err := h.engine.StatusAt(strconv.FormatInt(d.ID, 10), at, booked)
	if err != nil {
		h.writeEngineError(w, span, d.ID, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"doctor_id": d.ID,
		"time":      local.Format(time.RFC3339),
		"status":    status,
	})
}

func (h *AvailabilityHandler) writeEngineError(w http.ResponseWriter, span trace.Span, doctorID int64, err error) {
	span.RecordError(err)
	switch {
	case errors.Is(err, availability.ErrDateOutOfRange):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("availability computation failed", "doctor_id", doctorID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to compute availability")
	}
}
