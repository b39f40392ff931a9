package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/doctorsched/libs/httpx"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/model"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/storage"
)

// DoctorStore is the persistence the doctor endpoints need.
type DoctorStore interface {
	Create(ctx context.Context, d model.Doctor) (model.Doctor, error)
	Get(ctx context.Context, id int64) (model.Doctor, error)
	List(ctx context.Context, f storage.DoctorFilter) ([]model.Doctor, int, error)
}

type DoctorHandler struct {
	store  DoctorStore
	logger *slog.Logger
}

func NewDoctorHandler(store DoctorStore, logger *slog.Logger) *DoctorHandler {
	return &DoctorHandler{store: store, logger: logger}
}

func (h *DoctorHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/doctors", h.Create)
	mux.HandleFunc("GET /v1/doctors", h.List)
	mux.HandleFunc("GET /v1/doctors/{doctorID}", h.Get)
	mux.HandleFunc("GET /v1/doctors/{doctorID}/department", h.Department)
}

type doctorResponse struct {
	DoctorID       int64     `json:"doctor_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Department     string    `json:"department"`
	Specialization string    `json:"specialization"`
	CreatedAt      time.Time `json:"created_at"`
}

func toDoctorResponse(d model.Doctor) doctorResponse {
	return doctorResponse{
		DoctorID:       d.ID,
		Name:           d.Name,
		Email:          d.Email,
		Phone:          d.Phone,
		Department:     d.Department,
		Specialization: d.Specialization,
		CreatedAt:      d.CreatedAt.UTC(),
	}
}

type createDoctorRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Department     string `json:"department"`
	Specialization string `json:"specialization"`
}

func (req *createDoctorRequest) normalize() error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Department = strings.TrimSpace(req.Department)
	req.Specialization = strings.TrimSpace(req.Specialization)

	if req.Name == "" || req.Email == "" || req.Phone == "" || req.Department == "" || req.Specialization == "" {
		return errors.New("name, email, phone, department and specialization are required")
	}
	addr, err := mail.ParseAddress(req.Email)
	if err != nil || addr.Address != req.Email {
		return errors.New("invalid email")
	}
	return nil
}

func (h *DoctorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDoctorRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := req.normalize(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.store.Create(r.Context(), model.Doctor{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Department:     req.Department,
		Specialization: req.Specialization,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			httpx.WriteError(w, http.StatusBadRequest, storage.ErrDuplicateEmail.Error())
			return
		}
		h.logger.Error("create doctor failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to create doctor")
		return
	}

	h.logger.Info("doctor created", "doctor_id", d.ID, "department", d.Department)
	httpx.WriteJSON(w, http.StatusCreated, toDoctorResponse(d))
}

func (h *DoctorHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := ParseListQuery(r.URL.Query())
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	doctors, total, err := h.store.List(r.Context(), q.Filter())
	if err != nil {
		h.logger.Error("list doctors failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list doctors")
		return
	}

	out := make([]doctorResponse, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, toDoctorResponse(d))
	}
	httpx.WriteJSON(w, http.StatusOK, newPage(out, total, q))
}

func (h *DoctorHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, ok := h.load(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDoctorResponse(d))
}

func (h *DoctorHandler) Department(w http.ResponseWriter, r *http.Request) {
	d, ok := h.load(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"doctor_id":  d.ID,
		"department": d.Department,
	})
}

// load resolves {doctorID} and writes the error response when it cannot.
func (h *DoctorHandler) load(w http.ResponseWriter, r *http.Request) (model.Doctor, bool) {
	return loadDoctor(w, r, h.store, h.logger)
}

func loadDoctor(w http.ResponseWriter, r *http.Request, store DoctorStore, logger *slog.Logger) (model.Doctor, bool) {
	id, err := strconv.ParseInt(r.PathValue("doctorID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid doctor id")
		return model.Doctor{}, false
	}
	d, err := store.Get(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "doctor not found")
			return model.Doctor{}, false
		}
		logger.Error("load doctor failed", "doctor_id", id, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load doctor")
		return model.Doctor{}, false
	}
	return d, true
}

// Health answers the legacy /health probe.
func Health(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": service,
		})
	}
}
