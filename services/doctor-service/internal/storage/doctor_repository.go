package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/doctorsched/libs/db"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/model"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/outbox"
)

type DoctorRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewDoctorRepository(pool *db.Pool, outboxRepo *outbox.Repository) *DoctorRepository {
	return &DoctorRepository{pool: pool, outbox: outboxRepo}
}

// DoctorFilter narrows a listing. Empty fields match everything.
type DoctorFilter struct {
	Department     string
	Specialization string
	Limit          int
	Offset         int
}

// Create inserts the doctor and enqueues doctor.created.v1 in the same transaction.
func (r *DoctorRepository) Create(ctx context.Context, d model.Doctor) (model.Doctor, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Doctor{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO doctors (name, email, phone, department, specialization)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, d.Name, d.Email, d.Phone, d.Department, d.Specialization).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return model.Doctor{}, ErrDuplicateEmail
		}
		return model.Doctor{}, err
	}

	payload, err := json.Marshal(map[string]any{
		"doctor_id":      d.ID,
		"name":           d.Name,
		"email":          d.Email,
		"department":     d.Department,
		"specialization": d.Specialization,
		"created_at":     d.CreatedAt.UTC(),
	})
	if err != nil {
		return model.Doctor{}, fmt.Errorf("marshal doctor event: %w", err)
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: outbox.AggregateDoctor,
		AggregateID:   strconv.FormatInt(d.ID, 10),
		EventType:     outbox.EventDoctorCreated,
		Payload:       payload,
	}); err != nil {
		return model.Doctor{}, fmt.Errorf("enqueue doctor event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Doctor{}, err
	}
	return d, nil
}

func (r *DoctorRepository) Get(ctx context.Context, id int64) (model.Doctor, error) {
	var d model.Doctor
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, department, specialization, created_at
		FROM doctors
		WHERE id = $1
	`, id).Scan(&d.ID, &d.Name, &d.Email, &d.Phone, &d.Department, &d.Specialization, &d.CreatedAt)
	if err != nil {
		if IsNotFound(err) {
			return model.Doctor{}, ErrNotFound
		}
		return model.Doctor{}, err
	}
	return d, nil
}

// List returns one page of doctors ordered by id and the total number of matches.
func (r *DoctorRepository) List(ctx context.Context, f DoctorFilter) ([]model.Doctor, int, error) {
	where, args := f.where()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM doctors`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, name, email, phone, department, specialization, created_at
		FROM doctors%s
		ORDER BY id
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Doctor, 0, limit)
	for rows.Next() {
		var d model.Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Email, &d.Phone, &d.Department, &d.Specialization, &d.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return out, total, nil
}

func (f DoctorFilter) where() (string, []any) {
	var conds []string
	var args []any
	if f.Department != "" {
		args = append(args, f.Department)
		conds = append(conds, fmt.Sprintf("lower(department) = lower($%d)", len(args)))
	}
	if f.Specialization != "" {
		args = append(args, f.Specialization)
		conds = append(conds, fmt.Sprintf("lower(specialization) = lower($%d)", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
