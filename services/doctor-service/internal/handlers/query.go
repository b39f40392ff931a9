package handlers

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListQuery is the validated form of GET /v1/doctors query parameters.
type ListQuery struct {
	Department     string
	Specialization string
	Page           int
	PageSize       int
}

var listParams = map[string]bool{
	"department":     true,
	"specialization": true,
	"page":           true,
	"page_size":      true,
}

func ParseListQuery(values url.Values) (ListQuery, error) {
	for key := range values {
		if !listParams[key] {
			return ListQuery{}, fmt.Errorf("unknown query parameter %q", key)
		}
	}

	q := ListQuery{
		Department:     strings.TrimSpace(values.Get("department")),
		Specialization: strings.TrimSpace(values.Get("specialization")),
		Page:           1,
		PageSize:       defaultPageSize,
	}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return ListQuery{}, fmt.Errorf("page must be a positive integer (got %q)", v)
		}
		q.Page = n
	}
	if v := strings.TrimSpace(values.Get("page_size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			return ListQuery{}, fmt.Errorf("page_size must be between 1 and %d (got %q)", maxPageSize, v)
		}
		q.PageSize = n
	}
	return q, nil
}

func (q ListQuery) Filter() storage.DoctorFilter {
	return storage.DoctorFilter{
		Department:     q.Department,
		Specialization: q.Specialization,
		Limit:          q.PageSize,
		Offset:         (q.Page - 1) * q.PageSize,
	}
}

type page[T any] struct {
	Data     []T  `json:"data"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasMore  bool `json:"has_more"`
}

func newPage[T any](data []T, total int, q ListQuery) page[T] {
	if data == nil {
		data = []T{}
	}
	return page[T]{
		Data:     data,
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
		HasMore:  q.Page*q.PageSize < total,
	}
}
