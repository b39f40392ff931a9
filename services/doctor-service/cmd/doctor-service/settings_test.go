package main

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/schedule"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.Port != "8002" || s.GRPCPort != "9092" {
		t.Fatalf("unexpected ports %s/%s", s.Port, s.GRPCPort)
	}
	if s.Hours.OpensAt != 9*time.Hour || s.Hours.ClosesAt != 18*time.Hour || s.Hours.SlotDuration != 30*time.Minute {
		t.Fatalf("unexpected clinic hours %+v", s.Hours)
	}
	if s.Hours.SlotCount() != 18 {
		t.Fatalf("expected 18 slots, got %d", s.Hours.SlotCount())
	}
	if s.CacheTTL != time.Minute || s.BookedTopic == "" || s.CancelledTopic == "" {
		t.Fatalf("unexpected defaults %+v", s)
	}
}

func TestLoadSettingsClinicOverrides(t *testing.T) {
	t.Setenv("CLINIC_OPENS_AT", "08:30")
	t.Setenv("CLINIC_CLOSES_AT", "12:00")
	t.Setenv("SLOT_DURATION_MINUTES", "15")
	t.Setenv("CLINIC_TIMEZONE", "UTC")

	s, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.Hours.SlotCount() != 14 {
		t.Fatalf("expected 14 slots, got %d", s.Hours.SlotCount())
	}
}

func TestLoadSettingsRejectsInvalidClinicHours(t *testing.T) {
	cases := []map[string]string{
		{"CLINIC_OPENS_AT": "18:00", "CLINIC_CLOSES_AT": "09:00"},
		{"SLOT_DURATION_MINUTES": "0"},
		{"SLOT_DURATION_MINUTES": "600"},
		{"CLINIC_OPENS_AT": "9am"},
	}
	for _, env := range cases {
		t.Run("", func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := loadSettings()
			if !errors.Is(err, schedule.ErrInvalidHours) {
				t.Fatalf("expected ErrInvalidHours for %v, got %v", env, err)
			}
		})
	}

	t.Run("timezone", func(t *testing.T) {
		t.Setenv("CLINIC_TIMEZONE", "Mars/Olympus")
		if _, err := loadSettings(); err == nil {
			t.Fatal("expected unknown timezone to fail")
		}
	})
	t.Run("port", func(t *testing.T) {
		t.Setenv("PORT", "99999")
		if _, err := loadSettings(); err == nil {
			t.Fatal("expected invalid port to fail")
		}
	})
}

func TestLoadSettingsExposesRateLimitHeaders(t *testing.T) {
	s, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	want := []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining"}
	if !reflect.DeepEqual(s.CORS.ExposedHeaders, want) {
		t.Fatalf("expected exposed headers %v, got %v", want, s.CORS.ExposedHeaders)
	}

	t.Setenv("CORS_EXPOSED_HEADERS", "X-Request-Id")
	if s, err = loadSettings(); err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if !reflect.DeepEqual(s.CORS.ExposedHeaders, []string{"X-Request-Id"}) {
		t.Fatalf("expected override, got %v", s.CORS.ExposedHeaders)
	}
}
