package main

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/doctorsched/libs/config"
	"github.com/md-rashed-zaman/doctorsched/libs/httpx"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/projection"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/schedule"
)

type settings struct {
	Service     string
	Port        string
	GRPCPort    string
	DatabaseURL string

	Hours schedule.ClinicHours

	KafkaBrokers   string
	KafkaGroupID   string
	BookedTopic    string
	CancelledTopic string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	RateLimitPerMinute int
	RateLimitFailOpen  bool
	RateLimitPrefix    string
	BodyLimit          int64
	RequestTimeout     time.Duration
	CORS               httpx.CORSPolicy
}

func loadHours() (schedule.ClinicHours, error) {
	slot, err := config.Minutes("SLOT_DURATION_MINUTES", 30)
	if err != nil {
		return schedule.ClinicHours{}, err
	}
	tz := config.String("CLINIC_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return schedule.ClinicHours{}, fmt.Errorf("CLINIC_TIMEZONE: %w", err)
	}
	return schedule.Parse(
		config.String("CLINIC_OPENS_AT", "09:00"),
		config.String("CLINIC_CLOSES_AT", "18:00"),
		slot,
		loc,
	)
}

// loadSettings reads the serve configuration. Any invalid value is fatal.
func loadSettings() (settings, error) {
	s := settings{
		Service:        config.String("SERVICE_NAME", "doctor-service"),
		DatabaseURL:    config.String("DATABASE_URL", ""),
		KafkaBrokers:   config.String("KAFKA_BROKERS", ""),
		KafkaGroupID:   config.String("KAFKA_GROUP_ID", "doctor-service"),
		BookedTopic:    config.String("KAFKA_TOPIC_BOOKED", projection.TopicAppointmentBooked),
		CancelledTopic: config.String("KAFKA_TOPIC_CANCELLED", projection.TopicAppointmentCancelled),
		RedisAddr:      config.String("REDIS_ADDR", ""),
		RedisPassword:  config.String("REDIS_PASSWORD", ""),

		RateLimitFailOpen: config.Bool("RATE_LIMIT_FAIL_OPEN", true),
		RateLimitPrefix:   config.String("RATE_LIMIT_PREFIX", "doctor-rl"),
		CORS: httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"),
			AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id"),
			ExposedHeaders:   config.List("CORS_EXPOSED_HEADERS", "X-Request-Id,X-RateLimit-Limit,X-RateLimit-Remaining"),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
		},
	}

	var err error
	if s.Port, err = config.Port("PORT", "8002"); err != nil {
		return settings{}, err
	}
	if s.GRPCPort, err = config.Port("GRPC_PORT", "9092"); err != nil {
		return settings{}, err
	}
	if s.Hours, err = loadHours(); err != nil {
		return settings{}, err
	}
	if s.RedisDB, err = config.Int("REDIS_DB", 0); err != nil {
		return settings{}, err
	}
	if s.CacheTTL, err = config.Seconds("CACHE_TTL_SECONDS", 60); err != nil {
		return settings{}, err
	}
	if s.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return settings{}, err
	}
	bodyLimit, err := config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)
	if err != nil {
		return settings{}, err
	}
	s.BodyLimit = int64(bodyLimit)
	if s.RequestTimeout, err = config.Seconds("REQUEST_TIMEOUT_SECONDS", 10); err != nil {
		return settings{}, err
	}
	if s.CORS.MaxAge, err = config.Seconds("CORS_MAX_AGE_SECONDS", 600); err != nil {
		return settings{}, err
	}
	return s, nil
}
