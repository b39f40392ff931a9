package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/doctorsched/libs/db"
	"github.com/md-rashed-zaman/doctorsched/libs/grpcx"
	"github.com/md-rashed-zaman/doctorsched/libs/httpx"
	"github.com/md-rashed-zaman/doctorsched/libs/kafkax"
	otelx "github.com/md-rashed-zaman/doctorsched/libs/otel"
	"github.com/md-rashed-zaman/doctorsched/libs/runtime"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/availability"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/bookings"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/consumer"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/handlers"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/inbox"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/outbox"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/projection"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func serve(ctx context.Context) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	logger := runtime.NewLogger(cfg.Service)

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		return err
	}
	defer pool.Close()

	engine, err := availability.NewEngine(cfg.Hours)
	if err != nil {
		return err
	}
	logger.Info("clinic hours loaded",
		"opens_at", cfg.Hours.OpensAt.String(),
		"closes_at", cfg.Hours.ClosesAt.String(),
		"slot_duration", cfg.Hours.SlotDuration.String(),
		"timezone", cfg.Hours.Location.String(),
		"slots_per_day", cfg.Hours.SlotCount(),
	)

	outboxRepo := outbox.NewRepository(pool)
	doctorRepo := storage.NewDoctorRepository(pool, outboxRepo)
	intervalRepo := storage.NewIntervalRepository(pool)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers), Optional: true},
	}

	var source bookings.Source = bookings.NewRepositorySource(intervalRepo, cfg.Hours)
	var cache *bookings.CachedSource
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		cache = bookings.NewCachedSource(rdb, source, cfg.CacheTTL, logger)
		source = cache
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name:     "redis",
			Check:    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			Optional: true,
		})
		logger.Info("booking cache enabled (redis)", "redis_addr", cfg.RedisAddr, "ttl", cfg.CacheTTL.String())
	}

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers: cfg.KafkaBrokers,
	})
	go publisher.Run(ctx)

	projector := projection.New(intervalRepo, invalidatorOrNil(cache), logger, projection.Config{
		BookedTopic:    cfg.BookedTopic,
		CancelledTopic: cfg.CancelledTopic,
		Location:       cfg.Hours.Location,
	})
	if len(kafkax.SplitBrokers(cfg.KafkaBrokers)) > 0 {
		eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
			Topics:  projector.Topics(),
		}, projector.Handle)
		go eventConsumer.Run(ctx)
		logger.Info("booking consumer started", "topics", projector.Topics(), "group_id", cfg.KafkaGroupID)
	} else {
		logger.Warn("booking consumer disabled (no kafka brokers configured)")
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("GET /health", handlers.Health(cfg.Service))
	handlers.NewDoctorHandler(doctorRepo, logger).Register(mux)
	handlers.NewAvailabilityHandler(doctorRepo, source, engine, logger).Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(cfg.CORS),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(cfg.BodyLimit),
		httpx.WithTimeout(cfg.RequestTimeout),
		rateLimiter(cfg, rdb, logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "doctor")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, health := grpcx.NewServer(logger)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	health.SetServingStatus(cfg.Service, healthpb.HealthCheckResponse_SERVING)
	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcSrv.GracefulStop()
	logger.Info("servers stopped")
	return nil
}

func rateLimiter(cfg settings, rdb *redis.Client, logger *slog.Logger) httpx.Middleware {
	if cfg.RateLimitPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if rdb != nil {
		rl := httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, cfg.RateLimitPrefix)
		logger.Info("rate limiting enabled (redis)", "per_minute", cfg.RateLimitPerMinute)
		return rl.Middleware(logger, cfg.RateLimitFailOpen)
	}
	logger.Info("rate limiting enabled (in-memory)", "per_minute", cfg.RateLimitPerMinute)
	return httpx.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute).Middleware()
}

// invalidatorOrNil keeps a nil *CachedSource from becoming a non-nil interface.
func invalidatorOrNil(c *bookings.CachedSource) interface {
	Invalidate(ctx context.Context, doctorID int64, dates ...time.Time) error
} {
	if c == nil {
		return nil
	}
	return c
}
