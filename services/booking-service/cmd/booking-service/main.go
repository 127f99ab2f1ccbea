package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/md-rashed-zaman/instructorbook/libs/cache"
	"github.com/md-rashed-zaman/instructorbook/libs/db"
	"github.com/md-rashed-zaman/instructorbook/libs/grpcx"
	"github.com/md-rashed-zaman/instructorbook/libs/httpx"
	"github.com/md-rashed-zaman/instructorbook/libs/kafkax"
	"github.com/md-rashed-zaman/instructorbook/libs/metrics"
	otelx "github.com/md-rashed-zaman/instructorbook/libs/otel"
	"github.com/md-rashed-zaman/instructorbook/libs/runtime"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/grpcserver"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/service"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/migrations"
)

func main() {
	cfg, err := loadSettings()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.Service, cfg.LogLevel)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := runtime.ShutdownContext(5 * time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var (
		checks   []runtime.ReadyCheck
		store    storage.Store
		recorder inbox.Recorder
	)
	switch cfg.StorageDriver {
	case "postgres":
		pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{
			MaxConns:     int32(cfg.DBMaxConns),
			ConnectTries: uint(cfg.DBConnectTries),
		})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		if cfg.AutoMigrate {
			applied, err := pool.Migrate(ctx, migrations.FS)
			if err != nil {
				logger.Error("db migration failed", "err", err)
				os.Exit(1)
			}
			logger.Info("db migrations applied", "versions", applied)
		}
		store = storage.NewPostgres(pool, storage.PostgresOptions{Timeout: cfg.StorageTimeout})
		recorder = inbox.NewRepository(pool)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	default:
		logger.Warn("using in-memory storage; data is lost on restart")
		store = storage.NewMemory()
		recorder = inbox.NewMemory()
	}

	var (
		availabilityCache cache.Store = cache.NewMemory()
		limiter           httpx.Limiter
	)
	limiter = httpx.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cache.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			logger.Error("redis unavailable; using in-process cache and rate limiter", "err", err)
		} else {
			defer func(c *redis.Client) { _ = c.Close() }(rdb)
			availabilityCache = cache.NewRedis(rdb)
			limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, cfg.Service+":rl")
			checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: cache.ReadyCheck(rdb)})
		}
	}

	m := metrics.New(cfg.Service)
	deps := service.Deps{
		Store:     store,
		Validator: policy.NewValidator(cfg.Policy, store, time.Now),
		Cache:     availabilityCache,
		Metrics:   m,
		Logger:    logger,
		CacheTTL:  cfg.CacheTTL,
	}
	availabilitySvc := service.NewAvailabilityService(deps)
	bookingSvc := service.NewBookingService(deps)

	var (
		writer outbox.Writer
		reader consumer.Reader
	)
	if len(cfg.KafkaBrokers) > 0 {
		writer = kafkax.NewWriter(cfg.KafkaBrokers)
		reader = kafkax.NewReader(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.InstructorTopic)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}
	publisher := outbox.NewPublisher(store, writer, logger, outbox.PublisherConfig{PollEvery: 2 * time.Second, BatchSize: 50})
	instructorConsumer := consumer.New(logger, reader, recorder, consumer.InstructorHandler(store))

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", m.Handler())
	handlers.New(handlers.Services{
		Availability: availabilitySvc,
		Bookings:     bookingSvc,
		Windows:      service.NewWindowService(deps),
		Blocks:       service.NewBlockService(deps),
		Stats:        service.NewStatsService(deps),
	}, logger, cfg.CacheTTL).Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger, m.ObserveHTTPRequest),
		httpx.WithCORS(httpx.BookingCORSPolicy(cfg.CORSOrigins, 10*time.Minute)),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(cfg.RequestTimeout),
		identity.Middleware,
		httpx.OnlyMethods(httpx.WithRateLimit(limiter, logger, true), http.MethodPost, http.MethodPatch, http.MethodDelete),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := grpcx.NewServer(logger)
	grpcserver.RegisterBookingServer(grpcSrv, grpcserver.New(availabilitySvc, bookingSvc, logger))

	logger.Info("booking service starting",
		"storage", cfg.StorageDriver,
		"ready_checks", runtime.CheckNames(checks),
		"timezone", cfg.Policy.Location.String(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		publisher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		instructorConsumer.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return err
		}
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := runtime.ShutdownContext(10 * time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "err", err)
		}
		grpcSrv.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("booking service stopped with error", "err", err)
		stop()
		os.Exit(1)
	}
	logger.Info("booking service stopped")
}
