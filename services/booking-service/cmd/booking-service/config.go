package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/instructorbook/libs/config"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/policy"
)

type settings struct {
	Service  string
	Port     string
	GRPCPort string
	LogLevel string

	StorageDriver  string
	DatabaseURL    string
	AutoMigrate    bool
	StorageTimeout time.Duration
	DBMaxConns     int
	DBConnectTries int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	KafkaBrokers    []string
	KafkaGroupID    string
	InstructorTopic string

	Policy policy.Config

	CORSOrigins        []string
	RateLimitPerMinute int
	RequestTimeout     time.Duration
}

func loadSettings() (settings, error) {
	s := settings{
		Service:            config.String("SERVICE_NAME", "booking-service"),
		LogLevel:           config.String("LOG_LEVEL", "info"),
		DatabaseURL:        config.String("DATABASE_URL", ""),
		AutoMigrate:        config.Bool("DB_AUTO_MIGRATE", false),
		StorageTimeout:     config.Duration("STORAGE_TIMEOUT", 5*time.Second),
		DBMaxConns:         config.Int("DB_MAX_CONNS", 10),
		DBConnectTries:     config.Int("DB_CONNECT_ATTEMPTS", 5),
		RedisAddr:          config.String("REDIS_ADDR", ""),
		RedisPassword:      config.String("REDIS_PASSWORD", ""),
		RedisDB:            config.Int("REDIS_DB", 0),
		CacheTTL:           config.Duration("AVAILABILITY_CACHE_TTL", 5*time.Minute),
		KafkaBrokers:       config.Strings("KAFKA_BROKERS"),
		KafkaGroupID:       config.String("KAFKA_GROUP_ID", "booking-service"),
		InstructorTopic:    config.String("INSTRUCTOR_EVENTS_TOPIC", "identity.instructor.updated.v1"),
		CORSOrigins:        config.Strings("CORS_ALLOWED_ORIGINS"),
		RateLimitPerMinute: config.Int("RATE_LIMIT_PER_MINUTE", 120),
		RequestTimeout:     config.Duration("REQUEST_TIMEOUT", 15*time.Second),
	}

	var err error
	if s.Port, err = config.Port("PORT", "8083"); err != nil {
		return settings{}, err
	}
	if s.GRPCPort, err = config.Port("GRPC_PORT", "9083"); err != nil {
		return settings{}, err
	}

	s.StorageDriver = strings.ToLower(config.String("STORAGE_DRIVER", ""))
	switch s.StorageDriver {
	case "":
		s.StorageDriver = "memory"
		if s.DatabaseURL != "" {
			s.StorageDriver = "postgres"
		}
	case "memory":
	case "postgres":
		if s.DatabaseURL == "" {
			return settings{}, fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER=postgres")
		}
	default:
		return settings{}, fmt.Errorf("STORAGE_DRIVER must be postgres or memory (got %q)", s.StorageDriver)
	}

	if s.DBMaxConns < 1 || s.DBConnectTries < 1 {
		return settings{}, fmt.Errorf("DB_MAX_CONNS and DB_CONNECT_ATTEMPTS must be positive")
	}

	loc, err := time.LoadLocation(config.String("BOOKING_TIMEZONE", "UTC"))
	if err != nil {
		return settings{}, fmt.Errorf("BOOKING_TIMEZONE: %w", err)
	}
	def := policy.DefaultConfig()
	s.Policy = policy.Config{
		MinDurationMinutes: config.Int("MIN_DURATION_MINUTES", def.MinDurationMinutes),
		MaxDurationMinutes: config.Int("MAX_DURATION_MINUTES", def.MaxDurationMinutes),
		MinLeadTime:        config.Duration("MIN_LEAD_TIME", def.MinLeadTime),
		DefaultAdvanceDays: config.Int("DEFAULT_BOOKING_ADVANCE_DAYS", def.DefaultAdvanceDays),
		Location:           loc,
	}
	if s.Policy.MinDurationMinutes <= 0 || s.Policy.MaxDurationMinutes < s.Policy.MinDurationMinutes {
		return settings{}, fmt.Errorf("invalid duration bounds %d..%d", s.Policy.MinDurationMinutes, s.Policy.MaxDurationMinutes)
	}
	return s, nil
}
