package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Realtime transports.
const (
	TransportRedis = "redis"
	TransportKafka = "kafka"
	TransportNone  = "none"
)

// Server captures process level configuration.
type Server struct {
	Addr     string
	LogLevel string

	OCR       OCRConfig
	Pipeline  PipelineConfig
	Realtime  RealtimeConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Postgres  PostgresConfig
	Reconcile ReconcileConfig
}

// OCRConfig points at the external OCR service.
type OCRConfig struct {
	BaseURL                 string
	SigningKey              string
	RequestTimeout          time.Duration
	StatusTimeout           time.Duration
	CoupleValidationTimeout time.Duration
}

type PipelineConfig struct {
	ChunkSize int
}

type ReconcileConfig struct {
	SettleDelay    time.Duration
	QueriesPerSec  float64
	PullOnlyPeriod time.Duration
}

// RealtimeConfig selects the push transport and tunes the connection manager.
type RealtimeConfig struct {
	Transport        string
	ChannelPrefix    string
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers []string
}

// PostgresConfig enables the descriptor checkpoint store when URL is set.
type PostgresConfig struct {
	URL      string
	MaxConns int32
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var errs []string
	duration := func(key string, def time.Duration) time.Duration {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return d
	}
	integer := func(key string, def int) int {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return n
	}
	float := func(key string, def float64) float64 {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return f
	}

	cfg := Server{
		Addr:     getEnv("INTAKE_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		OCR: OCRConfig{
			BaseURL:                 os.Getenv("OCR_BASE_URL"),
			SigningKey:              os.Getenv("OCR_SIGNING_KEY"),
			RequestTimeout:          duration("OCR_REQUEST_TIMEOUT", 30*time.Second),
			StatusTimeout:           duration("OCR_STATUS_TIMEOUT", 8*time.Second),
			CoupleValidationTimeout: duration("COUPLE_VALIDATION_START_TIMEOUT", 5*time.Second),
		},
		Pipeline: PipelineConfig{
			ChunkSize: integer("PIPELINE_CHUNK_SIZE", 3),
		},
		Reconcile: ReconcileConfig{
			SettleDelay:    duration("REFRESH_SETTLE_DELAY", 2*time.Second),
			QueriesPerSec:  float("STATUS_QUERY_RPS", 5),
			PullOnlyPeriod: duration("PULL_ONLY_INTERVAL", 15*time.Second),
		},
		Realtime: RealtimeConfig{
			Transport:        strings.ToLower(getEnv("REALTIME_TRANSPORT", TransportRedis)),
			ChannelPrefix:    getEnv("REALTIME_CHANNEL_PREFIX", "docgen"),
			BreakerThreshold: integer("BREAKER_THRESHOLD", 3),
			BreakerCooldown:  duration("BREAKER_COOLDOWN", 30*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
		},
		Postgres: PostgresConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: int32(integer("DATABASE_MAX_CONNS", 4)),
		},
	}

	if cfg.OCR.BaseURL == "" {
		errs = append(errs, "OCR_BASE_URL is required")
	}
	if cfg.OCR.SigningKey == "" {
		errs = append(errs, "OCR_SIGNING_KEY is required")
	}
	switch cfg.Realtime.Transport {
	case TransportRedis:
		if cfg.Redis.URL == "" {
			errs = append(errs, "REDIS_URL is required for the redis transport")
		}
	case TransportKafka:
		if len(cfg.Kafka.Brokers) == 0 {
			errs = append(errs, "KAFKA_BROKERS is required for the kafka transport")
		}
	case TransportNone:
	default:
		errs = append(errs, "REALTIME_TRANSPORT must be redis, kafka or none")
	}
	if len(errs) > 0 {
		return cfg, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
