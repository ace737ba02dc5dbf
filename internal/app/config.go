package app

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска витрины.
type Config struct {
	GRPCAddr    string
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// RedisURL пустой: ключи идемпотентности живут в основном хранилище.
	RedisURL string

	// KafkaBrokers через запятую. Пустое значение включает локальный relay в лог.
	KafkaBrokers      string
	NotificationTopic string
	DLQTopic          string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	StrictTotals    bool
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает настройки для локального запуска в памяти.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:    ":50051",
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",

		StorageDriver: StorageDriverMemory,

		NotificationTopic: "storefront.notifications",
		DLQTopic:          "storefront.dlq",

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,

		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,

		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate проверяет согласованность настроек до старта серверов.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres storage requires PostgresDSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	if c.GRPCAddr == "" || c.HTTPAddr == "" || c.MetricsAddr == "" {
		errs = append(errs, errors.New("grpc, http and metrics addresses are required"))
	}
	if c.KafkaBrokers != "" && (c.NotificationTopic == "" || c.DLQTopic == "") {
		errs = append(errs, errors.New("kafka requires notification and dlq topics"))
	}

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"OutboxPollInterval", c.OutboxPollInterval},
		{"IdempotencyTTL", c.IdempotencyTTL},
		{"IdempotencyCleanupInterval", c.IdempotencyCleanupInterval},
		{"ShutdownTimeout", c.ShutdownTimeout},
	} {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", d.name))
		}
	}
	if c.OutboxRetryDelay < 0 {
		errs = append(errs, errors.New("OutboxRetryDelay must not be negative"))
	}
	if c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 || c.IdempotencyCleanupBatchSize <= 0 {
		errs = append(errs, errors.New("batch sizes and outbox attempts must be positive"))
	}

	return errors.Join(errs...)
}

// brokerList разбирает список брокеров, пропуская пустые элементы.
func brokerList(raw string) []string {
	var brokers []string
	for _, part := range strings.Split(raw, ",") {
		if broker := strings.TrimSpace(part); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}
