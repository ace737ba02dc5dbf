package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultSweepInterval = time.Minute
	defaultSweepBatch    = 500
)

// SweeperOptions задаёт параметры очистки просроченных ключей.
type SweeperOptions struct {
	Logger    *log.Entry
	Metrics   *metrics.IdempotencyMetrics
	Interval  time.Duration
	BatchSize int
	Clock     func() time.Time
}

type SweeperOption func(*SweeperOptions)

func WithLogger(logger *log.Entry) SweeperOption {
	return func(opts *SweeperOptions) { opts.Logger = logger }
}

func WithMetrics(m *metrics.IdempotencyMetrics) SweeperOption {
	return func(opts *SweeperOptions) { opts.Metrics = m }
}

func WithInterval(interval time.Duration) SweeperOption {
	return func(opts *SweeperOptions) { opts.Interval = interval }
}

// WithBatchSize ограничивает число ключей, удаляемых одним запросом к хранилищу.
func WithBatchSize(batchSize int) SweeperOption {
	return func(opts *SweeperOptions) { opts.BatchSize = batchSize }
}

// WithClock подменяет источник времени, от которого считается просрочка.
func WithClock(now func() time.Time) SweeperOption {
	return func(opts *SweeperOptions) { opts.Clock = now }
}

// Sweeper удаляет ключи оформления с истёкшим ttl. После удаления ключ
// снова свободен, и Guard примет с ним любой запрос.
type Sweeper struct {
	repo      domain.IdempotencyRepository
	logger    *log.Entry
	metrics   *metrics.IdempotencyMetrics
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewSweeper(repo domain.IdempotencyRepository, options ...SweeperOption) *Sweeper {
	opts := SweeperOptions{Interval: defaultSweepInterval, BatchSize: defaultSweepBatch}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "idempotency-sweeper")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultSweepBatch
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}

	return &Sweeper{
		repo:      repo,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		now:       opts.Clock,
	}
}

// Run чистит ключи сразу и затем каждые interval, пока ctx не отменён.
// Redis-хранилище полагается на собственный TTL, и Sweep для него пустой.
func (s *Sweeper) Run(ctx context.Context) {
	if s.repo == nil {
		s.logger.Warn("idempotency sweeper is disabled: repo is nil")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	cutoff := s.now()
	started := time.Now()
	removed, err := s.Sweep(ctx, cutoff)
	if errors.Is(err, context.Canceled) {
		return
	}
	s.metrics.RecordSweep(removed, time.Since(started).Seconds(), err)

	entry := s.logger.WithFields(log.Fields{"removed": removed, "cutoff": cutoff.Format(time.RFC3339)})
	switch {
	case err != nil:
		entry.WithError(err).Warn("idempotency sweep failed")
	case removed > 0:
		entry.Info("expired idempotency keys removed")
	}
}

// Sweep удаляет ключи с ttl <= cutoff порциями batchSize. Нулевой cutoff
// означает текущее время. При ошибке возвращает число уже удалённых ключей.
func (s *Sweeper) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	if cutoff.IsZero() {
		cutoff = s.now()
	}

	removed := 0
	for batch := 1; ; batch++ {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		n, err := s.repo.DeleteExpired(cutoff, s.batchSize)
		if err != nil {
			return removed, fmt.Errorf("delete expired keys, batch %d: %w", batch, err)
		}
		removed += n
		// Неполная порция: просроченных ключей больше нет.
		if n < s.batchSize {
			return removed, nil
		}
	}
}
