// Package outbox доставляет уведомления из transactional outbox в брокер.
package outbox

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
)

// WorkerOptions задаёт параметры outbox worker.
type WorkerOptions struct {
	Logger         *log.Entry
	Metrics        *metrics.OutboxMetrics
	DLQPublisher   domain.OutboxPublisher
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	Clock          func() time.Time
}

// Option настраивает Worker.
type Option func(*WorkerOptions)

func WithLogger(logger *log.Entry) Option {
	return func(opts *WorkerOptions) {
		opts.Logger = logger
	}
}

func WithMetrics(m *metrics.OutboxMetrics) Option {
	return func(opts *WorkerOptions) {
		opts.Metrics = m
	}
}

// WithDLQPublisher задаёт, куда уходит уведомление после MaxAttempts неудач.
// Без него такое уведомление только помечается failed.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(opts *WorkerOptions) {
		opts.DLQPublisher = publisher
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(opts *WorkerOptions) {
		opts.PollInterval = interval
	}
}

func WithBatchSize(batchSize int) Option {
	return func(opts *WorkerOptions) {
		opts.BatchSize = batchSize
	}
}

func WithMaxAttempts(maxAttempts int) Option {
	return func(opts *WorkerOptions) {
		opts.MaxAttempts = maxAttempts
	}
}

// WithRetryBaseDelay задаёт паузу перед вторым повтором; дальше она удваивается.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(opts *WorkerOptions) {
		opts.RetryBaseDelay = delay
	}
}

func WithClock(now func() time.Time) Option {
	return func(opts *WorkerOptions) {
		opts.Clock = now
	}
}

// Worker публикует pending-уведомления из outbox. Уведомления одного
// батча отправляются по порядку, так что порядок событий заказа сохраняется.
type Worker struct {
	repo         domain.OutboxRepository
	publisher    domain.OutboxPublisher
	dlqPublisher domain.OutboxPublisher
	logger       *log.Entry
	metrics      *metrics.OutboxMetrics
	now          func() time.Time

	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

// NewWorker создаёт outbox worker. Некорректные параметры заменяются значениями по умолчанию.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	opts := WorkerOptions{
		PollInterval:   defaultPollInterval,
		BatchSize:      defaultBatchSize,
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "outbox-worker")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	opts.RetryBaseDelay = max(opts.RetryBaseDelay, 0)

	return &Worker{
		repo:           repo,
		publisher:      publisher,
		dlqPublisher:   opts.DLQPublisher,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		now:            opts.Clock,
		pollInterval:   opts.PollInterval,
		batchSize:      opts.BatchSize,
		maxAttempts:    opts.MaxAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
	}
}

// Run опрашивает outbox до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}
	w.logger.WithFields(log.Fields{
		"poll_interval": w.pollInterval,
		"batch_size":    w.batchSize,
		"dlq":           w.dlqPublisher != nil,
	}).Info("outbox worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Drain дорабатывает очередь при остановке: обрабатывает батчи, пока pending уменьшается.
// Возвращает число обработанных (отправленных или помеченных failed) уведомлений.
func (w *Worker) Drain(ctx context.Context) int {
	if w.repo == nil || w.publisher == nil {
		return 0
	}

	total := 0
	for ctx.Err() == nil {
		before, err := w.repo.Stats()
		if err != nil || before.PendingCount == 0 {
			break
		}
		n := w.ProcessOnce(ctx)
		total += n
		if n == 0 {
			break
		}
		// Репозиторий, который не снимает пометку pending, зациклил бы Drain.
		if after, err := w.repo.Stats(); err != nil || after.PendingCount >= before.PendingCount {
			break
		}
	}

	w.metrics.RecordDrain(total)
	if total > 0 {
		w.logger.WithField("processed", total).Info("outbox drained")
	}
	return total
}

// ProcessOnce обрабатывает один батч и возвращает число обработанных уведомлений.
func (w *Worker) ProcessOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	defer w.refreshBacklog()

	batch, err := w.repo.PullPending(w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("pull pending notifications failed")
		return 0
	}

	processed := 0
	for _, msg := range batch {
		if ctx.Err() != nil {
			break
		}
		w.deliver(ctx, msg)
		processed++
	}
	return processed
}

func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) {
	entry := w.logger.WithFields(log.Fields{
		"outbox_id": msg.ID,
		"type":      msg.EventType,
		"order_id":  msg.AggregateID,
	})

	err := w.publishWithRetry(ctx, msg)
	if err == nil {
		w.metrics.RecordPublished(msg.EventType)
		if markErr := w.repo.MarkSent(msg.ID); markErr != nil {
			entry.WithError(markErr).Warn("mark notification sent failed")
		}
		return
	}

	// Отмена во время повторов: уведомление остаётся pending до следующего запуска.
	if ctx.Err() != nil {
		entry.WithError(err).Debug("notification delivery interrupted")
		return
	}

	entry.WithError(err).Error("notification delivery failed")
	w.metrics.RecordAttempt(metrics.PublishFailed)
	w.moveToDLQ(entry, msg)
	if markErr := w.repo.MarkFailed(msg.ID); markErr != nil {
		entry.WithError(markErr).Warn("mark notification failed failed")
	}
}

func (w *Worker) publishWithRetry(ctx context.Context, msg domain.OutboxMessage) error {
	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if lastErr = w.publisher.Publish(msg); lastErr == nil {
			w.metrics.RecordAttempt(metrics.PublishSent)
			return nil
		}
		w.metrics.RecordAttempt(metrics.PublishRetry)

		if attempt == w.maxAttempts {
			break
		}
		if delay := w.retryBackoff(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("%d attempts: %w", w.maxAttempts, lastErr)
}

// moveToDLQ публикует уведомление без изменений, чтобы dlq-reprocess мог вернуть его в topic.
func (w *Worker) moveToDLQ(entry *log.Entry, msg domain.OutboxMessage) {
	if w.dlqPublisher == nil {
		return
	}
	if err := w.dlqPublisher.Publish(msg); err != nil {
		entry.WithError(err).Warn("publish notification to dlq failed")
		w.metrics.RecordAttempt(metrics.PublishDLQFailed)
		return
	}
	w.metrics.RecordAttempt(metrics.PublishDLQ)
}

func (w *Worker) refreshBacklog() {
	stats, err := w.repo.Stats()
	if err != nil {
		w.logger.WithError(err).Debug("outbox stats unavailable")
		return
	}
	w.metrics.SetBacklog(stats.PendingCount, stats.OldestPendingAt, w.now())
}

// retryBackoff: base, 2*base, 4*base... с насыщением вместо переполнения.
func (w *Worker) retryBackoff(attempt int) time.Duration {
	if w.retryBaseDelay <= 0 {
		return 0
	}
	const ceiling = time.Duration(1<<63 - 1)
	delay := w.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > ceiling/2 {
			return ceiling
		}
		delay *= 2
	}
	return delay
}
