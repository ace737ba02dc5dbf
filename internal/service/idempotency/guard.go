// Package idempotency защищает оформление от повторной обработки одного запроса.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultTTL = 24 * time.Hour

var (
	// ErrInFlight: запрос с этим ключом ещё обрабатывается.
	ErrInFlight = errors.New("request with this idempotency key is still being processed")
	// ErrKeyReused: ключ уже использован для другого запроса.
	ErrKeyReused = errors.New("idempotency key was used for a different request")
)

// Replay: сохранённый ответ, который нужно вернуть вместо повторной обработки.
// Status: HTTP-код для REST или gRPC-код для RPC.
type Replay struct {
	Status int
	Body   []byte
	Failed bool
}

// Guard оборачивает IdempotencyRepository протоколом begin/complete.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	now    func() time.Time
	logger *log.Entry
}

// NewGuard создаёт guard; ttl<=0 заменяется на 24 часа.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry) *Guard {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency-guard")
	}
	return &Guard{
		repo:   repo,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Begin резервирует ключ. (nil, nil) означает, что запрос нужно обработать
// и затем вызвать Complete. Для завершённого ключа возвращается Replay.
func (g *Guard) Begin(key, requestHash string) (*Replay, error) {
	existing, err := g.repo.CreateProcessing(key, requestHash, g.now().Add(g.ttl))
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return nil, ErrKeyReused
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if !existing.Status.Finished() {
			return nil, ErrInFlight
		}
		g.logger.WithFields(log.Fields{
			"key":    key,
			"status": existing.Status,
		}).Debug("replaying stored response")
		return &Replay{
			Status: existing.HTTPStatus,
			Body:   existing.ResponseBody,
			Failed: existing.Status == domain.IdempotencyStatusFailed,
		}, nil
	default:
		return nil, fmt.Errorf("reserve idempotency key: %w", err)
	}
}

// Complete сохраняет ответ для ключа.
func (g *Guard) Complete(key string, status int, body []byte, failed bool) error {
	var err error
	if failed {
		err = g.repo.MarkFailed(key, body, status)
	} else {
		err = g.repo.MarkDone(key, body, status)
	}
	if err != nil {
		g.logger.WithError(err).WithField("key", key).Warn("failed to store idempotent response")
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release освобождает ключ без сохранения ответа.
func (g *Guard) Release(key string) error {
	if err := g.repo.Release(key); err != nil {
		g.logger.WithError(err).WithField("key", key).Warn("failed to release idempotency key")
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// Settle завершает ключ по исходу обработки. Временный отказ ключ освобождает,
// чтобы повтор с тем же ключом выполнил запрос заново. Если не удалось сохранить
// отказ, ключ тоже освобождается: отказ оформления ничего не записал.
func (g *Guard) Settle(key string, status int, body []byte, runErr error) error {
	if runErr != nil && Transient(runErr) {
		return g.Release(key)
	}
	err := g.Complete(key, status, body, runErr != nil)
	if err != nil && runErr != nil {
		if relErr := g.Release(key); relErr != nil {
			return errors.Join(err, relErr)
		}
	}
	return err
}

// Transient сообщает, что отказ не стоит запоминать: транзакция откатилась
// или запрос прервали, и повтор может пройти.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if oerr, ok := domain.AsOrderError(err); ok {
		return oerr.Kind == domain.KindTransactionFailure
	}
	return errors.Is(err, domain.ErrTransactionConflict)
}

// RequestHash: SHA-256 от scope и JSON-представления payload.
// Поля структур сериализуются в фиксированном порядке, ключи map сортируются.
func RequestHash(scope string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request for hash: %w", err)
	}
	sum := sha256.New()
	sum.Write([]byte(strings.TrimSpace(scope)))
	sum.Write([]byte{0})
	sum.Write(data)
	return hex.EncodeToString(sum.Sum(nil)), nil
}
