package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultKeyPrefix = "storefront:idempotency:"
	defaultTTL       = 24 * time.Hour
)

type idempotencyRepository struct {
	client *redis.Client
	prefix string
}

// NewIdempotencyRepository создаёт хранилище ключей идемпотентности поверх Redis.
// Срок жизни записи задаётся TTL ключа, поэтому DeleteExpired ничего не делает.
func NewIdempotencyRepository(client *redis.Client, prefix string) domain.IdempotencyRepository {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &idempotencyRepository{client: client, prefix: prefix}
}

func (r *idempotencyRepository) CreateProcessing(key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key, requestHash = strings.TrimSpace(key), strings.TrimSpace(requestHash)
	switch {
	case key == "":
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	case requestHash == "":
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := time.Now().UTC()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultTTL)
	}
	record := domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ttl := ttlAt.Sub(now)
	if ttl <= 0 {
		// Запись истекла бы сразу: хранить нечего.
		return record, nil
	}

	data, err := json.Marshal(record)
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("marshal idempotency record: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	created, err := r.client.SetNX(ctx, r.redisKey(key), data, ttl).Result()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency record: %w", err)
	}
	if created {
		return record, nil
	}

	existing, err := r.Get(key)
	if err != nil {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
	}
	if existing.RequestHash != requestHash {
		return existing, domain.ErrIdempotencyHashMismatch
	}
	return existing, domain.ErrIdempotencyKeyAlreadyExists
}

func (r *idempotencyRepository) Get(key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
		}
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency record: %w", err)
	}
	return decodeRecord(data)
}

func (r *idempotencyRepository) MarkDone(key string, responseBody []byte, httpStatus int) error {
	return r.finish(key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *idempotencyRepository) MarkFailed(key string, responseBody []byte, httpStatus int) error {
	return r.finish(key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

// Release удаляет ключ под WATCH, только пока запись ещё в processing.
func (r *idempotencyRepository) Release(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	redisKey := r.redisKey(key)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read idempotency record: %w", err)
		}
		record, err := decodeRecord(data)
		if err != nil {
			return err
		}
		if record.Status != domain.IdempotencyStatusProcessing {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, redisKey)
			return nil
		})
		return err
	}, redisKey)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("idempotency record %s changed concurrently: %w", key, err)
	}
	return err
}

// DeleteExpired: no-op: Redis удаляет просроченные ключи сам.
func (r *idempotencyRepository) DeleteExpired(time.Time, int) (int, error) {
	return 0, nil
}

// finish обновляет запись под WATCH, сохраняя исходный TTL ключа.
func (r *idempotencyRepository) finish(key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	redisKey := r.redisKey(key)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, redisKey).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.ErrIdempotencyKeyNotFound
			}
			return fmt.Errorf("read idempotency record: %w", err)
		}

		record, err := decodeRecord(data)
		if err != nil {
			return err
		}
		record.Status = status
		record.ResponseBody = append([]byte(nil), responseBody...)
		record.HTTPStatus = httpStatus
		record.UpdatedAt = time.Now().UTC()

		updated, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal idempotency record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, redisKey, updated, redis.SetArgs{Mode: "XX", KeepTTL: true})
			return nil
		})
		return err
	}, redisKey)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("idempotency record %s changed concurrently: %w", key, err)
	}
	return err
}

func (r *idempotencyRepository) redisKey(key string) string {
	return r.prefix + key
}

func decodeRecord(data []byte) (domain.IdempotencyRecord, error) {
	var record domain.IdempotencyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("decode idempotency record: %w", err)
	}
	if !record.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("invalid idempotency status %q", record.Status)
	}
	return record, nil
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
