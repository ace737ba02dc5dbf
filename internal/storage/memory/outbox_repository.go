package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type outboxStatus string

const (
	outboxPending outboxStatus = "pending"
	outboxSent    outboxStatus = "sent"
	outboxFailed  outboxStatus = "failed"
)

// outboxEntry: уведомление в очереди и его служебные поля.
type outboxEntry struct {
	msg       domain.OutboxMessage
	status    outboxStatus
	attempts  int
	createdAt time.Time
	updatedAt time.Time
	seq       uint64
}

// outboxRepositoryInMemory держит очередь уведомлений для локального запуска и тестов.
type outboxRepositoryInMemory struct {
	mu      sync.RWMutex
	entries map[string]*outboxEntry
	seq     uint64
}

// NewOutboxRepository создаёт in-memory outbox.
func NewOutboxRepository() *outboxRepositoryInMemory {
	return &outboxRepositoryInMemory{entries: make(map[string]*outboxEntry)}
}

// Enqueue ставит сообщение в очередь; пустой ID заполняется UUID.
func (r *outboxRepositoryInMemory) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Payload = append([]byte(nil), msg.Payload...)
	now := time.Now().UTC()
	r.seq++
	r.entries[msg.ID] = &outboxEntry{
		msg:       msg,
		status:    outboxPending,
		createdAt: now,
		updatedAt: now,
		seq:       r.seq,
	}
	return msg, nil
}

// PullPending отдаёт до limit ожидающих сообщений в порядке постановки.
func (r *outboxRepositoryInMemory) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := r.pendingLocked()
	if len(pending) > limit {
		pending = pending[:limit]
	}

	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, entry := range pending {
		msg := entry.msg
		msg.Payload = append([]byte(nil), entry.msg.Payload...)
		result = append(result, msg)
	}
	return result, nil
}

// Stats возвращает размер backlog и время самого старого ожидающего сообщения.
func (r *outboxRepositoryInMemory) Stats() (domain.OutboxStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := r.pendingLocked()
	stats := domain.OutboxStats{PendingCount: len(pending)}
	if len(pending) > 0 {
		stats.OldestPendingAt = pending[0].createdAt
	}
	return stats, nil
}

func (r *outboxRepositoryInMemory) MarkSent(id string) error {
	return r.mark(id, outboxSent)
}

func (r *outboxRepositoryInMemory) MarkFailed(id string) error {
	return r.mark(id, outboxFailed)
}

// Attempts возвращает число завершённых попыток публикации (для тестов).
func (r *outboxRepositoryInMemory) Attempts(id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.entries[id]; ok {
		return entry.attempts
	}
	return 0
}

func (r *outboxRepositoryInMemory) mark(id string, status outboxStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	entry.status = status
	entry.attempts++
	entry.updatedAt = time.Now().UTC()
	return nil
}

func (r *outboxRepositoryInMemory) pendingLocked() []*outboxEntry {
	pending := make([]*outboxEntry, 0)
	for _, entry := range r.entries {
		if entry.status == outboxPending {
			pending = append(pending, entry)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })
	return pending
}

var _ domain.OutboxRepository = (*outboxRepositoryInMemory)(nil)
