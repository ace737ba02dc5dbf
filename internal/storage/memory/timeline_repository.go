package memory

import (
	"errors"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// timelineRepositoryInMemory хранит события заказов; seq фиксирует порядок записи.
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	seq    uint64
	events map[string][]timelineEntry
}

type timelineEntry struct {
	event domain.TimelineEvent
	seq   uint64
}

func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{events: make(map[string][]timelineEntry)}
}

func (r *timelineRepositoryInMemory) Append(event domain.TimelineEvent) error {
	if event.OrderID == "" {
		return errors.New("timeline event without order id")
	}
	if event.Actor == "" {
		event.Actor = domain.ActorSystem
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.events[event.OrderID] = append(r.events[event.OrderID], timelineEntry{event: event, seq: r.seq})
	return nil
}

// List отдаёт события по времени; при равном времени: в порядке Append.
func (r *timelineRepositoryInMemory) List(orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	entries := append([]timelineEntry(nil), r.events[orderID]...)
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].event.Occurred.Equal(entries[j].event.Occurred) {
			return entries[i].event.Occurred.Before(entries[j].event.Occurred)
		}
		return entries[i].seq < entries[j].seq
	})

	events := make([]domain.TimelineEvent, 0, len(entries))
	for _, entry := range entries {
		events = append(events, entry.event)
	}
	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
