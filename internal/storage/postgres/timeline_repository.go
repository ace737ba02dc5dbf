package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	insertTimelineEventSQL = `
		INSERT INTO timeline_events (order_id, type, actor, status, reason, occurred)
		VALUES ($1, $2, $3, $4, $5, $6)`

	// id разрешает равные метки времени в порядке записи.
	selectTimelineEventsSQL = `
		SELECT type, actor, status, reason, occurred
		FROM timeline_events
		WHERE order_id = $1
		ORDER BY occurred, id`
)

// timelineRepository: журнал событий заказа в таблице timeline_events.
type timelineRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{db: store.DB(), now: func() time.Time { return time.Now().UTC() }}
}

func (r *timelineRepository) Append(event domain.TimelineEvent) error {
	if event.OrderID == "" {
		return errors.New("timeline event without order id")
	}
	if event.Occurred.IsZero() {
		event.Occurred = r.now()
	}
	if event.Actor == "" {
		event.Actor = domain.ActorSystem
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, insertTimelineEventSQL,
		event.OrderID, event.Type, event.Actor, string(event.Status), event.Reason, event.Occurred.UTC())
	if err != nil {
		return fmt.Errorf("append %s to timeline of order %s: %w", event.Type, event.OrderID, err)
	}
	return nil
}

func (r *timelineRepository) List(orderID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, selectTimelineEventsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("query timeline of order %s: %w", orderID, err)
	}
	defer rows.Close()

	var events []domain.TimelineEvent
	for rows.Next() {
		event := domain.TimelineEvent{OrderID: orderID}
		var status string
		if err := rows.Scan(&event.Type, &event.Actor, &status, &event.Reason, &event.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline row: %w", err)
		}
		event.Status = domain.OrderStatus(status)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read timeline of order %s: %w", orderID, err)
	}
	if events == nil {
		events = []domain.TimelineEvent{}
	}
	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
