package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/messaging"
)

// EventLog appends every published domain event to the events table.
type EventLog struct {
	db *sql.DB
}

var _ messaging.Publisher = (*EventLog)(nil)

func NewEventLog(db *sql.DB) *EventLog {
	return &EventLog{db: db}
}

func (l *EventLog) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := messaging.Encode(event)
	if err != nil {
		return err
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO events (id, topic, partition_key, event_type, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), topic, key, eventType(topic, event), string(payload), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", eventType(topic, event), err)
	}
	return nil
}

// EventRecord is one row of the event log.
type EventRecord struct {
	ID        string
	Topic     string
	Key       string
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// LoadEvents returns the events of one aggregate on a topic, oldest first.
func (l *EventLog) LoadEvents(ctx context.Context, topic, key string) ([]EventRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, topic, partition_key, event_type, payload, created_at FROM events
		 WHERE topic = $1 AND partition_key = $2 ORDER BY created_at ASC`,
		topic, key,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load events for %s/%s: %w", topic, key, err)
	}
	defer rows.Close()

	var records []EventRecord
	for rows.Next() {
		var r EventRecord
		if err := rows.Scan(&r.ID, &r.Topic, &r.Key, &r.EventType, &r.Payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return records, nil
}

// eventType names raw payloads after their topic.
func eventType(topic string, event any) string {
	if e, ok := event.(entity.Event); ok {
		return e.EventType()
	}
	return topic
}
