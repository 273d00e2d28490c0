package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"saga-coordinator/internal/domain/events"
)

const createTableQuery = `
	CREATE TABLE IF NOT EXISTS saga_events (
		id            BIGSERIAL PRIMARY KEY,
		event_id      UUID NOT NULL UNIQUE,
		saga_id       VARCHAR(255) NOT NULL,
		event_type    VARCHAR(64) NOT NULL,
		content       JSONB NOT NULL,
		metadata      JSONB,
		creation_time TIMESTAMP WITH TIME ZONE NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_saga_events_saga_id ON saga_events(saga_id);
	CREATE INDEX IF NOT EXISTS idx_saga_events_type_time ON saga_events(event_type, creation_time);
`

const (
	insertEventQuery = `
		INSERT INTO saga_events (
			event_id, saga_id, event_type, content, metadata, creation_time
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	selectEventsBySagaQuery = `
		SELECT event_id, saga_id, event_type, content, metadata, creation_time, id
		FROM saga_events
		WHERE saga_id = $1
		ORDER BY id ASC
	`

	selectAllEventsQuery = `
		SELECT event_id, saga_id, event_type, content, metadata, creation_time, id
		FROM saga_events
		ORDER BY id ASC
	`

	selectStartedBetweenQuery = `
		SELECT event_id, saga_id, event_type, content, metadata, creation_time, id
		FROM saga_events
		WHERE event_type = 'SagaStarted' AND creation_time BETWEEN $1 AND $2
		ORDER BY id DESC
		LIMIT $3 OFFSET $4
	`

	countStartedBetweenQuery = `
		SELECT COUNT(*)
		FROM saga_events
		WHERE event_type = 'SagaStarted' AND creation_time BETWEEN $1 AND $2
	`

	selectPendingSagaIDsQuery = `
		SELECT DISTINCT saga_id
		FROM saga_events
		WHERE event_type = 'SagaStarted'
		  AND saga_id NOT IN (
			SELECT saga_id FROM saga_events WHERE event_type = 'SagaEnded'
		  )
	`
)

// PostgresEventStore persists the saga log in an append-only table keyed by
// (saga_id, id); the bigserial id gives the per-instance arrival order.
type PostgresEventStore struct {
	db *sql.DB
}

func NewPostgresEventStore(connString string) (*PostgresEventStore, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgresEventStoreWithDB(db)
}

// NewPostgresEventStoreWithDB wraps an existing connection pool.
func NewPostgresEventStoreWithDB(db *sql.DB) (*PostgresEventStore, error) {
	if _, err := db.Exec(createTableQuery); err != nil {
		return nil, fmt.Errorf("failed to create saga_events table: %w", err)
	}
	return &PostgresEventStore{db: db}, nil
}

func (es *PostgresEventStore) SaveEvent(ctx context.Context, event events.Event) error {
	content, err := json.Marshal(event.Data())
	if err != nil {
		return fmt.Errorf("failed to marshal event content: %w", err)
	}

	metadata, err := json.Marshal(event.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	_, err = es.db.ExecContext(ctx, insertEventQuery,
		event.ID(),
		event.SagaID(),
		event.Type(),
		content,
		metadata,
		event.Timestamp(),
	)

	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	return nil
}

func (es *PostgresEventStore) LoadEvents(ctx context.Context, sagaID string) ([]events.Event, error) {
	return es.queryEvents(ctx, selectEventsBySagaQuery, sagaID)
}

func (es *PostgresEventStore) LoadAllEvents(ctx context.Context) ([]events.Event, error) {
	return es.queryEvents(ctx, selectAllEventsQuery)
}

func (es *PostgresEventStore) LoadSagaStartedBetween(ctx context.Context, from, to time.Time, offset, limit int) ([]events.Event, int, error) {
	var total int
	if err := es.db.QueryRowContext(ctx, countStartedBetweenQuery, from, to).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count saga executions: %w", err)
	}

	loaded, err := es.queryEvents(ctx, selectStartedBetweenQuery, from, to, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	return loaded, total, nil
}

func (es *PostgresEventStore) PendingSagaIDs(ctx context.Context) ([]string, error) {
	rows, err := es.db.QueryContext(ctx, selectPendingSagaIDsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending sagas: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan saga id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating saga ids: %w", err)
	}

	return ids, nil
}

func (es *PostgresEventStore) queryEvents(ctx context.Context, query string, args ...interface{}) ([]events.Event, error) {
	rows, err := es.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var loaded []events.Event
	for rows.Next() {
		var eventID, sagaID, eventType string
		var contentJSON, metadataJSON []byte
		var creationTime sql.NullTime
		var sequenceNumber int64

		err := rows.Scan(&eventID, &sagaID, &eventType, &contentJSON, &metadataJSON, &creationTime, &sequenceNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event, err := reconstructEvent(eventID, sagaID, eventType, contentJSON, metadataJSON, creationTime.Time, sequenceNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to reconstruct event: %w", err)
		}

		loaded = append(loaded, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return loaded, nil
}

func reconstructEvent(eventID, sagaID, eventType string, contentJSON, metadataJSON []byte, creationTime time.Time, sequenceNumber int64) (events.Event, error) {
	var metadata events.EventMetadata
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	data, err := events.DecodeData(eventType, contentJSON)
	if err != nil {
		return nil, err
	}

	return events.NewBaseEventWithTimestamp(eventID, eventType, sagaID, data, metadata, sequenceNumber, creationTime), nil
}

func (es *PostgresEventStore) Close() error {
	return es.db.Close()
}
