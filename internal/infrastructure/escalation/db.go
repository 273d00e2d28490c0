package escalation

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const createTableQuery = `
CREATE TABLE IF NOT EXISTS compensation_failures (
	id          UUID PRIMARY KEY,
	saga_id     VARCHAR(255) NOT NULL,
	request_id  VARCHAR(255) NOT NULL,
	reason      TEXT NOT NULL,
	attempts    INT NOT NULL,
	occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
	resolved    BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_compensation_failures_saga_id ON compensation_failures(saga_id);
CREATE INDEX IF NOT EXISTS idx_compensation_failures_resolved ON compensation_failures(resolved);
`

const (
	insertRecordQuery = `
		INSERT INTO compensation_failures (id, saga_id, request_id, reason, attempts, occurred_at, resolved)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)`

	selectUnresolvedQuery = `
		SELECT id, saga_id, request_id, reason, attempts, occurred_at, resolved
		FROM compensation_failures
		WHERE resolved = FALSE
		ORDER BY occurred_at ASC`

	resolveRecordQuery = `
		UPDATE compensation_failures SET resolved = TRUE WHERE id = $1`
)

// DBLog persists escalated compensation failures in PostgreSQL.
type DBLog struct {
	db *sql.DB
}

func NewDBLog(db *sql.DB) (*DBLog, error) {
	if _, err := db.Exec(createTableQuery); err != nil {
		return nil, fmt.Errorf("failed to create compensation_failures table: %w", err)
	}
	return &DBLog{db: db}, nil
}

func (l *DBLog) Record(ctx context.Context, rec Record) error {
	_, err := l.db.ExecContext(ctx, insertRecordQuery,
		rec.ID, rec.SagaID, rec.RequestID, rec.Reason, rec.Attempts, rec.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to record compensation failure: %w", err)
	}
	return nil
}

func (l *DBLog) Unresolved(ctx context.Context) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, selectUnresolvedQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query compensation failures: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.SagaID, &rec.RequestID, &rec.Reason,
			&rec.Attempts, &rec.OccurredAt, &rec.Resolved); err != nil {
			return nil, fmt.Errorf("failed to scan compensation failure: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (l *DBLog) Resolve(ctx context.Context, id string) error {
	result, err := l.db.ExecContext(ctx, resolveRecordQuery, id)
	if err != nil {
		return fmt.Errorf("failed to resolve compensation failure: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("compensation failure %s not found", id)
	}
	return nil
}
