package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore persists the audit trail. Rows are append-only; nothing in
// the service ever updates or deletes them.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("encode audit metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, occurred_at, actor, subject, action, reason, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), event.Timestamp, event.Actor, event.Subject, event.Action, event.Reason, metadata)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT occurred_at, actor, subject, action, reason, metadata
		FROM audit_events
		WHERE subject = $1
		ORDER BY occurred_at`,
		subject)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var event Event
		var metadata []byte
		if err := rows.Scan(&event.Timestamp, &event.Actor, &event.Subject,
			&event.Action, &event.Reason, &metadata); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}
