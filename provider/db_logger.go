package provider

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mstgnz/paybox/infra/conn"
)

// DBEventLogger implements EventLogger on the payment_events table
type DBEventLogger struct {
	db     *sql.DB
	driver string
}

// NewDBEventLogger creates a database event logger.
// driver selects the placeholder style ("sqlite3" or "postgres").
func NewDBEventLogger(db *sql.DB, driver string) *DBEventLogger {
	return &DBEventLogger{
		db:     db,
		driver: driver,
	}
}

// LogEvent inserts the event; params are stored as JSON text
func (l *DBEventLogger) LogEvent(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var params any
	if len(event.Params) > 0 {
		raw, err := json.Marshal(event.Params)
		if err != nil {
			return fmt.Errorf("failed to marshal event params: %w", err)
		}
		params = string(raw)
	}

	query := conn.Rebind(l.driver, `
		INSERT INTO payment_events (
			id, kind, provider, operation_id, payment_id, account_id,
			amount, currency, status, error, processing_ms, params, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := l.db.ExecContext(ctx, query,
		event.ID, string(event.Kind), event.Provider, event.OperationID, event.PaymentID, event.AccountID,
		event.Amount, event.Currency, event.Status, event.Error, event.ProcessingMs, params, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to log payment event: %w", err)
	}

	return nil
}

// RecentEvents returns the latest events for an operation, newest first
func (l *DBEventLogger) RecentEvents(ctx context.Context, operationID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}

	query := conn.Rebind(l.driver, `
		SELECT `+eventColumns+`
		FROM payment_events
		WHERE operation_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`)

	rows, err := l.db.QueryContext(ctx, query, operationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment events: %w", err)
	}
	return scanEvents(rows)
}

// EventsForOperation returns up to 100 events for an operation
func (l *DBEventLogger) EventsForOperation(ctx context.Context, operationID string) ([]Event, error) {
	return l.RecentEvents(ctx, operationID, 100)
}

// RecentFailures returns an account's events that carry an error and are newer than hours
func (l *DBEventLogger) RecentFailures(ctx context.Context, accountID int64, hours int) ([]Event, error) {
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	query := conn.Rebind(l.driver, `
		SELECT `+eventColumns+`
		FROM payment_events
		WHERE account_id = ? AND error <> '' AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT 100
	`)

	rows, err := l.db.QueryContext(ctx, query, accountID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed payment events: %w", err)
	}
	return scanEvents(rows)
}

const eventColumns = `id, kind, provider, operation_id, payment_id, account_id,
			amount, currency, status, error, processing_ms, params, created_at`

func scanEvents(rows *sql.Rows) ([]Event, error) {
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event  Event
			kind   string
			params sql.NullString
		)
		if err := rows.Scan(&event.ID, &kind, &event.Provider, &event.OperationID, &event.PaymentID, &event.AccountID,
			&event.Amount, &event.Currency, &event.Status, &event.Error, &event.ProcessingMs, &params, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan payment event: %w", err)
		}
		event.Kind = EventKind(kind)
		if params.Valid && params.String != "" {
			_ = json.Unmarshal([]byte(params.String), &event.Params)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

var (
	_ EventLogger = (*DBEventLogger)(nil)
	_ EventReader = (*DBEventLogger)(nil)
)
