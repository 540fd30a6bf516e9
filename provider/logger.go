package provider

import (
	"context"
	"errors"
	"time"
)

// EventKind names the exchange an Event describes
type EventKind string

const (
	EventInitPayment EventKind = "init_payment"
	EventCardInit    EventKind = "card_init"
	EventCardDirect  EventKind = "card_direct"
	EventCallback    EventKind = "callback"
	EventRedirect    EventKind = "redirect"
)

// Event is one entry of the payment audit trail
type Event struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Kind         EventKind      `json:"kind"`
	Provider     string         `json:"provider"`
	OperationID  string         `json:"operation_id,omitempty"`
	PaymentID    string         `json:"payment_id,omitempty"`
	AccountID    int64          `json:"account_id,omitempty"`
	Amount       float64        `json:"amount,omitempty"`
	Currency     string         `json:"currency,omitempty"`
	Status       string         `json:"status"`
	Error        string         `json:"error,omitempty"`
	ProcessingMs int64          `json:"processing_ms"`
	Params       map[string]any `json:"params,omitempty"`
}

// EventLogger persists payment events
type EventLogger interface {
	LogEvent(ctx context.Context, event Event) error
}

// EventReader looks up recorded events
type EventReader interface {
	EventsForOperation(ctx context.Context, operationID string) ([]Event, error)
	RecentFailures(ctx context.Context, accountID int64, hours int) ([]Event, error)
}

// MultiEventLogger fans an event out to several sinks
type MultiEventLogger []EventLogger

// LogEvent writes to every sink and joins their errors
func (m MultiEventLogger) LogEvent(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.LogEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopEventLogger drops every event
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(context.Context, Event) error { return nil }
