package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/mstgnz/paybox/provider"
)

// EventLogger indexes payment events into OpenSearch
type EventLogger struct {
	client *Client
}

// NewEventLogger creates a new OpenSearch event sink
func NewEventLogger(client *Client) *EventLogger {
	return &EventLogger{client: client}
}

// LogEvent indexes one payment event. It is a no-op when logging is disabled.
func (l *EventLogger) LogEvent(ctx context.Context, event provider.Event) error {
	if !l.client.IsEnabled() {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.Params = SanitizeParams(event.Params)

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index:      l.client.IndexName(),
		DocumentID: event.ID,
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to index event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch error: %s", res.String())
	}

	return nil
}

// SearchEvents runs a query against the event index, newest first
func (l *EventLogger) SearchEvents(ctx context.Context, query map[string]any, size int) ([]provider.Event, error) {
	if !l.client.IsEnabled() {
		return nil, fmt.Errorf("logging is disabled")
	}
	if size <= 0 {
		size = 100
	}

	searchQuery := map[string]any{
		"query": query,
		"sort": []map[string]any{
			{"timestamp": map[string]string{"order": "desc"}},
		},
		"size": size,
	}

	queryJSON, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{l.client.IndexName()},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("opensearch search error: %s", res.String())
	}

	var searchResult struct {
		Hits struct {
			Hits []struct {
				Source provider.Event `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}

	events := make([]provider.Event, len(searchResult.Hits.Hits))
	for i, hit := range searchResult.Hits.Hits {
		events[i] = hit.Source
	}
	return events, nil
}

// EventsForOperation returns every event recorded for an operation id
func (l *EventLogger) EventsForOperation(ctx context.Context, operationID string) ([]provider.Event, error) {
	return l.SearchEvents(ctx, map[string]any{
		"term": map[string]any{"operation_id": operationID},
	}, 100)
}

// RecentFailures returns an account's events with an error in the last hours
func (l *EventLogger) RecentFailures(ctx context.Context, accountID int64, hours int) ([]provider.Event, error) {
	if hours <= 0 {
		hours = 24
	}
	return l.SearchEvents(ctx, map[string]any{
		"bool": map[string]any{
			"must": []map[string]any{
				{"term": map[string]any{"account_id": accountID}},
				{"range": map[string]any{"timestamp": map[string]any{"gte": fmt.Sprintf("now-%dh", hours)}}},
				{"exists": map[string]any{"field": "error"}},
			},
		},
	}, 100)
}

var sensitiveKeys = []string{"token", "sig", "secret", "password", "pan", "cvv", "cvc"}

// SanitizeParams masks values whose key looks sensitive
func SanitizeParams(params map[string]any) map[string]any {
	if len(params) == 0 {
		return params
	}

	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
		lower := strings.ToLower(k)
		for _, s := range sensitiveKeys {
			if strings.Contains(lower, s) {
				out[k] = "***REDACTED***"
				break
			}
		}
	}
	return out
}

var (
	_ provider.EventLogger = (*EventLogger)(nil)
	_ provider.EventReader = (*EventLogger)(nil)
)
