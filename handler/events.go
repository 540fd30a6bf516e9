package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mstgnz/paybox/infra/logger"
	"github.com/mstgnz/paybox/infra/middle"
	"github.com/mstgnz/paybox/infra/response"
	"github.com/mstgnz/paybox/provider"
)

const maxFailureHours = 24 * 7

// EventsHandler serves the payment audit trail of the authenticated account
type EventsHandler struct {
	reader provider.EventReader
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(reader provider.EventReader) *EventsHandler {
	return &EventsHandler{reader: reader}
}

// OperationEvents lists the events of one operation.
// An operation is visible only when one of its events names the caller's account.
func (h *EventsHandler) OperationEvents(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middle.AccountIDFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	operationID := chi.URLParam(r, "operationId")
	if operationID == "" {
		response.Error(w, http.StatusBadRequest, "Operation ID is required", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	events, err := h.reader.EventsForOperation(ctx, operationID)
	if err != nil {
		h.readFailed(w, r, accountID, err)
		return
	}

	owned := false
	for _, e := range events {
		if e.AccountID == accountID {
			owned = true
			break
		}
	}
	if !owned {
		response.Error(w, http.StatusNotFound, "Operation not found", nil)
		return
	}

	response.Success(w, http.StatusOK, "Events retrieved", map[string]any{
		"operationId": operationID,
		"events":      events,
		"count":       len(events),
	})
}

// RecentFailures lists the caller's failed exchanges of the last hours (default 24)
func (h *EventsHandler) RecentFailures(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middle.AccountIDFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxFailureHours {
			response.Error(w, http.StatusBadRequest, "hours must be between 1 and 168", nil)
			return
		}
		hours = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	events, err := h.reader.RecentFailures(ctx, accountID, hours)
	if err != nil {
		h.readFailed(w, r, accountID, err)
		return
	}
	if events == nil {
		events = []provider.Event{}
	}

	response.Success(w, http.StatusOK, "Failures retrieved", map[string]any{
		"hours":  hours,
		"events": events,
		"count":  len(events),
	})
}

func (h *EventsHandler) readFailed(w http.ResponseWriter, r *http.Request, accountID int64, err error) {
	logger.Error("Failed to read payment events", err, logger.LogContext{
		AccountID: accountID,
		RequestID: middle.RequestIDFromContext(r.Context()),
	})
	response.Error(w, http.StatusInternalServerError, "Failed to read payment events", nil)
}
