package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mstgnz/paybox/infra/logger"
	"github.com/mstgnz/paybox/infra/middle"
	"github.com/mstgnz/paybox/infra/response"
	"github.com/mstgnz/paybox/infra/validate"
	"github.com/mstgnz/paybox/provider"
	"github.com/mstgnz/paybox/provider/paybox"
)

// PaymentServiceInterface defines the interface for payment operations
type PaymentServiceInterface interface {
	CreatePayment(ctx context.Context, accountID int64, intent provider.PaymentIntent) (*paybox.PaymentInit, error)
	Charge(ctx context.Context, accountID int64, amount float64) (*paybox.ChargeResult, error)
	HandleCallback(ctx context.Context, scriptName string, payload map[string]any) *paybox.Ack
	Account(ctx context.Context, accountID int64) (*provider.Account, error)
	DeleteCard(ctx context.Context, accountID int64) error
	SuccessRedirect(ctx context.Context, query url.Values) string
	FailureRedirect(ctx context.Context, query url.Values) string
}

// CreatePaymentRequest is the body of POST /v1/payments
type CreatePaymentRequest struct {
	Amount   float64 `json:"amount" validate:"gt=0"`
	Currency string  `json:"currency,omitempty" validate:"omitempty,currency"`
	Email    string  `json:"email,omitempty" validate:"omitempty,email"`
	Phone    string  `json:"phone,omitempty" validate:"omitempty,phone"`
}

// ChargeRequest is the body of POST /v1/cards/charge
type ChargeRequest struct {
	Amount float64 `json:"amount" validate:"gt=0"`
}

// PaymentHandler handles payment related HTTP requests
type PaymentHandler struct {
	paymentService PaymentServiceInterface
	validate       *validator.Validate
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService PaymentServiceInterface, validate *validator.Validate) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		validate:       validate,
	}
}

// CreatePayment starts a hosted top-up payment for the authenticated account
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middle.AccountIDFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", errors.New(validate.Message(err)))
		return
	}

	payment, err := h.paymentService.CreatePayment(r.Context(), accountID, provider.PaymentIntent{
		Amount:   req.Amount,
		Currency: req.Currency,
		Email:    req.Email,
		Phone:    req.Phone,
	})
	if err != nil {
		writeServiceError(w, r, "Payment initiation failed", err)
		return
	}

	response.Success(w, http.StatusCreated, "Payment created", payment)
}

// ChargeSavedCard charges the authenticated account's saved card
func (h *PaymentHandler) ChargeSavedCard(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middle.AccountIDFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req ChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", errors.New(validate.Message(err)))
		return
	}

	result, err := h.paymentService.Charge(r.Context(), accountID, req.Amount)
	if err != nil {
		writeServiceError(w, r, "Charge failed", err)
		return
	}

	response.Success(w, http.StatusOK, "Charge completed", result)
}

// DeleteCard removes the authenticated account's saved card
func (h *PaymentHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middle.AccountIDFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	if err := h.paymentService.DeleteCard(r.Context(), accountID); err != nil {
		writeServiceError(w, r, "Failed to delete card", err)
		return
	}

	response.Success(w, http.StatusOK, "Card deleted", nil)
}

// GetAccount returns the authenticated account's balance and saved card
func (h *PaymentHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middle.AccountIDFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	account, err := h.paymentService.Account(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, "Failed to load account", err)
		return
	}

	response.Success(w, http.StatusOK, "Account retrieved", account)
}

// HandleCallback receives the provider's server-to-server result notification.
// The body may be form-encoded or JSON; the answer always follows the payload's format.
func (h *PaymentHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Callback panicked", fmt.Errorf("%v", rec), logger.LogContext{
				Provider:  "paybox",
				RequestID: middle.RequestIDFromContext(r.Context()),
			})
			_ = response.WriteXML(w, http.StatusInternalServerError,
				[]byte(`<?xml version="1.0" encoding="UTF-8"?>`+"\n"+`<response><pg_status>error</pg_status><pg_description>internal error</pg_description></response>`))
		}
	}()

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	payload, err := decodeCallback(r)
	if err != nil {
		logger.Warn("Unreadable callback body", logger.LogContext{
			Provider:  "paybox",
			RequestID: middle.RequestIDFromContext(r.Context()),
			Fields:    map[string]any{"error": err.Error(), "path": r.URL.Path},
		})
		payload = map[string]any{}
	}

	ack := h.paymentService.HandleCallback(ctx, paybox.ScriptName(r.URL.Path), payload)
	_ = response.WriteRaw(w, ack.StatusCode, ack.ContentType, ack.Body)
}

// PaymentSuccess redirects the browser to the frontend success page
func (h *PaymentHandler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.paymentService.SuccessRedirect(r.Context(), r.URL.Query()), http.StatusFound)
}

// PaymentFailure redirects the browser to the frontend failure page
func (h *PaymentHandler) PaymentFailure(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.paymentService.FailureRedirect(r.Context(), r.URL.Query()), http.StatusFound)
}

// decodeCallback reads a JSON object (numbers kept verbatim) or a form body.
// Query parameters fill in keys the body does not carry.
func decodeCallback(r *http.Request) (map[string]any, error) {
	payload := make(map[string]any)

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("invalid JSON callback: %w", err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid form callback: %w", err)
		}
		for key, values := range r.PostForm {
			if len(values) > 0 {
				payload[key] = values[0]
			}
		}
	}

	for key, values := range r.URL.Query() {
		if _, exists := payload[key]; !exists && len(values) > 0 {
			payload[key] = values[0]
		}
	}

	return payload, nil
}

// writeServiceError maps the gateway error taxonomy to HTTP statuses
func writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, paybox.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, paybox.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, paybox.ErrNoCardOnFile):
		status = http.StatusConflict
	case errors.Is(err, paybox.ErrChargeDeclined):
		status = http.StatusPaymentRequired
	case errors.Is(err, paybox.ErrInitiationFailed),
		errors.Is(err, paybox.ErrProtocolViolation),
		errors.Is(err, paybox.ErrNetwork):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		accountID, _ := middle.AccountIDFromContext(r.Context())
		logger.Error(message, err, logger.LogContext{
			Provider:  "paybox",
			AccountID: accountID,
			RequestID: middle.RequestIDFromContext(r.Context()),
		})
		if status == http.StatusInternalServerError {
			err = errors.New("an unexpected error occurred")
		}
	}

	response.Error(w, status, message, err)
}
