package paybox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/mstgnz/paybox/infra/logger"
	"github.com/mstgnz/paybox/provider"
)

// Format distinguishes the two callback payload shapes
type Format string

const (
	FormatLegacy Format = "legacy"
	FormatModern Format = "modern"
)

// Classify reports the payload shape: modern needs both "order" and "status"
func Classify(payload map[string]any) Format {
	_, hasOrder := payload["order"]
	_, hasStatus := payload["status"]
	if hasOrder && hasStatus {
		return FormatModern
	}
	return FormatLegacy
}

// ClaimKey is the ledger key for an operation, shared by both formats
func ClaimKey(operationID string) string {
	return "callback:" + operationID
}

// Reconciler verifies provider callbacks and applies their outcome
type Reconciler struct {
	cfg      Config
	accounts provider.AccountStore
	orders   provider.OrderStore
	ledger   provider.CallbackLedger
	events   provider.EventLogger
	recorder Recorder
}

// NewReconciler creates a callback reconciler
func NewReconciler(cfg Config, accounts provider.AccountStore, orders provider.OrderStore,
	ledger provider.CallbackLedger, events provider.EventLogger, recorder Recorder) *Reconciler {
	if events == nil {
		events = provider.NopEventLogger{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Reconciler{
		cfg:      cfg,
		accounts: accounts,
		orders:   orders,
		ledger:   ledger,
		events:   events,
		recorder: recorder,
	}
}

// Reconcile handles one callback and always returns a well-formed ack.
// A panic below this point becomes a 500 ack in the payload's format.
func (r *Reconciler) Reconcile(ctx context.Context, scriptName string, payload map[string]any) (ack *Ack) {
	format := Classify(payload)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("%w: panic: %v", ErrInternal, rec)
			logger.Error("Callback handler panicked", err, logger.LogContext{Provider: providerName})
			ack = internalAck(format)
			r.recorder.Callback(string(format), "internal_error")
		}
	}()

	var (
		result *provider.CallbackResult
		err    error
	)
	if format == FormatModern {
		result, ack, err = r.reconcileModern(ctx, payload)
	} else {
		result, ack, err = r.reconcileLegacy(ctx, ScriptName(scriptName), payload)
	}

	r.logEvent(ctx, format, payload, result, ack, err, time.Since(start))
	return ack
}

func internalAck(format Format) *Ack {
	if format == FormatModern {
		return jsonAck(http.StatusInternalServerError, "error")
	}
	return legacyInternalError()
}

func (r *Reconciler) reconcileModern(ctx context.Context, payload map[string]any) (*provider.CallbackResult, *Ack, error) {
	if !VerifyModern(payload, r.cfg.SecretKey) {
		r.recorder.SignatureFailure(string(FormatModern))
		r.recorder.Callback(string(FormatModern), "rejected")
		return nil, jsonAck(http.StatusBadRequest, "error"), ErrSignatureMismatch
	}

	result := parseModern(payload)

	order, err := r.orders.FindOrderByID(ctx, result.OperationID)
	if errors.Is(err, provider.ErrNotFound) {
		r.recorder.Callback(string(FormatModern), "unknown_order")
		return result, jsonAck(http.StatusBadRequest, "error"), ErrUnknownOrder
	}
	if err != nil {
		r.recorder.Callback(string(FormatModern), "internal_error")
		return result, jsonAck(http.StatusInternalServerError, "error"), fmt.Errorf("%w: %w", ErrInternal, err)
	}

	if r.cfg.ModernCallbackCredit {
		if err := r.applyModern(ctx, result, order); err != nil {
			r.recorder.Callback(string(FormatModern), "internal_error")
			return result, jsonAck(http.StatusInternalServerError, "error"), err
		}
	}

	r.recorder.Callback(string(FormatModern), string(result.Outcome))
	return result, jsonAck(http.StatusOK, "ok"), nil
}

// applyModern credits the order's account when modern crediting is enabled
func (r *Reconciler) applyModern(ctx context.Context, result *provider.CallbackResult, order *provider.Order) error {
	if result.Outcome != provider.OutcomeSuccess {
		if err := r.orders.UpdateOrderStatus(ctx, order.ID, provider.OrderFailed); err != nil {
			return fmt.Errorf("%w: %w", ErrInternal, err)
		}
		return nil
	}

	result.Amount = order.Amount
	return r.credit(ctx, result, func() (*provider.Account, error) {
		return r.accounts.FindAccountByID(ctx, order.AccountID)
	})
}

func (r *Reconciler) reconcileLegacy(ctx context.Context, scriptName string, payload map[string]any) (*provider.CallbackResult, *Ack, error) {
	params := flattenLegacy(payload)
	secret := r.cfg.SecretKey

	if !VerifyLegacy(params, secret, scriptName) {
		r.recorder.SignatureFailure(string(FormatLegacy))
		r.recorder.Callback(string(FormatLegacy), "rejected")
		return nil, legacyAck(http.StatusBadRequest, "error", descInvalidSignature, scriptName, secret), ErrSignatureMismatch
	}

	result, err := parseLegacy(params)
	if err != nil {
		r.recorder.Callback(string(FormatLegacy), "rejected")
		return nil, legacyAck(http.StatusBadRequest, "error", descMalformed, scriptName, secret), err
	}

	if result.Outcome != provider.OutcomeSuccess {
		r.recorder.Callback(string(FormatLegacy), string(result.Outcome))
		return result, legacyAck(http.StatusOK, "ok", descDeclined, scriptName, secret), nil
	}

	if result.PayerEmail != "" {
		err := r.credit(ctx, result, func() (*provider.Account, error) {
			return r.accounts.FindAccountByEmail(ctx, result.PayerEmail)
		})
		if err != nil {
			r.recorder.Callback(string(FormatLegacy), "internal_error")
			return result, legacyInternalError(), err
		}
	}

	r.recorder.Callback(string(FormatLegacy), string(result.Outcome))
	return result, legacyAck(http.StatusOK, "ok", descAccepted, scriptName, secret), nil
}

// credit claims the operation in the ledger and applies the balance change.
// A replay finds the claim taken and changes nothing. Any failure before the
// balance is written releases the claim so the provider's retry can apply it.
func (r *Reconciler) credit(ctx context.Context, result *provider.CallbackResult, find func() (*provider.Account, error)) error {
	key := ClaimKey(result.OperationID)
	log := logger.WithProvider(providerName).
		AddField("operation_id", result.OperationID).
		AddField("payment_id", result.ProviderPaymentID)

	claimed, err := r.ledger.Claim(ctx, key, result.ProviderPaymentID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if !claimed {
		log.Info("Callback already applied, skipping")
		return nil
	}

	account, err := find()
	if errors.Is(err, provider.ErrNotFound) {
		r.release(ctx, key)
		log.Warn("No account matches callback payer, nothing credited")
		return nil
	}
	if err != nil {
		r.release(ctx, key)
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	if err := r.accounts.UpdateBalance(ctx, account.ID, result.Amount); err != nil {
		r.release(ctx, key)
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
	log.SetAccountID(account.ID).AddField("amount", result.Amount).Info("Balance credited")

	// the balance is written; later failures are logged, not returned
	if result.Card.Usable() {
		if err := r.accounts.UpdateSavedCard(ctx, account.ID, result.Card); err != nil {
			log.Error("Failed to store saved card", err)
		}
	}
	if err := r.orders.UpdateOrderStatus(ctx, result.OperationID, provider.OrderPaid); err != nil && !errors.Is(err, provider.ErrNotFound) {
		log.Error("Failed to mark order paid", err)
	}

	return nil
}

func (r *Reconciler) release(ctx context.Context, key string) {
	if err := r.ledger.Release(ctx, key); err != nil {
		logger.Error("Failed to release callback claim", err, logger.LogContext{
			Provider: providerName,
			Fields:   map[string]any{"claim_key": key},
		})
	}
}

func parseLegacy(params map[string]string) (*provider.CallbackResult, error) {
	result := &provider.CallbackResult{
		OperationID:       params["pg_order_id"],
		ProviderPaymentID: params["pg_payment_id"],
		Outcome:           provider.OutcomeFailure,
		Currency:          params["pg_currency"],
		PayerEmail:        NormalizeEmail(params["pg_user_contact_email"]),
	}
	if strings.TrimSpace(params["pg_result"]) == "1" {
		result.Outcome = provider.OutcomeSuccess
	}
	if result.Outcome != provider.OutcomeSuccess {
		return result, nil
	}

	if result.OperationID == "" {
		return nil, ProtocolViolation("callback without pg_order_id")
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(params["pg_amount"]), 64)
	if err != nil || amount <= 0 {
		return nil, ProtocolViolation(fmt.Sprintf("invalid pg_amount %q", params["pg_amount"]))
	}
	result.Amount = amount

	if token, cardID := params["pg_card_token"], params["pg_card_id"]; token != "" && cardID != "" {
		result.Card = &provider.SavedCard{
			Token:  token,
			CardID: cardID,
			Last4:  Last4FromPAN(params["pg_card_pan"]),
		}
	}

	return result, nil
}

func parseModern(payload map[string]any) *provider.CallbackResult {
	orderID := modernOrderID(payload["order"])
	result := &provider.CallbackResult{
		OperationID: orderID,
		Outcome:     provider.OutcomeFailure,
	}

	if status, ok := payload["status"].(map[string]any); ok {
		if code, _ := status["code"].(string); code == "success" {
			result.Outcome = provider.OutcomeSuccess
		}
	}
	if id, ok := payload["payment_id"]; ok {
		result.ProviderPaymentID, _ = modernValue(id)
	}
	return result
}

// modernOrderID reads the order as a scalar or as an object carrying its id
func modernOrderID(order any) string {
	if nested, ok := order.(map[string]any); ok {
		id, ok := nested["id"]
		if !ok || id == nil {
			return ""
		}
		order = id
	}
	if order == nil {
		return ""
	}
	id, _ := modernValue(order)
	return id
}

// Last4FromPAN strips non-digits from a masked PAN and keeps the final four.
// nil when the PAN is absent or carries no digits.
func Last4FromPAN(pan string) *string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, pan)
	if digits == "" {
		return nil
	}
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	return &digits
}

var sensitiveParams = map[string]bool{"pg_card_token": true, "pg_sig": true, "sig": true}

func (r *Reconciler) logEvent(ctx context.Context, format Format, payload map[string]any, result *provider.CallbackResult, ack *Ack, err error, elapsed time.Duration) {
	params := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		if !sensitiveParams[k] {
			params[k] = v
		}
	}
	params["format"] = string(format)

	event := provider.Event{
		Kind:         provider.EventCallback,
		Provider:     providerName,
		Status:       strconv.Itoa(ack.StatusCode),
		ProcessingMs: elapsed.Milliseconds(),
		Params:       params,
	}
	if result != nil {
		event.OperationID = result.OperationID
		event.PaymentID = result.ProviderPaymentID
		event.Amount = result.Amount
		event.Currency = result.Currency
		event.Status = string(result.Outcome)
	}
	if err != nil {
		event.Status = "rejected"
		event.Error = err.Error()
	}

	if logErr := r.events.LogEvent(ctx, event); logErr != nil {
		logger.Warn("Failed to record callback event", logger.LogContext{
			Provider: providerName,
			Fields:   map[string]any{"error": logErr.Error()},
		})
	}
}
