package paybox

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mstgnz/paybox/infra/logger"
	"github.com/mstgnz/paybox/provider"
)

// PaymentInit is the answer to a new top-up payment
type PaymentInit struct {
	OrderID     string `json:"orderId"`
	PaymentID   string `json:"paymentId"`
	RedirectURL string `json:"redirectUrl"`
}

// Store is the persistence a Service needs
type Store interface {
	provider.AccountStore
	provider.OrderStore
}

// Service ties request building, callbacks and saved-card charges together
type Service struct {
	cfg        Config
	store      Store
	builder    *RequestBuilder
	client     *Client
	reconciler *Reconciler
	charger    *Charger
	events     provider.EventLogger
}

// NewService wires the gateway components. cfg must carry credentials.
func NewService(cfg Config, store Store, ledger provider.CallbackLedger, events provider.EventLogger, recorder Recorder) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if events == nil {
		events = provider.NopEventLogger{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	client := NewClient(cfg, recorder)
	return &Service{
		cfg:        cfg,
		store:      store,
		builder:    NewRequestBuilder(cfg),
		client:     client,
		reconciler: NewReconciler(cfg, store, store, ledger, events, recorder),
		charger:    NewCharger(cfg, client, store, events, recorder),
		events:     events,
	}, nil
}

// Client returns the provider client
func (s *Service) Client() *Client {
	return s.client
}

// CreatePayment starts a hosted top-up payment for an account
func (s *Service) CreatePayment(ctx context.Context, accountID int64, intent provider.PaymentIntent) (*PaymentInit, error) {
	account, err := s.store.FindAccountByID(ctx, accountID)
	if errors.Is(err, provider.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	if intent.Email == "" {
		intent.Email = account.Email
	}
	if intent.Phone == "" {
		intent.Phone = account.Phone
	}

	params, err := s.builder.NewPaymentRequest(intent)
	if err != nil {
		return nil, err
	}

	order := &provider.Order{
		ID:        params["pg_order_id"],
		AccountID: account.ID,
		Amount:    intent.Amount,
		Currency:  params["pg_currency"],
		Status:    provider.OrderPending,
	}
	if err := s.store.SaveOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	start := time.Now()
	fields, err := s.client.InitPayment(ctx, params)
	s.logInit(ctx, order, fields, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	if fields["pg_status"] != "ok" {
		order.Status = provider.OrderFailed
		s.saveOrderQuietly(ctx, order)
		return nil, InitiationFailed(fields["pg_error_description"])
	}
	redirectURL := fields["pg_redirect_url"]
	if redirectURL == "" {
		return nil, ProtocolViolation("init_payment ok without pg_redirect_url")
	}

	order.PaymentID = fields["pg_payment_id"]
	s.saveOrderQuietly(ctx, order)

	return &PaymentInit{
		OrderID:     order.ID,
		PaymentID:   order.PaymentID,
		RedirectURL: redirectURL,
	}, nil
}

func (s *Service) saveOrderQuietly(ctx context.Context, order *provider.Order) {
	if err := s.store.SaveOrder(ctx, order); err != nil {
		logger.Error("Failed to update order", err, logger.LogContext{
			Provider: providerName,
			Fields:   map[string]any{"order_id": order.ID},
		})
	}
}

func (s *Service) logInit(ctx context.Context, order *provider.Order, fields map[string]string, err error, elapsed time.Duration) {
	event := provider.Event{
		Kind:         provider.EventInitPayment,
		Provider:     providerName,
		OperationID:  order.ID,
		PaymentID:    fields["pg_payment_id"],
		AccountID:    order.AccountID,
		Amount:       order.Amount,
		Currency:     order.Currency,
		Status:       statusOf(fields),
		ProcessingMs: elapsed.Milliseconds(),
	}
	if err != nil {
		event.Status = "error"
		event.Error = err.Error()
	}
	if logErr := s.events.LogEvent(ctx, event); logErr != nil {
		logger.Warn("Failed to record init event", logger.LogContext{
			Provider: providerName,
			Fields:   map[string]any{"error": logErr.Error()},
		})
	}
}

// Charge runs a saved-card charge
func (s *Service) Charge(ctx context.Context, accountID int64, amount float64) (*ChargeResult, error) {
	return s.charger.Charge(ctx, accountID, amount)
}

// HandleCallback reconciles a provider callback
func (s *Service) HandleCallback(ctx context.Context, scriptName string, payload map[string]any) *Ack {
	return s.reconciler.Reconcile(ctx, scriptName, payload)
}

// Account returns an account with its masked saved card
func (s *Service) Account(ctx context.Context, accountID int64) (*provider.Account, error) {
	account, err := s.store.FindAccountByID(ctx, accountID)
	if errors.Is(err, provider.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return account, nil
}

// DeleteCard removes the account's saved card
func (s *Service) DeleteCard(ctx context.Context, accountID int64) error {
	err := s.store.UpdateSavedCard(ctx, accountID, nil)
	if errors.Is(err, provider.ErrNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return nil
}

// SuccessRedirect is where the browser goes after a successful payment
func (s *Service) SuccessRedirect(ctx context.Context, query url.Values) string {
	s.logRedirect(ctx, "success", query)
	return RedirectURL(s.cfg.FrontendURL, "success", map[string]string{
		"pg_order_id":   query.Get("pg_order_id"),
		"pg_payment_id": query.Get("pg_payment_id"),
	})
}

// FailureRedirect is where the browser goes after a failed payment
func (s *Service) FailureRedirect(ctx context.Context, query url.Values) string {
	s.logRedirect(ctx, "failure", query)
	return RedirectURL(s.cfg.FrontendURL, "failure", map[string]string{
		"pg_order_id":          query.Get("pg_order_id"),
		"pg_error_description": query.Get("pg_error_description"),
	})
}

// logRedirect records the browser's return. The query is unauthenticated,
// so the account comes from the stored order, never from the query.
func (s *Service) logRedirect(ctx context.Context, outcome string, query url.Values) {
	event := provider.Event{
		Kind:        provider.EventRedirect,
		Provider:    providerName,
		OperationID: query.Get("pg_order_id"),
		PaymentID:   query.Get("pg_payment_id"),
		Status:      outcome,
		Error:       query.Get("pg_error_description"),
	}
	if event.OperationID != "" {
		if order, err := s.store.FindOrderByID(ctx, event.OperationID); err == nil {
			event.AccountID = order.AccountID
			event.Amount = order.Amount
			event.Currency = order.Currency
		}
	}
	if outcome == "failure" && event.Error == "" {
		event.Error = "payment failed"
	}

	if logErr := s.events.LogEvent(ctx, event); logErr != nil {
		logger.Warn("Failed to record redirect event", logger.LogContext{
			Provider: providerName,
			Fields:   map[string]any{"error": logErr.Error()},
		})
	}
}

// RedirectURL builds frontend/payment/<outcome>?query. It never fails:
// an unparsable frontend URL is returned as is, an empty one becomes "/".
func RedirectURL(frontend, outcome string, query map[string]string) string {
	base := strings.TrimRight(strings.TrimSpace(frontend), "/")
	if base == "" {
		return "/"
	}

	u, err := url.Parse(base + "/payment/" + outcome)
	if err != nil {
		return base
	}

	q := u.Query()
	for k, v := range query {
		if v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
