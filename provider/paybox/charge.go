package paybox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mstgnz/paybox/infra/logger"
	"github.com/mstgnz/paybox/provider"
)

// ChargeStep is the position of a saved-card charge in its two-step flow
type ChargeStep string

const (
	StepInitiated ChargeStep = "initiated"
	StepConfirmed ChargeStep = "confirmed"
	StepFailed    ChargeStep = "failed"
)

// ChargeSession is the state of one Charge call. It is never persisted.
type ChargeSession struct {
	OperationID string
	PaymentID   string
	Step        ChargeStep
	AccountID   int64
	Amount      float64
	Err         error
}

func (s *ChargeSession) fail(err error) error {
	s.Step = StepFailed
	s.Err = err
	return err
}

// ChargeResult is returned when both steps succeeded and the balance was credited
type ChargeResult struct {
	OperationID string  `json:"operationId"`
	PaymentID   string  `json:"paymentId"`
	Amount      float64 `json:"amount"`
}

// Charger runs card/init then card/direct against the account's saved card
type Charger struct {
	cfg      Config
	client   *Client
	accounts provider.AccountStore
	events   provider.EventLogger
	recorder Recorder
	now      func() time.Time
}

// NewCharger creates a saved-card charge orchestrator
func NewCharger(cfg Config, client *Client, accounts provider.AccountStore, events provider.EventLogger, recorder Recorder) *Charger {
	if events == nil {
		events = provider.NopEventLogger{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Charger{
		cfg:      cfg,
		client:   client,
		accounts: accounts,
		events:   events,
		recorder: recorder,
		now:      time.Now,
	}
}

// Charge debits the saved card and credits the balance by amount.
// card/direct is only called after an ok card/init; nothing is retried.
func (c *Charger) Charge(ctx context.Context, accountID int64, amount float64) (*ChargeResult, error) {
	session := &ChargeSession{
		OperationID: NewOperationID(c.now()),
		AccountID:   accountID,
		Amount:      amount,
	}

	err := c.run(ctx, session)
	c.recorder.Charge(chargeOutcome(err))
	if err != nil {
		logger.Warn("Saved card charge failed", logger.LogContext{
			Provider:  providerName,
			AccountID: accountID,
			Fields: map[string]any{
				"operation_id": session.OperationID,
				"payment_id":   session.PaymentID,
				"step":         string(session.Step),
				"error":        err.Error(),
			},
		})
		return nil, err
	}

	return &ChargeResult{
		OperationID: session.OperationID,
		PaymentID:   session.PaymentID,
		Amount:      session.Amount,
	}, nil
}

func (c *Charger) run(ctx context.Context, s *ChargeSession) error {
	if s.Amount <= 0 {
		return s.fail(ErrInvalidAmount)
	}

	account, err := c.accounts.FindAccountByID(ctx, s.AccountID)
	if errors.Is(err, provider.ErrNotFound) {
		return s.fail(ErrAccountNotFound)
	}
	if err != nil {
		return s.fail(fmt.Errorf("%w: %w", ErrInternal, err))
	}
	if !account.Card.Usable() {
		return s.fail(ErrNoCardOnFile)
	}

	if err := c.initiate(ctx, s, account.Card.Token); err != nil {
		return s.fail(err)
	}
	if err := c.confirm(ctx, s); err != nil {
		return s.fail(err)
	}

	if err := c.accounts.UpdateBalance(ctx, s.AccountID, s.Amount); err != nil {
		logger.Error("Charge confirmed by provider but balance update failed", err, logger.LogContext{
			Provider:  providerName,
			AccountID: s.AccountID,
			Fields:    map[string]any{"payment_id": s.PaymentID, "amount": s.Amount},
		})
		return s.fail(fmt.Errorf("%w: credit confirmed payment %s: %w", ErrInternal, s.PaymentID, err))
	}
	return nil
}

// initiate runs card/init and records the payment id on the session
func (c *Charger) initiate(ctx context.Context, s *ChargeSession, cardToken string) error {
	params, err := CardInitRequest(c.cfg.MerchantID, s.Amount, s.OperationID, s.AccountID, cardToken, c.cfg.description(), c.cfg.SecretKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	start := time.Now()
	fields, err := c.client.CardInit(ctx, params)
	c.logStep(ctx, provider.EventCardInit, s, fields, err, time.Since(start))
	if err != nil {
		return err
	}

	if fields["pg_status"] != "ok" {
		return InitiationFailed(fields["pg_error_description"])
	}
	paymentID := fields["pg_payment_id"]
	if paymentID == "" {
		return ProtocolViolation("card/init ok without pg_payment_id")
	}

	s.PaymentID = paymentID
	s.Step = StepInitiated
	return nil
}

// confirm runs card/direct for the initiated payment
func (c *Charger) confirm(ctx context.Context, s *ChargeSession) error {
	params, err := CardDirectRequest(c.cfg.MerchantID, s.PaymentID, c.cfg.SecretKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	start := time.Now()
	fields, err := c.client.CardDirect(ctx, params)
	c.logStep(ctx, provider.EventCardDirect, s, fields, err, time.Since(start))
	if err != nil {
		return err
	}

	status := fields["pg_transaction_status"]
	if status == "" {
		status = fields["pg_status"]
	}
	if status != "ok" || fields["pg_status"] == "error" {
		return ChargeDeclined(fields["pg_error_description"])
	}

	s.Step = StepConfirmed
	return nil
}

func (c *Charger) logStep(ctx context.Context, kind provider.EventKind, s *ChargeSession, fields map[string]string, err error, elapsed time.Duration) {
	event := provider.Event{
		Kind:         kind,
		Provider:     providerName,
		OperationID:  s.OperationID,
		PaymentID:    s.PaymentID,
		AccountID:    s.AccountID,
		Amount:       s.Amount,
		Status:       statusOf(fields),
		ProcessingMs: elapsed.Milliseconds(),
	}
	if id := fields["pg_payment_id"]; id != "" {
		event.PaymentID = id
	}
	if err != nil {
		event.Status = "error"
		event.Error = err.Error()
	}
	if logErr := c.events.LogEvent(ctx, event); logErr != nil {
		logger.Warn("Failed to record charge event", logger.LogContext{
			Provider: providerName,
			Fields:   map[string]any{"error": logErr.Error()},
		})
	}
}

func chargeOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrNoCardOnFile), errors.Is(err, ErrInvalidAmount):
		return "rejected"
	case errors.Is(err, ErrInitiationFailed):
		return "initiation_failed"
	case errors.Is(err, ErrChargeDeclined):
		return "declined"
	case errors.Is(err, ErrNetwork):
		return "network_error"
	case errors.Is(err, ErrProtocolViolation):
		return "protocol_violation"
	default:
		return "internal_error"
	}
}
