package paybox

import (
	"errors"
	"fmt"
)

var (
	ErrSignatureMismatch = errors.New("paybox: signature mismatch")
	ErrUnknownOrder      = errors.New("paybox: unknown order")
	ErrAccountNotFound   = errors.New("paybox: account not found")
	ErrNoCardOnFile      = errors.New("paybox: no card on file")
	ErrInitiationFailed  = errors.New("paybox: initiation failed")
	ErrProtocolViolation = errors.New("paybox: protocol violation")
	ErrChargeDeclined    = errors.New("paybox: charge declined")
	ErrNetwork           = errors.New("paybox: network error")
	ErrInternal          = errors.New("paybox: internal error")
	ErrInvalidAmount     = errors.New("paybox: amount must be positive")
)

// ProviderError carries the provider's own message for a failure kind.
// errors.Is matches it against its Kind.
type ProviderError struct {
	Kind    error
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Kind
}

// InitiationFailed reports a non-ok answer to an initiating request
func InitiationFailed(message string) error {
	return &ProviderError{Kind: ErrInitiationFailed, Message: message}
}

// ChargeDeclined reports a non-ok answer to card/direct
func ChargeDeclined(message string) error {
	return &ProviderError{Kind: ErrChargeDeclined, Message: message}
}

// ProtocolViolation reports an ok answer missing a required field
func ProtocolViolation(message string) error {
	return &ProviderError{Kind: ErrProtocolViolation, Message: message}
}

func networkError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrNetwork, op, err)
}

// ProviderMessage extracts the provider's message from err, if any
func ProviderMessage(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return ""
}
