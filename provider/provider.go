package provider

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a record does not exist
var ErrNotFound = errors.New("record not found")

// Outcome is the payment result reported by the provider
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// OrderStatus represents the lifecycle state of a payment order
type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderPaid    OrderStatus = "paid"
	OrderFailed  OrderStatus = "failed"
)

// SavedCard is a tokenized reference to a card used in an earlier payment
type SavedCard struct {
	Token  string  `json:"-"`
	CardID string  `json:"cardId"`
	Last4  *string `json:"last4,omitempty"`
}

// Usable reports whether the card can be charged.
// A card without token or card id means "no card on file".
func (c *SavedCard) Usable() bool {
	return c != nil && c.Token != "" && c.CardID != ""
}

// Account is the client record whose balance is topped up
type Account struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	Balance   float64    `json:"balance"`
	Card      *SavedCard `json:"card,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Order records an outbound payment initiation
type Order struct {
	ID        string      `json:"id"`
	AccountID int64       `json:"accountId"`
	PaymentID string      `json:"paymentId,omitempty"`
	Amount    float64     `json:"amount"`
	Currency  string      `json:"currency"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

// PaymentIntent describes a payment about to be initiated
type PaymentIntent struct {
	OperationID string  `json:"operationId,omitempty"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Email       string  `json:"email,omitempty"`
	Phone       string  `json:"phone,omitempty"`
}

// CallbackResult is what a verified callback payload says happened
type CallbackResult struct {
	OperationID       string     `json:"operationId"`
	ProviderPaymentID string     `json:"providerPaymentId,omitempty"`
	Outcome           Outcome    `json:"outcome"`
	Amount            float64    `json:"amount"`
	Currency          string     `json:"currency,omitempty"`
	PayerEmail        string     `json:"payerEmail,omitempty"`
	Card              *SavedCard `json:"card,omitempty"`
}

// AccountStore is the account persistence the gateway depends on
type AccountStore interface {
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)
	FindAccountByID(ctx context.Context, id int64) (*Account, error)
	UpdateBalance(ctx context.Context, accountID int64, delta float64) error
	// UpdateSavedCard replaces the account's card; a nil card deletes it.
	UpdateSavedCard(ctx context.Context, accountID int64, card *SavedCard) error
}

// OrderStore persists payment orders
type OrderStore interface {
	SaveOrder(ctx context.Context, order *Order) error
	FindOrderByID(ctx context.Context, id string) (*Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status OrderStatus) error
}

// CallbackLedger records which callbacks have already been applied.
// Claim must be atomic: exactly one concurrent caller for a key gets true.
type CallbackLedger interface {
	Claim(ctx context.Context, key, paymentID string) (bool, error)
	Release(ctx context.Context, key string) error
}
