package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mstgnz/paybox/infra/conn"
	"github.com/mstgnz/paybox/infra/logger"
	"github.com/mstgnz/paybox/provider"
)

// Storage is the SQL persistence for accounts, orders and the callback ledger.
// The same queries serve sqlite and postgres; placeholders are rebound per driver.
type Storage struct {
	db     *sql.DB
	driver string
}

// New wraps an open database. The schema must already exist.
func New(db *sql.DB, driver string) *Storage {
	return &Storage{db: db, driver: driver}
}

// DB returns the underlying handle
func (s *Storage) DB() *sql.DB {
	return s.db
}

// Driver returns the database/sql driver name
func (s *Storage) Driver() string {
	return s.driver
}

// Ping checks the database connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) q(query string) string {
	return conn.Rebind(s.driver, query)
}

// retryOperation retries an operation while sqlite reports the database as busy
func (s *Storage) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}

		lastErr = err
		if attempt < maxRetries {
			// 10ms, 20ms, 40ms...
			backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
			logger.Debug("Database busy, retrying", logger.LogContext{
				Fields: map[string]any{"backoff": backoff.String(), "attempt": attempt + 1},
			})
			time.Sleep(backoff)
		}
	}

	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// NormalizeEmail trims and lowercases an email for matching
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount inserts a new account with a zero balance
func (s *Storage) CreateAccount(ctx context.Context, email, phone string) (*provider.Account, error) {
	account := &provider.Account{
		Email:     NormalizeEmail(email),
		Phone:     phone,
		CreatedAt: time.Now().UTC(),
	}

	err := s.retryOperation(func() error {
		query := s.q(`INSERT INTO accounts (email, phone, balance, created_at) VALUES (?, ?, 0, ?) RETURNING id`)
		return s.db.QueryRowContext(ctx, query, account.Email, account.Phone, account.CreatedAt).Scan(&account.ID)
	}, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

const accountColumns = `id, email, phone, balance, card_token, card_id, card_last4, created_at`

func scanAccount(row *sql.Row) (*provider.Account, error) {
	var (
		account                  provider.Account
		phone                    sql.NullString
		token, cardID, cardLast4 sql.NullString
	)

	err := row.Scan(&account.ID, &account.Email, &phone, &account.Balance, &token, &cardID, &cardLast4, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, provider.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	account.Phone = phone.String
	if token.Valid || cardID.Valid {
		card := &provider.SavedCard{Token: token.String, CardID: cardID.String}
		if cardLast4.Valid {
			last4 := cardLast4.String
			card.Last4 = &last4
		}
		account.Card = card
	}

	return &account, nil
}

// FindAccountByEmail matches the trimmed, lowercased email
func (s *Storage) FindAccountByEmail(ctx context.Context, email string) (*provider.Account, error) {
	query := s.q(`SELECT ` + accountColumns + ` FROM accounts WHERE email = ?`)
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, NormalizeEmail(email)))
	if err != nil && !errors.Is(err, provider.ErrNotFound) {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	return account, err
}

// FindAccountByID loads an account by primary key
func (s *Storage) FindAccountByID(ctx context.Context, id int64) (*provider.Account, error) {
	query := s.q(`SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`)
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, provider.ErrNotFound) {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return account, err
}

// UpdateBalance adds delta to the balance in a single statement
func (s *Storage) UpdateBalance(ctx context.Context, accountID int64, delta float64) error {
	return s.retryOperation(func() error {
		query := s.q(`UPDATE accounts SET balance = balance + ? WHERE id = ?`)
		result, err := s.db.ExecContext(ctx, query, delta, accountID)
		if err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}
		return expectOneRow(result)
	}, 3)
}

// UpdateSavedCard replaces the saved card; nil clears it
func (s *Storage) UpdateSavedCard(ctx context.Context, accountID int64, card *provider.SavedCard) error {
	var token, cardID, last4 any
	if card != nil {
		token, cardID = card.Token, card.CardID
		if card.Last4 != nil {
			last4 = *card.Last4
		}
	}

	return s.retryOperation(func() error {
		query := s.q(`UPDATE accounts SET card_token = ?, card_id = ?, card_last4 = ? WHERE id = ?`)
		result, err := s.db.ExecContext(ctx, query, token, cardID, last4, accountID)
		if err != nil {
			return fmt.Errorf("failed to update saved card: %w", err)
		}
		return expectOneRow(result)
	}, 3)
}

func expectOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return provider.ErrNotFound
	}
	return nil
}

// SaveOrder inserts an order or updates its payment id and status
func (s *Storage) SaveOrder(ctx context.Context, order *provider.Order) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.Status == "" {
		order.Status = provider.OrderPending
	}

	return s.retryOperation(func() error {
		query := s.q(`
			INSERT INTO orders (id, account_id, payment_id, amount, currency, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				payment_id = excluded.payment_id,
				status = excluded.status
		`)
		_, err := s.db.ExecContext(ctx, query, order.ID, order.AccountID, order.PaymentID,
			order.Amount, order.Currency, string(order.Status), order.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}
		return nil
	}, 3)
}

// FindOrderByID loads an order by its operation id
func (s *Storage) FindOrderByID(ctx context.Context, id string) (*provider.Order, error) {
	query := s.q(`SELECT id, account_id, payment_id, amount, currency, status, created_at FROM orders WHERE id = ?`)

	var (
		order  provider.Order
		status string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&order.ID, &order.AccountID, &order.PaymentID,
		&order.Amount, &order.Currency, &status, &order.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, provider.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	order.Status = provider.OrderStatus(status)
	return &order, nil
}

// UpdateOrderStatus sets the status of an existing order
func (s *Storage) UpdateOrderStatus(ctx context.Context, id string, status provider.OrderStatus) error {
	return s.retryOperation(func() error {
		query := s.q(`UPDATE orders SET status = ? WHERE id = ?`)
		result, err := s.db.ExecContext(ctx, query, string(status), id)
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		return expectOneRow(result)
	}, 3)
}

// Claim records a callback as applied. Only the first caller for a key gets true.
func (s *Storage) Claim(ctx context.Context, key, paymentID string) (bool, error) {
	var claimed bool
	err := s.retryOperation(func() error {
		query := s.q(`
			INSERT INTO applied_callbacks (claim_key, payment_id, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT (claim_key) DO NOTHING
		`)
		result, err := s.db.ExecContext(ctx, query, key, paymentID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to claim callback: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		claimed = affected == 1
		return nil
	}, 3)
	return claimed, err
}

// Release removes a claim so the callback can be applied again
func (s *Storage) Release(ctx context.Context, key string) error {
	return s.retryOperation(func() error {
		query := s.q(`DELETE FROM applied_callbacks WHERE claim_key = ?`)
		if _, err := s.db.ExecContext(ctx, query, key); err != nil {
			return fmt.Errorf("failed to release callback claim: %w", err)
		}
		return nil
	}, 3)
}

var (
	_ provider.AccountStore   = (*Storage)(nil)
	_ provider.OrderStore     = (*Storage)(nil)
	_ provider.CallbackLedger = (*Storage)(nil)
)
