package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstgnz/paybox/infra/conn"
	"github.com/mstgnz/paybox/provider"
)

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, conn.DriverPostgres), mock
}

func TestPostgres_UpdateBalanceUsesNumberedPlaceholders(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET balance = balance + $1 WHERE id = $2`)).
		WithArgs(500.0, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpdateBalance(context.Background(), 7, 500))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateBalanceNoRows(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET balance`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateBalance(context.Background(), 7, 500)
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestPostgres_Claim(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"first_claim", 1, true},
		{"replay", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStorage(t)

			mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (claim_key) DO NOTHING`)).
				WithArgs("legacy:1", "pay-1", sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			claimed, err := s.Claim(context.Background(), "legacy:1", "pay-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, claimed)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgres_FindAccountByEmail(t *testing.T) {
	s, mock := newMockStorage(t)

	rows := sqlmock.NewRows([]string{"id", "email", "phone", "balance", "card_token", "card_id", "card_last4", "created_at"}).
		AddRow(int64(3), "a@b.com", nil, 100.0, "tok", "c1", "1111", time.Now())

	mock.ExpectQuery(regexp.QuoteMeta(`FROM accounts WHERE email = $1`)).
		WithArgs("a@b.com").
		WillReturnRows(rows)

	account, err := s.FindAccountByEmail(context.Background(), " A@B.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3), account.ID)
	assert.Empty(t, account.Phone)
	require.NotNil(t, account.Card)
	assert.Equal(t, "1111", *account.Card.Last4)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindOrderNotFound(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.FindOrderByID(context.Background(), "missing")
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestPostgres_ReleaseError(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM applied_callbacks WHERE claim_key = $1`)).
		WithArgs("legacy:1").
		WillReturnError(errors.New("connection refused"))

	err := s.Release(context.Background(), "legacy:1")
	assert.ErrorContains(t, err, "connection refused")
}
