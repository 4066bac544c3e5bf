package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestEarnCredit_CallsAtomicFunction(t *testing.T) {
	dbx, mock := newMockDB(t)
	repo := NewCreditsRepository(dbx)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT earn_credit($1, $2, $3, $4, $5)`)).
		WithArgs("owner-1", int64(1), "xtrade", []byte(`{"type":"passive_use"}`), "agent-1").
		WillReturnRows(sqlmock.NewRows([]string{"earn_credit"}).AddRow(int64(42)))

	balance, err := repo.EarnCredit(context.Background(), "owner-1", 1, "xtrade",
		map[string]any{"type": "passive_use"}, "agent-1")
	if err != nil {
		t.Fatalf("earn credit: %v", err)
	}
	if balance != 42 {
		t.Fatalf("balance = %d, want 42", balance)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGrantBonusCredit_NilAgentBecomesNull(t *testing.T) {
	dbx, mock := newMockDB(t)
	repo := NewCreditsRepository(dbx)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT grant_bonus_credit($1, $2, $3, $4, $5)`)).
		WithArgs("owner-1", int64(500), "partner-x", []byte(`{"reason":"promo"}`), nil).
		WillReturnRows(sqlmock.NewRows([]string{"grant_bonus_credit"}).AddRow(int64(500)))

	balance, err := repo.GrantBonusCredit(context.Background(), "owner-1", 500, "partner-x",
		map[string]any{"reason": "promo"}, "")
	if err != nil {
		t.Fatalf("grant bonus: %v", err)
	}
	if balance != 500 {
		t.Fatalf("balance = %d, want 500", balance)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetAccount_NoRowsMeansNoAccount(t *testing.T) {
	dbx, mock := newMockDB(t)
	repo := NewCreditsRepository(dbx)

	mock.ExpectQuery(`SELECT id, user_id, balance`).
		WithArgs("owner-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance", "total_earned", "total_spent", "created_at", "updated_at"}))

	acc, err := repo.GetAccount(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc != nil {
		t.Fatalf("expected nil account for missing row, got %+v", acc)
	}
}

func TestGetAccount_MapsRow(t *testing.T) {
	dbx, mock := newMockDB(t)
	repo := NewCreditsRepository(dbx)

	now := time.Now()
	mock.ExpectQuery(`SELECT id, user_id, balance`).
		WithArgs("owner-1").
		WillReturnRows(sqlmock.
			NewRows([]string{"id", "user_id", "balance", "total_earned", "total_spent", "created_at", "updated_at"}).
			AddRow("acc-1", "owner-1", int64(7), int64(10), int64(3), now, now))

	acc, err := repo.GetAccount(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc == nil || acc.Balance != 7 || acc.TotalEarned != 10 || acc.TotalSpent != 3 {
		t.Fatalf("account = %+v, want balance 7 / earned 10 / spent 3", acc)
	}
}

func TestListTransactions_ClampsPagination(t *testing.T) {
	dbx, mock := newMockDB(t)
	repo := NewCreditsRepository(dbx)

	mock.ExpectQuery(`SELECT id, user_id, amount`).
		WithArgs("owner-1", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount", "type", "source", "source_detail", "agent_id", "created_at"}))

	if _, err := repo.ListTransactions(context.Background(), "owner-1", 5000, -3); err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
