package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/clawplay/platform/internal/model"
	"github.com/jmoiron/sqlx"
)

// CreditsRepository is the durable credit store. The two mutations call the
// store-side earn_credit / grant_bonus_credit SQL functions, which perform
// the account upsert, balance adjustment, and transaction insert as one
// atomic unit and return the new balance. No client-side locking or retries.
type CreditsRepository interface {
	EarnCredit(ctx context.Context, userID string, amount int64, source string, detail map[string]any, agentID string) (int64, error)
	GrantBonusCredit(ctx context.Context, userID string, amount int64, source string, detail map[string]any, agentID string) (int64, error)
	GetAccount(ctx context.Context, userID string) (*model.CreditAccount, error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.CreditTransaction, error)
	CountTransactions(ctx context.Context, userID string) (int64, error)
	Leaderboard(ctx context.Context, limit, offset int) ([]model.LeaderboardEntry, int64, error)
}

type CreditsRepositoryImpl struct {
	db *sqlx.DB
}

func NewCreditsRepository(db *sqlx.DB) *CreditsRepositoryImpl {
	return &CreditsRepositoryImpl{db: db}
}

var _ CreditsRepository = (*CreditsRepositoryImpl)(nil)

func marshalDetail(detail map[string]any) ([]byte, error) {
	if detail == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(detail)
}

// nullableID maps the empty string to SQL NULL for optional agent references.
func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

func (r *CreditsRepositoryImpl) EarnCredit(ctx context.Context, userID string, amount int64, source string, detail map[string]any, agentID string) (int64, error) {
	raw, err := marshalDetail(detail)
	if err != nil {
		return 0, fmt.Errorf("marshal source detail: %w", err)
	}

	var balance int64
	err = r.db.GetContext(ctx, &balance,
		`SELECT earn_credit($1, $2, $3, $4, $5)`,
		userID, amount, source, raw, nullableID(agentID),
	)
	if err != nil {
		return 0, fmt.Errorf("earn_credit: %w", err)
	}
	return balance, nil
}

func (r *CreditsRepositoryImpl) GrantBonusCredit(ctx context.Context, userID string, amount int64, source string, detail map[string]any, agentID string) (int64, error) {
	raw, err := marshalDetail(detail)
	if err != nil {
		return 0, fmt.Errorf("marshal source detail: %w", err)
	}

	var balance int64
	err = r.db.GetContext(ctx, &balance,
		`SELECT grant_bonus_credit($1, $2, $3, $4, $5)`,
		userID, amount, source, raw, nullableID(agentID),
	)
	if err != nil {
		return 0, fmt.Errorf("grant_bonus_credit: %w", err)
	}
	return balance, nil
}

// GetAccount returns nil, nil when the owner has no account row yet; the row
// is materialized by the first successful mutation, not by reads.
func (r *CreditsRepositoryImpl) GetAccount(ctx context.Context, userID string) (*model.CreditAccount, error) {
	var acc model.CreditAccount
	err := r.db.GetContext(ctx, &acc, `
		SELECT id, user_id, balance, total_earned, total_spent, created_at, updated_at
		  FROM user_credits
		 WHERE user_id = $1
	`, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *CreditsRepositoryImpl) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.CreditTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var rows []model.CreditTransaction
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, amount, type, source, source_detail, agent_id, created_at
		  FROM credit_transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CreditsRepositoryImpl) CountTransactions(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM credit_transactions WHERE user_id = $1`, userID)
	return n, err
}

// Leaderboard returns a page of owners ranked by balance, with agent counts,
// plus the total number of accounts. Rank is filled in by the caller from the
// page offset.
func (r *CreditsRepositoryImpl) Leaderboard(ctx context.Context, limit, offset int) ([]model.LeaderboardEntry, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var entries []model.LeaderboardEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT c.user_id,
		       COALESCE(u.display_name, 'Unknown') AS display_name,
		       c.balance,
		       c.total_earned,
		       COUNT(a.id) AS agent_count
		  FROM user_credits c
		  LEFT JOIN users u ON u.id = c.user_id
		  LEFT JOIN user_claim_tokens a ON a.user_id = c.user_id
		 GROUP BY c.user_id, u.display_name, c.balance, c.total_earned
		 ORDER BY c.balance DESC
		 LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM user_credits`); err != nil {
		return nil, 0, err
	}

	for i := range entries {
		entries[i].Rank = offset + i + 1
	}
	return entries, total, nil
}
