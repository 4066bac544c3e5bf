package model

import (
	"encoding/json"
	"time"
)

type TransactionType string

const (
	TxEarn       TransactionType = "earn"
	TxSpend      TransactionType = "spend"
	TxBonus      TransactionType = "bonus"
	TxAdjustment TransactionType = "adjustment"
)

func (t TransactionType) String() string { return string(t) }

func (t TransactionType) Valid() bool {
	return t == TxEarn || t == TxSpend || t == TxBonus || t == TxAdjustment
}

// CreditAccount mirrors one row of user_credits. Balance bookkeeping is owned
// by the store's atomic procedures; this side only reads it.
type CreditAccount struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Balance     int64     `db:"balance"`
	TotalEarned int64     `db:"total_earned"`
	TotalSpent  int64     `db:"total_spent"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// CreditBalance is the read-model returned to callers. An owner with no
// account row yet has an implicit zero balance.
type CreditBalance struct {
	Balance     int64 `db:"balance" json:"balance"`
	TotalEarned int64 `db:"total_earned" json:"total_earned"`
	TotalSpent  int64 `db:"total_spent" json:"total_spent"`
}

// CreditTransaction is an append-only audit row, one per balance mutation.
type CreditTransaction struct {
	ID           string          `db:"id" json:"id"`
	UserID       string          `db:"user_id" json:"user_id"`
	Amount       int64           `db:"amount" json:"amount"` // signed: earn/bonus > 0, spend/adjustment < 0
	Type         TransactionType `db:"type" json:"type"`
	Source       string          `db:"source" json:"source"`
	SourceDetail json.RawMessage `db:"source_detail" json:"source_detail"`
	AgentID      *string         `db:"agent_id" json:"agent_id"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// LeaderboardEntry is one row of the public leaderboard, ranked by balance.
type LeaderboardEntry struct {
	Rank        int    `db:"-" json:"rank"`
	UserID      string `db:"user_id" json:"-"`
	DisplayName string `db:"display_name" json:"display_name"`
	Balance     int64  `db:"balance" json:"balance"`
	TotalEarned int64  `db:"total_earned" json:"total_earned"`
	AgentCount  int    `db:"agent_count" json:"agent_count"`
}
