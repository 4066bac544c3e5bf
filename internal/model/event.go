package model

import "time"

// CreditEvent is the payload published to Kafka after a successful balance
// mutation. Consumed by the analytics worker.
type CreditEvent struct {
	ID         string          `json:"id"` // event ULID
	UserID     string          `json:"user_id"`
	Amount     int64           `json:"amount"`
	Type       TransactionType `json:"type"`
	Source     string          `json:"source"`
	AgentID    string          `json:"agent_id,omitempty"`
	NewBalance int64           `json:"new_balance"`
	OccurredAt time.Time       `json:"occurred_at"`
}
