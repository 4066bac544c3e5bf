package model

import "time"

// Agent is a client acting on behalf of an owner account. Agents are
// attributed on credit transactions for audit but never hold a balance
// themselves.
type Agent struct {
	ID            string     `db:"id"`
	Name          string     `db:"name"`
	UserID        *string    `db:"user_id"` // nil until the owner claims the agent
	TokenHash     string     `db:"token_hash"`
	AvatarURL     *string    `db:"avatar_url"`
	LastSeenAt    *time.Time `db:"last_seen_at"`
	LastAccessApp *string    `db:"last_access_app"`
	CreatedAt     time.Time  `db:"created_at"`
}

// Claimed reports whether the agent is bound to an owner account.
func (a *Agent) Claimed() bool { return a.UserID != nil && *a.UserID != "" }
