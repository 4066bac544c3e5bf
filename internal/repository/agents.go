package repository

import (
	"context"
	"database/sql"

	"github.com/clawplay/platform/internal/model"
	"github.com/jmoiron/sqlx"
)

type AgentsRepository interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (*model.Agent, error)
	GetByName(ctx context.Context, name string) (*model.Agent, error)
	TouchLastSeen(ctx context.Context, agentID, app string) error
}

type AgentsRepositoryImpl struct {
	db *sqlx.DB
}

func NewAgentsRepository(db *sqlx.DB) *AgentsRepositoryImpl {
	return &AgentsRepositoryImpl{db: db}
}

var _ AgentsRepository = (*AgentsRepositoryImpl)(nil)

const agentColumns = `id, name, user_id, token_hash, avatar_url, last_seen_at, last_access_app, created_at`

func (r *AgentsRepositoryImpl) GetByTokenHash(ctx context.Context, tokenHash string) (*model.Agent, error) {
	var a model.Agent
	err := r.db.GetContext(ctx, &a, `
		SELECT `+agentColumns+`
		  FROM user_claim_tokens
		 WHERE token_hash = $1
	`, tokenHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AgentsRepositoryImpl) GetByName(ctx context.Context, name string) (*model.Agent, error) {
	var a model.Agent
	err := r.db.GetContext(ctx, &a, `
		SELECT `+agentColumns+`
		  FROM user_claim_tokens
		 WHERE name = $1
	`, name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// TouchLastSeen records agent activity for the leaderboard's "top agent"
// ordering. Best-effort from callers.
func (r *AgentsRepositoryImpl) TouchLastSeen(ctx context.Context, agentID, app string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_claim_tokens
		   SET last_seen_at = NOW(), last_access_app = $2
		 WHERE id = $1
	`, agentID, app)
	return err
}
