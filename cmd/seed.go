package cmd

import (
	"fmt"
	"log"

	"github.com/clawplay/platform/internal/config"
	"github.com/clawplay/platform/internal/db"
	"github.com/clawplay/platform/internal/util"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo users and agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		pgDB, err := db.NewPostgresConnection(cfg.Postgres.DSN, db.Opts{
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
			PingTimeout:     cfg.Postgres.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("postgres connect: %w", err)
		}
		defer pgDB.Close()

		log.Println(">> Seeding demo users and agents...")

		if err := seedUsers(pgDB); err != nil {
			return err
		}
		if err := seedAgents(pgDB); err != nil {
			return err
		}
		if err := ensureCreditAccounts(pgDB); err != nil {
			return err
		}

		log.Println(">> Seed completed ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

type demoUser struct {
	id   string
	name string
}

type demoAgent struct {
	id     string
	name   string
	token  string // raw token, printed once; only the hash is stored
	userID string // empty = unclaimed
}

var demoUsers = []demoUser{
	{id: "00000000-0000-0000-0000-000000000001", name: "Ada"},
	{id: "00000000-0000-0000-0000-000000000002", name: "Grace"},
	{id: "00000000-0000-0000-0000-000000000003", name: "Linus"},
}

var demoAgents = []demoAgent{
	{id: "10000000-0000-0000-0000-000000000001", name: "ada-trader", token: "clawplay_demo_ada_trader", userID: demoUsers[0].id},
	{id: "10000000-0000-0000-0000-000000000002", name: "grace-bot", token: "clawplay_demo_grace_bot", userID: demoUsers[1].id},
	{id: "10000000-0000-0000-0000-000000000003", name: "drifter", token: "clawplay_demo_drifter", userID: ""},
}

// seedUsers upserts deterministic demo users (idempotent).
func seedUsers(dbx *sqlx.DB) error {
	const q = `
INSERT INTO users (id, display_name)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name`

	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range demoUsers {
		if _, err := tx.Exec(q, u.id, u.name); err != nil {
			return fmt.Errorf("insert user %q: %w", u.name, err)
		}
	}
	return tx.Commit()
}

// seedAgents upserts claim-token rows keyed by name. Tokens are deterministic
// so the demo apps can authenticate; real tokens never appear in the DB.
func seedAgents(dbx *sqlx.DB) error {
	const q = `
INSERT INTO user_claim_tokens (id, name, user_id, token_hash)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE SET
    user_id    = EXCLUDED.user_id,
    token_hash = EXCLUDED.token_hash`

	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, a := range demoAgents {
		var userID any
		if a.userID != "" {
			userID = a.userID
		}
		if _, err := tx.Exec(q, a.id, a.name, userID, util.HashToken(a.token)); err != nil {
			return fmt.Errorf("insert agent %q: %w", a.name, err)
		}
		log.Printf("   agent %-12s token=%s", a.name, a.token)
	}
	return tx.Commit()
}

// ensureCreditAccounts creates zero-balance accounts for claimed demo users.
func ensureCreditAccounts(dbx *sqlx.DB) error {
	const q = `
INSERT INTO user_credits (user_id, balance, total_earned, total_spent)
SELECT u.id, 0, 0, 0
FROM users u
LEFT JOIN user_credits c ON c.user_id = u.id
WHERE c.user_id IS NULL`

	if _, err := dbx.Exec(q); err != nil {
		return fmt.Errorf("ensure credit accounts: %w", err)
	}
	return nil
}
