package db

import (
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// NewPostgresConnection opens the ledger database. The earn/grant SQL
// functions live here, so this connection backs every balance mutation.
func NewPostgresConnection(dsn string, opts Opts) (*sqlx.DB, error) {
	return openSQL("postgres", dsn, opts)
}
