package db

import (
	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
)

// NewClickHouseConnection opens the analytics database, e.g.
// clickhouse://default:@localhost:9000/clawplay?dial_timeout=5s&compress=true.
// Only the analytics worker writes here.
func NewClickHouseConnection(dsn string, opts Opts) (*sqlx.DB, error) {
	return openSQL("clickhouse", dsn, opts)
}
