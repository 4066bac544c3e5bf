package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/clawplay/platform/internal/kafka"
	"github.com/clawplay/platform/internal/model"
	"github.com/jmoiron/sqlx"
)

// Analytics consumes credit events from Kafka and batch-inserts them into
// ClickHouse. The stream is best-effort: a crash between commit and flush can
// drop a batch, which is acceptable for analytics rows.
type Analytics struct {
	CH       *sqlx.DB
	Consumer *kafka.Consumer

	BatchSize int           // max buffered events per flush
	BatchWait time.Duration // max time to wait before flush
}

func NewAnalytics(ch *sqlx.DB, consumer *kafka.Consumer, batchSize int, batchWait time.Duration) *Analytics {
	if batchSize <= 0 {
		batchSize = 200
	}
	if batchWait <= 0 {
		batchWait = 300 * time.Millisecond
	}
	return &Analytics{
		CH:        ch,
		Consumer:  consumer,
		BatchSize: batchSize,
		BatchWait: batchWait,
	}
}

const insertEventQuery = `
INSERT INTO credit_events
    (id, user_id, amount, type, source, agent_id, new_balance, occurred_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// Run blocks until ctx is cancelled, flushing on size or tick.
func (w *Analytics) Run(ctx context.Context) error {
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	events := make(chan model.CreditEvent, w.BatchSize*2)

	// Fetcher goroutine: decode, buffer, commit.
	go func() {
		defer close(events)
		for {
			m, err := w.Consumer.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[analytics] kafka fetch err: %v", err)
				time.Sleep(200 * time.Millisecond)
				continue
			}

			var ev model.CreditEvent
			if err := json.Unmarshal(m.Value, &ev); err != nil || ev.ID == "" {
				// poison message: commit and skip
				_ = w.Consumer.Commit(ctx, m)
				log.Printf("[analytics] bad event json: %v", err)
				continue
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
			if err := w.Consumer.Commit(ctx, m); err != nil {
				log.Printf("[analytics] commit err: %v", err)
			}
		}
	}()

	buf := make([]model.CreditEvent, 0, w.BatchSize)

	flush := func() {
		if len(buf) == 0 {
			return
		}
		if err := w.insertBatch(ctx, buf); err != nil {
			log.Printf("[analytics] flush err (%d events dropped): %v", len(buf), err)
		} else {
			log.Printf("[analytics] flushed %d events", len(buf))
		}
		buf = buf[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return nil

		case ev, ok := <-events:
			if !ok {
				flush()
				return nil
			}
			buf = append(buf, ev)
			if len(buf) >= w.BatchSize {
				flush()
			}

		case <-tick.C:
			flush()
		}
	}
}

// insertBatch uses the clickhouse-go batch protocol: one prepared statement
// per tx, one Exec per row, commit sends the block.
func (w *Analytics) insertBatch(ctx context.Context, events []model.CreditEvent) error {
	tx, err := w.CH.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, insertEventQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			ev.ID, ev.UserID, ev.Amount, string(ev.Type), ev.Source,
			ev.AgentID, ev.NewBalance, ev.OccurredAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}
