package events

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresJournal persists messages in the ledger_events table.
type PostgresJournal struct {
	pool *pgxpool.Pool
}

const createEventsTableSQL = `
CREATE TABLE IF NOT EXISTS ledger_events (
    seq BIGINT PRIMARY KEY,
    kind TEXT NOT NULL,
    recipient TEXT NOT NULL,
    amount TEXT NOT NULL,
    tax TEXT NOT NULL DEFAULT '',
    at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS ledger_events_recipient_idx ON ledger_events (recipient);
`

func NewPostgresJournal(ctx context.Context, dsn string) (*PostgresJournal, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createEventsTableSQL); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresJournal{pool: pool}, nil
}

func (p *PostgresJournal) Name() string { return "postgres" }

func (p *PostgresJournal) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresJournal) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Publish inserts messages in one batch. Sequence numbers already stored
// are skipped so a retried batch is harmless.
func (p *PostgresJournal) Publish(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range msgs {
		batch.Queue(`
INSERT INTO ledger_events (seq, kind, recipient, amount, tax, at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (seq) DO NOTHING
`, int64(m.Seq), m.Kind, m.Recipient, m.Amount, m.Tax, m.At)
	}
	return p.pool.SendBatch(ctx, batch).Close()
}

func (p *PostgresJournal) List(ctx context.Context, since uint64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := p.pool.Query(ctx, `
SELECT seq, kind, recipient, amount, tax, at
FROM ledger_events
WHERE seq > $1
ORDER BY seq
LIMIT $2
`, int64(since), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		var (
			m   Message
			seq int64
		)
		if err := rows.Scan(&seq, &m.Kind, &m.Recipient, &m.Amount, &m.Tax, &m.At); err != nil {
			return nil, err
		}
		m.Seq = uint64(seq)
		m.At = m.At.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// LastSeq returns the highest stored sequence number, or zero.
func (p *PostgresJournal) LastSeq(ctx context.Context) (uint64, error) {
	var seq int64
	err := p.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM ledger_events`).Scan(&seq)
	return uint64(seq), err
}
