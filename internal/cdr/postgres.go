package cdr

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlCallRecords = `
CREATE TABLE IF NOT EXISTS call_records (
    id            BIGSERIAL    PRIMARY KEY,
    call_id       TEXT         NOT NULL,
    started_at    TIMESTAMPTZ  NOT NULL,
    ended_at      TIMESTAMPTZ  NOT NULL,
    duration_ns   BIGINT       NOT NULL DEFAULT 0,
    speech_ns     BIGINT       NOT NULL DEFAULT 0,
    stt_calls     INTEGER      NOT NULL DEFAULT 0,
    llm_calls     INTEGER      NOT NULL DEFAULT 0,
    tts_calls     INTEGER      NOT NULL DEFAULT 0,
    dtmf_digits   INTEGER      NOT NULL DEFAULT 0,
    features_used TEXT[]       NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_call_records_call_id
    ON call_records (call_id);

CREATE INDEX IF NOT EXISTS idx_call_records_started_at
    ON call_records (started_at);
`

// Compile-time interface check.
var _ Store = (*Postgres)(nil)

// Postgres is a Store backed by a call_records table. Safe for concurrent
// use.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database at dsn and ensures the call_records
// schema exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cdr: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cdr: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlCallRecords); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cdr: migrate: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// WriteCall implements Store.
func (p *Postgres) WriteCall(ctx context.Context, r Record) error {
	const q = `
		INSERT INTO call_records
		    (call_id, started_at, ended_at, duration_ns, speech_ns,
		     stt_calls, llm_calls, tts_calls, dtmf_digits, features_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	features := r.FeaturesUsed
	if features == nil {
		features = []string{}
	}

	_, err := p.pool.Exec(ctx, q,
		r.CallID,
		r.StartedAt,
		r.EndedAt,
		r.Duration.Nanoseconds(),
		r.SpeechDuration.Nanoseconds(),
		r.STTCalls,
		r.LLMCalls,
		r.TTSCalls,
		r.DTMFDigits,
		features,
	)
	if err != nil {
		return fmt.Errorf("cdr: write call: %w", err)
	}
	return nil
}

// Ping verifies database connectivity. Used by the readiness probe.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("cdr: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
