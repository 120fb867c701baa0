// Package db is the optional Postgres audit store for finished analysis
// jobs. The engine never reads these rows back; in-memory state stays the
// source of truth.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/abhinav-singh-5383/rift-money-mulling/internal/jobs"
	"github.com/abhinav-singh-5383/rift-money-mulling/pkg/models"
)

// schemaSQL is compiled into the binary so schema init works from any
// working directory.
//
//go:embed schema.sql
var schemaSQL string

const saveTimeout = 10 * time.Second

type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Connect opens the pool and pings it, retrying with exponential backoff
// for up to timeout.
func Connect(ctx context.Context, connStr string, timeout time.Duration) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	logger := log.With().Str("component", "db").Logger()

	var pool *pgxpool.Pool
	operation := func() error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create pool: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			logger.Warn().Err(err).Msg("postgres not reachable yet")
			return fmt.Errorf("ping: %w", err)
		}
		pool = p
		return nil
	}

	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = timeout
	if err := backoff.Retry(operation, backoff.WithContext(strategy, ctx)); err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	logger.Info().Str("host", cfg.ConnConfig.Host).Msg("connected to postgres")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %w", err)
	}
	s.logger.Info().Msg("audit schema initialized")
	return nil
}

// SaveJobOutcome writes a terminal job, its rings and its suspicious
// accounts in one transaction. Saving the same job twice replaces it.
func (s *PostgresStore) SaveJobOutcome(ctx context.Context, job models.Job) error {
	if !job.Status.Terminal() {
		return fmt.Errorf("job %s is still %s", job.JobID, job.Status)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := newJobRow(job)
	_, err = tx.Exec(ctx, `
		INSERT INTO analysis_jobs
		(job_id, status, error_detail, created_at, completed_at, total_accounts,
		 total_transactions, suspicious_accounts, fraud_rings, processing_time_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (job_id) DO UPDATE
		SET status = EXCLUDED.status, error_detail = EXCLUDED.error_detail,
		    completed_at = EXCLUDED.completed_at, total_accounts = EXCLUDED.total_accounts,
		    total_transactions = EXCLUDED.total_transactions,
		    suspicious_accounts = EXCLUDED.suspicious_accounts,
		    fraud_rings = EXCLUDED.fraud_rings,
		    processing_time_seconds = EXCLUDED.processing_time_seconds;
	`, row.JobID, row.Status, row.ErrorDetail, row.CreatedAt, row.CompletedAt, row.Summary.TotalAccountsAnalyzed,
		row.Summary.TotalTransactions, row.Summary.SuspiciousAccountsFlagged, row.Summary.FraudRingsDetected,
		row.Summary.ProcessingTimeSeconds)
	if err != nil {
		return fmt.Errorf("failed to insert analysis_jobs: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM fraud_rings WHERE job_id = $1`, row.JobID)
	batch.Queue(`DELETE FROM suspicious_accounts WHERE job_id = $1`, row.JobID)
	for _, ring := range row.Rings {
		batch.Queue(`
			INSERT INTO fraud_rings (job_id, ring_id, pattern_type, risk_score, member_accounts)
			VALUES ($1, $2, $3, $4, $5)
		`, row.JobID, ring.RingID, string(ring.PatternType), ring.RiskScore, ring.MemberAccounts)
	}
	for _, acc := range row.Accounts {
		batch.Queue(`
			INSERT INTO suspicious_accounts (job_id, account_id, suspicion_score, detected_patterns, ring_id)
			VALUES ($1, $2, $3, $4, $5)
		`, row.JobID, acc.AccountID, acc.SuspicionScore, patternStrings(acc.DetectedPatterns), acc.RingID)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert job details: %w", err)
	}

	return tx.Commit(ctx)
}

// Recorder adapts SaveJobOutcome to a jobs.Manager observer. Failures are
// logged and the job itself is unaffected.
func (s *PostgresStore) Recorder() func(models.Job) {
	return func(job models.Job) {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := s.SaveJobOutcome(ctx, job); err != nil {
			s.logger.Error().Err(err).Str("job_id", job.JobID).Msg("failed to record job outcome")
		}
	}
}

// jobRow is the flattened form of a job as it is stored.
type jobRow struct {
	JobID       string
	Status      string
	ErrorDetail string
	CreatedAt   time.Time
	CompletedAt *time.Time
	Summary     models.Summary
	Rings       []models.FraudRing
	Accounts    []models.SuspiciousAccount
}

func newJobRow(job models.Job) jobRow {
	row := jobRow{
		JobID:       job.JobID,
		Status:      string(job.Status),
		ErrorDetail: job.ErrorDetail,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
	if job.Result != nil {
		report := jobs.BuildReport(job.Result)
		row.Summary = report.Summary
		row.Rings = report.FraudRings
		row.Accounts = report.SuspiciousAccounts
	}
	return row
}

func patternStrings(patterns []models.Pattern) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = string(p)
	}
	return out
}
