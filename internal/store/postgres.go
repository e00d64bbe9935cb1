package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/reputationai/reputation-audit/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const nonTerminal = `('pending', 'processing', 'selection_required')`

// NewPostgres creates a PostgresStore with a connection pool. Statement
// preparation is left to pgx's per-connection statement cache.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS audit_runs (
	id           TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	identity     JSONB NOT NULL,
	candidates   JSONB,
	result       JSONB,
	error_code   TEXT,
	error        TEXT,
	request_ip   TEXT,
	request_user_agent TEXT,
	started_at   TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audit_runs_owner ON audit_runs(owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_runs_status ON audit_runs(status);

CREATE TABLE IF NOT EXISTS audit_queue_limits (
	owner_id         TEXT PRIMARY KEY,
	active_count     INTEGER NOT NULL DEFAULT 0,
	concurrent_limit INTEGER,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS usage_tracking (
	owner_id   TEXT NOT NULL,
	period     TEXT NOT NULL,
	audits_run INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (owner_id, period)
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, ownerID string, identity model.BusinessIdentity, meta model.RequestMeta) (*model.AuditRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	identityJSON, err := json.Marshal(identity)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal identity")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_runs (id, owner_id, status, identity, request_ip, request_user_agent, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, ownerID, string(model.StatusPending), identityJSON, meta.IP, meta.UserAgent, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.AuditRun{
		ID:        id,
		OwnerID:   ownerID,
		Status:    model.StatusPending,
		Identity:  identity,
		RequestIP: meta.IP,
		RequestUA: meta.UserAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

const runColumns = `id, owner_id, status, identity, candidates, result, error_code, error, request_ip, request_user_agent, started_at, completed_at, created_at, updated_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.AuditRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM audit_runs WHERE id = $1`,
		runID,
	)
	run, err := scanPgRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return run, nil
}

func (s *PostgresStore) FindReusableRun(ctx context.Context, ownerID string, identity model.BusinessIdentity) (*model.AuditRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM audit_runs
		 WHERE owner_id = $1 AND status IN `+nonTerminal+`
		   AND ((COALESCE(identity->>'domain', '') <> '' AND identity->>'domain' = $2)
		     OR (COALESCE(identity->>'domain', '') = '' AND $2 = ''
		         AND identity->>'name' = $3 AND COALESCE(identity->>'location', '') = $4))
		 ORDER BY created_at DESC LIMIT 1`,
		ownerID, identity.Domain, identity.Name, identity.Location,
	)
	run, err := scanPgRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find reusable run")
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.AuditRun, error) {
	query := `SELECT ` + runColumns + ` FROM audit_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.OwnerID != "" {
		query += fmt.Sprintf(` AND owner_id = $%d`, argIdx)
		args = append(args, filter.OwnerID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.AuditRun
	for rows.Next() {
		run, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) BeginRun(ctx context.Context, runID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE audit_runs SET status = 'processing', started_at = now(), updated_at = now() WHERE id = $1 AND status = 'pending'`,
		runID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: begin run %s", runID)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) SetRunCandidates(ctx context.Context, runID string, candidates []model.Candidate) error {
	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal candidates")
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE audit_runs SET status = 'selection_required', candidates = $1, updated_at = now() WHERE id = $2 AND status IN `+nonTerminal,
		candidatesJSON, runID,
	)
	return eris.Wrapf(err, "postgres: set run candidates %s", runID)
}

func (s *PostgresStore) ResumeRun(ctx context.Context, runID string, identity model.BusinessIdentity) (bool, error) {
	identityJSON, err := json.Marshal(identity)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal identity")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE audit_runs SET status = 'pending', identity = $1, candidates = NULL, updated_at = now() WHERE id = $2 AND status = 'selection_required'`,
		identityJSON, runID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: resume run %s", runID)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.ScanResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE audit_runs SET status = 'success', result = $1, completed_at = now(), updated_at = now() WHERE id = $2 AND status IN `+nonTerminal,
		resultJSON, runID,
	)
	return eris.Wrapf(err, "postgres: complete run %s", runID)
}

func (s *PostgresStore) FailRun(ctx context.Context, runID, code, message string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE audit_runs SET status = 'error', error_code = $1, error = $2, completed_at = now(), updated_at = now() WHERE id = $3 AND status IN `+nonTerminal,
		code, message, runID,
	)
	return eris.Wrapf(err, "postgres: fail run %s", runID)
}

func (s *PostgresStore) GetQueueLimit(ctx context.Context, ownerID string) (*QueueLimit, error) {
	var ql QueueLimit
	err := s.pool.QueryRow(ctx,
		`SELECT owner_id, active_count, concurrent_limit FROM audit_queue_limits WHERE owner_id = $1`,
		ownerID,
	).Scan(&ql.OwnerID, &ql.ActiveCount, &ql.StoredLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get queue limit")
	}
	return &ql, nil
}

// ReserveSlot atomically claims a concurrency slot for the owner. The row is
// locked for the duration of the transaction so concurrent reservations
// against the same owner serialize; at most limit slots are ever held.
func (s *PostgresStore) ReserveSlot(ctx context.Context, ownerID string, limit int) (bool, int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, 0, eris.Wrap(err, "postgres: reserve slot begin")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO audit_queue_limits (owner_id, active_count, updated_at) VALUES ($1, 0, now()) ON CONFLICT (owner_id) DO NOTHING`,
		ownerID,
	)
	if err != nil {
		return false, 0, eris.Wrap(err, "postgres: reserve slot init row")
	}

	var active int
	err = tx.QueryRow(ctx,
		`SELECT active_count FROM audit_queue_limits WHERE owner_id = $1 FOR UPDATE`,
		ownerID,
	).Scan(&active)
	if err != nil {
		return false, 0, eris.Wrap(err, "postgres: reserve slot lock row")
	}

	if active >= limit {
		if err := tx.Commit(ctx); err != nil {
			return false, 0, eris.Wrap(err, "postgres: reserve slot commit")
		}
		return false, active, nil
	}

	_, err = tx.Exec(ctx,
		`UPDATE audit_queue_limits SET active_count = active_count + 1, updated_at = now() WHERE owner_id = $1`,
		ownerID,
	)
	if err != nil {
		return false, 0, eris.Wrap(err, "postgres: reserve slot increment")
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, eris.Wrap(err, "postgres: reserve slot commit")
	}
	return true, active + 1, nil
}

// ReleaseSlot frees one concurrency slot, flooring at zero so double releases
// never drive the count negative.
func (s *PostgresStore) ReleaseSlot(ctx context.Context, ownerID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE audit_queue_limits SET active_count = GREATEST(active_count - 1, 0), updated_at = now() WHERE owner_id = $1`,
		ownerID,
	)
	return eris.Wrap(err, "postgres: release slot")
}

func (s *PostgresStore) IncrementUsage(ctx context.Context, ownerID, period string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_tracking (owner_id, period, audits_run, updated_at) VALUES ($1, $2, 1, now())
		 ON CONFLICT (owner_id, period) DO UPDATE SET audits_run = usage_tracking.audits_run + 1, updated_at = now()`,
		ownerID, period,
	)
	return eris.Wrap(err, "postgres: increment usage")
}

func (s *PostgresStore) UsageCount(ctx context.Context, ownerID, period string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT audits_run FROM usage_tracking WHERE owner_id = $1 AND period = $2`,
		ownerID, period,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, eris.Wrap(err, "postgres: usage count")
	}
	return count, nil
}

func scanPgRun(row pgx.Row) (*model.AuditRun, error) {
	var r model.AuditRun
	var identityJSON []byte
	var candidatesJSON, resultJSON *[]byte
	var errorCode, errorMsg, requestIP, requestUA *string

	err := row.Scan(&r.ID, &r.OwnerID, &r.Status, &identityJSON, &candidatesJSON, &resultJSON,
		&errorCode, &errorMsg, &requestIP, &requestUA, &r.StartedAt, &r.CompletedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(identityJSON, &r.Identity); err != nil {
		return nil, eris.Wrap(err, "unmarshal identity")
	}
	if candidatesJSON != nil {
		if err := json.Unmarshal(*candidatesJSON, &r.Candidates); err != nil {
			return nil, eris.Wrap(err, "unmarshal candidates")
		}
	}
	if resultJSON != nil {
		r.Result = &model.ScanResult{}
		if err := json.Unmarshal(*resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "unmarshal result")
		}
	}
	if errorCode != nil {
		r.ErrorCode = *errorCode
	}
	if errorMsg != nil {
		r.Error = *errorMsg
	}
	if requestIP != nil {
		r.RequestIP = *requestIP
	}
	if requestUA != nil {
		r.RequestUA = *requestUA
	}
	return &r, nil
}
