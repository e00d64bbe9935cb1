package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/reputationai/reputation-audit/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It exists for local
// development and the CLI; production deployments use Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS audit_runs (
	id           TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	identity     TEXT NOT NULL,
	candidates   TEXT,
	result       TEXT,
	error_code   TEXT,
	error        TEXT,
	request_ip   TEXT,
	request_user_agent TEXT,
	started_at   DATETIME,
	completed_at DATETIME,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_audit_runs_owner ON audit_runs(owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_runs_status ON audit_runs(status);

CREATE TABLE IF NOT EXISTS audit_queue_limits (
	owner_id         TEXT PRIMARY KEY,
	active_count     INTEGER NOT NULL DEFAULT 0,
	concurrent_limit INTEGER,
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS usage_tracking (
	owner_id   TEXT NOT NULL,
	period     TEXT NOT NULL,
	audits_run INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (owner_id, period)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, ownerID string, identity model.BusinessIdentity, meta model.RequestMeta) (*model.AuditRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	identityJSON, err := json.Marshal(identity)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal identity")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_runs (id, owner_id, status, identity, request_ip, request_user_agent, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, ownerID, string(model.StatusPending), string(identityJSON), meta.IP, meta.UserAgent, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.AuditRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM audit_runs WHERE id = ?`,
		runID,
	)
	run, err := scanSQLiteRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return run, nil
}

func (s *SQLiteStore) FindReusableRun(ctx context.Context, ownerID string, identity model.BusinessIdentity) (*model.AuditRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM audit_runs
		 WHERE owner_id = ? AND status IN `+nonTerminal+`
		   AND ((COALESCE(json_extract(identity, '$.domain'), '') <> '' AND json_extract(identity, '$.domain') = ?)
		     OR (COALESCE(json_extract(identity, '$.domain'), '') = '' AND ? = ''
		         AND json_extract(identity, '$.name') = ? AND COALESCE(json_extract(identity, '$.location'), '') = ?))
		 ORDER BY created_at DESC LIMIT 1`,
		ownerID, identity.Domain, identity.Domain, identity.Name, identity.Location,
	)
	run, err := scanSQLiteRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find reusable run")
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.AuditRun, error) {
	query := `SELECT ` + runColumns + ` FROM audit_runs WHERE 1=1`
	var args []any

	if filter.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.AuditRun
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) BeginRun(ctx context.Context, runID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE audit_runs SET status = 'processing', started_at = ?, updated_at = ? WHERE id = ? AND status = 'pending'`,
		time.Now().UTC(), time.Now().UTC(), runID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: begin run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) SetRunCandidates(ctx context.Context, runID string, candidates []model.Candidate) error {
	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal candidates")
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE audit_runs SET status = 'selection_required', candidates = ?, updated_at = ? WHERE id = ? AND status IN `+nonTerminal,
		string(candidatesJSON), time.Now().UTC(), runID,
	)
	return eris.Wrapf(err, "sqlite: set run candidates %s", runID)
}

func (s *SQLiteStore) ResumeRun(ctx context.Context, runID string, identity model.BusinessIdentity) (bool, error) {
	identityJSON, err := json.Marshal(identity)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal identity")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE audit_runs SET status = 'pending', identity = ?, candidates = NULL, updated_at = ? WHERE id = ? AND status = 'selection_required'`,
		string(identityJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: resume run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *model.ScanResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`UPDATE audit_runs SET status = 'success', result = ?, completed_at = ?, updated_at = ? WHERE id = ? AND status IN `+nonTerminal,
		string(resultJSON), now, now, runID,
	)
	return eris.Wrapf(err, "sqlite: complete run %s", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID, code, message string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE audit_runs SET status = 'error', error_code = ?, error = ?, completed_at = ?, updated_at = ? WHERE id = ? AND status IN `+nonTerminal,
		code, message, now, now, runID,
	)
	return eris.Wrapf(err, "sqlite: fail run %s", runID)
}

func (s *SQLiteStore) GetQueueLimit(ctx context.Context, ownerID string) (*QueueLimit, error) {
	var ql QueueLimit
	var storedLimit sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, active_count, concurrent_limit FROM audit_queue_limits WHERE owner_id = ?`,
		ownerID,
	).Scan(&ql.OwnerID, &ql.ActiveCount, &storedLimit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get queue limit")
	}
	if storedLimit.Valid {
		v := int(storedLimit.Int64)
		ql.StoredLimit = &v
	}
	return &ql, nil
}

// ReserveSlot claims a concurrency slot with a single conditional update, so
// concurrent reservations against the same owner cannot both win.
func (s *SQLiteStore) ReserveSlot(ctx context.Context, ownerID string, limit int) (bool, int, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_queue_limits (owner_id, active_count) VALUES (?, 0) ON CONFLICT (owner_id) DO NOTHING`,
		ownerID,
	)
	if err != nil {
		return false, 0, eris.Wrap(err, "sqlite: reserve slot init row")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE audit_queue_limits SET active_count = active_count + 1, updated_at = ? WHERE owner_id = ? AND active_count < ?`,
		time.Now().UTC(), ownerID, limit,
	)
	if err != nil {
		return false, 0, eris.Wrap(err, "sqlite: reserve slot")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, 0, eris.Wrap(err, "sqlite: rows affected")
	}

	var active int
	if err := s.db.QueryRowContext(ctx,
		`SELECT active_count FROM audit_queue_limits WHERE owner_id = ?`, ownerID,
	).Scan(&active); err != nil {
		return false, 0, eris.Wrap(err, "sqlite: reserve slot read count")
	}
	return n == 1, active, nil
}

// ReleaseSlot frees one concurrency slot, flooring at zero.
func (s *SQLiteStore) ReleaseSlot(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE audit_queue_limits SET active_count = MAX(active_count - 1, 0), updated_at = ? WHERE owner_id = ?`,
		time.Now().UTC(), ownerID,
	)
	return eris.Wrap(err, "sqlite: release slot")
}

func (s *SQLiteStore) IncrementUsage(ctx context.Context, ownerID, period string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_tracking (owner_id, period, audits_run) VALUES (?, ?, 1)
		 ON CONFLICT (owner_id, period) DO UPDATE SET audits_run = audits_run + 1, updated_at = datetime('now')`,
		ownerID, period,
	)
	return eris.Wrap(err, "sqlite: increment usage")
}

func (s *SQLiteStore) UsageCount(ctx context.Context, ownerID, period string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT audits_run FROM usage_tracking WHERE owner_id = ? AND period = ?`,
		ownerID, period,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: usage count")
	}
	return count, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row scannable) (*model.AuditRun, error) {
	var r model.AuditRun
	var identityJSON string
	var candidatesJSON, resultJSON, errorCode, errorMsg, requestIP, requestUA sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(&r.ID, &r.OwnerID, &r.Status, &identityJSON, &candidatesJSON, &resultJSON,
		&errorCode, &errorMsg, &requestIP, &requestUA, &startedAt, &completedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(identityJSON), &r.Identity); err != nil {
		return nil, eris.Wrap(err, "unmarshal identity")
	}
	if candidatesJSON.Valid {
		if err := json.Unmarshal([]byte(candidatesJSON.String), &r.Candidates); err != nil {
			return nil, eris.Wrap(err, "unmarshal candidates")
		}
	}
	if resultJSON.Valid {
		r.Result = &model.ScanResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "unmarshal result")
		}
	}
	if errorCode.Valid {
		r.ErrorCode = errorCode.String
	}
	if errorMsg.Valid {
		r.Error = errorMsg.String
	}
	if requestIP.Valid {
		r.RequestIP = requestIP.String
	}
	if requestUA.Valid {
		r.RequestUA = requestUA.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		r.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}
