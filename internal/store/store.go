package store

import (
	"context"

	"github.com/reputationai/reputation-audit/internal/model"
)

// RunFilter specifies criteria for listing audit runs.
type RunFilter struct {
	OwnerID string          `json:"owner_id,omitempty"`
	Status  model.RunStatus `json:"status,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// QueueLimit is the per-owner concurrency bookkeeping row. StoredLimit is an
// optional override that stands in when the owner's plan does not set one.
type QueueLimit struct {
	OwnerID     string
	ActiveCount int
	StoredLimit *int
}

// Store defines the persistence interface for audit runs, concurrency slots
// and monthly usage.
//
// Lookups return (nil, nil) when the row does not exist. Transition methods
// (BeginRun, ResumeRun, CompleteRun, FailRun) are conditional updates: a run
// already past the required source state is left untouched, so terminal runs
// can never be overwritten regardless of delivery retries.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, ownerID string, identity model.BusinessIdentity, meta model.RequestMeta) (*model.AuditRun, error)
	GetRun(ctx context.Context, runID string) (*model.AuditRun, error)
	FindReusableRun(ctx context.Context, ownerID string, identity model.BusinessIdentity) (*model.AuditRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.AuditRun, error)

	// Transitions
	BeginRun(ctx context.Context, runID string) (bool, error)
	SetRunCandidates(ctx context.Context, runID string, candidates []model.Candidate) error
	ResumeRun(ctx context.Context, runID string, identity model.BusinessIdentity) (bool, error)
	CompleteRun(ctx context.Context, runID string, result *model.ScanResult) error
	FailRun(ctx context.Context, runID, code, message string) error

	// Concurrency slots
	GetQueueLimit(ctx context.Context, ownerID string) (*QueueLimit, error)
	ReserveSlot(ctx context.Context, ownerID string, limit int) (bool, int, error)
	ReleaseSlot(ctx context.Context, ownerID string) error

	// Usage
	IncrementUsage(ctx context.Context, ownerID, period string) error
	UsageCount(ctx context.Context, ownerID, period string) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
