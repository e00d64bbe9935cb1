// Package admission enforces per-owner plan limits: a monthly audit quota
// and a cap on concurrently running audits.
package admission

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reputationai/reputation-audit/internal/config"
	"github.com/reputationai/reputation-audit/internal/model"
	"github.com/reputationai/reputation-audit/internal/store"
)

// PlanFeatures is what an owner's plan allows. Nil fields mean the plan
// does not constrain that dimension and defaults apply.
type PlanFeatures struct {
	MonthlyAudits    *int
	ConcurrentAudits *int
}

// PlanSource resolves the plan for an owner. Lookups return (nil, nil) when
// the owner has no plan on file.
type PlanSource interface {
	PlanFor(ctx context.Context, ownerID string) (*PlanFeatures, error)
}

// StaticPlans is a PlanSource backed by a fixed owner→plan map, for
// deployments without a billing system.
type StaticPlans map[string]PlanFeatures

// PlanFor implements PlanSource.
func (p StaticPlans) PlanFor(_ context.Context, ownerID string) (*PlanFeatures, error) {
	if features, ok := p[ownerID]; ok {
		return &features, nil
	}
	return nil, nil
}

// Governor gates audit admission on plan limits.
type Governor struct {
	store store.Store
	plans PlanSource
	cfg   config.PlansConfig
	now   func() time.Time
}

// NewGovernor builds a governor. plans may be nil, in which case every
// owner runs on the default limits.
func NewGovernor(st store.Store, plans PlanSource, cfg config.PlansConfig) *Governor {
	return &Governor{store: st, plans: plans, cfg: cfg, now: time.Now}
}

// CheckQuota verifies the owner has monthly quota left. It does not consume
// any; RecordUsage does that once the audit is actually dispatched.
func (g *Governor) CheckQuota(ctx context.Context, ownerID string) error {
	if !g.cfg.Enforce {
		return nil
	}

	features, err := g.planFor(ctx, ownerID)
	if err != nil {
		return err
	}

	limit := g.cfg.DefaultMonthly
	if features != nil && features.MonthlyAudits != nil {
		limit = *features.MonthlyAudits
	}
	if limit < 1 {
		limit = 1
	}

	used, err := g.store.UsageCount(ctx, ownerID, g.period())
	if err != nil {
		return eris.Wrap(err, "admission: read usage")
	}
	if used >= limit {
		zap.L().Info("monthly audit quota exhausted",
			zap.String("owner_id", ownerID),
			zap.Int("used", used),
			zap.Int("limit", limit))
		return model.NewRunError(model.CodePlanAuditLimitReached, "monthly audit limit reached")
	}
	return nil
}

// ReserveSlot claims a concurrency slot for the owner. A reservation that
// is never followed by a successful dispatch must be released by the caller.
func (g *Governor) ReserveSlot(ctx context.Context, ownerID string) error {
	if !g.cfg.Enforce {
		return nil
	}

	features, err := g.planFor(ctx, ownerID)
	if err != nil {
		return err
	}

	var limit *int
	if features != nil && features.ConcurrentAudits != nil {
		limit = features.ConcurrentAudits
	}
	if limit == nil {
		ql, err := g.store.GetQueueLimit(ctx, ownerID)
		if err != nil {
			return eris.Wrap(err, "admission: read queue limit")
		}
		if ql != nil && ql.StoredLimit != nil {
			limit = ql.StoredLimit
		}
	}

	effective := g.cfg.DefaultConcurrent
	if limit != nil {
		effective = *limit
	}
	if effective < 1 {
		effective = 1
	}

	granted, active, err := g.store.ReserveSlot(ctx, ownerID, effective)
	if err != nil {
		return eris.Wrap(err, "admission: reserve slot")
	}
	if !granted {
		zap.L().Info("concurrent audit limit reached",
			zap.String("owner_id", ownerID),
			zap.Int("active", active),
			zap.Int("limit", effective))
		return model.NewRunError(model.CodePlanConcurrentLimit, "concurrent audit limit reached")
	}
	return nil
}

// ReleaseSlot returns a previously reserved slot. Failures are logged, not
// returned: a stuck decrement must never mask the audit's own outcome.
func (g *Governor) ReleaseSlot(ctx context.Context, ownerID string) {
	if !g.cfg.Enforce {
		return
	}
	if err := g.store.ReleaseSlot(ctx, ownerID); err != nil {
		zap.L().Error("slot release failed",
			zap.String("owner_id", ownerID),
			zap.Error(err))
	}
}

// RecordUsage counts one audit against the owner's current period.
func (g *Governor) RecordUsage(ctx context.Context, ownerID string) error {
	if !g.cfg.Enforce {
		return nil
	}
	return g.store.IncrementUsage(ctx, ownerID, g.period())
}

func (g *Governor) planFor(ctx context.Context, ownerID string) (*PlanFeatures, error) {
	if g.plans == nil {
		return nil, nil
	}
	features, err := g.plans.PlanFor(ctx, ownerID)
	if err != nil {
		zap.L().Error("plan lookup failed", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, model.NewRunError(model.CodePlanConfigurationError, "plan configuration unavailable")
	}
	return features, nil
}

func (g *Governor) period() string {
	return g.now().UTC().Format("2006-01")
}
