// Package audit owns the run lifecycle: intake, candidate pauses, admission
// and dispatch to the background executor.
package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reputationai/reputation-audit/internal/model"
	"github.com/reputationai/reputation-audit/internal/scan"
	"github.com/reputationai/reputation-audit/internal/store"
	"github.com/reputationai/reputation-audit/internal/verify"
)

var (
	// ErrRunNotFound reports an unknown run id.
	ErrRunNotFound = eris.New("audit: run not found")

	// ErrNotResumable reports a resume attempt on a run that is not paused
	// for candidate selection.
	ErrNotResumable = eris.New("audit: run is not awaiting selection")
)

// Request is the intake payload for a new audit.
type Request struct {
	OwnerID  string `json:"owner_id" validate:"omitempty,max=128"`
	Name     string `json:"name" validate:"omitempty,max=200"`
	Domain   string `json:"domain" validate:"omitempty,max=255"`
	Location string `json:"location" validate:"omitempty,max=200"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Country  string `json:"country" validate:"omitempty,len=2,alpha"`
	Industry string `json:"industry" validate:"omitempty,max=100"`

	// SkipDirectoryLookup bypasses candidate resolution even when only a
	// name was given.
	SkipDirectoryLookup bool `json:"skip_directory_lookup"`

	// Meta is filled by the transport layer, never from the request body.
	Meta model.RequestMeta `json:"-"`
}

// Governor gates dispatch on the owner's plan limits.
type Governor interface {
	CheckQuota(ctx context.Context, ownerID string) error
	ReserveSlot(ctx context.Context, ownerID string) error
	ReleaseSlot(ctx context.Context, ownerID string)
	RecordUsage(ctx context.Context, ownerID string) error
}

// CandidateResolver disambiguates an identity against the places directory.
type CandidateResolver interface {
	Resolve(ctx context.Context, identity model.BusinessIdentity) (*scan.Resolution, error)
}

// Dispatcher queues a pending run for background execution.
type Dispatcher interface {
	Dispatch(runID string) error
}

// Service is the audit intake facade the HTTP layer talks to.
type Service struct {
	store    store.Store
	verifier *verify.Verifier
	resolver CandidateResolver
	governor Governor
	executor Dispatcher
	validate *validator.Validate
}

// NewService wires the intake pipeline. resolver may be nil when no places
// credentials are configured; candidate resolution is then skipped.
func NewService(st store.Store, verifier *verify.Verifier, resolver CandidateResolver, governor Governor, executor Dispatcher) *Service {
	return &Service{
		store:    st,
		verifier: verifier,
		resolver: resolver,
		governor: governor,
		executor: executor,
		validate: validator.New(),
	}
}

// Start takes an audit request through validation, candidate resolution and
// admission, then either queues it or pauses it for candidate selection.
// Validation and admission failures surface without creating a run.
func (s *Service) Start(ctx context.Context, req Request) (*model.AuditRun, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, model.NewRunError(model.CodeInvalidIdentification, "invalid request: "+err.Error())
	}

	identity, err := s.precheck(ctx, req)
	if err != nil {
		return nil, err
	}

	// A live run for the same business is returned as-is instead of
	// spending quota on a duplicate.
	if existing, err := s.store.FindReusableRun(ctx, req.OwnerID, *identity); err != nil {
		return nil, eris.Wrap(err, "audit: find reusable run")
	} else if existing != nil {
		zap.L().Info("reusing in-flight run",
			zap.String("run_id", existing.ID),
			zap.String("owner_id", req.OwnerID))
		return existing, nil
	}

	if s.shouldResolve(req, identity) {
		resolution, err := s.resolver.Resolve(ctx, *identity)
		if err != nil {
			var runErr *model.RunError
			if !errors.As(err, &runErr) {
				return nil, err
			}
			// Zero directory matches is not fatal at intake; the scan
			// itself decides whether the business exists on the web.
			if runErr.Code != model.CodeBusinessNotFound {
				return s.recordIntakeFailure(ctx, req, *identity, runErr), err
			}
		} else if len(resolution.Candidates) > 0 {
			// Any non-empty candidate set pauses the run, a single match
			// included; the caller confirms before quota is spent.
			return s.pauseForSelection(ctx, req.OwnerID, *identity, resolution.Candidates, req.Meta)
		}
	}

	if err := s.governor.CheckQuota(ctx, req.OwnerID); err != nil {
		return nil, err
	}
	if err := s.governor.ReserveSlot(ctx, req.OwnerID); err != nil {
		return nil, err
	}

	run, err := s.store.CreateRun(ctx, req.OwnerID, *identity, req.Meta)
	if err != nil {
		s.governor.ReleaseSlot(ctx, req.OwnerID)
		return nil, eris.Wrap(err, "audit: create run")
	}
	if err := s.governor.RecordUsage(ctx, req.OwnerID); err != nil {
		zap.L().Error("usage increment failed", zap.String("owner_id", req.OwnerID), zap.Error(err))
	}

	return s.dispatch(ctx, run)
}

// Resume restarts a run paused for candidate selection, either with a
// chosen place id or with an explicit skip. The paused row is reused; no
// second run is ever created.
func (s *Service) Resume(ctx context.Context, runID, placeID string, skip bool) (*model.AuditRun, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "audit: load run")
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	if run.Status != model.StatusSelectionRequired {
		return nil, ErrNotResumable
	}

	identity := run.Identity
	if !skip {
		chosen := candidateByPlaceID(run.Candidates, placeID)
		if chosen == nil {
			return nil, model.NewRunError(model.CodeInvalidIdentification, "place_id does not match any candidate")
		}
		identity.PlaceID = chosen.PlaceID
		identity.Name = chosen.Name
		if chosen.Address != "" {
			identity.Location = chosen.Address
		}
	}

	if err := s.governor.CheckQuota(ctx, run.OwnerID); err != nil {
		return nil, err
	}
	if err := s.governor.ReserveSlot(ctx, run.OwnerID); err != nil {
		return nil, err
	}

	resumed, err := s.store.ResumeRun(ctx, runID, identity)
	if err != nil {
		s.governor.ReleaseSlot(ctx, run.OwnerID)
		return nil, eris.Wrap(err, "audit: resume run")
	}
	if !resumed {
		// Lost a race with another resume or a terminal transition.
		s.governor.ReleaseSlot(ctx, run.OwnerID)
		return nil, ErrNotResumable
	}
	if err := s.governor.RecordUsage(ctx, run.OwnerID); err != nil {
		zap.L().Error("usage increment failed", zap.String("owner_id", run.OwnerID), zap.Error(err))
	}

	run.Status = model.StatusPending
	run.Identity = identity
	run.Candidates = nil
	return s.dispatch(ctx, run)
}

// Get returns one run.
func (s *Service) Get(ctx context.Context, runID string) (*model.AuditRun, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "audit: load run")
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// List returns the owner's run history, newest first.
func (s *Service) List(ctx context.Context, filter store.RunFilter) ([]model.AuditRun, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	runs, err := s.store.ListRuns(ctx, filter)
	return runs, eris.Wrap(err, "audit: list runs")
}

// precheck validates the identification input without network calls. Full
// verification (probing the website) happens inside the worker.
func (s *Service) precheck(_ context.Context, req Request) (*model.BusinessIdentity, error) {
	if req.Domain != "" {
		host, _, err := verify.CandidateURLs(req.Domain)
		if err != nil {
			return nil, err
		}
		identity := &model.BusinessIdentity{
			Name:     req.Name,
			Domain:   host,
			Location: req.Location,
			Phone:    req.Phone,
			Country:  strings.ToLower(req.Country),
			Industry: req.Industry,
		}
		return identity, nil
	}

	identity, err := s.verifier.VerifyIdentity(req.Name, req.Location, req.Phone)
	if err != nil {
		return nil, err
	}
	identity.Country = strings.ToLower(req.Country)
	identity.Industry = req.Industry
	return identity, nil
}

func (s *Service) shouldResolve(req Request, identity *model.BusinessIdentity) bool {
	return s.resolver != nil &&
		!req.SkipDirectoryLookup &&
		identity.PlaceID == "" &&
		identity.Name != "" &&
		!identity.HasDomain()
}

// recordIntakeFailure keeps a terminal error run for a lookup that failed
// before admission, so the owner's history shows the attempt. Best-effort:
// a store failure here is logged and the original error still surfaces.
func (s *Service) recordIntakeFailure(ctx context.Context, req Request, identity model.BusinessIdentity, runErr *model.RunError) *model.AuditRun {
	run, err := s.store.CreateRun(ctx, req.OwnerID, identity, req.Meta)
	if err != nil {
		zap.L().Error("intake failure run not recorded", zap.Error(err))
		return nil
	}
	if err := s.store.FailRun(ctx, run.ID, runErr.Code, runErr.Message); err != nil {
		zap.L().Error("intake failure run not finalized",
			zap.String("run_id", run.ID), zap.Error(err))
	}
	run.Status = model.StatusError
	run.ErrorCode = runErr.Code
	run.Error = runErr.Message
	return run
}

// pauseForSelection persists the run with its candidate set and returns it
// without consuming quota or a concurrency slot.
func (s *Service) pauseForSelection(ctx context.Context, ownerID string, identity model.BusinessIdentity, candidates []model.Candidate, meta model.RequestMeta) (*model.AuditRun, error) {
	run, err := s.store.CreateRun(ctx, ownerID, identity, meta)
	if err != nil {
		return nil, eris.Wrap(err, "audit: create run")
	}
	if err := s.store.SetRunCandidates(ctx, run.ID, candidates); err != nil {
		return nil, eris.Wrap(err, "audit: store candidates")
	}

	run.Status = model.StatusSelectionRequired
	run.Candidates = candidates
	zap.L().Info("run paused for candidate selection",
		zap.String("run_id", run.ID),
		zap.Int("candidates", len(candidates)))
	return run, nil
}

// dispatch hands the pending run to the executor. A rejected dispatch
// releases the slot and fails the run so the client sees a terminal state.
func (s *Service) dispatch(ctx context.Context, run *model.AuditRun) (*model.AuditRun, error) {
	if err := s.executor.Dispatch(run.ID); err != nil {
		zap.L().Error("run dispatch failed", zap.String("run_id", run.ID), zap.Error(err))
		s.governor.ReleaseSlot(ctx, run.OwnerID)
		if failErr := s.store.FailRun(ctx, run.ID, model.CodeAuditQueueFailed, "audit could not be queued"); failErr != nil {
			zap.L().Error("run failure write failed", zap.String("run_id", run.ID), zap.Error(failErr))
		}
		return nil, model.NewRunError(model.CodeAuditQueueFailed, "audit could not be queued")
	}
	zap.L().Info("run queued", zap.String("run_id", run.ID), zap.String("owner_id", run.OwnerID))
	return run, nil
}

func candidateByPlaceID(candidates []model.Candidate, placeID string) *model.Candidate {
	if placeID == "" {
		return nil
	}
	for i := range candidates {
		if candidates[i].PlaceID == placeID {
			return &candidates[i]
		}
	}
	return nil
}
