package audit

import (
	"context"
	"errors"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reputationai/reputation-audit/internal/config"
	"github.com/reputationai/reputation-audit/internal/model"
	"github.com/reputationai/reputation-audit/internal/store"
	"github.com/reputationai/reputation-audit/internal/verify"
)

// Scanner runs the scan pipeline for a verified identity.
type Scanner interface {
	Run(ctx context.Context, identity model.BusinessIdentity) (*model.ScanResult, error)
}

// identityVerifier is the full verification pass the worker runs before
// scanning. Satisfied by *verify.Verifier.
type identityVerifier interface {
	VerifyDomain(ctx context.Context, domain, knownName string) (*model.BusinessIdentity, error)
	VerifyIdentity(name, location, phone string) (*model.BusinessIdentity, error)
}

var _ identityVerifier = (*verify.Verifier)(nil)

// Executor is the background worker pool that drives queued runs to a
// terminal state. Slot accounting stays with the intake path: a reservation
// is released only when dispatch never happened, never by the worker.
type Executor struct {
	store    store.Store
	verifier identityVerifier
	scanner  Scanner
	notifier Notifier

	queue   chan string
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	workers int
}

// NewExecutor builds the worker pool. Start must be called before Dispatch.
func NewExecutor(st store.Store, verifier identityVerifier, scanner Scanner, notifier Notifier, cfg config.ExecutorConfig) *Executor {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	return &Executor{
		store:    st,
		verifier: verifier,
		scanner:  scanner,
		notifier: notifier,
		queue:    make(chan string, size),
		workers:  workers,
	}
}

// Start launches the workers. They drain the queue until Stop is called.
func (e *Executor) Start(ctx context.Context) {
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for runID := range e.queue {
				e.process(ctx, runID)
			}
		}()
	}
	zap.L().Info("executor started", zap.Int("workers", e.workers))
}

// Stop closes the queue and waits for in-flight runs to finish.
func (e *Executor) Stop() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()
	e.wg.Wait()
}

// Dispatch queues a run. It fails when the queue is full or the executor is
// shut down; the caller owns releasing the reservation in that case.
func (e *Executor) Dispatch(runID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return eris.New("executor: dispatch after shutdown")
	}
	select {
	case e.queue <- runID:
		return nil
	default:
		return eris.New("executor: queue full")
	}
}

// process drives one run to a terminal state. The whole handler is retried
// at most once more on infrastructure failure; business failures are
// terminal on the first pass.
func (e *Executor) process(ctx context.Context, runID string) {
	log := zap.L().With(zap.String("run_id", runID))

	claimed, err := e.store.BeginRun(ctx, runID)
	if err != nil {
		log.Error("run claim failed", zap.Error(err))
		e.finalize(ctx, runID, nil, eris.Wrap(err, "executor: claim run"))
		return
	}
	if !claimed {
		// Already terminal, processing elsewhere, or paused for selection.
		log.Debug("run not claimable, skipping dispatch")
		return
	}

	result, err := e.runOnce(ctx, runID)
	if err != nil && isInfrastructureError(err) {
		log.Warn("run failed with infrastructure error, retrying once", zap.Error(err))
		result, err = e.runOnce(ctx, runID)
	}
	e.finalize(ctx, runID, result, err)
}

func (e *Executor) runOnce(ctx context.Context, runID string) (*model.ScanResult, error) {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "executor: load run")
	}
	if run == nil {
		return nil, eris.New("executor: run vanished")
	}

	identity, err := e.verifyIdentity(ctx, run.Identity)
	if err != nil {
		return nil, err
	}

	return e.scanner.Run(ctx, *identity)
}

// verifyIdentity runs the full verification pass, preferring the website
// path and keeping caller-supplied fields the verifier leaves unset.
func (e *Executor) verifyIdentity(ctx context.Context, input model.BusinessIdentity) (*model.BusinessIdentity, error) {
	var verified *model.BusinessIdentity
	var err error
	if input.HasDomain() {
		verified, err = e.verifier.VerifyDomain(ctx, input.Domain, input.Name)
	} else {
		verified, err = e.verifier.VerifyIdentity(input.Name, input.Location, input.Phone)
	}
	if err != nil {
		return nil, err
	}

	if verified.Name == "" {
		verified.Name = input.Name
	}
	if verified.Location == "" {
		verified.Location = input.Location
	}
	if verified.Phone == "" {
		verified.Phone = input.Phone
	}
	verified.Country = input.Country
	verified.Industry = input.Industry
	verified.PlaceID = input.PlaceID
	return verified, nil
}

// finalize records the terminal state and sends exactly one notification.
// It must never panic or retry the transition.
func (e *Executor) finalize(ctx context.Context, runID string, result *model.ScanResult, runErr error) {
	log := zap.L().With(zap.String("run_id", runID))

	if runErr == nil {
		if err := e.store.CompleteRun(ctx, runID, result); err != nil {
			log.Error("run completion write failed", zap.Error(err))
			return
		}
	} else {
		code, message := terminalError(runErr)
		log.Info("run failed", zap.String("code", code), zap.Error(runErr))
		if err := e.store.FailRun(ctx, runID, code, message); err != nil {
			log.Error("run failure write failed", zap.Error(err))
			return
		}
	}

	run, err := e.store.GetRun(ctx, runID)
	if err != nil || run == nil {
		log.Error("run reload for notification failed", zap.Error(err))
		return
	}
	if e.notifier != nil {
		e.notifier.Notify(ctx, run)
	}
}

// isInfrastructureError separates transient plumbing failures, which earn a
// retry, from business outcomes, which are terminal as-is.
func isInfrastructureError(err error) bool {
	var runErr *model.RunError
	return !errors.As(err, &runErr)
}

func terminalError(err error) (code, message string) {
	var runErr *model.RunError
	if errors.As(err, &runErr) {
		return runErr.Code, runErr.Message
	}
	return model.CodeQueueJobFailed, "audit processing failed"
}
