package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reputationai/reputation-audit/internal/admission"
	"github.com/reputationai/reputation-audit/internal/advise"
	"github.com/reputationai/reputation-audit/internal/audit"
	"github.com/reputationai/reputation-audit/internal/config"
	"github.com/reputationai/reputation-audit/internal/scan"
	"github.com/reputationai/reputation-audit/internal/search"
	"github.com/reputationai/reputation-audit/internal/sentiment"
	"github.com/reputationai/reputation-audit/internal/store"
	"github.com/reputationai/reputation-audit/internal/verify"
	"github.com/reputationai/reputation-audit/pkg/anthropic"
	"github.com/reputationai/reputation-audit/pkg/perplexity"
	"github.com/reputationai/reputation-audit/pkg/places"
	"github.com/reputationai/reputation-audit/pkg/serper"
)

// env bundles the wired pipeline components for a command invocation.
type env struct {
	Store    store.Store
	Service  *audit.Service
	Executor *audit.Executor
}

// Close stops the executor and releases the store.
func (e *env) Close() {
	if e.Executor != nil {
		e.Executor.Stop()
	}
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Error("store close failed", zap.Error(err))
		}
	}
}

func newStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.DatabaseURL, nil)
	case "sqlite":
		return store.NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("cmd: unknown store driver %q", cfg.Driver)
	}
}

func newSearcher(cfg *config.Config) (search.Searcher, error) {
	var llm, kw search.Searcher
	if cfg.LLMSearch.Key != "" {
		client := perplexity.NewClient(cfg.LLMSearch.Key,
			perplexity.WithBaseURL(cfg.LLMSearch.BaseURL),
			perplexity.WithModel(cfg.LLMSearch.Model),
		)
		llm = search.NewLLMSearcher(client, cfg.Search)
	}
	if cfg.Serper.Key != "" {
		client := serper.NewClient(cfg.Serper.Key, serper.WithBaseURL(cfg.Serper.BaseURL))
		kw = search.NewSerperSearcher(client, cfg.Search)
	}

	switch cfg.Search.Provider {
	case "llm":
		if llm == nil {
			return nil, eris.New("cmd: search provider llm requires llm_search.key")
		}
		return search.NewFallbackSearcher(llm, kw), nil
	case "serper":
		if kw == nil {
			return nil, eris.New("cmd: search provider serper requires serper.key")
		}
		return search.NewFallbackSearcher(kw, nil), nil
	default:
		return nil, eris.Errorf("cmd: unknown search provider %q", cfg.Search.Provider)
	}
}

// initPipeline wires the full audit pipeline and starts the executor.
func initPipeline(ctx context.Context, cfg *config.Config) (*env, error) {
	st, err := newStore(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "cmd: open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "cmd: migrate")
	}

	searcher, err := newSearcher(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	if cfg.Anthropic.Key == "" {
		st.Close()
		return nil, eris.New("cmd: anthropic.key is required")
	}
	ac := anthropic.NewClient(cfg.Anthropic.Key)
	analyzer := sentiment.NewAnalyzer(ac, search.NewContentFetcher(cfg.Scan), cfg.Anthropic, cfg.Scan)
	adviser := advise.NewAdviser(ac, cfg.Anthropic)

	var resolver audit.CandidateResolver
	var finder scan.ProfileFinder
	if cfg.Places.Key != "" {
		pc := places.NewClient(cfg.Places.Key, places.WithBaseURL(cfg.Places.BaseURL))
		r := scan.NewResolver(pc)
		resolver = r
		finder = r
	} else {
		zap.L().Warn("places.key not set, directory lookup disabled")
	}

	verifier := verify.NewVerifier(cfg.Verify)
	scanner := scan.NewScanner(searcher, analyzer, adviser, scan.NewWebsiteExtractor(cfg.Verify), finder, cfg.Scan)
	governor := admission.NewGovernor(st, nil, cfg.Plans)
	notifier := audit.NewNotifier(cfg.Notify)

	executor := audit.NewExecutor(st, verifier, scanner, notifier, cfg.Executor)
	executor.Start(ctx)

	service := audit.NewService(st, verifier, resolver, governor, executor)

	return &env{Store: st, Service: service, Executor: executor}, nil
}
