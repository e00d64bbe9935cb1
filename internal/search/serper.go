package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/reputationai/reputation-audit/internal/config"
	"github.com/reputationai/reputation-audit/internal/model"
	"github.com/reputationai/reputation-audit/internal/resilience"
	"github.com/reputationai/reputation-audit/pkg/serper"
)

// SerperSearcher collects mentions with keyword search. It runs the extended
// query battery since site-targeted queries are cheap here.
type SerperSearcher struct {
	client  serper.Client
	cfg     config.SearchConfig
	breaker *resilience.Breaker
}

// NewSerperSearcher builds a searcher on the given Serper client.
func NewSerperSearcher(client serper.Client, cfg config.SearchConfig) *SerperSearcher {
	bc := resilience.DefaultBreakerConfig()
	bc.OnStateChange = resilience.BreakerLogger("serper")
	return &SerperSearcher{client: client, cfg: cfg, breaker: resilience.NewBreaker(bc)}
}

// Name implements Searcher.
func (s *SerperSearcher) Name() string { return "serper" }

// SearchMentions implements Searcher.
func (s *SerperSearcher) SearchMentions(ctx context.Context, name, location string) ([]model.Mention, error) {
	queries := ExtendedMentionQueries(name, location)

	var all []model.Mention
	failures := 0
	for _, q := range queries {
		resp, err := s.search(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			zap.L().Warn("serper query failed",
				zap.String("query", q),
				zap.Error(err))
			continue
		}
		all = append(all, s.toMentions(resp)...)
	}
	if failures == len(queries) && len(queries) > 0 {
		return nil, model.NewRunError(model.CodeAnalysisError, "all mention search queries failed")
	}

	return FilterHighSignal(all), nil
}

// SearchSocialProfiles implements Searcher.
func (s *SerperSearcher) SearchSocialProfiles(ctx context.Context, name string, platforms []string, location string) ([]Profile, error) {
	var profiles []Profile
	for _, platform := range platforms {
		q := PlatformQuery(name, platform)
		if q == "" {
			continue
		}
		resp, err := s.search(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Warn("serper profile query failed",
				zap.String("platform", platform),
				zap.Error(err))
			continue
		}
		if u := selectProfileURL(s.toMentions(resp), platform); u != "" {
			profiles = append(profiles, Profile{Platform: platform, URL: u, Source: s.Name()})
		}
	}
	return profiles, nil
}

func (s *SerperSearcher) search(ctx context.Context, query string) (*serper.SearchResponse, error) {
	retryCfg := resilience.DefaultRetryConfig()
	if s.cfg.Retries >= 0 {
		retryCfg.MaxAttempts = s.cfg.Retries + 1
	}
	retryCfg.OnRetry = resilience.RetryLogger(s.Name(), "search")

	num := s.cfg.ResultsPerPage
	if num <= 0 {
		num = 10
	}

	return resilience.BreakVal(ctx, s.breaker, func(ctx context.Context) (*serper.SearchResponse, error) {
		return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*serper.SearchResponse, error) {
			return s.client.Search(ctx, serper.SearchRequest{Query: query, Num: num, Country: "us"})
		})
	})
}

func (s *SerperSearcher) toMentions(resp *serper.SearchResponse) []model.Mention {
	results := make([]serper.OrganicResult, 0, len(resp.Organic)+len(resp.News))
	results = append(results, resp.Organic...)
	results = append(results, resp.News...)

	mentions := make([]model.Mention, 0, len(results))
	for _, r := range results {
		if r.Link == "" {
			continue
		}
		mentions = append(mentions, model.Mention{
			URL:      r.Link,
			Title:    r.Title,
			Snippet:  r.Snippet,
			Source:   ClassifySource(r.Link),
			Domain:   hostOf(r.Link),
			Date:     r.Date,
			Provider: s.Name(),
		})
	}
	return mentions
}
