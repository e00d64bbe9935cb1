package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/reputationai/reputation-audit/internal/model"
)

// FallbackSearcher tries a primary provider and falls back to a secondary
// when the primary errors or comes back empty. Every fallback is logged so
// operators can see which provider actually served a scan.
type FallbackSearcher struct {
	primary  Searcher
	fallback Searcher
}

// NewFallbackSearcher wires a primary searcher with a fallback. The fallback
// may be nil, in which case primary results pass through untouched.
func NewFallbackSearcher(primary, fallback Searcher) *FallbackSearcher {
	return &FallbackSearcher{primary: primary, fallback: fallback}
}

// Name implements Searcher.
func (s *FallbackSearcher) Name() string { return s.primary.Name() }

// SearchMentions implements Searcher.
func (s *FallbackSearcher) SearchMentions(ctx context.Context, name, location string) ([]model.Mention, error) {
	mentions, err := s.primary.SearchMentions(ctx, name, location)
	if err == nil && len(mentions) > 0 {
		return mentions, nil
	}
	if s.fallback == nil || ctx.Err() != nil {
		return mentions, err
	}

	s.logFallback("mentions", err, len(mentions))
	return s.fallback.SearchMentions(ctx, name, location)
}

// SearchSocialProfiles implements Searcher.
func (s *FallbackSearcher) SearchSocialProfiles(ctx context.Context, name string, platforms []string, location string) ([]Profile, error) {
	profiles, err := s.primary.SearchSocialProfiles(ctx, name, platforms, location)
	if err == nil && len(profiles) > 0 {
		return profiles, nil
	}
	if s.fallback == nil || ctx.Err() != nil {
		return profiles, err
	}

	s.logFallback("social profiles", err, len(profiles))
	return s.fallback.SearchSocialProfiles(ctx, name, platforms, location)
}

func (s *FallbackSearcher) logFallback(what string, err error, got int) {
	fields := []zap.Field{
		zap.String("primary", s.primary.Name()),
		zap.String("fallback", s.fallback.Name()),
		zap.Int("primary_results", got),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	zap.L().Info("primary search provider exhausted, falling back for "+what, fields...)
}
