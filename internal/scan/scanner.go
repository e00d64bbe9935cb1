// Package scan orchestrates a full reputation scan: listing lookup, social
// profile discovery, mention collection, sentiment analysis, scoring and
// advice synthesis.
package scan

import (
	"context"

	"go.uber.org/zap"

	"github.com/reputationai/reputation-audit/internal/advise"
	"github.com/reputationai/reputation-audit/internal/config"
	"github.com/reputationai/reputation-audit/internal/model"
	"github.com/reputationai/reputation-audit/internal/scoring"
	"github.com/reputationai/reputation-audit/internal/search"
	"github.com/reputationai/reputation-audit/internal/sentiment"
)

// Analyzer is the sentiment pass the scanner runs over collected mentions.
type Analyzer interface {
	Analyze(ctx context.Context, businessName string, mentions []model.Mention) (*model.SentimentAnalysis, error)
}

// Adviser produces the recommendations and narrative for a finished scan.
type Adviser interface {
	Recommend(ctx context.Context, result *model.ScanResult) []model.Recommendation
	Narrative(ctx context.Context, result *model.ScanResult) string
}

// SocialExtractor scrapes a business website for its own profile links.
type SocialExtractor interface {
	Extract(ctx context.Context, domain string) (map[string]string, error)
}

// ProfileFinder looks up the business listing for a resolved identity.
type ProfileFinder interface {
	FindProfile(ctx context.Context, identity model.BusinessIdentity) (*model.PlacesProfile, error)
}

// Scanner runs the scan pipeline for a verified identity.
type Scanner struct {
	searcher search.Searcher
	analyzer Analyzer
	adviser  Adviser
	website  SocialExtractor
	places   ProfileFinder
	cfg      config.ScanConfig
}

// NewScanner wires the pipeline. places may be nil when listing lookups are
// disabled; website may be nil when scraping is unavailable.
func NewScanner(searcher search.Searcher, analyzer Analyzer, adviser Adviser, website SocialExtractor, places ProfileFinder, cfg config.ScanConfig) *Scanner {
	return &Scanner{
		searcher: searcher,
		analyzer: analyzer,
		adviser:  adviser,
		website:  website,
		places:   places,
		cfg:      cfg,
	}
}

// Run executes the full pipeline. Listing lookup and social discovery are
// best-effort; mention collection and sentiment analysis are load-bearing
// and fail the scan.
func (s *Scanner) Run(ctx context.Context, identity model.BusinessIdentity) (*model.ScanResult, error) {
	log := zap.L().With(zap.String("business", identity.Name))

	result := &model.ScanResult{Identity: identity}

	result.PlacesProfile = s.lookupListing(ctx, identity, log)
	if result.PlacesProfile.Found {
		result.VisibilityScore = scoring.VisibilityScore(result.PlacesProfile.Rating, result.PlacesProfile.RatingCount)
		if identity.Phone == "" {
			result.Identity.Phone = result.PlacesProfile.Phone
		}
	}

	result.SocialProfiles = s.discoverSocialProfiles(ctx, identity, result.PlacesProfile)

	mentions, err := s.searcher.SearchMentions(ctx, identity.Name, identity.Location)
	if err != nil {
		return nil, err
	}
	if len(mentions) == 0 {
		return nil, model.NewRunError(model.CodeBusinessNotFound, "no web mentions found for the business")
	}
	result.Mentions = mentions
	log.Info("mentions collected", zap.Int("count", len(mentions)))

	analysis, err := s.analyzer.Analyze(ctx, identity.Name, mentions)
	if err != nil {
		return nil, err
	}
	result.Sentiment = *analysis

	detail := scoring.ReputationScore(mentions, analysis)
	result.ScoreDetail = detail
	result.ReputationScore = detail.Score

	result.Recommendations = s.adviser.Recommend(ctx, result)
	result.Narrative = s.adviser.Narrative(ctx, result)

	log.Info("scan complete",
		zap.Int("score", result.ReputationScore),
		zap.String("sentiment", string(result.Sentiment.Overall)))
	return result, nil
}

// lookupListing is best-effort: every failure mode degrades to a not-found
// block with a reason instead of failing the scan.
func (s *Scanner) lookupListing(ctx context.Context, identity model.BusinessIdentity, log *zap.Logger) *model.PlacesProfile {
	switch {
	case s.places == nil:
		return &model.PlacesProfile{Reason: "missing_api_key"}
	case s.cfg.SkipPlaces:
		return &model.PlacesProfile{Reason: "disabled"}
	}

	profile, err := s.places.FindProfile(ctx, identity)
	if err != nil {
		log.Warn("listing lookup failed, continuing without it", zap.Error(err))
		return &model.PlacesProfile{Reason: "lookup_failed"}
	}
	if profile == nil {
		return &model.PlacesProfile{Reason: "not_found"}
	}
	profile.Found = true
	return profile
}

// discoverSocialProfiles merges three sources in order of trust: links on
// the business's own website, socials on the listing, then per-platform
// search for whatever is still missing.
func (s *Scanner) discoverSocialProfiles(ctx context.Context, identity model.BusinessIdentity, listing *model.PlacesProfile) map[string]string {
	profiles := make(map[string]string)

	if s.website != nil && identity.HasDomain() {
		found, err := s.website.Extract(ctx, identity.Domain)
		if err != nil {
			zap.L().Debug("website social extraction failed", zap.String("domain", identity.Domain), zap.Error(err))
		}
		for platform, u := range found {
			profiles[platform] = u
		}
	}

	if listing != nil {
		for platform, u := range listing.Socials {
			if _, ok := profiles[platform]; !ok {
				profiles[platform] = u
			}
		}
	}

	var missing []string
	for _, p := range search.SocialPlatforms {
		if _, ok := profiles[p]; !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		found, err := s.searcher.SearchSocialProfiles(ctx, identity.Name, missing, identity.Location)
		if err != nil {
			zap.L().Warn("social profile search failed", zap.Error(err))
		}
		for _, p := range found {
			if _, ok := profiles[p.Platform]; !ok {
				profiles[p.Platform] = p.URL
			}
		}
	}

	if len(profiles) == 0 {
		return nil
	}
	return profiles
}

// compile-time interface checks against the concrete pipeline pieces.
var (
	_ Analyzer        = (*sentiment.Analyzer)(nil)
	_ Adviser         = (*advise.Adviser)(nil)
	_ SocialExtractor = (*WebsiteExtractor)(nil)
	_ ProfileFinder   = (*Resolver)(nil)
)
