package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputationai/reputation-audit/internal/config"
	"github.com/reputationai/reputation-audit/internal/model"
	"github.com/reputationai/reputation-audit/internal/search"
)

type stubSearcher struct {
	mentions    []model.Mention
	mentionsErr error
	profiles    []search.Profile
	askedFor    []string
}

func (s *stubSearcher) SearchMentions(context.Context, string, string) ([]model.Mention, error) {
	return s.mentions, s.mentionsErr
}

func (s *stubSearcher) SearchSocialProfiles(_ context.Context, _ string, platforms []string, _ string) ([]search.Profile, error) {
	s.askedFor = platforms
	return s.profiles, nil
}

func (s *stubSearcher) Name() string { return "stub" }

type stubAnalyzer struct {
	analysis *model.SentimentAnalysis
	err      error
}

func (s *stubAnalyzer) Analyze(context.Context, string, []model.Mention) (*model.SentimentAnalysis, error) {
	return s.analysis, s.err
}

type stubAdviser struct{}

func (stubAdviser) Recommend(context.Context, *model.ScanResult) []model.Recommendation {
	return []model.Recommendation{{Title: "Monitor your reputation regularly"}}
}

func (stubAdviser) Narrative(context.Context, *model.ScanResult) string {
	return "narrative"
}

type stubExtractor struct {
	profiles map[string]string
	err      error
}

func (s *stubExtractor) Extract(context.Context, string) (map[string]string, error) {
	return s.profiles, s.err
}

type stubFinder struct {
	profile *model.PlacesProfile
	err     error
}

func (s *stubFinder) FindProfile(context.Context, model.BusinessIdentity) (*model.PlacesProfile, error) {
	return s.profile, s.err
}

func positiveAnalysis(url string) *model.SentimentAnalysis {
	return &model.SentimentAnalysis{
		Overall:     model.SentimentPositive,
		Breakdown:   model.SentimentBreakdown{Positive: 100},
		TopMentions: []model.ScoredMention{{URL: url, Sentiment: model.SentimentPositive}},
	}
}

func TestScannerRun(t *testing.T) {
	rating := 4.2
	count := 80
	searcher := &stubSearcher{
		mentions: []model.Mention{{URL: "https://www.reuters.com/acme", Source: model.SourceNews}},
		profiles: []search.Profile{{Platform: "x", URL: "https://x.com/acme", Source: "stub"}},
	}
	s := NewScanner(
		searcher,
		&stubAnalyzer{analysis: positiveAnalysis("https://www.reuters.com/acme")},
		stubAdviser{},
		&stubExtractor{profiles: map[string]string{"facebook": "https://www.facebook.com/acme"}},
		&stubFinder{profile: &model.PlacesProfile{
			PlaceID: "pid-1", Name: "Acme", Phone: "(512) 555-0100",
			Rating: &rating, RatingCount: &count,
		}},
		config.ScanConfig{},
	)

	result, err := s.Run(context.Background(), model.BusinessIdentity{
		Name: "Acme", Domain: "acme.com", Location: "Austin TX",
	})
	require.NoError(t, err)

	assert.Equal(t, 56, result.ReputationScore)
	assert.Equal(t, model.SentimentPositive, result.Sentiment.Overall)
	require.NotNil(t, result.PlacesProfile)
	assert.True(t, result.PlacesProfile.Found)
	require.NotNil(t, result.VisibilityScore)
	assert.Equal(t, "(512) 555-0100", result.Identity.Phone)

	assert.Equal(t, "https://www.facebook.com/acme", result.SocialProfiles["facebook"])
	assert.Equal(t, "https://x.com/acme", result.SocialProfiles["x"])
	assert.NotContains(t, searcher.askedFor, "facebook")
	assert.Contains(t, searcher.askedFor, "x")

	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "narrative", result.Narrative)
}

func TestScannerRunNoMentions(t *testing.T) {
	s := NewScanner(&stubSearcher{}, &stubAnalyzer{}, stubAdviser{}, nil, nil, config.ScanConfig{})

	_, err := s.Run(context.Background(), model.BusinessIdentity{Name: "Acme"})
	var runErr *model.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, model.CodeBusinessNotFound, runErr.Code)
}

func TestScannerRunAnalysisFailure(t *testing.T) {
	searcher := &stubSearcher{mentions: []model.Mention{{URL: "https://a.example.com"}}}
	analyzer := &stubAnalyzer{err: model.NewRunError(model.CodeAnalysisError, "boom")}
	s := NewScanner(searcher, analyzer, stubAdviser{}, nil, nil, config.ScanConfig{})

	_, err := s.Run(context.Background(), model.BusinessIdentity{Name: "Acme"})
	var runErr *model.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, model.CodeAnalysisError, runErr.Code)
}

func TestScannerSkipPlaces(t *testing.T) {
	finder := &stubFinder{profile: &model.PlacesProfile{PlaceID: "pid-1"}}
	searcher := &stubSearcher{
		mentions: []model.Mention{{URL: "https://a.example.com", Source: model.SourceBlog}},
	}
	s := NewScanner(searcher, &stubAnalyzer{analysis: positiveAnalysis("https://a.example.com")},
		stubAdviser{}, nil, finder, config.ScanConfig{SkipPlaces: true})

	result, err := s.Run(context.Background(), model.BusinessIdentity{Name: "Acme"})
	require.NoError(t, err)
	require.NotNil(t, result.PlacesProfile)
	assert.False(t, result.PlacesProfile.Found)
	assert.Equal(t, "disabled", result.PlacesProfile.Reason)
	assert.Nil(t, result.VisibilityScore)
}

func TestScannerNoPlacesClient(t *testing.T) {
	searcher := &stubSearcher{
		mentions: []model.Mention{{URL: "https://a.example.com", Source: model.SourceBlog}},
	}
	s := NewScanner(searcher, &stubAnalyzer{analysis: positiveAnalysis("https://a.example.com")},
		stubAdviser{}, nil, nil, config.ScanConfig{})

	result, err := s.Run(context.Background(), model.BusinessIdentity{Name: "Acme"})
	require.NoError(t, err)
	require.NotNil(t, result.PlacesProfile)
	assert.False(t, result.PlacesProfile.Found)
	assert.Equal(t, "missing_api_key", result.PlacesProfile.Reason)
}

func TestScannerPlacesFailureIsNonFatal(t *testing.T) {
	searcher := &stubSearcher{
		mentions: []model.Mention{{URL: "https://a.example.com", Source: model.SourceBlog}},
	}
	s := NewScanner(searcher, &stubAnalyzer{analysis: positiveAnalysis("https://a.example.com")},
		stubAdviser{}, nil, &stubFinder{err: assert.AnError}, config.ScanConfig{})

	result, err := s.Run(context.Background(), model.BusinessIdentity{Name: "Acme"})
	require.NoError(t, err)
	require.NotNil(t, result.PlacesProfile)
	assert.False(t, result.PlacesProfile.Found)
	assert.Equal(t, "lookup_failed", result.PlacesProfile.Reason)
}
