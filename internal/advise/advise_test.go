package advise

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputationai/reputation-audit/internal/config"
	"github.com/reputationai/reputation-audit/internal/model"
	"github.com/reputationai/reputation-audit/pkg/anthropic"
)

type fakeMessageClient struct {
	text string
	err  error
}

func (f *fakeMessageClient) CreateMessage(context.Context, anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.text}},
	}, nil
}

func newTestAdviser(client anthropic.Client) *Adviser {
	return NewAdviser(client, config.AnthropicConfig{SynthesisModel: "claude-sonnet-4-5-20250929", MaxTokens: 512})
}

func sampleResult() *model.ScanResult {
	score := 72
	return &model.ScanResult{
		Identity:        model.BusinessIdentity{Name: "Acme Plumbing", Location: "Austin TX"},
		ReputationScore: 64,
		Sentiment: model.SentimentAnalysis{
			Overall:   model.SentimentPositive,
			Breakdown: model.SentimentBreakdown{Positive: 60, Neutral: 30, Negative: 10},
			Themes: []model.Theme{
				{Name: "customer service", Sentiment: model.SentimentPositive, Frequency: 4},
			},
		},
		Mentions:        []model.Mention{{URL: "https://www.yelp.com/biz/acme"}},
		SocialProfiles:  map[string]string{"facebook": "https://www.facebook.com/acme"},
		VisibilityScore: &score,
	}
}

func TestRecommendParsesLLMOutput(t *testing.T) {
	client := &fakeMessageClient{text: `[
		{"title":"Reply to reviews","description":"...","priority":"high","category":"reviews"},
		{"title":"Post weekly","description":"...","priority":"medium","category":"social"}
	]`}
	a := newTestAdviser(client)

	recs := a.Recommend(context.Background(), sampleResult())
	require.Len(t, recs, 2)
	assert.Equal(t, "Reply to reviews", recs[0].Title)
	assert.Equal(t, "high", recs[0].Priority)
}

func TestRecommendFallsBackOnError(t *testing.T) {
	a := newTestAdviser(&fakeMessageClient{err: assert.AnError})

	recs := a.Recommend(context.Background(), sampleResult())
	require.NotEmpty(t, recs)
	assert.LessOrEqual(t, len(recs), maxRecommendations)
}

func TestRecommendFallsBackOnGarbage(t *testing.T) {
	a := newTestAdviser(&fakeMessageClient{text: "sorry, I cannot help with that"})

	recs := a.Recommend(context.Background(), sampleResult())
	require.NotEmpty(t, recs)
}

func TestNarrative(t *testing.T) {
	a := newTestAdviser(&fakeMessageClient{text: "Acme Plumbing enjoys a solid reputation."})

	narrative := a.Narrative(context.Background(), sampleResult())
	assert.Equal(t, "Acme Plumbing enjoys a solid reputation.", narrative)
}

func TestNarrativeFallsBack(t *testing.T) {
	a := newTestAdviser(&fakeMessageClient{err: assert.AnError})

	narrative := a.Narrative(context.Background(), sampleResult())
	assert.Contains(t, narrative, "Acme Plumbing")
	assert.Contains(t, narrative, "64 out of 100")
	assert.Contains(t, narrative, "customer service")
}

func TestFallbackRecommendationsNegativeScan(t *testing.T) {
	result := sampleResult()
	result.Sentiment.Breakdown = model.SentimentBreakdown{Positive: 20, Neutral: 30, Negative: 50}
	result.Sentiment.Themes = []model.Theme{
		{Name: "customer service", Sentiment: model.SentimentPositive, Frequency: 4},
		{Name: "billing disputes", Sentiment: model.SentimentNegative, Frequency: 3},
	}

	recs := FallbackRecommendations(result)
	titles := make([]string, 0, len(recs))
	for _, r := range recs {
		titles = append(titles, r.Title)
	}
	assert.Contains(t, titles, "Address concerns about: billing disputes")
	assert.Contains(t, titles, "Respond to negative reviews")
	assert.Contains(t, titles, "Monitor brand mentions regularly")
	assert.NotContains(t, titles, "Leverage positive testimonials")
	assert.LessOrEqual(t, len(recs), maxRecommendations)
}

func TestFallbackRecommendationsPositiveScan(t *testing.T) {
	result := sampleResult()
	result.Sentiment.Breakdown = model.SentimentBreakdown{Positive: 70, Neutral: 20, Negative: 10}
	result.Sentiment.Themes = nil

	recs := FallbackRecommendations(result)
	require.NotEmpty(t, recs)
	assert.Equal(t, "Leverage positive testimonials", recs[0].Title)
}
