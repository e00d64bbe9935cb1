package sentiment

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputationai/reputation-audit/internal/config"
	"github.com/reputationai/reputation-audit/internal/model"
	"github.com/reputationai/reputation-audit/pkg/anthropic"
)

type fakeMessageClient struct {
	byURL   map[string]string
	failURL string
	err     error
}

func (f *fakeMessageClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	prompt := req.Messages[0].Content
	if f.failURL != "" && strings.Contains(prompt, f.failURL) {
		return nil, assert.AnError
	}
	for url, reply := range f.byURL {
		if strings.Contains(prompt, url) {
			return textResponse(reply), nil
		}
	}
	return textResponse(`{"sentiment":"neutral"}`), nil
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func newTestAnalyzer(client anthropic.Client) *Analyzer {
	return NewAnalyzer(client, nil,
		config.AnthropicConfig{AnalysisModel: "claude-haiku-4-5-20251001", MaxTokens: 512},
		config.ScanConfig{SentimentConcurrent: 2})
}

func TestAnalyze(t *testing.T) {
	client := &fakeMessageClient{byURL: map[string]string{
		"https://a.example.com": `{"sentiment":"positive","summary":"Praised for fast service.","themes":["customer service"]}`,
		"https://b.example.com": `{"sentiment":"positive","summary":"Five-star review.","themes":["customer service","pricing"]}`,
		"https://c.example.com": `{"sentiment":"negative","summary":"Billing complaint.","themes":["billing"]}`,
		"https://d.example.com": `{"sentiment":"neutral","summary":"Directory listing."}`,
	}}
	a := newTestAnalyzer(client)

	mentions := []model.Mention{
		{URL: "https://a.example.com", Title: "A", Source: model.SourceReviews},
		{URL: "https://b.example.com", Title: "B", Source: model.SourceReviews},
		{URL: "https://c.example.com", Title: "C", Source: model.SourceForum},
		{URL: "https://d.example.com", Title: "D", Source: model.SourceBlog},
	}

	analysis, err := a.Analyze(context.Background(), "Acme", mentions)
	require.NoError(t, err)

	assert.Equal(t, model.SentimentPositive, analysis.Overall)
	assert.Equal(t, 50.0, analysis.Breakdown.Positive)
	assert.Equal(t, 25.0, analysis.Breakdown.Neutral)
	assert.Equal(t, 25.0, analysis.Breakdown.Negative)

	require.Len(t, analysis.TopMentions, 4)
	assert.Equal(t, "https://a.example.com", analysis.TopMentions[0].URL)
	assert.Equal(t, model.SentimentPositive, analysis.TopMentions[0].Sentiment)

	require.NotEmpty(t, analysis.Themes)
	assert.Equal(t, "customer service", analysis.Themes[0].Name)
	assert.Equal(t, 2, analysis.Themes[0].Frequency)

	assert.Contains(t, analysis.Summary, "Acme")
}

func TestAnalyzeNoMentions(t *testing.T) {
	a := newTestAnalyzer(&fakeMessageClient{})

	analysis, err := a.Analyze(context.Background(), "Acme", nil)
	require.NoError(t, err)
	assert.Equal(t, model.SentimentNeutral, analysis.Overall)
	assert.Empty(t, analysis.Themes)
	assert.Empty(t, analysis.TopMentions)
}

func TestAnalyzeExcludesFailedClassifications(t *testing.T) {
	client := &fakeMessageClient{
		byURL: map[string]string{
			"https://a.example.com": `{"sentiment":"positive","summary":"Praised."}`,
		},
		failURL: "https://b.example.com",
	}
	a := newTestAnalyzer(client)

	analysis, err := a.Analyze(context.Background(), "Acme", []model.Mention{
		{URL: "https://a.example.com", Source: model.SourceReviews},
		{URL: "https://b.example.com", Source: model.SourceBlog},
	})
	require.NoError(t, err)

	assert.Equal(t, 100.0, analysis.Breakdown.Positive)
	require.Len(t, analysis.TopMentions, 1)
	assert.Equal(t, "https://a.example.com", analysis.TopMentions[0].URL)
}

func TestAnalyzeAllFailuresIsError(t *testing.T) {
	a := newTestAnalyzer(&fakeMessageClient{err: assert.AnError})

	_, err := a.Analyze(context.Background(), "Acme", []model.Mention{{URL: "https://a.example.com"}})
	require.Error(t, err)

	var runErr *model.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, model.CodeAnalysisError, runErr.Code)
}

func TestAnalyzeToleratesCodeFences(t *testing.T) {
	client := &fakeMessageClient{byURL: map[string]string{
		"https://a.example.com": "```json\n{\"sentiment\":\"negative\",\"summary\":\"Lawsuit coverage.\"}\n```",
	}}
	a := newTestAnalyzer(client)

	analysis, err := a.Analyze(context.Background(), "Acme", []model.Mention{
		{URL: "https://a.example.com", Source: model.SourceNews},
	})
	require.NoError(t, err)
	assert.Equal(t, model.SentimentNegative, analysis.Overall)
}

func TestNormalizeSentiment(t *testing.T) {
	assert.Equal(t, model.SentimentPositive, normalizeSentiment(" Positive "))
	assert.Equal(t, model.SentimentNegative, normalizeSentiment("negative"))
	assert.Equal(t, model.SentimentNeutral, normalizeSentiment("mixed"))
	assert.Equal(t, model.SentimentNeutral, normalizeSentiment(""))
}
