package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputationai/reputation-audit/internal/config"
	"github.com/reputationai/reputation-audit/pkg/perplexity"
)

type fakeChatClient struct {
	responses map[string]*perplexity.ChatCompletionResponse
	err       error
	calls     []string
}

func (f *fakeChatClient) ChatCompletion(_ context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	q := req.Messages[len(req.Messages)-1].Content
	f.calls = append(f.calls, q)
	if f.err != nil {
		return nil, f.err
	}
	if resp, ok := f.responses[q]; ok {
		return resp, nil
	}
	return &perplexity.ChatCompletionResponse{}, nil
}

func chatResponse(content string, citations ...string) *perplexity.ChatCompletionResponse {
	return &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{
			{Message: perplexity.Message{Role: "assistant", Content: content}},
		},
		Citations: citations,
	}
}

func TestLLMSearchMentions(t *testing.T) {
	client := &fakeChatClient{
		responses: map[string]*perplexity.ChatCompletionResponse{
			"Search for information about: Acme Austin": chatResponse(
				"Customers praise [Acme on Yelp](https://www.yelp.com/biz/acme-austin). "+
					"A complaint thread lives at https://www.reddit.com/r/austin/comments/xyz.",
				"https://www.bbb.org/us/tx/austin/profile/acme",
			),
		},
	}
	s := NewLLMSearcher(client, config.SearchConfig{Retries: 0})

	mentions, err := s.SearchMentions(context.Background(), "Acme", "Austin")
	require.NoError(t, err)
	require.NotEmpty(t, mentions)

	byURL := make(map[string]bool)
	for _, m := range mentions {
		byURL[m.URL] = true
		assert.Equal(t, "llm", m.Provider)
	}
	assert.True(t, byURL["https://www.yelp.com/biz/acme-austin"])
	assert.True(t, byURL["https://www.reddit.com/r/austin/comments/xyz"])
	assert.True(t, byURL["https://www.bbb.org/us/tx/austin/profile/acme"])

	for _, m := range mentions {
		if m.URL == "https://www.yelp.com/biz/acme-austin" {
			assert.Equal(t, "Acme on Yelp", m.Title)
		}
	}
}

func TestLLMSearchMentionsAllQueriesFail(t *testing.T) {
	client := &fakeChatClient{err: assert.AnError}
	s := NewLLMSearcher(client, config.SearchConfig{Retries: 0})

	_, err := s.SearchMentions(context.Background(), "Acme", "")
	assert.Error(t, err)
}

func TestLLMSearchSocialProfiles(t *testing.T) {
	client := &fakeChatClient{
		responses: map[string]*perplexity.ChatCompletionResponse{
			"Search for information about: Acme X account profile": chatResponse(
				"The official account is https://x.com/acmeplumbing and a recent post " +
					"is https://x.com/acmeplumbing/status/123.",
			),
			"Search for information about: Acme facebook profile": chatResponse(
				"See https://www.facebook.com/acme/posts/987 for the announcement.",
			),
		},
	}
	s := NewLLMSearcher(client, config.SearchConfig{Retries: 0})

	profiles, err := s.SearchSocialProfiles(context.Background(), "Acme", []string{"x", "facebook"}, "")
	require.NoError(t, err)

	require.Len(t, profiles, 1)
	assert.Equal(t, "x", profiles[0].Platform)
	assert.Equal(t, "https://x.com/acmeplumbing", profiles[0].URL)
	assert.Equal(t, "llm", profiles[0].Source)
}

func TestCleanURL(t *testing.T) {
	assert.Equal(t, "https://example.com/a", cleanURL("https://example.com/a."))
	assert.Equal(t, "https://example.com/a", cleanURL(" https://example.com/a, "))
}

func TestSnippetAround(t *testing.T) {
	content := "Before text https://example.com/a after text."
	snippet := snippetAround(content, "https://example.com/a")
	assert.Contains(t, snippet, "Before text")
	assert.Contains(t, snippet, "after text.")
	assert.Equal(t, "", snippetAround(content, "https://missing.example.com"))
}
