package search

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/reputationai/reputation-audit/internal/config"
	"github.com/reputationai/reputation-audit/internal/model"
	"github.com/reputationai/reputation-audit/internal/resilience"
	"github.com/reputationai/reputation-audit/pkg/perplexity"
)

var (
	urlPattern      = regexp.MustCompile(`https?://[^\s"<>)\]]+`)
	markdownLinkPat = regexp.MustCompile(`\[([^\]]+)\]\(` + `([^)]+)\)`)
)

// LLMSearcher collects mentions by asking a web-search LLM to research the
// business. URLs come from both the answer text and the citation list.
type LLMSearcher struct {
	client  perplexity.Client
	cfg     config.SearchConfig
	breaker *resilience.Breaker
}

// NewLLMSearcher builds a searcher on the given chat-completion client.
func NewLLMSearcher(client perplexity.Client, cfg config.SearchConfig) *LLMSearcher {
	bc := resilience.DefaultBreakerConfig()
	bc.OnStateChange = resilience.BreakerLogger("llm")
	return &LLMSearcher{client: client, cfg: cfg, breaker: resilience.NewBreaker(bc)}
}

// Name implements Searcher.
func (s *LLMSearcher) Name() string { return "llm" }

// SearchMentions implements Searcher. Each query in the battery becomes one
// chat completion; individual query failures are logged and skipped so a
// single bad query does not sink the whole collection.
func (s *LLMSearcher) SearchMentions(ctx context.Context, name, location string) ([]model.Mention, error) {
	queries := MentionQueries(name, location)

	var all []model.Mention
	failures := 0
	for _, q := range queries {
		mentions, err := s.runQuery(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			zap.L().Warn("llm search query failed",
				zap.String("query", q),
				zap.Error(err))
			continue
		}
		all = append(all, mentions...)
	}
	if failures == len(queries) && len(queries) > 0 {
		return nil, model.NewRunError(model.CodeAnalysisError, "all mention search queries failed")
	}

	return FilterHighSignal(all), nil
}

// SearchSocialProfiles implements Searcher.
func (s *LLMSearcher) SearchSocialProfiles(ctx context.Context, name string, platforms []string, location string) ([]Profile, error) {
	var profiles []Profile
	for _, platform := range platforms {
		q := PlatformQuery(name, platform)
		if q == "" {
			continue
		}
		mentions, err := s.runQuery(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Warn("llm profile query failed",
				zap.String("platform", platform),
				zap.Error(err))
			continue
		}
		if u := selectProfileURL(mentions, platform); u != "" {
			profiles = append(profiles, Profile{Platform: platform, URL: u, Source: s.Name()})
		}
	}
	return profiles, nil
}

func (s *LLMSearcher) runQuery(ctx context.Context, query string) ([]model.Mention, error) {
	retryCfg := resilience.DefaultRetryConfig()
	if s.cfg.Retries >= 0 {
		retryCfg.MaxAttempts = s.cfg.Retries + 1
	}
	retryCfg.OnRetry = resilience.RetryLogger(s.Name(), "chat completion")

	resp, err := resilience.BreakVal(ctx, s.breaker, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
		return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
			return s.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
				Messages: []perplexity.Message{
					{Role: "user", Content: "Search for information about: " + query},
				},
			})
		})
	})
	if err != nil {
		return nil, err
	}

	return s.extractMentions(resp), nil
}

// extractMentions pulls every URL out of the answer text and the citation
// list and turns each into a mention. Markdown link labels become titles;
// otherwise the host stands in.
func (s *LLMSearcher) extractMentions(resp *perplexity.ChatCompletionResponse) []model.Mention {
	content := resp.Content()

	titles := make(map[string]string)
	for _, match := range markdownLinkPat.FindAllStringSubmatch(content, -1) {
		titles[cleanURL(match[2])] = strings.TrimSpace(match[1])
	}

	var urls []string
	for _, raw := range urlPattern.FindAllString(content, -1) {
		urls = append(urls, cleanURL(raw))
	}
	urls = append(urls, resp.Citations...)

	var mentions []model.Mention
	seen := make(map[string]bool)
	for _, u := range urls {
		u = cleanURL(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true

		mentions = append(mentions, model.Mention{
			URL:      u,
			Title:    s.titleFor(u, titles),
			Snippet:  snippetAround(content, u),
			Source:   ClassifySource(u),
			Domain:   hostOf(u),
			Provider: s.Name(),
		})
	}
	return mentions
}

func (s *LLMSearcher) titleFor(u string, titles map[string]string) string {
	if t, ok := titles[u]; ok && t != "" {
		return t
	}
	return hostOf(u)
}

// snippetAround returns up to 100 characters of answer text on either side
// of the URL, so sentiment analysis has some context to work with.
func snippetAround(content, u string) string {
	idx := strings.Index(content, u)
	if idx < 0 {
		return ""
	}
	start := idx - 100
	if start < 0 {
		start = 0
	}
	end := idx + len(u) + 100
	if end > len(content) {
		end = len(content)
	}
	return strings.TrimSpace(strings.Join(strings.Fields(content[start:end]), " "))
}

// cleanURL strips trailing punctuation the URL regex tends to swallow.
func cleanURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), ".,;:!?'\"")
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}
