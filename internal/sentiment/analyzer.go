// Package sentiment classifies collected mentions and aggregates them into
// an overall sentiment picture with recurring themes.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reputationai/reputation-audit/internal/config"
	"github.com/reputationai/reputation-audit/internal/model"
	"github.com/reputationai/reputation-audit/pkg/anthropic"
)

const (
	maxThemes      = 10
	maxTopMentions = 10
)

const classifySystem = `You are a brand reputation analyst. Classify how a web mention
reflects on the business. Respond with JSON only, no prose:
{"sentiment":"positive|neutral|negative","summary":"<one sentence>","themes":["<short theme>", ...]}
Themes are recurring topics such as "customer service" or "billing disputes". At most 3 themes.`

// ContentProvider supplies page text for a mention URL. It is optional;
// classification falls back to the search snippet when fetching fails.
type ContentProvider interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Analyzer runs the per-mention classification and aggregation pass.
type Analyzer struct {
	client  anthropic.Client
	content ContentProvider
	model   string
	tokens  int64
	workers int
}

// NewAnalyzer builds an analyzer. content may be nil.
func NewAnalyzer(client anthropic.Client, content ContentProvider, cfg config.AnthropicConfig, scan config.ScanConfig) *Analyzer {
	workers := scan.SentimentConcurrent
	if workers <= 0 {
		workers = 3
	}
	tokens := cfg.MaxTokens
	if tokens <= 0 {
		tokens = 1024
	}
	return &Analyzer{
		client:  client,
		content: content,
		model:   cfg.AnalysisModel,
		tokens:  tokens,
		workers: workers,
	}
}

type classification struct {
	Sentiment string   `json:"sentiment"`
	Summary   string   `json:"summary"`
	Themes    []string `json:"themes"`
}

// Analyze classifies every mention concurrently and folds the results into
// one SentimentAnalysis. Individually failed classifications are excluded
// from the aggregate; the pass fails only when every mention fails.
func (a *Analyzer) Analyze(ctx context.Context, businessName string, mentions []model.Mention) (*model.SentimentAnalysis, error) {
	if len(mentions) == 0 {
		return &model.SentimentAnalysis{Overall: model.SentimentNeutral}, nil
	}

	type outcome struct {
		mention model.Mention
		result  *classification
	}

	var mu sync.Mutex
	outcomes := make([]outcome, 0, len(mentions))
	failures := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for _, m := range mentions {
		m := m
		g.Go(func() error {
			c, err := a.classify(gctx, businessName, m)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failures++
				zap.L().Warn("mention classification failed",
					zap.String("url", m.URL),
					zap.Error(err))
				return nil
			}
			outcomes = append(outcomes, outcome{mention: m, result: c})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if failures == len(mentions) {
		return nil, model.NewRunError(model.CodeAnalysisError, "sentiment classification failed for all mentions")
	}

	// Restore collection order; outcomes arrive in completion order.
	order := make(map[string]int, len(mentions))
	for i, m := range mentions {
		order[m.URL] = i
	}
	sort.SliceStable(outcomes, func(i, j int) bool {
		return order[outcomes[i].mention.URL] < order[outcomes[j].mention.URL]
	})

	analysis := &model.SentimentAnalysis{}
	var positive, neutral, negative int
	themeCounts := make(map[string]*model.Theme)

	for _, o := range outcomes {
		s := normalizeSentiment(o.result.Sentiment)
		switch s {
		case model.SentimentPositive:
			positive++
		case model.SentimentNegative:
			negative++
		default:
			neutral++
		}

		if len(analysis.TopMentions) < maxTopMentions {
			analysis.TopMentions = append(analysis.TopMentions, model.ScoredMention{
				URL:       o.mention.URL,
				Title:     o.mention.Title,
				Sentiment: s,
				Summary:   o.result.Summary,
			})
		}

		// Neutral mentions carry no signal worth theming.
		if s == model.SentimentNeutral {
			continue
		}
		for _, name := range o.result.Themes {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			if t, ok := themeCounts[name]; ok {
				t.Frequency++
			} else {
				themeCounts[name] = &model.Theme{Name: name, Sentiment: s, Frequency: 1}
			}
		}
	}

	total := float64(positive + neutral + negative)
	analysis.Breakdown = model.SentimentBreakdown{
		Positive: math.Round(float64(positive) / total * 100),
		Neutral:  math.Round(float64(neutral) / total * 100),
		Negative: math.Round(float64(negative) / total * 100),
	}
	analysis.Overall = analysis.Breakdown.Majority()
	analysis.Themes = topThemes(themeCounts)
	analysis.Summary = summarize(businessName, analysis, len(outcomes))

	return analysis, nil
}

func (a *Analyzer) classify(ctx context.Context, businessName string, m model.Mention) (*classification, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Business: %s\nURL: %s\nSource type: %s\n", businessName, m.URL, m.Source)
	if m.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", m.Title)
	}
	if m.Snippet != "" {
		fmt.Fprintf(&sb, "Snippet: %s\n", m.Snippet)
	}
	if a.content != nil {
		if text, err := a.content.Fetch(ctx, m.URL); err == nil && text != "" {
			fmt.Fprintf(&sb, "Page text: %s\n", text)
		}
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.tokens,
		System:    classifySystem,
		Messages:  []anthropic.Message{{Role: "user", Content: sb.String()}},
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(a.model, "sentiment")

	var c classification
	if err := json.Unmarshal([]byte(stripFences(resp.Text())), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func normalizeSentiment(s string) model.Sentiment {
	switch model.Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case model.SentimentPositive:
		return model.SentimentPositive
	case model.SentimentNegative:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}

func topThemes(counts map[string]*model.Theme) []model.Theme {
	themes := make([]model.Theme, 0, len(counts))
	for _, t := range counts {
		themes = append(themes, *t)
	}
	sort.Slice(themes, func(i, j int) bool {
		if themes[i].Frequency != themes[j].Frequency {
			return themes[i].Frequency > themes[j].Frequency
		}
		return themes[i].Name < themes[j].Name
	})
	if len(themes) > maxThemes {
		themes = themes[:maxThemes]
	}
	return themes
}

func summarize(businessName string, a *model.SentimentAnalysis, mentionCount int) string {
	return fmt.Sprintf("%s appears in %d analyzed mentions: %.0f%% positive, %.0f%% neutral, %.0f%% negative, overall %s.",
		businessName, mentionCount,
		a.Breakdown.Positive, a.Breakdown.Neutral, a.Breakdown.Negative, a.Overall)
}

// stripFences removes a leading/trailing markdown code fence, which models
// sometimes wrap JSON in despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
