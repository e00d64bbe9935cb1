// Package advise turns a completed scan into recommendations and a
// narrative summary. Both prefer LLM synthesis but degrade to deterministic
// output so a scan never fails at the advice stage.
package advise

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/reputationai/reputation-audit/internal/config"
	"github.com/reputationai/reputation-audit/internal/model"
	"github.com/reputationai/reputation-audit/internal/scoring"
	"github.com/reputationai/reputation-audit/pkg/anthropic"
)

const maxRecommendations = 5

const recommendSystem = `You are a brand reputation consultant. Given a reputation scan,
propose concrete next actions. Respond with JSON only:
[{"title":"...","description":"...","priority":"high|medium|low","category":"reviews|social|content|monitoring"}]
At most 5 recommendations, ordered by priority.`

const narrativeSystem = `You are a brand reputation consultant. Write a short narrative
(2-3 paragraphs, plain prose, no headings) summarizing the business's online reputation
for its owner: where it stands, what drives the score, and what to watch.`

// Adviser produces recommendations and a narrative for a scan result.
type Adviser struct {
	client anthropic.Client
	model  string
	tokens int64
}

// NewAdviser builds an adviser on the synthesis model.
func NewAdviser(client anthropic.Client, cfg config.AnthropicConfig) *Adviser {
	tokens := cfg.MaxTokens
	if tokens <= 0 {
		tokens = 1024
	}
	return &Adviser{client: client, model: cfg.SynthesisModel, tokens: tokens}
}

// Recommend proposes next actions for the business. LLM failures fall back
// to rule-based recommendations so the scan still completes.
func (a *Adviser) Recommend(ctx context.Context, result *model.ScanResult) []model.Recommendation {
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.tokens,
		System:    recommendSystem,
		Messages:  []anthropic.Message{{Role: "user", Content: scanDigest(result)}},
	})
	if err == nil {
		resp.Usage.LogCost(a.model, "recommendations")
		var recs []model.Recommendation
		if jsonErr := json.Unmarshal([]byte(stripFences(resp.Text())), &recs); jsonErr == nil && len(recs) > 0 {
			if len(recs) > maxRecommendations {
				recs = recs[:maxRecommendations]
			}
			return recs
		}
		err = fmt.Errorf("advise: unparseable recommendations payload")
	}
	zap.L().Warn("recommendation synthesis failed, using rule-based fallback", zap.Error(err))
	return FallbackRecommendations(result)
}

// Narrative writes the owner-facing summary. LLM failures fall back to a
// templated narrative.
func (a *Adviser) Narrative(ctx context.Context, result *model.ScanResult) string {
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.tokens,
		System:    narrativeSystem,
		Messages:  []anthropic.Message{{Role: "user", Content: scanDigest(result)}},
	})
	if err == nil {
		resp.Usage.LogCost(a.model, "narrative")
		if text := strings.TrimSpace(resp.Text()); text != "" {
			return text
		}
		err = fmt.Errorf("advise: empty narrative")
	}
	zap.L().Warn("narrative synthesis failed, using templated fallback", zap.Error(err))
	return FallbackNarrative(result)
}

// FallbackRecommendations derives actions from the sentiment breakdown and
// the top negative theme with fixed rules.
func FallbackRecommendations(result *model.ScanResult) []model.Recommendation {
	var recs []model.Recommendation

	if theme := topNegativeTheme(result.Sentiment.Themes); theme != "" {
		recs = append(recs, model.Recommendation{
			Title:       "Address concerns about: " + theme,
			Description: "This topic comes up repeatedly in negative mentions. Resolve the underlying issue and respond publicly where the complaints appear.",
			Priority:    "high",
			Category:    "reviews",
		})
	}
	if result.Sentiment.Breakdown.Negative > 30 {
		recs = append(recs, model.Recommendation{
			Title:       "Respond to negative reviews",
			Description: "A significant share of mentions is negative. Reply to critical reviews promptly and take recurring complaints offline.",
			Priority:    "high",
			Category:    "reviews",
		})
	}
	if result.Sentiment.Breakdown.Positive > 60 {
		recs = append(recs, model.Recommendation{
			Title:       "Leverage positive testimonials",
			Description: "Most coverage is positive. Feature the best reviews on your website and social channels.",
			Priority:    "medium",
			Category:    "content",
		})
	} else {
		recs = append(recs, model.Recommendation{
			Title:       "Improve service quality signals",
			Description: "Positive coverage is thin. Encourage satisfied customers to share their experience on review platforms.",
			Priority:    "medium",
			Category:    "reviews",
		})
	}
	recs = append(recs, model.Recommendation{
		Title:       "Monitor brand mentions regularly",
		Description: "Re-run an audit periodically to catch new coverage before it shapes customer perception.",
		Priority:    "low",
		Category:    "monitoring",
	})

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

func topNegativeTheme(themes []model.Theme) string {
	for _, t := range themes {
		if t.Sentiment == model.SentimentNegative {
			return t.Name
		}
	}
	return ""
}

// FallbackNarrative composes a templated summary from the scan numbers.
func FallbackNarrative(result *model.ScanResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s scores %d out of 100 (%s) for online reputation, based on %d analyzed mentions. ",
		result.Identity.Name, result.ReputationScore,
		strings.ToLower(scoring.Interpretation(result.ReputationScore)), len(result.Mentions))
	fmt.Fprintf(&sb, "Sentiment across those mentions runs %.0f%% positive, %.0f%% neutral and %.0f%% negative.",
		result.Sentiment.Breakdown.Positive, result.Sentiment.Breakdown.Neutral, result.Sentiment.Breakdown.Negative)
	if len(result.Sentiment.Themes) > 0 {
		names := make([]string, 0, len(result.Sentiment.Themes))
		for i, th := range result.Sentiment.Themes {
			if i == 3 {
				break
			}
			names = append(names, th.Name)
		}
		fmt.Fprintf(&sb, " Recurring topics include %s.", strings.Join(names, ", "))
	}
	if result.VisibilityScore != nil {
		fmt.Fprintf(&sb, " Local visibility sits at %d out of 100.", *result.VisibilityScore)
	}
	return sb.String()
}

// scanDigest flattens the scan into a compact prompt.
func scanDigest(result *model.ScanResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Business: %s", result.Identity.Name)
	if result.Identity.Location != "" {
		fmt.Fprintf(&sb, " (%s)", result.Identity.Location)
	}
	fmt.Fprintf(&sb, "\nReputation score: %d/100\n", result.ReputationScore)
	fmt.Fprintf(&sb, "Sentiment: %s (%.0f%% positive, %.0f%% neutral, %.0f%% negative)\n",
		result.Sentiment.Overall,
		result.Sentiment.Breakdown.Positive, result.Sentiment.Breakdown.Neutral, result.Sentiment.Breakdown.Negative)

	if len(result.Sentiment.Themes) > 0 {
		sb.WriteString("Themes:\n")
		for _, th := range result.Sentiment.Themes {
			fmt.Fprintf(&sb, "- %s (%s, seen %d times)\n", th.Name, th.Sentiment, th.Frequency)
		}
	}

	fmt.Fprintf(&sb, "Mentions analyzed: %d\n", len(result.Mentions))
	for _, m := range result.Sentiment.TopMentions {
		fmt.Fprintf(&sb, "- [%s] %s %s\n", m.Sentiment, m.URL, m.Summary)
	}

	if len(result.SocialProfiles) > 0 {
		fmt.Fprintf(&sb, "Social profiles found: %d\n", len(result.SocialProfiles))
	}
	if result.PlacesProfile != nil {
		fmt.Fprintf(&sb, "Business listing: %s", result.PlacesProfile.Name)
		if result.PlacesProfile.Rating != nil {
			fmt.Fprintf(&sb, ", rated %.1f", *result.PlacesProfile.Rating)
			if result.PlacesProfile.RatingCount != nil {
				fmt.Fprintf(&sb, " across %d reviews", *result.PlacesProfile.RatingCount)
			}
		}
		sb.WriteString("\n")
	}
	if result.VisibilityScore != nil {
		fmt.Fprintf(&sb, "Visibility score: %d/100\n", *result.VisibilityScore)
	}
	return sb.String()
}

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
