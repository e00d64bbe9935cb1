// Package scoring computes the numeric reputation and visibility scores
// from collected mentions, sentiment analysis and Places data.
package scoring

import (
	"math"

	"github.com/reputationai/reputation-audit/internal/model"
)

const (
	scoreBase = 50.0

	// mentionBoost amplifies each mention's sentiment in its direction,
	// scaled by the source weight.
	mentionBoost = 5.0

	// themeStep contributes per theme occurrence, damped so themes nudge
	// rather than dominate.
	themeStep   = 2.0
	themeDamper = 0.1
)

// ReputationScore folds mention sentiment and themes into a 0-100 score. A
// business with no analyzed mentions sits at the neutral base.
func ReputationScore(mentions []model.Mention, analysis *model.SentimentAnalysis) model.ScoreDetail {
	detail := model.ScoreDetail{
		Base:         scoreBase,
		MentionCount: len(mentions),
	}
	if analysis != nil {
		detail.ThemeCount = len(analysis.Themes)
	}

	score := scoreBase
	if len(mentions) > 0 && analysis != nil {
		var sum float64
		for _, m := range mentions {
			v := float64(analysis.MentionSentiment(m.URL).Value())
			w := m.Source.Weight()
			sum += v*w + mentionBoost*w*sign(v)
		}
		score += sum / float64(len(mentions))

		var themeAdj float64
		for _, t := range analysis.Themes {
			themeAdj += float64(t.Sentiment.Value()) * themeStep * float64(t.Frequency)
		}
		score += themeAdj * themeDamper
	}

	detail.Score = int(math.Round(clamp(score, 0, 100)))
	return detail
}

// VisibilityScore combines a Places rating and review volume into a 0-100
// presence score. It returns nil when neither input exists.
func VisibilityScore(rating *float64, ratingCount *int) *int {
	if rating == nil && ratingCount == nil {
		return nil
	}

	var ratingPart float64
	if rating != nil {
		ratingPart = clamp(*rating, 0, 5) / 5
	}

	var volumePart float64
	if ratingCount != nil && *ratingCount > 0 {
		volumePart = math.Min(1, math.Log10(float64(*ratingCount)+1)/3)
	}

	score := int(math.Round((ratingPart*0.7 + volumePart*0.3) * 100))
	return &score
}

// Interpretation maps a reputation score to its owner-facing band.
func Interpretation(score int) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	case score >= 20:
		return "Poor"
	default:
		return "Critical"
	}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
