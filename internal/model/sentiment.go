package model

// Sentiment is the polarity assigned to a mention or to the overall picture.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Value maps a sentiment to its scoring direction: +1, 0 or -1.
func (s Sentiment) Value() int {
	switch s {
	case SentimentPositive:
		return 1
	case SentimentNegative:
		return -1
	default:
		return 0
	}
}

// SentimentBreakdown holds the share of mentions in each bucket, as
// percentages that sum to roughly 100.
type SentimentBreakdown struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// Majority returns the bucket with the largest share. Ties resolve in the
// order positive, neutral, negative.
func (b SentimentBreakdown) Majority() Sentiment {
	if b.Positive >= b.Neutral && b.Positive >= b.Negative {
		return SentimentPositive
	}
	if b.Neutral >= b.Negative {
		return SentimentNeutral
	}
	return SentimentNegative
}

// Theme is a recurring topic across mentions, with how often it showed up
// and which way it leans.
type Theme struct {
	Name      string    `json:"name"`
	Sentiment Sentiment `json:"sentiment"`
	Frequency int       `json:"frequency"`
}

// ScoredMention is an individual mention the analyzer called out, with its
// assigned sentiment.
type ScoredMention struct {
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Sentiment Sentiment `json:"sentiment"`
	Summary   string    `json:"summary,omitempty"`
}

// SentimentAnalysis is the aggregate output of the sentiment pass over all
// collected mentions.
type SentimentAnalysis struct {
	Overall     Sentiment          `json:"overall_sentiment"`
	Breakdown   SentimentBreakdown `json:"breakdown"`
	Themes      []Theme            `json:"themes,omitempty"`
	TopMentions []ScoredMention    `json:"top_mentions,omitempty"`
	Summary     string             `json:"summary,omitempty"`
}

// MentionSentiment resolves the sentiment for one collected mention. An
// exact URL match against the analyzer's top mentions wins; otherwise the
// majority bucket stands in, and an empty breakdown reads as neutral.
func (a SentimentAnalysis) MentionSentiment(url string) Sentiment {
	for _, m := range a.TopMentions {
		if m.URL == url {
			return m.Sentiment
		}
	}
	if a.Breakdown == (SentimentBreakdown{}) {
		return SentimentNeutral
	}
	return a.Breakdown.Majority()
}
