package model

// Recommendation is one concrete action the business can take to improve
// its reputation.
type Recommendation struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"` // high, medium, low
	Category    string `json:"category,omitempty"`
}

// ScoreDetail breaks the reputation score into its inputs so the result can
// explain itself.
type ScoreDetail struct {
	Score        int     `json:"score"`
	Base         float64 `json:"base"`
	MentionCount int     `json:"mention_count"`
	ThemeCount   int     `json:"theme_count"`
}

// ScanResult is the full outcome of a successful audit scan.
type ScanResult struct {
	Identity        BusinessIdentity  `json:"identity"`
	ReputationScore int               `json:"reputation_score"`
	ScoreDetail     ScoreDetail       `json:"score_detail"`
	Sentiment       SentimentAnalysis `json:"sentiment"`
	Mentions        []Mention         `json:"mentions"`
	SocialProfiles  map[string]string `json:"social_profiles,omitempty"`
	PlacesProfile   *PlacesProfile    `json:"places_profile,omitempty"`
	VisibilityScore *int              `json:"visibility_score,omitempty"`
	Recommendations []Recommendation  `json:"recommendations,omitempty"`
	Narrative       string            `json:"narrative,omitempty"`
}
