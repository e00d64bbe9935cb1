// Package search collects web mentions and social profiles for a business.
// The primary provider is an LLM with web search; Serper stands in as a
// transparent fallback when the primary comes back empty.
package search

import (
	"context"

	"github.com/reputationai/reputation-audit/internal/model"
)

// SocialPlatforms lists the platforms profile discovery covers. Twitter is
// folded into x.
var SocialPlatforms = []string{
	"facebook",
	"instagram",
	"linkedin",
	"tiktok",
	"x",
	"youtube",
	"threads",
}

// Profile is one discovered social profile.
type Profile struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Source   string `json:"source"`
}

// Searcher finds business mentions and social profiles on the web.
type Searcher interface {
	// SearchMentions runs the query battery and returns deduplicated,
	// high-signal mentions, capped at the configured maximum.
	SearchMentions(ctx context.Context, name, location string) ([]model.Mention, error)

	// SearchSocialProfiles finds one profile URL per platform where a
	// plausible profile exists.
	SearchSocialProfiles(ctx context.Context, name string, platforms []string, location string) ([]Profile, error)

	// Name identifies the provider in logs and mention records.
	Name() string
}
