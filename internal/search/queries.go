package search

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/reputationai/reputation-audit/internal/model"
)

// newsDomains are publishers whose coverage counts as news.
var newsDomains = []string{
	"cnn.com", "bbc.com", "reuters.com", "apnews.com",
	"forbes.com", "wsj.com", "nytimes.com", "news.google.com",
	"prnewswire.com", "businesswire.com",
}

var reviewMarkers = []string{"yelp.com", "google.com/maps", "trustpilot.com", "bbb.org"}

var forumDomains = []string{"reddit.com"}

var socialDomains = []string{
	"twitter.com", "facebook.com", "instagram.com", "tiktok.com",
	"linkedin.com", "x.com", "threads.net",
}

// highSignalDomains pass the mention filter regardless of text content.
var highSignalDomains = []string{
	"yelp.com", "google.com", "news.google.com", "trustpilot.com", "bbb.org",
	"reddit.com", "twitter.com", "x.com", "facebook.com", "linkedin.com",
	"instagram.com", "threads.net", "tiktok.com", "youtube.com",
	"prnewswire.com", "businesswire.com",
}

// reputationKeywords pass the mention filter when they appear in the title
// or snippet.
var reputationKeywords = []string{
	"review", "rating", "complaint", "experience", "scam",
	"lawsuit", "fraud", "quality", "service", "feedback",
}

const maxMentions = 20

// MentionQueries builds the core query battery for a business: general,
// review, complaint, platform-targeted and legal-risk queries.
func MentionQueries(name, location string) []string {
	suffix := ""
	if location != "" {
		suffix = " " + location
	}

	return dedupe([]string{
		name + suffix,
		name + suffix + " reviews",
		name + " complaints",
		name + " site:yelp.com",
		name + " site:google.com/maps",
		name + " site:reddit.com",
		name + " news",
		name + " lawsuit OR fraud OR scandal",
	})
}

// ExtendedMentionQueries is the core battery plus targeted news and social
// queries. The keyword-search provider runs these; the LLM provider sticks
// to the core battery since its queries already roam across sites.
func ExtendedMentionQueries(name, location string) []string {
	queries := MentionQueries(name, location)
	queries = append(queries,
		name+" site:news.google.com",
		name+" site:reuters.com OR site:apnews.com OR site:bbc.com OR site:cnn.com",
		name+" site:prnewswire.com OR site:businesswire.com",
		name+" site:twitter.com OR site:x.com",
		name+" site:facebook.com",
		name+" site:linkedin.com",
		name+" site:instagram.com",
		name+" site:tiktok.com",
		name+" site:threads.net",
		name+" site:youtube.com",
	)
	return dedupe(queries)
}

func dedupe(queries []string) []string {
	seen := make(map[string]bool, len(queries))
	out := queries[:0]
	for _, q := range queries {
		if !seen[q] {
			seen[q] = true
			out = append(out, q)
		}
	}
	return out
}

// PlatformQuery builds the per-platform profile search query.
func PlatformQuery(name, platform string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	switch platform {
	case "x":
		return name + " X account profile"
	case "youtube":
		return name + " YouTube channel"
	case "tiktok":
		return name + " TikTok account"
	default:
		return name + " " + platform + " profile"
	}
}

// ClassifySource maps a mention URL to its source category. News wins over
// the other buckets; anything unrecognized is a blog.
func ClassifySource(rawURL string) model.SourceCategory {
	u := strings.ToLower(rawURL)

	for _, d := range newsDomains {
		if strings.Contains(u, d) {
			return model.SourceNews
		}
	}
	for _, m := range reviewMarkers {
		if strings.Contains(u, m) {
			return model.SourceReviews
		}
	}
	for _, d := range forumDomains {
		if strings.Contains(u, d) {
			return model.SourceForum
		}
	}
	for _, d := range socialDomains {
		if strings.Contains(u, d) {
			return model.SourceSocial
		}
	}
	return model.SourceBlog
}

// FilterHighSignal deduplicates mentions by URL and keeps only those from a
// high-signal domain or whose text carries a reputation keyword, capped at
// the mention limit.
func FilterHighSignal(mentions []model.Mention) []model.Mention {
	var filtered []model.Mention
	seen := make(map[string]bool)

	for _, m := range mentions {
		if m.URL == "" || seen[m.URL] {
			continue
		}

		u := strings.ToLower(m.URL)
		text := strings.ToLower(m.Title + " " + m.Snippet)

		keep := false
		for _, d := range highSignalDomains {
			if strings.Contains(u, d) {
				keep = true
				break
			}
		}
		if !keep {
			for _, k := range reputationKeywords {
				if strings.Contains(text, k) {
					keep = true
					break
				}
			}
		}

		if keep {
			filtered = append(filtered, m)
			seen[m.URL] = true
			if len(filtered) >= maxMentions {
				break
			}
		}
	}
	return filtered
}

var profilePathPatterns = struct {
	facebookPost  *regexp.Regexp
	instagramPost *regexp.Regexp
	tiktokProfile *regexp.Regexp
	linkedinOK    *regexp.Regexp
	linkedinBad   *regexp.Regexp
	youtubeOK     *regexp.Regexp
}{
	facebookPost:  regexp.MustCompile(`/(posts|photos|videos|watch|permalink|story)\b`),
	instagramPost: regexp.MustCompile(`/(p|reel|tv|stories)/`),
	tiktokProfile: regexp.MustCompile(`/@[^/]+/?$`),
	linkedinOK:    regexp.MustCompile(`/(company|in|school|showcase)/`),
	linkedinBad:   regexp.MustCompile(`/(feed|posts|pulse)/`),
	youtubeOK:     regexp.MustCompile(`/(channel|c|@|user)`),
}

// IsLikelyProfile reports whether a URL looks like a profile page (rather
// than a post, video or feed page) on the given platform.
func IsLikelyProfile(platform, rawURL string) bool {
	u, err := url.Parse(strings.ToLower(rawURL))
	if err != nil {
		return false
	}
	host := u.Host
	path := u.Path

	if !matchesPlatformDomain(platform, host) {
		return false
	}

	switch platform {
	case "x":
		return !strings.Contains(path, "/status/")
	case "facebook":
		return !profilePathPatterns.facebookPost.MatchString(path)
	case "instagram":
		return !profilePathPatterns.instagramPost.MatchString(path)
	case "tiktok":
		return profilePathPatterns.tiktokProfile.MatchString(path)
	case "linkedin":
		return profilePathPatterns.linkedinOK.MatchString(path) &&
			!profilePathPatterns.linkedinBad.MatchString(path)
	case "youtube":
		return profilePathPatterns.youtubeOK.MatchString(path) &&
			!strings.Contains(path, "/watch")
	case "threads":
		return !strings.Contains(path, "/post/")
	default:
		return false
	}
}

func matchesPlatformDomain(platform, host string) bool {
	var domains []string
	switch platform {
	case "x":
		domains = []string{"x.com", "twitter.com"}
	case "facebook":
		domains = []string{"facebook.com"}
	case "instagram":
		domains = []string{"instagram.com"}
	case "linkedin":
		domains = []string{"linkedin.com"}
	case "tiktok":
		domains = []string{"tiktok.com"}
	case "youtube":
		domains = []string{"youtube.com"}
	case "threads":
		domains = []string{"threads.net"}
	}

	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// selectProfileURL returns the first mention URL that passes the profile
// heuristics for the platform.
func selectProfileURL(mentions []model.Mention, platform string) string {
	for _, m := range mentions {
		if m.URL == "" {
			continue
		}
		if IsLikelyProfile(platform, m.URL) {
			return m.URL
		}
	}
	return ""
}
