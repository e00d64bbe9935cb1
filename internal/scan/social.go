package scan

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reputationai/reputation-audit/internal/config"
	"github.com/reputationai/reputation-audit/internal/search"
	"github.com/reputationai/reputation-audit/internal/verify"
)

// WebsiteExtractor scrapes a business website for links to its own social
// profiles. Profiles linked from the site itself are the most trustworthy
// source, so the scanner tries this before searching.
type WebsiteExtractor struct {
	http      *http.Client
	userAgent string
}

// NewWebsiteExtractor builds an extractor from verification settings, which
// already carry the fetch timeout and user agent.
func NewWebsiteExtractor(cfg config.VerifyConfig) *WebsiteExtractor {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebsiteExtractor{
		http:      &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
	}
}

// Extract fetches the site's homepage and returns one profile URL per
// platform found in its links. domain may be a bare host or a full URL.
func (e *WebsiteExtractor) Extract(ctx context.Context, domain string) (map[string]string, error) {
	candidates := []string{domain}
	if !strings.Contains(domain, "://") {
		var err error
		_, candidates, err = verify.CandidateURLs(domain)
		if err != nil {
			return nil, err
		}
	}

	var doc *goquery.Document
	var lastErr error
	for _, u := range candidates {
		doc, lastErr = e.fetch(ctx, u)
		if lastErr == nil {
			break
		}
		zap.L().Debug("homepage fetch failed", zap.String("url", u), zap.Error(lastErr))
	}
	if doc == nil {
		return nil, eris.Wrap(lastErr, "scan: fetch homepage")
	}

	profiles := make(map[string]string)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		platform, normalized := classifySocialLink(href)
		if platform == "" {
			return
		}
		if _, seen := profiles[platform]; !seen {
			profiles[platform] = normalized
		}
	})
	return profiles, nil
}

func (e *WebsiteExtractor) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scan: create request")
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "scan: fetch page")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, eris.Errorf("scan: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "scan: parse page")
	}
	return doc, nil
}

// classifySocialLink maps an outbound link to the platform it belongs to,
// returning the normalized profile URL. Non-profile links (share buttons,
// posts) return "".
func classifySocialLink(href string) (platform, normalized string) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || u.Host == "" {
		return "", ""
	}
	if strings.Contains(u.Path, "/sharer") || strings.Contains(u.Path, "/share") ||
		strings.Contains(u.Path, "/intent/") {
		return "", ""
	}

	for _, p := range search.SocialPlatforms {
		if search.IsLikelyProfile(p, href) {
			return p, normalizeProfileURL(u)
		}
	}
	return "", ""
}

func normalizeProfileURL(u *url.URL) string {
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u.String()
}
