package search

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/reputationai/reputation-audit/internal/config"
)

// ContentFetcher pulls readable page text for a mention so sentiment
// analysis can work with more than a search snippet.
type ContentFetcher struct {
	http     *http.Client
	maxBytes int
}

// NewContentFetcher builds a fetcher from scan settings.
func NewContentFetcher(cfg config.ScanConfig) *ContentFetcher {
	timeout := time.Duration(cfg.ContentTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxBytes := cfg.MaxContentBytes
	if maxBytes <= 0 {
		maxBytes = 2000
	}
	return &ContentFetcher{
		http:     &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Fetch downloads the page and returns its visible text with scripts and
// styles removed and whitespace collapsed, capped at the configured size.
func (f *ContentFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "content: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ReputationAI/1.0)")

	resp, err := f.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "content: fetch page")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", eris.Errorf("content: unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "content: parse page")
	}
	doc.Find("script, style, noscript").Remove()

	text := strings.Join(strings.Fields(doc.Text()), " ")
	if len(text) > f.maxBytes {
		text = text[:f.maxBytes]
	}
	return text, nil
}
