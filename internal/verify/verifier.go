// Package verify resolves an audit request into a verified business
// identity, probing the business website or validating the caller-supplied
// identification fields.
package verify

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reputationai/reputation-audit/internal/config"
	"github.com/reputationai/reputation-audit/internal/model"
)

var (
	domainPattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,}$`)
	phoneDigits   = regexp.MustCompile(`[^\d+]`)

	// Trailing boilerplate many sites append to their <title>.
	titleSuffix = regexp.MustCompile(`\s*[-|–—]\s*(Home|Official|Website|Site)\s*$`)
)

// Verifier probes business websites and validates identification fields.
type Verifier struct {
	http      *http.Client
	userAgent string
}

// NewVerifier creates a Verifier from config.
func NewVerifier(cfg config.VerifyConfig) *Verifier {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Verifier{
		http:      &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
	}
}

// VerifyDomain fetches the business website and extracts its name. The
// domain may be bare or carry a scheme; both schemes are tried before
// giving up. A caller-supplied name skips extraction, but the site must
// still answer.
func (v *Verifier) VerifyDomain(ctx context.Context, domain, knownName string) (*model.BusinessIdentity, error) {
	host, candidates, err := CandidateURLs(domain)
	if err != nil {
		return nil, err
	}
	return v.probe(ctx, host, candidates, knownName)
}

func (v *Verifier) probe(ctx context.Context, host string, candidates []string, knownName string) (*model.BusinessIdentity, error) {
	for _, candidate := range candidates {
		name, err := v.fetchName(ctx, candidate)
		if err != nil {
			zap.L().Debug("domain probe failed",
				zap.String("url", candidate),
				zap.Error(err),
			)
			continue
		}
		if knownName != "" {
			name = knownName
		}
		if name == "" {
			return nil, model.NewRunError(model.CodeDomainVerificationFailed,
				"could not find a business name on "+host)
		}
		return &model.BusinessIdentity{Name: name, Domain: host}, nil
	}

	return nil, model.NewRunError(model.CodeInvalidDomain,
		"the business website is not reachable at "+host)
}

// VerifyIdentity validates caller-supplied identification when no website
// is given. Phone plus location is preferred; a bare business name is
// accepted as-is. With neither, the business cannot be pinned down.
func (v *Verifier) VerifyIdentity(name, location, phone string) (*model.BusinessIdentity, error) {
	name = strings.TrimSpace(name)
	location = strings.TrimSpace(location)

	phone = strings.TrimSpace(phone)
	if phone != "" {
		phone = phoneDigits.ReplaceAllString(phone, "")
		if len(strings.TrimPrefix(phone, "+")) < 10 {
			return nil, model.NewRunError(model.CodeInvalidIdentification,
				"phone number must have at least 10 digits")
		}
	}
	if location != "" && len(location) < 3 {
		return nil, model.NewRunError(model.CodeInvalidIdentification,
			"location is too short to identify the business")
	}

	if phone != "" && location != "" {
		if name == "" {
			name = "Business at " + location
		}
		return &model.BusinessIdentity{Name: name, Location: location, Phone: phone}, nil
	}

	if name == "" {
		return nil, model.NewRunError(model.CodeAmbiguousBusiness,
			"provide a website, a business name, or a phone number with a location")
	}
	return &model.BusinessIdentity{Name: name, Location: location, Phone: phone}, nil
}

// CandidateURLs normalizes a domain input and returns the host plus the
// probe URLs in order. A given scheme is tried first, then its opposite;
// bare hosts try https before http.
func CandidateURLs(domain string) (string, []string, error) {
	domain = strings.TrimSpace(strings.ToLower(domain))
	if domain == "" {
		return "", nil, model.NewRunError(model.CodeInvalidDomain, "domain is empty")
	}

	var scheme, host, rest string
	if strings.Contains(domain, "://") {
		u, err := url.Parse(domain)
		if err != nil || u.Host == "" {
			return "", nil, model.NewRunError(model.CodeInvalidDomain, "could not parse domain URL")
		}
		scheme = u.Scheme
		host = u.Host
		rest = u.Path
	} else {
		host, rest, _ = strings.Cut(domain, "/")
		if rest != "" {
			rest = "/" + rest
		}
	}
	host = strings.TrimSuffix(host, ".")

	if !domainPattern.MatchString(host) {
		return "", nil, model.NewRunError(model.CodeInvalidDomain, "invalid domain: "+host)
	}

	var candidates []string
	switch scheme {
	case "http":
		candidates = []string{"http://" + host + rest, "https://" + host + rest}
	case "https":
		candidates = []string{"https://" + host + rest, "http://" + host + rest}
	case "":
		candidates = []string{"https://" + host + rest, "http://" + host + rest}
	default:
		return "", nil, model.NewRunError(model.CodeInvalidDomain, "unsupported scheme: "+scheme)
	}
	return host, candidates, nil
}

func (v *Verifier) fetchName(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "verify: create request")
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "verify: fetch page")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return "", eris.Errorf("verify: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "verify: parse html")
	}

	return ExtractName(doc), nil
}

// ExtractName pulls the business name from a parsed page: the cleaned
// <title> first, then the first <h1>, then og:site_name. Names outside
// 3-99 characters are rejected.
func ExtractName(doc *goquery.Document) string {
	candidates := []string{
		CleanTitle(doc.Find("title").First().Text()),
		strings.TrimSpace(doc.Find("h1").First().Text()),
	}
	if content, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok {
		candidates = append(candidates, strings.TrimSpace(content))
	}

	for _, c := range candidates {
		if len(c) >= 3 && len(c) < 100 {
			return c
		}
	}
	return ""
}

// CleanTitle strips trailing "- Home" style boilerplate from a page title.
func CleanTitle(title string) string {
	return strings.TrimSpace(titleSuffix.ReplaceAllString(strings.TrimSpace(title), ""))
}
