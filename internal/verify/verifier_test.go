package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputationai/reputation-audit/internal/config"
	"github.com/reputationai/reputation-audit/internal/model"
)

func testVerifier() *Verifier {
	return NewVerifier(config.VerifyConfig{
		TimeoutSecs: 5,
		UserAgent:   "Mozilla/5.0 (compatible; ReputationAI/1.0)",
	})
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Plumbing — Home", "Acme Plumbing"},
		{"Acme Plumbing - Home", "Acme Plumbing"},
		{"Acme Plumbing | Official", "Acme Plumbing"},
		{"Acme Plumbing - Website", "Acme Plumbing"},
		{"Acme Plumbing", "Acme Plumbing"},
		{"Home - Acme Plumbing", "Home - Acme Plumbing"},
		{"  Acme Plumbing  ", "Acme Plumbing"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanTitle(tt.in))
		})
	}
}

func TestExtractName_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "title wins",
			html: `<html><head><title>Acme Plumbing - Home</title></head><body><h1>Welcome to our site</h1></body></html>`,
			want: "Acme Plumbing",
		},
		{
			name: "h1 when title too short",
			html: `<html><head><title>A</title></head><body><h1>Acme Plumbing</h1></body></html>`,
			want: "Acme Plumbing",
		},
		{
			name: "og:site_name as last resort",
			html: `<html><head><title>A</title><meta property="og:site_name" content="Acme Plumbing"></head><body></body></html>`,
			want: "Acme Plumbing",
		},
		{
			name: "nothing usable",
			html: `<html><head><title>A</title></head><body></body></html>`,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ExtractName(doc))
		})
	}
}

func TestCandidateURLs(t *testing.T) {
	tests := []struct {
		in       string
		wantHost string
		want     []string
	}{
		{"acme.com", "acme.com", []string{"https://acme.com", "http://acme.com"}},
		{"https://acme.com", "acme.com", []string{"https://acme.com", "http://acme.com"}},
		{"http://acme.com", "acme.com", []string{"http://acme.com", "https://acme.com"}},
		{"Acme.COM", "acme.com", []string{"https://acme.com", "http://acme.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			host, urls, err := CandidateURLs(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.want, urls)
		})
	}
}

func TestCandidateURLs_Invalid(t *testing.T) {
	for _, in := range []string{"", "not a domain", "no-tld", "ftp://acme.com"} {
		t.Run(in, func(t *testing.T) {
			_, _, err := CandidateURLs(in)
			require.Error(t, err)
			var runErr *model.RunError
			require.ErrorAs(t, err, &runErr)
			assert.Equal(t, model.CodeInvalidDomain, runErr.Code)
		})
	}
}

func TestVerifyDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Mozilla/5.0 (compatible; ReputationAI/1.0)", r.Header.Get("User-Agent"))
		w.Write([]byte(`<html><head><title>Acme Plumbing - Home</title></head><body></body></html>`))
	}))
	defer srv.Close()

	v := testVerifier()
	name, err := v.fetchName(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Acme Plumbing", name)
}

func TestVerifyDomain_KnownNameSkipsExtraction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head></head><body></body></html>`))
	}))
	defer srv.Close()

	v := testVerifier()
	id, err := v.probe(context.Background(), "acme.example", []string{srv.URL}, "Acme Plumbing")
	require.NoError(t, err)
	assert.Equal(t, "Acme Plumbing", id.Name)
	assert.Equal(t, "acme.example", id.Domain)

	// Without a known name the same page has nothing to extract.
	_, err = v.probe(context.Background(), "acme.example", []string{srv.URL}, "")
	var runErr *model.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, model.CodeDomainVerificationFailed, runErr.Code)
}

func TestVerifyDomain_Unreachable(t *testing.T) {
	v := testVerifier()
	_, err := v.VerifyDomain(context.Background(), "invalid.invalid", "Acme")
	require.Error(t, err)
	var runErr *model.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, model.CodeInvalidDomain, runErr.Code)
}

func TestVerifyIdentity(t *testing.T) {
	v := testVerifier()

	id, err := v.VerifyIdentity("", "Austin, TX", "+1 (512) 555-0100")
	require.NoError(t, err)
	assert.Equal(t, "Business at Austin, TX", id.Name)
	assert.Equal(t, "Austin, TX", id.Location)
	assert.Equal(t, "+15125550100", id.Phone)

	// A bare name is enough on its own.
	id, err = v.VerifyIdentity("Acme Plumbing", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Acme Plumbing", id.Name)
	assert.Empty(t, id.Location)

	// A co-supplied phone is normalized on the name path.
	id, err = v.VerifyIdentity("Acme", "", "+1 (512) 555-0100")
	require.NoError(t, err)
	assert.Equal(t, "Acme", id.Name)
	assert.Equal(t, "+15125550100", id.Phone)
}

func TestVerifyIdentity_Invalid(t *testing.T) {
	v := testVerifier()

	cases := []struct {
		name, location, phone string
	}{
		{"Acme", "", "555-0100"}, // phone too short
		{"Acme", "TX", ""},       // location too short
	}
	for _, c := range cases {
		_, err := v.VerifyIdentity(c.name, c.location, c.phone)
		require.Error(t, err)
		var runErr *model.RunError
		require.ErrorAs(t, err, &runErr)
		assert.Equal(t, model.CodeInvalidIdentification, runErr.Code)
	}
}

func TestVerifyIdentity_Ambiguous(t *testing.T) {
	v := testVerifier()

	cases := []struct {
		name, location, phone string
	}{
		{"", "", ""},
		{"", "Austin, TX", ""},        // location without phone or name
		{"", "", "+1 (512) 555-0100"}, // phone without location or name
	}
	for _, c := range cases {
		_, err := v.VerifyIdentity(c.name, c.location, c.phone)
		require.Error(t, err)
		var runErr *model.RunError
		require.ErrorAs(t, err, &runErr)
		assert.Equal(t, model.CodeAmbiguousBusiness, runErr.Code)
	}
}
