package serper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))

		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, `"Acme Plumbing" reviews`, req.Query)
		assert.Equal(t, 10, req.Num)

		w.Write([]byte(`{
			"organic": [
				{"title": "Acme Plumbing Reviews - Yelp", "link": "https://www.yelp.com/biz/acme-plumbing", "snippet": "Great service", "position": 1}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := c.Search(context.Background(), SearchRequest{Query: `"Acme Plumbing" reviews`, Num: 10})
	require.NoError(t, err)
	require.Len(t, resp.Organic, 1)
	assert.Equal(t, "https://www.yelp.com/biz/acme-plumbing", resp.Organic[0].Link)
}

func TestSearch_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), SearchRequest{Query: "Acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
