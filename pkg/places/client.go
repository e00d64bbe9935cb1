// Package places wraps the Google Places Web Service (text search and place
// details) used to resolve business listings.
package places

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/reputationai/reputation-audit/internal/resilience"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/place"

// Statuses returned by the Places Web Service.
const (
	StatusOK          = "OK"
	StatusZeroResults = "ZERO_RESULTS"
)

// Client performs Google Places API operations.
type Client interface {
	TextSearch(ctx context.Context, query string) (*TextSearchResponse, error)
	Details(ctx context.Context, placeID string) (*DetailsResponse, error)
}

// TextSearchResponse is the response from GET /textsearch/json.
type TextSearchResponse struct {
	Status  string  `json:"status"`
	Results []Place `json:"results"`
}

// DetailsResponse is the response from GET /details/json.
type DetailsResponse struct {
	Status string `json:"status"`
	Result Place  `json:"result"`
}

// Place is a business listing as returned by the API. Details requests fill
// in the contact fields that text search omits.
type Place struct {
	PlaceID          string        `json:"place_id"`
	Name             string        `json:"name"`
	FormattedAddress string        `json:"formatted_address"`
	FormattedPhone   string        `json:"formatted_phone_number"`
	Website          string        `json:"website"`
	URL              string        `json:"url"`
	Rating           *float64      `json:"rating"`
	UserRatingsTotal *int          `json:"user_ratings_total"`
	Types            []string      `json:"types"`
	OpeningHours     *OpeningHours `json:"opening_hours"`
	Reviews          []Review      `json:"reviews"`
}

// Review is one user review attached to a details response.
type Review struct {
	AuthorName      string   `json:"author_name"`
	Rating          *float64 `json:"rating"`
	Text            string   `json:"text"`
	RelativeTime    string   `json:"relative_time_description"`
	UnixTimeSeconds int64    `json:"time"`
}

// OpeningHours holds the weekday schedule text.
type OpeningHours struct {
	WeekdayText []string `json:"weekday_text"`
}

const detailsFields = "place_id,name,formatted_address,formatted_phone_number,website,url,rating,user_ratings_total,types,opening_hours,reviews"

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) TextSearch(ctx context.Context, query string) (*TextSearchResponse, error) {
	params := url.Values{}
	params.Set("query", query)

	var result TextSearchResponse
	if err := c.get(ctx, "/textsearch/json", params, &result); err != nil {
		return nil, err
	}
	if result.Status != StatusOK && result.Status != StatusZeroResults {
		return nil, eris.Errorf("places: text search status %s", result.Status)
	}
	return &result, nil
}

func (c *httpClient) Details(ctx context.Context, placeID string) (*DetailsResponse, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", detailsFields)

	var result DetailsResponse
	if err := c.get(ctx, "/details/json", params, &result); err != nil {
		return nil, err
	}
	if result.Status != StatusOK {
		return nil, eris.Errorf("places: details status %s", result.Status)
	}
	return &result, nil
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "places: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "places: unmarshal response")
	}
	return nil
}
