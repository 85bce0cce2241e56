// Package places is a minimal client for the Google Maps Places Nearby Search
// and Distance Matrix web services.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api"

// API status values shared by both services.
const (
	StatusOK             = "OK"
	StatusZeroResults    = "ZERO_RESULTS"
	StatusRequestDenied  = "REQUEST_DENIED"
	StatusInvalidRequest = "INVALID_REQUEST"
)

// Client performs Google Maps web service calls.
type Client interface {
	// NearbySearch fetches one page of nearby search results.
	NearbySearch(ctx context.Context, req NearbySearchRequest) (*NearbySearchResponse, error)
	// DistanceMatrix computes travel distance and duration between points.
	DistanceMatrix(ctx context.Context, req DistanceMatrixRequest) (*DistanceMatrixResponse, error)
}

// LatLng is a coordinate as encoded by the API.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String formats the coordinate as "lat,lng".
func (l LatLng) String() string {
	return strconv.FormatFloat(l.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(l.Lng, 'f', -1, 64)
}

// NearbySearchRequest is one nearby search query. When PageToken is set the
// other fields are ignored, as the API requires.
type NearbySearchRequest struct {
	Location  LatLng
	Radius    int
	Type      string
	Language  string
	PageToken string
}

// NearbySearchResponse is one page of nearby search results.
type NearbySearchResponse struct {
	Results       []NearbyResult `json:"results"`
	NextPageToken string         `json:"next_page_token,omitempty"`
	Status        string         `json:"status"`
	ErrorMessage  string         `json:"error_message,omitempty"`
}

// NearbyResult is a single place in a nearby search response.
type NearbyResult struct {
	PlaceID  string    `json:"place_id"`
	Name     string    `json:"name"`
	Vicinity string    `json:"vicinity"`
	Geometry *Geometry `json:"geometry,omitempty"`
	Rating   *float64  `json:"rating,omitempty"`
	Types    []string  `json:"types,omitempty"`
}

// Geometry holds a result's location.
type Geometry struct {
	Location *LatLng `json:"location,omitempty"`
}

// DistanceMatrixRequest asks for travel times between origins and destinations.
type DistanceMatrixRequest struct {
	Origins      []LatLng
	Destinations []LatLng
	Mode         string
	Language     string
}

// DistanceMatrixResponse is the Distance Matrix result grid.
type DistanceMatrixResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Rows         []DistanceRow `json:"rows"`
}

// DistanceRow holds the elements for one origin.
type DistanceRow struct {
	Elements []DistanceElement `json:"elements"`
}

// DistanceElement is the route between one origin and one destination.
type DistanceElement struct {
	Status   string     `json:"status"`
	Duration *TextValue `json:"duration,omitempty"`
	Distance *TextValue `json:"distance,omitempty"`
}

// TextValue is a measured value with its localized display text.
type TextValue struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

// StatusError is returned when the API answers with a non-OK status field.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return "places: api status " + e.Status
	}
	return fmt.Sprintf("places: api status %s: %s", e.Status, e.Message)
}

// Retryable reports whether repeating the same request may succeed.
// REQUEST_DENIED means a bad or unauthorized key. INVALID_REQUEST stays
// retryable because a fresh page token is rejected until it becomes valid.
func (e *StatusError) Retryable() bool {
	return e.Status != StatusRequestDenied
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
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

// NewClient creates a Google Maps web service client.
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

func (c *httpClient) NearbySearch(ctx context.Context, req NearbySearchRequest) (*NearbySearchResponse, error) {
	params := url.Values{"key": {c.apiKey}}
	if req.PageToken != "" {
		params.Set("pagetoken", req.PageToken)
	} else {
		params.Set("location", req.Location.String())
		params.Set("radius", strconv.Itoa(req.Radius))
		if req.Type != "" {
			params.Set("type", req.Type)
		}
		if req.Language != "" {
			params.Set("language", req.Language)
		}
	}

	var result NearbySearchResponse
	if err := c.get(ctx, "/place/nearbysearch/json", params, &result); err != nil {
		return nil, err
	}

	if result.Status != StatusOK && result.Status != StatusZeroResults {
		return nil, &StatusError{Status: result.Status, Message: result.ErrorMessage}
	}
	return &result, nil
}

func (c *httpClient) DistanceMatrix(ctx context.Context, req DistanceMatrixRequest) (*DistanceMatrixResponse, error) {
	if len(req.Origins) == 0 || len(req.Destinations) == 0 {
		return nil, eris.New("places: distance matrix needs origins and destinations")
	}

	params := url.Values{
		"origins":      {joinLatLngs(req.Origins)},
		"destinations": {joinLatLngs(req.Destinations)},
		"key":          {c.apiKey},
	}
	if req.Mode != "" {
		params.Set("mode", req.Mode)
	}
	if req.Language != "" {
		params.Set("language", req.Language)
	}

	var result DistanceMatrixResponse
	if err := c.get(ctx, "/distancematrix/json", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "places: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// The request URL carries the API key; keep it out of error messages.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, truncate(string(body), 256))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "places: unmarshal response")
	}
	return nil
}

func joinLatLngs(points []LatLng) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = p.String()
	}
	return strings.Join(parts, "|")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
