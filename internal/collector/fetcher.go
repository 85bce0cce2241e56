package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/places-cli/internal/model"
	"github.com/sells-group/places-cli/internal/resilience"
	"github.com/sells-group/places-cli/pkg/places"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = time.Second
	// defaultPageDelay is the minimum wait before a next_page_token becomes valid.
	defaultPageDelay = 2 * time.Second
	// saturationThreshold is the per-query result cap of the search API. A
	// tile reaching it has probably been truncated.
	saturationThreshold = 60
)

// FetchError reports a tile query that still failed after every attempt, or
// that failed with an error retrying cannot fix. It aborts the run.
type FetchError struct {
	Center   model.LatLng
	Category string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("collector: fetch %s at %.6f,%.6f: %v", e.Category, e.Center.Lat, e.Center.Lng, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetchResult is the outcome of one tile and category query.
type FetchResult struct {
	Places   []model.RawPlace
	Pages    int
	Requests int // includes retried attempts
}

// Fetcher runs paginated, retried nearby searches for a single tile.
type Fetcher struct {
	client      places.Client
	maxAttempts int
	retryDelay  time.Duration
	pageDelay   time.Duration
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithMaxAttempts sets the total number of tries per page request.
func WithMaxAttempts(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the fixed delay between attempts.
func WithRetryDelay(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.retryDelay = d
	}
}

// WithPageDelay sets the wait before requesting the next page.
func WithPageDelay(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.pageDelay = d
	}
}

// NewFetcher creates a Fetcher with three attempts, a one second retry delay
// and a two second page delay unless overridden.
func NewFetcher(client places.Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:      client,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		pageDelay:   defaultPageDelay,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch queries one tile for one category, following pagination tokens until
// none remain. Every returned place is tagged with category.
func (f *Fetcher) Fetch(ctx context.Context, center model.LatLng, radius int, category, language string) (*FetchResult, error) {
	log := zap.L().With(
		zap.String("category", category),
		zap.Float64("lat", center.Lat),
		zap.Float64("lng", center.Lng),
	)

	result := &FetchResult{}
	req := places.NearbySearchRequest{
		Location: places.LatLng{Lat: center.Lat, Lng: center.Lng},
		Radius:   radius,
		Type:     category,
		Language: language,
	}

	for {
		resp, err := f.page(ctx, req, result)
		if err != nil {
			if resilience.IsExhausted(err) || resilience.IsPermanent(err) {
				return result, &FetchError{Center: center, Category: category, Err: err}
			}
			return result, eris.Wrap(err, "collector: fetch page")
		}
		result.Pages++

		for _, r := range resp.Results {
			result.Places = append(result.Places, toRawPlace(r, category))
		}

		if resp.NextPageToken == "" {
			break
		}

		log.Debug("next page", zap.Int("page", result.Pages+1))
		if err := resilience.Sleep(ctx, f.pageDelay); err != nil {
			return result, eris.Wrap(err, "collector: page delay")
		}
		req = places.NearbySearchRequest{PageToken: resp.NextPageToken}
	}

	if len(result.Places) >= saturationThreshold {
		log.Warn("tile saturated, results may be truncated",
			zap.Int("results", len(result.Places)),
			zap.Int("cap", saturationThreshold),
		)
	}
	return result, nil
}

func (f *Fetcher) page(ctx context.Context, req places.NearbySearchRequest, result *FetchResult) (*places.NearbySearchResponse, error) {
	cfg := resilience.FixedRetryConfig(f.maxAttempts, f.retryDelay)
	cfg.OnRetry = resilience.RetryLogger("places", "nearby_search")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*places.NearbySearchResponse, error) {
		result.Requests++
		resp, err := f.client.NearbySearch(ctx, req)
		var se *places.StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return nil, resilience.Permanent(err)
		}
		return resp, err
	})
}

func toRawPlace(r places.NearbyResult, category string) model.RawPlace {
	raw := model.RawPlace{
		PlaceID:  r.PlaceID,
		Name:     r.Name,
		Address:  r.Vicinity,
		Rating:   r.Rating,
		Category: category,
	}
	if r.Geometry != nil && r.Geometry.Location != nil {
		raw.Location = &model.LatLng{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng}
	}
	return raw
}
