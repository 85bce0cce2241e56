package collector

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/places-cli/internal/model"
	"github.com/sells-group/places-cli/internal/resilience"
	"github.com/sells-group/places-cli/pkg/places"
)

const defaultThrottle = 100 * time.Millisecond

// TravelTimeResolver looks up driving durations from a base location.
// Failures never propagate; they leave the duration unset.
type TravelTimeResolver struct {
	client   places.Client
	limiter  *rate.Limiter
	breaker  *resilience.CircuitBreaker
	language string
	mode     string
}

// TravelTimeOption configures a TravelTimeResolver.
type TravelTimeOption func(*TravelTimeResolver)

// WithThrottle sets the minimum spacing between lookups. Zero disables it.
func WithThrottle(d time.Duration) TravelTimeOption {
	return func(r *TravelTimeResolver) {
		if d <= 0 {
			r.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		r.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithBreaker replaces the circuit breaker that stops lookups after repeated
// request failures.
func WithBreaker(cfg resilience.CircuitBreakerConfig) TravelTimeOption {
	return func(r *TravelTimeResolver) {
		r.breaker = resilience.NewCircuitBreaker(cfg)
	}
}

// WithTravelLanguage sets the response language.
func WithTravelLanguage(lang string) TravelTimeOption {
	return func(r *TravelTimeResolver) {
		r.language = lang
	}
}

// NewTravelTimeResolver creates a driving-mode resolver throttled to one
// call per 100ms. After five consecutive failed requests it stops calling the
// service for 30 seconds.
func NewTravelTimeResolver(client places.Client, opts ...TravelTimeOption) *TravelTimeResolver {
	r := &TravelTimeResolver{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(defaultThrottle), 1),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		mode:    "driving",
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the travel time in seconds, or nil when the service gave
// no usable answer.
func (r *TravelTimeResolver) Resolve(ctx context.Context, origin, dest model.LatLng) *int {
	log := zap.L().With(
		zap.Float64("dest_lat", dest.Lat),
		zap.Float64("dest_lng", dest.Lng),
	)

	if err := r.limiter.Wait(ctx); err != nil {
		log.Warn("travel time: throttle wait", zap.Error(err))
		return nil
	}

	resp, err := resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) (*places.DistanceMatrixResponse, error) {
		resp, err := r.client.DistanceMatrix(ctx, places.DistanceMatrixRequest{
			Origins:      []places.LatLng{{Lat: origin.Lat, Lng: origin.Lng}},
			Destinations: []places.LatLng{{Lat: dest.Lat, Lng: dest.Lng}},
			Mode:         r.mode,
			Language:     r.language,
		})
		if err != nil {
			return nil, err
		}
		if resp.Status != places.StatusOK {
			return nil, &places.StatusError{Status: resp.Status, Message: resp.ErrorMessage}
		}
		return resp, nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		log.Debug("travel time: circuit open, skipping lookup")
		return nil
	}
	if err != nil {
		log.Warn("travel time: request failed", zap.Error(err))
		return nil
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		log.Warn("travel time: empty matrix")
		return nil
	}

	el := resp.Rows[0].Elements[0]
	if el.Status != places.StatusOK || el.Duration == nil {
		log.Warn("travel time: bad element status", zap.String("status", el.Status))
		return nil
	}

	seconds := el.Duration.Value
	return &seconds
}
