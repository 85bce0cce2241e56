// Package collector sweeps a grid of search tiles around a base location and
// persists the distinct places it finds.
package collector

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/places-cli/internal/geo"
	"github.com/sells-group/places-cli/internal/model"
)

// MaxRadius is the largest search radius the places API accepts.
const MaxRadius = 50000

// Store is the subset of the persistence layer the collector writes to.
type Store interface {
	UpsertPlace(ctx context.Context, p model.Place) error
	RecordFetchLog(ctx context.Context, l model.FetchLog) error
}

// Settings describes one sweep.
type Settings struct {
	Base       model.LatLng
	Radius     int // meters per tile
	Categories []string
	Language   string
	Iterations int // Manhattan depth of the tile diamond
}

// Validate checks the settings before any request is made.
func (s Settings) Validate() error {
	if s.Radius < 1 || s.Radius > MaxRadius {
		return eris.Errorf("collector: radius %d out of range 1..%d", s.Radius, MaxRadius)
	}
	if s.Iterations < 0 {
		return eris.Errorf("collector: iterations must be >= 0, got %d", s.Iterations)
	}
	if len(s.Categories) == 0 {
		return eris.New("collector: at least one category is required")
	}
	return nil
}

// RunResult summarizes a sweep. It is returned alongside the error when a
// run aborts, describing the work committed before the failure.
type RunResult struct {
	RunID      string        `json:"run_id"`
	Tiles      int           `json:"tiles"`
	Requests   int           `json:"requests"`
	RawResults int           `json:"raw_results"`
	Unique     int           `json:"unique"`
	Upserted   int           `json:"upserted"`
	Skipped    int           `json:"skipped"`
	Duration   time.Duration `json:"duration"`
}

// Collector ties tile generation, fetching, deduplication, enrichment and
// storage into one batch run.
type Collector struct {
	store   Store
	fetcher *Fetcher
	travel  *TravelTimeResolver
	newID   func() string
	now     func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithTravelTime enables drive time enrichment through r.
func WithTravelTime(r *TravelTimeResolver) Option {
	return func(c *Collector) {
		c.travel = r
	}
}

// WithRunID overrides run identifier generation.
func WithRunID(fn func() string) Option {
	return func(c *Collector) {
		c.newID = fn
	}
}

// New creates a Collector.
func New(store Store, fetcher *Fetcher, opts ...Option) *Collector {
	c := &Collector{
		store:   store,
		fetcher: fetcher,
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run sweeps every tile of the configured diamond. Places are upserted as
// soon as they are first seen, so a fatal fetch error leaves the places of
// earlier tiles committed.
func (c *Collector) Run(ctx context.Context, s Settings) (*RunResult, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	start := c.now()
	result := &RunResult{RunID: c.newID()}
	log := zap.L().With(zap.String("run_id", result.RunID))

	log.Info("starting collection",
		zap.Float64("lat", s.Base.Lat),
		zap.Float64("lng", s.Base.Lng),
		zap.Int("radius", s.Radius),
		zap.Int("iterations", s.Iterations),
		zap.Strings("categories", s.Categories),
		zap.String("language", s.Language),
		zap.Int("tiles", geo.TileCount(s.Iterations)),
		zap.Bool("drive_time", c.travel != nil),
	)

	dedupe := NewDeduper()
	for tile := range geo.Tiles(s.Base, float64(s.Radius), s.Iterations) {
		if err := ctx.Err(); err != nil {
			return c.finish(result, start), eris.Wrap(err, "collector: run canceled")
		}

		count, err := c.collectTile(ctx, log, s, tile, dedupe, result)
		if err != nil {
			log.Error("collection aborted",
				zap.Int("dx", tile.Offset.DX),
				zap.Int("dy", tile.Offset.DY),
				zap.Int("tiles_done", result.Tiles),
				zap.Int("upserted", result.Upserted),
				zap.Error(err),
			)
			return c.finish(result, start), err
		}
		result.Tiles++

		if err := c.store.RecordFetchLog(ctx, model.FetchLog{
			RunID:     result.RunID,
			Lat:       tile.Center.Lat,
			Lng:       tile.Center.Lng,
			Count:     count,
			FetchedAt: c.now(),
		}); err != nil {
			log.Warn("record fetch log failed", zap.Error(err))
		}

		log.Debug("tile collected",
			zap.Int("dx", tile.Offset.DX),
			zap.Int("dy", tile.Offset.DY),
			zap.Int("results", count),
			zap.Int("unique_so_far", dedupe.Len()),
		)
	}

	c.finish(result, start)
	log.Info("collection complete",
		zap.Int("unique", result.Unique),
		zap.Int("upserted", result.Upserted),
		zap.Int("skipped", result.Skipped),
		zap.Int("tiles", result.Tiles),
		zap.Int("requests", result.Requests),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// collectTile fetches every category for one tile and stores the places not
// seen earlier in the run. It returns the tile's raw result count.
func (c *Collector) collectTile(ctx context.Context, log *zap.Logger, s Settings, tile geo.Tile, dedupe *Deduper, result *RunResult) (int, error) {
	count := 0
	for _, category := range s.Categories {
		fr, err := c.fetcher.Fetch(ctx, tile.Center, s.Radius, category, s.Language)
		if fr != nil {
			result.Requests += fr.Requests
		}
		if err != nil {
			return count, err
		}
		count += len(fr.Places)
		result.RawResults += len(fr.Places)

		for _, raw := range fr.Places {
			if raw.PlaceID == "" {
				log.Warn("skipping result without place_id", zap.String("name", raw.Name))
				result.Skipped++
				continue
			}
			// A copy without coordinates must not claim the id; a later
			// complete copy of the same place is still stored.
			if raw.Location == nil {
				log.Warn("skipping result without coordinates", zap.String("place_id", raw.PlaceID))
				result.Skipped++
				continue
			}
			if !dedupe.Add(raw) {
				continue
			}
			result.Unique++
			c.storePlace(ctx, log, s, raw, result)
		}
	}
	return count, nil
}

func (c *Collector) storePlace(ctx context.Context, log *zap.Logger, s Settings, raw model.RawPlace, result *RunResult) {
	var driveTime *int
	if c.travel != nil && raw.Location != nil {
		driveTime = c.travel.Resolve(ctx, s.Base, *raw.Location)
	}

	p, err := raw.ToPlace(driveTime)
	if err != nil {
		log.Warn("skipping malformed place", zap.String("place_id", raw.PlaceID), zap.Error(err))
		result.Skipped++
		return
	}
	if err := c.store.UpsertPlace(ctx, p); err != nil {
		log.Warn("upsert failed", zap.String("place_id", raw.PlaceID), zap.Error(err))
		result.Skipped++
		return
	}
	result.Upserted++
}

func (c *Collector) finish(result *RunResult, start time.Time) *RunResult {
	result.Duration = c.now().Sub(start)
	return result
}
