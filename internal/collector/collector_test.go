package collector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/places-cli/internal/geo"
	"github.com/sells-group/places-cli/internal/model"
	"github.com/sells-group/places-cli/internal/store"
	"github.com/sells-group/places-cli/pkg/places"
	"github.com/sells-group/places-cli/pkg/places/mocks"
)

// memStore records writes in memory.
type memStore struct {
	mu        sync.Mutex
	places    map[string]model.Place
	logs      []model.FetchLog
	failIDs   map[string]bool
	upsertSeq []string
}

func newMemStore() *memStore {
	return &memStore{places: make(map[string]model.Place), failIDs: make(map[string]bool)}
}

func (m *memStore) UpsertPlace(_ context.Context, p model.Place) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIDs[p.PlaceID] {
		return errors.New("constraint failed")
	}
	m.places[p.PlaceID] = p
	m.upsertSeq = append(m.upsertSeq, p.PlaceID)
	return nil
}

func (m *memStore) RecordFetchLog(_ context.Context, l model.FetchLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, l)
	return nil
}

func okResponse(results ...places.NearbyResult) *places.NearbySearchResponse {
	return &places.NearbySearchResponse{Status: places.StatusOK, Results: results}
}

func defaultSettings() Settings {
	return Settings{
		Base:       model.LatLng{Lat: 35.0, Lng: 139.0},
		Radius:     500,
		Categories: []string{"restaurant"},
		Language:   "ja",
		Iterations: 1,
	}
}

func TestCollector_EndToEnd(t *testing.T) {
	settings := defaultSettings()

	// Each tile returns two places drawn from a pool of three.
	pairs := [][]string{{"A", "B"}, {"B", "C"}, {"A", "C"}, {"A", "B"}, {"B", "C"}}

	var (
		mu        sync.Mutex
		locations []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/place/nearbysearch/json", r.URL.Path)
		assert.Equal(t, "restaurant", r.URL.Query().Get("type"))
		assert.Equal(t, "500", r.URL.Query().Get("radius"))

		mu.Lock()
		i := len(locations)
		locations = append(locations, r.URL.Query().Get("location"))
		mu.Unlock()

		var results []places.NearbyResult
		for _, id := range pairs[i%len(pairs)] {
			results = append(results, nearby(id, 35.0, 139.0))
		}
		_ = json.NewEncoder(w).Encode(okResponse(results...))
	}))
	defer srv.Close()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "e2e.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	client := places.NewClient("test-key", places.WithBaseURL(srv.URL))
	c := New(st, newTestFetcher(client), WithRunID(func() string { return "run-e2e" }))

	res, err := c.Run(context.Background(), settings)
	require.NoError(t, err)

	// Five tiles in (distance, dy, dx) order.
	step := geo.StepMeters(500)
	var want []string
	for _, o := range []geo.GridOffset{{DX: 0, DY: 0}, {DX: 0, DY: -1}, {DX: -1, DY: 0}, {DX: 1, DY: 0}, {DX: 0, DY: 1}} {
		ll := geo.OffsetToCoordinate(settings.Base, o.DX, o.DY, step)
		want = append(want, places.LatLng{Lat: ll.Lat, Lng: ll.Lng}.String())
	}
	assert.Equal(t, want, locations)

	assert.Equal(t, "run-e2e", res.RunID)
	assert.Equal(t, 5, res.Tiles)
	assert.Equal(t, 5, res.Requests)
	assert.Equal(t, 10, res.RawResults)
	assert.Equal(t, 3, res.Unique)
	assert.Equal(t, 3, res.Upserted)
	assert.Equal(t, 0, res.Skipped)

	rows, err := st.ListPlaces(context.Background(), store.PlaceFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "A", rows[0].PlaceID)
	assert.Equal(t, "restaurant", rows[0].Category)
	assert.Equal(t, model.MapsURL("A"), rows[0].MapsURL)

	cells, err := st.HeatCells(context.Background())
	require.NoError(t, err)
	assert.Len(t, cells, 5)
	total := 0
	for _, cell := range cells {
		assert.Equal(t, 2, cell.Count)
		total += cell.Count
	}
	assert.Equal(t, 10, total)
}

func TestCollector_RerunPreservesLocalFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(okResponse(nearby("A", 35.0, 139.0)))
	}))
	defer srv.Close()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "rerun.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	settings := defaultSettings()
	settings.Iterations = 0
	c := New(st, newTestFetcher(places.NewClient("k", places.WithBaseURL(srv.URL))))

	_, err = c.Run(ctx, settings)
	require.NoError(t, err)
	require.NoError(t, st.SetHidden(ctx, "A", true))
	visited := "2024-01-01"
	require.NoError(t, st.SetLastVisited(ctx, "A", &visited))

	_, err = c.Run(ctx, settings)
	require.NoError(t, err)

	got, err := st.GetPlace(ctx, "A")
	require.NoError(t, err)
	assert.True(t, got.Hidden)
	require.NotNil(t, got.LastVisited)
	assert.Equal(t, "2024-01-01", *got.LastVisited)

	cells, err := st.HeatCells(ctx)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, 2, cells[0].Count)
}

func TestCollector_FatalFetchKeepsEarlierTiles(t *testing.T) {
	settings := defaultSettings()
	center := places.LatLng{Lat: settings.Base.Lat, Lng: settings.Base.Lng}

	client := mocks.NewMockClient(t)
	client.On("NearbySearch", mock.Anything, mock.MatchedBy(func(r places.NearbySearchRequest) bool {
		return r.Location == center
	})).Return(okResponse(nearby("A", 35.0, 139.0), nearby("B", 35.0, 139.0)), nil).Once()
	client.On("NearbySearch", mock.Anything, mock.MatchedBy(func(r places.NearbySearchRequest) bool {
		return r.Location != center
	})).Return(nil, errors.New("places: unexpected status 500: boom")).Times(3)

	ms := newMemStore()
	c := New(ms, newTestFetcher(client))

	res, err := c.Run(context.Background(), settings)
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Tiles)
	assert.Equal(t, 2, res.Upserted)
	assert.Equal(t, 4, res.Requests)

	assert.Len(t, ms.places, 2)
	assert.Len(t, ms.logs, 1)
	client.AssertNumberOfCalls(t, "NearbySearch", 4)
}

func TestCollector_SkipsMalformedRecords(t *testing.T) {
	settings := defaultSettings()
	settings.Iterations = 0

	client := mocks.NewMockClient(t)
	client.On("NearbySearch", mock.Anything, mock.Anything).Return(okResponse(
		nearby("A", 35.0, 139.0),
		places.NearbyResult{PlaceID: "no-geo", Name: "Missing geometry"},
		places.NearbyResult{Name: "Missing id"},
		nearby("bad-row", 35.0, 139.0),
		nearby("C", 35.0, 139.0),
	), nil).Once()

	ms := newMemStore()
	ms.failIDs["bad-row"] = true

	res, err := New(ms, newTestFetcher(client)).Run(context.Background(), settings)
	require.NoError(t, err)
	assert.Equal(t, 5, res.RawResults)
	assert.Equal(t, 3, res.Unique)
	assert.Equal(t, 2, res.Upserted)
	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, []string{"A", "C"}, ms.upsertSeq)

	require.Len(t, ms.logs, 1)
	assert.Equal(t, 5, ms.logs[0].Count)
}

func TestCollector_IncompleteCopyDoesNotShadowPlace(t *testing.T) {
	settings := defaultSettings()
	settings.Iterations = 0
	settings.Categories = []string{"restaurant", "cafe"}

	client := mocks.NewMockClient(t)
	client.On("NearbySearch", mock.Anything, mock.MatchedBy(func(r places.NearbySearchRequest) bool {
		return r.Type == "restaurant"
	})).Return(okResponse(places.NearbyResult{PlaceID: "X", Name: "No geometry"}), nil).Once()
	client.On("NearbySearch", mock.Anything, mock.MatchedBy(func(r places.NearbySearchRequest) bool {
		return r.Type == "cafe"
	})).Return(okResponse(nearby("X", 35.0, 139.0)), nil).Once()

	ms := newMemStore()
	res, err := New(ms, newTestFetcher(client)).Run(context.Background(), settings)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Unique)
	assert.Equal(t, 1, res.Upserted)
	assert.Equal(t, 1, res.Skipped)
	require.Contains(t, ms.places, "X")
	assert.Equal(t, "cafe", ms.places["X"].Category)
	assert.InDelta(t, 35.0, ms.places["X"].Lat, 1e-9)
}

func TestCollector_MultipleCategoriesFirstSeenWins(t *testing.T) {
	settings := defaultSettings()
	settings.Iterations = 0
	settings.Categories = []string{"restaurant", "cafe"}

	client := mocks.NewMockClient(t)
	client.On("NearbySearch", mock.Anything, mock.MatchedBy(func(r places.NearbySearchRequest) bool {
		return r.Type == "restaurant"
	})).Return(okResponse(nearby("A", 35.0, 139.0)), nil).Once()
	client.On("NearbySearch", mock.Anything, mock.MatchedBy(func(r places.NearbySearchRequest) bool {
		return r.Type == "cafe"
	})).Return(okResponse(nearby("A", 35.0, 139.0), nearby("B", 35.0, 139.0)), nil).Once()

	ms := newMemStore()
	res, err := New(ms, newTestFetcher(client)).Run(context.Background(), settings)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Unique)
	assert.Equal(t, "restaurant", ms.places["A"].Category)
	assert.Equal(t, "cafe", ms.places["B"].Category)
	require.Len(t, ms.logs, 1)
	assert.Equal(t, 3, ms.logs[0].Count)
}

func TestCollector_DriveTimeEnrichment(t *testing.T) {
	settings := defaultSettings()
	settings.Iterations = 0

	client := mocks.NewMockClient(t)
	client.On("NearbySearch", mock.Anything, mock.Anything).
		Return(okResponse(nearby("A", 35.01, 139.01), nearby("B", 35.02, 139.02)), nil).Once()
	client.On("DistanceMatrix", mock.Anything, mock.MatchedBy(func(r places.DistanceMatrixRequest) bool {
		return r.Destinations[0].Lat == 35.01
	})).Return(matrix(places.StatusOK, places.StatusOK, 300), nil).Once()
	client.On("DistanceMatrix", mock.Anything, mock.MatchedBy(func(r places.DistanceMatrixRequest) bool {
		return r.Destinations[0].Lat == 35.02
	})).Return(matrix(places.StatusOK, "ZERO_RESULTS", 0), nil).Once()

	ms := newMemStore()
	resolver := NewTravelTimeResolver(client, WithThrottle(0))
	res, err := New(ms, newTestFetcher(client), WithTravelTime(resolver)).Run(context.Background(), settings)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Upserted)

	require.NotNil(t, ms.places["A"].DriveTime)
	assert.Equal(t, 300, *ms.places["A"].DriveTime)
	assert.Nil(t, ms.places["B"].DriveTime)
}

func TestCollector_InvalidSettings(t *testing.T) {
	c := New(newMemStore(), newTestFetcher(mocks.NewMockClient(t)))

	for name, mutate := range map[string]func(*Settings){
		"zero radius":    func(s *Settings) { s.Radius = 0 },
		"radius too big": func(s *Settings) { s.Radius = MaxRadius + 1 },
		"negative depth": func(s *Settings) { s.Iterations = -1 },
		"no categories":  func(s *Settings) { s.Categories = nil },
	} {
		t.Run(name, func(t *testing.T) {
			s := defaultSettings()
			mutate(&s)
			res, err := c.Run(context.Background(), s)
			assert.Error(t, err)
			assert.Nil(t, res)
		})
	}
}

func TestCollector_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ms := newMemStore()
	res, err := New(ms, newTestFetcher(mocks.NewMockClient(t))).Run(ctx, defaultSettings())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, res.Tiles)
	assert.Empty(t, ms.places)
}
