package geo

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/places-cli/internal/model"
)

func TestOffsetToCoordinate_ZeroOffsetIsExact(t *testing.T) {
	bases := []model.LatLng{
		{Lat: 35.681236, Lng: 139.767125},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 0, Lng: 0},
		{Lat: 90, Lng: 10}, // cos(lat) is ~0; a zero offset must not divide by it
	}
	for _, b := range bases {
		got := OffsetToCoordinate(b, 0, 0, 375)
		assert.Equal(t, b, got)
	}
}

func TestOffsetToCoordinate_Directions(t *testing.T) {
	base := model.LatLng{Lat: 35.0, Lng: 139.0}

	north := OffsetToCoordinate(base, 0, 1, 1113.2)
	assert.InDelta(t, 35.01, north.Lat, 1e-9)
	assert.Equal(t, base.Lng, north.Lng)

	south := OffsetToCoordinate(base, 0, -2, 1113.2)
	assert.InDelta(t, 34.98, south.Lat, 1e-9)

	east := OffsetToCoordinate(base, 1, 0, 1000)
	assert.Equal(t, base.Lat, east.Lat)
	assert.Greater(t, east.Lng, base.Lng)
	// One block east should be ~1000m away.
	assert.InDelta(t, 1000, HaversineMeters(base, east), 5)

	west := OffsetToCoordinate(base, -1, 0, 1000)
	assert.InDelta(t, base.Lng-(east.Lng-base.Lng), west.Lng, 1e-12)
}

func TestHaversineMeters(t *testing.T) {
	tokyo := model.LatLng{Lat: 35.681236, Lng: 139.767125}
	osaka := model.LatLng{Lat: 34.702485, Lng: 135.495951}

	assert.Equal(t, 0.0, HaversineMeters(tokyo, tokyo))
	// Tokyo Station to Osaka Station is roughly 403km as the crow flies.
	assert.InDelta(t, 403_000, HaversineMeters(tokyo, osaka), 3_000)
	assert.InDelta(t, HaversineMeters(tokyo, osaka), HaversineMeters(osaka, tokyo), 1e-6)
}

func TestBearingDegrees(t *testing.T) {
	base := model.LatLng{Lat: 35, Lng: 139}
	tests := []struct {
		name     string
		to       model.LatLng
		expected float64
	}{
		{"north", model.LatLng{Lat: 36, Lng: 139}, 0},
		{"east", model.LatLng{Lat: 35, Lng: 139.01}, 90},
		{"south", model.LatLng{Lat: 34, Lng: 139}, 180},
		{"west", model.LatLng{Lat: 35, Lng: 138.99}, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, BearingDegrees(base, tt.to), 0.1)
		})
	}
}

func TestOffsets_Count(t *testing.T) {
	for depth := 0; depth <= 8; depth++ {
		got := slices.Collect(Offsets(depth))
		assert.Len(t, got, 2*depth*depth+2*depth+1, "depth %d", depth)
		assert.Equal(t, len(got), TileCount(depth))
	}
	assert.Equal(t, 1, TileCount(0))
	assert.Equal(t, 5, TileCount(1))
	assert.Equal(t, 13, TileCount(2))
	assert.Equal(t, 0, TileCount(-1))
	assert.Empty(t, slices.Collect(Offsets(-1)))
}

func TestOffsets_DiamondMembership(t *testing.T) {
	for depth := 0; depth <= 6; depth++ {
		seen := make(map[GridOffset]bool)
		for o := range Offsets(depth) {
			require.False(t, seen[o], "duplicate offset %v", o)
			seen[o] = true
			assert.LessOrEqual(t, o.Distance(), depth)
		}
		for dx := -depth; dx <= depth; dx++ {
			for dy := -depth; dy <= depth; dy++ {
				inDiamond := abs(dx)+abs(dy) <= depth
				assert.Equal(t, inDiamond, seen[GridOffset{DX: dx, DY: dy}], "(%d,%d) depth %d", dx, dy, depth)
			}
		}
	}
}

func TestOffsets_SubsetOfNextDepth(t *testing.T) {
	for depth := 0; depth <= 6; depth++ {
		next := slices.Collect(Offsets(depth + 1))
		for o := range Offsets(depth) {
			assert.Contains(t, next, o)
		}
	}
}

func TestOffsets_Order(t *testing.T) {
	assert.Equal(t, []GridOffset{{0, 0}}, slices.Collect(Offsets(0)))
	assert.Equal(t, []GridOffset{
		{0, 0},
		{0, -1}, {-1, 0}, {1, 0}, {0, 1},
	}, slices.Collect(Offsets(1)))

	got := slices.Collect(Offsets(4))
	sorted := slices.Clone(got)
	slices.SortStableFunc(sorted, func(a, b GridOffset) int {
		if a.Distance() != b.Distance() {
			return a.Distance() - b.Distance()
		}
		if a.DY != b.DY {
			return a.DY - b.DY
		}
		return a.DX - b.DX
	})
	assert.Equal(t, sorted, got)
}

func TestOffsets_Restartable(t *testing.T) {
	seq := Offsets(2)
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)

	// Early termination stops the generator.
	var n int
	for range seq {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestTiles(t *testing.T) {
	base := model.LatLng{Lat: 35.0, Lng: 139.0}
	tiles := slices.Collect(Tiles(base, 500, 1))
	require.Len(t, tiles, 5)

	assert.Equal(t, base, tiles[0].Center)
	assert.Equal(t, GridOffset{0, -1}, tiles[1].Offset)
	assert.InDelta(t, 35.0-375/MetersPerDegree, tiles[1].Center.Lat, 1e-12)
	assert.InDelta(t, 375, HaversineMeters(base, tiles[2].Center), 1)
	assert.InDelta(t, 375.0, StepMeters(500), 1e-9)
}
