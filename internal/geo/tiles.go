package geo

import (
	"iter"

	"github.com/sells-group/places-cli/internal/model"
)

// OverlapFactor is the ratio of tile spacing to search radius. Spacing tiles
// at 75% of the radius leaves a 25% overlap so adjacent circles leave no gaps.
const OverlapFactor = 0.75

// GridOffset is a tile position relative to the base location, in blocks.
// DX counts blocks east (negative is west), DY blocks north.
type GridOffset struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// Distance returns the Manhattan distance of the offset from the centre tile.
func (o GridOffset) Distance() int {
	return abs(o.DX) + abs(o.DY)
}

// Tile is a grid offset resolved to its centre coordinate.
type Tile struct {
	Offset GridOffset
	Center model.LatLng
}

// StepMeters returns the distance between adjacent tile centres for a search
// radius.
func StepMeters(radiusMeters float64) float64 {
	return radiusMeters * OverlapFactor
}

// TileCount returns the number of offsets within Manhattan distance depth:
// 2·depth² + 2·depth + 1.
func TileCount(depth int) int {
	if depth < 0 {
		return 0
	}
	return 2*depth*depth + 2*depth + 1
}

// Offsets yields every offset with |dx|+|dy| <= depth, ordered by distance,
// then dy, then dx. The sequence is lazy and can be iterated repeatedly.
func Offsets(depth int) iter.Seq[GridOffset] {
	return func(yield func(GridOffset) bool) {
		for d := 0; d <= depth; d++ {
			for dy := -d; dy <= d; dy++ {
				rem := d - abs(dy)
				if !yield(GridOffset{DX: -rem, DY: dy}) {
					return
				}
				if rem == 0 {
					continue
				}
				if !yield(GridOffset{DX: rem, DY: dy}) {
					return
				}
			}
		}
	}
}

// Tiles yields the offsets for depth together with their centre coordinates
// around base for the given search radius.
func Tiles(base model.LatLng, radiusMeters float64, depth int) iter.Seq[Tile] {
	step := StepMeters(radiusMeters)
	return func(yield func(Tile) bool) {
		for o := range Offsets(depth) {
			if !yield(Tile{Offset: o, Center: OffsetToCoordinate(base, o.DX, o.DY, step)}) {
				return
			}
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
