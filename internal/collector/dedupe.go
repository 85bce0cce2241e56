package collector

import "github.com/sells-group/places-cli/internal/model"

// Deduper accumulates raw places across tiles and categories, keeping the
// first record seen for each place_id. Later duplicates are dropped whole, so
// a place keeps the category it was first found under.
type Deduper struct {
	seen  map[string]model.RawPlace
	order []string
}

// NewDeduper returns an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]model.RawPlace)}
}

// Add records p and reports whether its place_id had not been seen before.
// Places without an id are never recorded.
func (d *Deduper) Add(p model.RawPlace) bool {
	if p.PlaceID == "" {
		return false
	}
	if _, ok := d.seen[p.PlaceID]; ok {
		return false
	}
	d.seen[p.PlaceID] = p
	d.order = append(d.order, p.PlaceID)
	return true
}

// Len returns the number of distinct places.
func (d *Deduper) Len() int {
	return len(d.order)
}

// Places returns the distinct places in first-seen order.
func (d *Deduper) Places() []model.RawPlace {
	out := make([]model.RawPlace, len(d.order))
	for i, id := range d.order {
		out[i] = d.seen[id]
	}
	return out
}

// Merge dedupes raw by place_id with first-seen wins. It returns the mapping
// and the ids in first-seen order.
func Merge(raw []model.RawPlace) (map[string]model.RawPlace, []string) {
	d := NewDeduper()
	for _, p := range raw {
		d.Add(p)
	}
	return d.seen, d.order
}
