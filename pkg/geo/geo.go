package geo

import (
	"fmt"
	"math"
	"sort"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Validate checks that the point lies within the legal coordinate ranges.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", p.Lat)
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", p.Lng)
	}
	return nil
}

// Distance returns the haversine great-circle distance between a and b in km.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLng := radians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	// rounding can push h marginally outside [0, 1]
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Ranked pairs an item with its distance from the query center.
type Ranked[T any] struct {
	Item       T
	DistanceKm float64
}

// WithinRadius keeps the items whose position lies within radiusKm of center,
// ordered nearest first. Ties keep their input order.
func WithinRadius[T any](center Point, radiusKm float64, items []T, pos func(T) Point) []Ranked[T] {
	out := make([]Ranked[T], 0, len(items))
	for _, item := range items {
		d := Distance(center, pos(item))
		if d <= radiusKm {
			out = append(out, Ranked[T]{Item: item, DistanceKm: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out
}

// Nearest returns at most limit items ordered by distance from center.
func Nearest[T any](center Point, limit int, items []T, pos func(T) Point) []Ranked[T] {
	ranked := WithinRadius(center, math.Inf(1), items, pos)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Box is a latitude/longitude rectangle enclosing a search circle. When
// SpansAllLng is set the longitude bounds must not be used as a filter.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
	SpansAllLng    bool
}

// BoundingBox returns a conservative rectangle containing every point within
// radiusKm of center, suitable for a coarse indexed prefilter.
func BoundingBox(center Point, radiusKm float64) Box {
	delta := radiusKm / EarthRadiusKm
	angular := delta * 180 / math.Pi
	box := Box{
		MinLat: math.Max(-90, center.Lat-angular),
		MaxLat: math.Min(90, center.Lat+angular),
	}
	if box.MinLat <= -90 || box.MaxLat >= 90 || delta >= math.Pi/2 {
		box.SpansAllLng = true
		return box
	}
	ratio := math.Sin(delta) / math.Cos(radians(center.Lat))
	if ratio >= 1 {
		box.SpansAllLng = true
		return box
	}
	dLng := math.Asin(ratio) * 180 / math.Pi
	box.MinLng = center.Lng - dLng
	box.MaxLng = center.Lng + dLng
	if box.MinLng < -180 || box.MaxLng > 180 {
		// crossing the antimeridian; fall back to latitude only
		box.SpansAllLng = true
	}
	return box
}
