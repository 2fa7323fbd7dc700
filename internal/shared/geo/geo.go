// Package geo holds the great-circle math shared by the course catalog
// and the live tracker. Coordinates are WGS84 degrees.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EarthRadiusKm is the mean Earth radius used by HaversineKm.
const EarthRadiusKm = 6371.0

var ErrInvalidWKT = errors.New("geo: invalid LINESTRING")

// Point is a route vertex. Course geometry is exchanged as [longitude, latitude].
type Point struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	a := sinLat*sinLat + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*sinLng*sinLng
	// Rounding can push a a hair outside [0,1] for antipodal or identical points.
	a = math.Min(1, math.Max(0, a))

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// NearestKm returns the smallest great-circle distance from (lat, lng) to any
// vertex of route. ok is false when route is empty.
func NearestKm(lat, lng float64, route []Point) (km float64, ok bool) {
	if len(route) == 0 {
		return 0, false
	}
	km = math.Inf(1)
	for _, p := range route {
		if d := HaversineKm(lat, lng, p.Lat, p.Lng); d < km {
			km = d
		}
	}
	return km, true
}

// DistanceToRouteKm returns the distance from (lat, lng) to the closest point
// on the polyline through route, so samples between sparse vertices still
// count as on the route. Each leg is projected onto a local equirectangular
// plane around the query point, which holds for legs of a few kilometres.
// A single-vertex route falls back to NearestKm.
func DistanceToRouteKm(lat, lng float64, route []Point) (float64, bool) {
	if len(route) < 2 {
		return NearestKm(lat, lng, route)
	}
	kx := math.Cos(toRad(lat))
	best := math.Inf(1)
	for i := 1; i < len(route); i++ {
		a, b := route[i-1], route[i]
		ax, ay := (a.Lng-lng)*kx, a.Lat-lat
		dx, dy := (b.Lng-a.Lng)*kx, b.Lat-a.Lat

		t := 0.0
		if l2 := dx*dx + dy*dy; l2 > 0 {
			t = math.Min(1, math.Max(0, -(ax*dx+ay*dy)/l2))
		}
		cLat := a.Lat + t*(b.Lat-a.Lat)
		cLng := a.Lng + t*(b.Lng-a.Lng)
		if d := HaversineKm(lat, lng, cLat, cLng); d < best {
			best = d
		}
	}
	return best, true
}

// PolylineKm sums the haversine length of consecutive vertices.
func PolylineKm(route []Point) float64 {
	total := 0.0
	for i := 1; i < len(route); i++ {
		total += HaversineKm(route[i-1].Lat, route[i-1].Lng, route[i].Lat, route[i].Lng)
	}
	return total
}

// LineStringWKT renders route as a PostGIS LINESTRING (x = lng, y = lat).
func LineStringWKT(route []Point) string {
	var b strings.Builder
	b.WriteString("LINESTRING(")
	for i, p := range route {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(p.Lng, 'f', -1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(p.Lat, 'f', -1, 64))
	}
	b.WriteByte(')')
	return b.String()
}

// ParseLineStringWKT reads the output of ST_AsText for a LINESTRING.
func ParseLineStringWKT(wkt string) ([]Point, error) {
	s := strings.TrimSpace(wkt)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "LINESTRING") {
		return nil, ErrInvalidWKT
	}
	s = strings.TrimSpace(s[len("LINESTRING"):])
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return nil, ErrInvalidWKT
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return nil, ErrInvalidWKT
	}

	parts := strings.Split(body, ",")
	route := make([]Point, 0, len(parts))
	for _, part := range parts {
		fields := strings.Fields(part)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: vertex %q", ErrInvalidWKT, part)
		}
		lng, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWKT, err)
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWKT, err)
		}
		route = append(route, Point{Lng: lng, Lat: lat})
	}
	return route, nil
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
