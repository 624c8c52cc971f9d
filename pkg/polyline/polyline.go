// Package polyline encodes, decodes and thins paths in Google's encoded polyline format.
// The format is documented at: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"math"
)

// ErrMalformed is returned when an encoded polyline ends in the middle of a value.
var ErrMalformed = errors.New("polyline: malformed input")

// Point is a geographic point at 5 decimal places of precision.
type Point struct {
	Lat float64
	Lng float64
}

// Decode decodes an encoded polyline into points.
func Decode(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, nil
	}

	points := make([]Point, 0, len(encoded)/4)
	var lat, lng int
	for i := 0; i < len(encoded); {
		dLat, next, ok := readValue(encoded, i)
		if !ok {
			return nil, ErrMalformed
		}
		dLng, next, ok := readValue(encoded, next)
		if !ok {
			return nil, ErrMalformed
		}
		i = next

		lat += dLat
		lng += dLng
		points = append(points, Point{Lat: float64(lat) / 1e5, Lng: float64(lng) / 1e5})
	}
	return points, nil
}

// readValue reads one zig-zag varint starting at i.
func readValue(s string, i int) (value, next int, ok bool) {
	var result, shift int
	for i < len(s) {
		b := int(s[i]) - 63
		i++
		if b < 0 || b > 0x3f {
			return 0, i, false
		}
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			if result&1 != 0 {
				return ^(result >> 1), i, true
			}
			return result >> 1, i, true
		}
	}
	return 0, i, false
}

// Encode encodes points into a polyline string.
func Encode(points []Point) string {
	if len(points) == 0 {
		return ""
	}

	buf := make([]byte, 0, len(points)*6)
	var prevLat, prevLng int
	for _, p := range points {
		lat := int(math.Round(p.Lat * 1e5))
		lng := int(math.Round(p.Lng * 1e5))
		buf = appendValue(buf, lat-prevLat)
		buf = appendValue(buf, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return string(buf)
}

func appendValue(buf []byte, v int) []byte {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		buf = append(buf, byte((u&0x1f)|0x20)+63)
		u >>= 5
	}
	return append(buf, byte(u)+63)
}

// Simplify drops points that lie within tolerance degrees of the line through
// their neighbours (Douglas-Peucker). The first and last points are always kept.
func Simplify(points []Point, tolerance float64) []Point {
	if len(points) < 3 || tolerance <= 0 {
		return points
	}

	keep := make([]bool, len(points))
	keep[0], keep[len(points)-1] = true, true

	type span struct{ first, last int }
	stack := []span{{0, len(points) - 1}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		maxDist, index := 0.0, -1
		for i := s.first + 1; i < s.last; i++ {
			if d := segmentDistance(points[i], points[s.first], points[s.last]); d > maxDist {
				maxDist, index = d, i
			}
		}
		if index >= 0 && maxDist > tolerance {
			keep[index] = true
			stack = append(stack, span{s.first, index}, span{index, s.last})
		}
	}

	out := make([]Point, 0, len(points))
	for i, p := range points {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

// Fit returns an encoding of the path no longer than maxLen bytes, simplifying
// with a growing tolerance until it fits. When even the two endpoints do not fit,
// ok is false.
func Fit(encoded string, maxLen int) (string, bool) {
	if len(encoded) <= maxLen {
		return encoded, true
	}
	points, err := Decode(encoded)
	if err != nil || len(points) == 0 {
		return "", false
	}

	for tolerance := 1e-5; ; tolerance *= 2 {
		simplified := Simplify(points, tolerance)
		out := Encode(simplified)
		if len(out) <= maxLen {
			return out, true
		}
		if len(simplified) <= 2 {
			return "", false
		}
	}
}

// segmentDistance is the planar distance in degrees from p to segment ab.
func segmentDistance(p, a, b Point) float64 {
	dx, dy := b.Lng-a.Lng, b.Lat-a.Lat
	if dx == 0 && dy == 0 {
		return math.Hypot(p.Lng-a.Lng, p.Lat-a.Lat)
	}
	t := ((p.Lng-a.Lng)*dx + (p.Lat-a.Lat)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.Lng-(a.Lng+t*dx), p.Lat-(a.Lat+t*dy))
}
