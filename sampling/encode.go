package sampling

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Point is one vertex of a polyline.
type Point struct {
	X float64
	Y float64
}

// DouglasPeucker keeps the vertex farthest from the chord between the ends
// whenever it lies more than epsilon away, recursing on both halves; runs
// within tolerance collapse to their endpoints. A degenerate chord measures
// distance to the first point.
func DouglasPeucker(points []Point, epsilon float64) []Point {
	if len(points) < 3 {
		return append([]Point(nil), points...)
	}
	first, last := points[0], points[len(points)-1]
	dx, dy := last.X-first.X, last.Y-first.Y
	norm := math.Hypot(dx, dy)

	maxIdx := 0
	maxDist := -1.0
	for i, p := range points {
		var d float64
		if norm == 0 {
			d = math.Hypot(p.X-first.X, p.Y-first.Y)
		} else {
			d = math.Abs(dx*(p.Y-first.Y)-dy*(p.X-first.X)) / norm
		}
		if d > maxDist {
			maxDist = d
			maxIdx = i
		}
	}

	if maxDist > epsilon {
		left := DouglasPeucker(points[:maxIdx+1], epsilon)
		right := DouglasPeucker(points[maxIdx:], epsilon)
		return append(left[:len(left)-1], right...)
	}
	return []Point{first, last}
}

// SimplifyProfile runs DouglasPeucker on a (distance, altitude) profile.
// Pairs with a missing side are skipped.
func SimplifyProfile(distanceM, altitudeM []float64, epsilonM float64) []Point {
	n := min(len(distanceM), len(altitudeM))
	points := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(distanceM[i]) || math.IsNaN(altitudeM[i]) {
			continue
		}
		points = append(points, Point{X: distanceM[i], Y: altitudeM[i]})
	}
	return DouglasPeucker(points, epsilonM)
}

// SAXEncode splits series into window-sized chunks and returns each chunk's
// mean rounded to 3 decimals, truncated to cardinality values. A series
// shorter than one window yields its overall mean.
func SAXEncode(series []float64, window, cardinality int) []float64 {
	if window <= 0 || cardinality <= 1 || len(series) == 0 {
		return []float64{}
	}
	if len(series) < window {
		return []float64{stat.Mean(series, nil)}
	}
	out := make([]float64, 0, min(cardinality, len(series)/window+1))
	for start := 0; start < len(series) && len(out) < cardinality; start += window {
		end := min(start+window, len(series))
		out = append(out, round3(stat.Mean(series[start:end], nil)))
	}
	return out
}
