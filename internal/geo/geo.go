package geo

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000

type Coordinates struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// CheckResult is the outcome of one proximity check. It is never
// persisted; callers decide what to do with it.
type CheckResult struct {
	DistanceMeters int     `json:"distance"`
	MaxDistance    float64 `json:"max_distance"`
	WithinRange    bool    `json:"is_within_range"`
	Message        string  `json:"message"`
}

// DistanceMeters returns the great-circle distance between two points
// using the haversine formula.
func DistanceMeters(a, b Coordinates) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// WithinRange applies the proximity gate. maxDistance of 0 disables the
// check entirely; otherwise the boundary is inclusive.
func WithinRange(distance, maxDistance float64) bool {
	if maxDistance == 0 {
		return true
	}
	return distance <= maxDistance
}

// Check evaluates a reported position against the kiosk position and
// produces a result with a human-readable message.
func Check(position, kiosk Coordinates, maxDistance float64) CheckResult {
	distance := DistanceMeters(position, kiosk)
	rounded := int(math.Round(distance))
	result := CheckResult{
		DistanceMeters: rounded,
		MaxDistance:    maxDistance,
		WithinRange:    WithinRange(distance, maxDistance),
	}
	switch {
	case maxDistance == 0:
		result.Message = "근접성 검사가 비활성화되어 있습니다."
	case result.WithinRange:
		result.Message = fmt.Sprintf("키오스크에서 %dm 떨어져 있습니다. (허용: %dm)", rounded, int(maxDistance))
	default:
		result.Message = fmt.Sprintf("키오스크에서 너무 멀리 떨어져 있습니다. (현재: %dm, 허용: %dm)", rounded, int(maxDistance))
	}
	return result
}
