package geo

import (
	"math"
	"strings"
	"testing"
)

func TestDistanceMetersSamePoint(t *testing.T) {
	cityHall := Coordinates{Lat: 37.5665, Lng: 126.9780}
	if got := DistanceMeters(cityHall, cityHall); got != 0 {
		t.Fatalf("expected 0, got %f", got)
	}
}

func TestDistanceMetersKnownPair(t *testing.T) {
	// Seoul City Hall to a point ~1km due north. One degree of latitude
	// is 111.195km at R=6371km, so 0.0089932 degrees is 1000m.
	a := Coordinates{Lat: 37.5665, Lng: 126.9780}
	b := Coordinates{Lat: 37.5665 + 0.0089932, Lng: 126.9780}
	got := DistanceMeters(a, b)
	if math.Abs(got-1000) > 10 {
		t.Fatalf("expected ~1000m, got %f", got)
	}
}

func TestDistanceMetersSymmetry(t *testing.T) {
	a := Coordinates{Lat: 37.5665, Lng: 126.9780}
	b := Coordinates{Lat: 37.5512, Lng: 126.9882}
	if DistanceMeters(a, b) != DistanceMeters(b, a) {
		t.Fatalf("distance not symmetric")
	}
}

func TestWithinRange(t *testing.T) {
	cases := []struct {
		distance float64
		max      float64
		want     bool
	}{
		{500, 0, true},
		{150, 100, false},
		{100, 100, true},
		{99.9, 100, true},
		{0, 50, true},
	}
	for _, tt := range cases {
		if got := WithinRange(tt.distance, tt.max); got != tt.want {
			t.Fatalf("WithinRange(%f, %f)=%v, want %v", tt.distance, tt.max, got, tt.want)
		}
	}
}

func TestCheckDisabled(t *testing.T) {
	a := Coordinates{Lat: 37.5665, Lng: 126.9780}
	b := Coordinates{Lat: 35.1796, Lng: 129.0756}
	result := Check(a, b, 0)
	if !result.WithinRange {
		t.Fatalf("disabled check must pass")
	}
	if !strings.Contains(result.Message, "비활성화") {
		t.Fatalf("unexpected message: %s", result.Message)
	}
}

func TestCheckOutOfRange(t *testing.T) {
	kiosk := Coordinates{Lat: 37.5665, Lng: 126.9780}
	position := Coordinates{Lat: 37.5665 + 0.0089932, Lng: 126.9780}
	result := Check(position, kiosk, 100)
	if result.WithinRange {
		t.Fatalf("expected out of range")
	}
	if result.DistanceMeters < 990 || result.DistanceMeters > 1010 {
		t.Fatalf("unexpected rounded distance: %d", result.DistanceMeters)
	}
	if !strings.Contains(result.Message, "너무 멀리") {
		t.Fatalf("unexpected message: %s", result.Message)
	}
}
