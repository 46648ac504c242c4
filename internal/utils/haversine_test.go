package utils

import (
	"math"
	"testing"
)

func TestHaversineKmKnownDistance(t *testing.T) {
	// San Francisco downtown to Oakland downtown, roughly 13.4 km.
	d := HaversineKm(37.7749, -122.4194, 37.8044, -122.2712)
	if math.Abs(d-13.4) > 0.5 {
		t.Fatalf("unexpected distance: %f", d)
	}
}

func TestHaversineKmZero(t *testing.T) {
	if d := HaversineKm(37.77, -122.41, 37.77, -122.41); d != 0 {
		t.Fatalf("same point should be zero distance, got %f", d)
	}
}
