package geo

import (
	"testing"

	"github.com/JINAY2910/RideMate-sub000/internal/models"
)

func TestHaversineZero(t *testing.T) {
	d := Haversine(0, 0, 0, 0)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceKmKnownPair(t *testing.T) {
	// Ahmedabad -> Vadodara is roughly 100km as the crow flies.
	a := models.Coord{Lat: 23.0225, Lng: 72.5714}
	b := models.Coord{Lat: 22.3072, Lng: 73.1812}
	d := DistanceKm(a, b)
	if d < 90 || d > 110 {
		t.Fatalf("expected ~100km, got %f", d)
	}
}
