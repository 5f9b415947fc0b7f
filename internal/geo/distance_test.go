package geo

import (
	"math"
	"testing"

	"opspulse/internal/models"
)

func TestHaversineKm_ZeroDistance(t *testing.T) {
	p := models.Coordinate{Latitude: 10, Longitude: 20}
	if d := HaversineKm(p, p); d < 0 || d > 1e-9 {
		t.Fatalf("zero distance expected ~0, got %v", d)
	}
}

func TestHaversineKm_OneDegreeAtEquator(t *testing.T) {
	d := HaversineKm(models.Coordinate{}, models.Coordinate{Longitude: 1})
	want := EarthRadiusKm * math.Pi / 180
	if math.Abs(d-want) > 1e-6 {
		t.Fatalf("HaversineKm = %v, want %v", d, want)
	}
}

func TestInterpolate_Endpoints(t *testing.T) {
	a := models.Coordinate{Latitude: 1, Longitude: 1}
	b := models.Coordinate{Latitude: 2, Longitude: 3}
	pts := Interpolate(a, b, 4)
	if len(pts) != 5 {
		t.Fatalf("len = %d, want 5", len(pts))
	}
	if pts[0] != a || pts[4] != b {
		t.Fatalf("endpoints mismatch: %+v", pts)
	}
	if pts[2].Latitude != 1.5 || pts[2].Longitude != 2 {
		t.Fatalf("midpoint mismatch: %+v", pts[2])
	}
}

func TestBounds_EmptyUsesDefault(t *testing.T) {
	if got := Bounds(nil); got != DefaultBounds() {
		t.Fatalf("Bounds(nil) = %+v", got)
	}
}

func TestBounds_PadsSinglePoint(t *testing.T) {
	box := Bounds([]models.Coordinate{{Latitude: 9, Longitude: 38}})
	if box.South >= 9 || box.North <= 9 || box.West >= 38 || box.East <= 38 {
		t.Fatalf("point not strictly inside box: %+v", box)
	}
	if math.Abs((box.North-box.South)-2*MinBoundsPadding) > 1e-9 {
		t.Fatalf("unexpected padding: %+v", box)
	}
}

func TestBounds_CoversAllPoints(t *testing.T) {
	pts := []models.Coordinate{{Latitude: 0, Longitude: 0}, {Latitude: 1, Longitude: 2}, {Latitude: -1, Longitude: 1}}
	box := Bounds(pts)
	for _, p := range pts {
		if p.Latitude < box.South || p.Latitude > box.North || p.Longitude < box.West || p.Longitude > box.East {
			t.Fatalf("point %+v outside %+v", p, box)
		}
	}
}
