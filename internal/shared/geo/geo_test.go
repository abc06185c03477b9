package geo

import "testing"

func TestHaversineKm(t *testing.T) {
	// Jakarta (-6.2, 106.816) to Bandung (-6.9175, 107.6191) ~ 115-120 km
	d := HaversineKm(-6.2, 106.816, -6.9175, 107.6191)
	if d < 100 || d > 140 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestHaversineKmSamePoint(t *testing.T) {
	if d := HaversineKm(51.5074, -0.1278, 51.5074, -0.1278); d != 0 {
		t.Fatalf("expected zero distance, got %v", d)
	}
}

func TestHaversineKmEquatorDegree(t *testing.T) {
	// One thousandth of a degree of longitude at the equator is ~111 m.
	d := HaversineKm(0, 0, 0, 0.001)
	if d < 0.10 || d > 0.12 {
		t.Fatalf("unexpected distance: %v", d)
	}
}
