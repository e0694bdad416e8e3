package geo

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	// Jakarta (-6.2, 106.816) to Bandung (-6.9175, 107.6191) ~ 115-120 km
	d := HaversineKm(-6.2, 106.816, -6.9175, 107.6191)
	if d < 100 || d > 140 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestHaversineSymmetry(t *testing.T) {
	a := HaversineKm(-6.2, 106.816, 35.6762, 139.6503)
	b := HaversineKm(35.6762, 139.6503, -6.2, 106.816)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("haversine not symmetric: %v vs %v", a, b)
	}
	if z := HaversineKm(-6.2, 106.816, -6.2, 106.816); z != 0 {
		t.Fatalf("expected zero self distance, got %v", z)
	}
}

func TestRouteKm(t *testing.T) {
	if d := RouteKm(nil); d != 0 {
		t.Fatalf("empty route: %v", d)
	}
	if d := RouteKm([]Point{{Lat: -6.2, Lng: 106.816}}); d != 0 {
		t.Fatalf("single point route: %v", d)
	}

	p1 := Point{Lat: -6.2, Lng: 106.816}
	p2 := Point{Lat: -6.9175, Lng: 107.6191}
	p3 := Point{Lat: -7.7956, Lng: 110.3695}
	want := HaversineKm(p1.Lat, p1.Lng, p2.Lat, p2.Lng) + HaversineKm(p2.Lat, p2.Lng, p3.Lat, p3.Lng)
	got := RouteKm([]Point{p1, p2, p3})
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("route distance %v, want %v", got, want)
	}
}

func TestPointValid(t *testing.T) {
	cases := []struct {
		p  Point
		ok bool
	}{
		{Point{Lat: 0, Lng: 0}, true},
		{Point{Lat: 90, Lng: 180}, true},
		{Point{Lat: -90, Lng: -180}, true},
		{Point{Lat: 90.0001, Lng: 0}, false},
		{Point{Lat: 0, Lng: -180.5}, false},
		{Point{Lat: 200, Lng: 20}, false},
	}
	for _, c := range cases {
		if c.p.Valid() != c.ok {
			t.Fatalf("Valid(%v) = %v, want %v", c.p, !c.ok, c.ok)
		}
	}
}
