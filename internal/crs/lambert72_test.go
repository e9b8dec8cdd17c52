package crs

import (
	"math"
	"testing"

	"github.com/mohammed-shakir/statsector/internal/core/model"
)

func TestLambert72_KnownPoints(t *testing.T) {
	l := NewLambert72()
	cases := []struct {
		name string
		in   model.GeoPoint
		x, y float64
	}{
		{"leuven", model.GeoPoint{Lat: 50.870, Lon: 4.705}, 173668.686, 173345.291},
		{"brussels", model.GeoPoint{Lat: 50.8503, Lon: 4.3517}, 148799.170, 171100.155},
		{"antwerp", model.GeoPoint{Lat: 51.2194, Lon: 4.4025}, 152357.483, 212161.982},
	}
	for _, tc := range cases {
		got, err := l.ToProjected(tc.in)
		if err != nil {
			t.Fatalf("%s: ToProjected: %v", tc.name, err)
		}
		if math.Abs(got.X-tc.x) > 0.01 || math.Abs(got.Y-tc.y) > 0.01 {
			t.Fatalf("%s: got (%.3f,%.3f) want (%.3f,%.3f)", tc.name, got.X, got.Y, tc.x, tc.y)
		}
	}
}

func TestLambert72_RoundTripWithinTolerance(t *testing.T) {
	l := NewLambert72()
	const tol = 1e-6
	for lat := 49.4; lat <= 51.6; lat += 0.1 {
		for lon := 2.5; lon <= 6.5; lon += 0.25 {
			p := model.GeoPoint{Lat: lat, Lon: lon}
			proj, err := l.ToProjected(p)
			if err != nil {
				t.Fatalf("ToProjected(%v): %v", p, err)
			}
			back, err := l.ToGeodetic(proj)
			if err != nil {
				t.Fatalf("ToGeodetic(%v): %v", proj, err)
			}
			if math.Abs(back.Lat-p.Lat) > tol || math.Abs(back.Lon-p.Lon) > tol {
				t.Fatalf("round trip drift for %v: got %v", p, back)
			}
		}
	}
}

func TestLambert72_Deterministic(t *testing.T) {
	l := NewLambert72()
	p := model.GeoPoint{Lat: 50.5, Lon: 5.1}
	a, _ := l.ToProjected(p)
	b, _ := l.ToProjected(p)
	if a != b {
		t.Fatalf("expected identical output, got %v and %v", a, b)
	}
}

func TestLambert72_InvalidCoordinates(t *testing.T) {
	l := NewLambert72()
	bad := []model.GeoPoint{
		{Lat: math.NaN(), Lon: 4},
		{Lat: 50, Lon: math.Inf(1)},
		{Lat: 90.5, Lon: 4},
		{Lat: 50, Lon: -181},
		{Lat: -90, Lon: 0},
	}
	for _, p := range bad {
		_, err := l.ToProjected(p)
		if !model.IsKind(err, model.KindInvalidCoordinate) {
			t.Fatalf("ToProjected(%v): expected invalid coordinate, got %v", p, err)
		}
	}
	_, err := l.ToGeodetic(model.ProjectedPoint{X: math.NaN(), Y: 1})
	if !model.IsKind(err, model.KindInvalidCoordinate) {
		t.Fatalf("ToGeodetic(NaN): expected invalid coordinate, got %v", err)
	}
}

func TestNew_OnlyDeclaredPairSupported(t *testing.T) {
	if _, err := New(" epsg:4326", "EPSG:31370 "); err != nil {
		t.Fatalf("expected supported pair, got %v", err)
	}
	if _, err := New("EPSG:4326", "EPSG:3857"); err == nil {
		t.Fatalf("expected error for unsupported target")
	}
}
