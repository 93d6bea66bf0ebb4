package geospatial_test

import (
	"math"
	"testing"

	"github.com/samirrijal/housingetl/internal/core/domain"
	"github.com/samirrijal/housingetl/internal/pkg/geospatial"
)

func TestHaversine(t *testing.T) {
	// Two points in central Medellín roughly 2.5 km apart.
	d := geospatial.Haversine(6.2500, -75.5683, 6.2527, -75.5905)
	if d < 2400 || d > 2600 {
		t.Errorf("unexpected distance %.0f m", d)
	}
	if geospatial.Haversine(6.25, -75.56, 6.25, -75.56) != 0 {
		t.Error("distance to self should be zero")
	}
}

func TestBoundingBox_ContainsCircle(t *testing.T) {
	center := domain.GeoPoint{Lat: 6.2442, Lon: -75.5812}
	box := geospatial.BoundingBox(center, 1000)

	if !box.Contains(center) {
		t.Fatal("box must contain its center")
	}
	north := domain.GeoPoint{Lat: center.Lat + 0.0089, Lon: center.Lon}
	if !box.Contains(north) {
		t.Error("point 990 m north should be inside")
	}
	far := domain.GeoPoint{Lat: center.Lat + 0.02, Lon: center.Lon}
	if box.Contains(far) {
		t.Error("point 2.2 km north should be outside")
	}
	if d := geospatial.Distance(center, north); math.Abs(d-990) > 15 {
		t.Errorf("unexpected distance %.1f", d)
	}
}
