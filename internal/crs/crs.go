// Package crs converts between WGS84 and Belgian Lambert 72.
package crs

import (
	"fmt"
	"math"
	"strings"

	"github.com/mohammed-shakir/statsector/internal/core/model"
)

const (
	EPSGWGS84     = "EPSG:4326"
	EPSGLambert72 = "EPSG:31370"
)

// Transformer maps public geodetic coordinates to the sector dataset's
// projected system and back.
type Transformer interface {
	ToProjected(p model.GeoPoint) (model.ProjectedPoint, error)
	ToGeodetic(p model.ProjectedPoint) (model.GeoPoint, error)
}

// New returns the transformer for the declared source/target pair.
func New(source, target string) (Transformer, error) {
	src := normalizeCode(source)
	dst := normalizeCode(target)
	if src == EPSGWGS84 && dst == EPSGLambert72 {
		return NewLambert72(), nil
	}
	return nil, fmt.Errorf("unsupported crs pair %s -> %s", src, dst)
}

func normalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

type ellipsoid struct {
	a  float64
	f  float64
	e2 float64
}

func newEllipsoid(a, invF float64) ellipsoid {
	f := 1 / invF
	return ellipsoid{a: a, f: f, e2: 2*f - f*f}
}

var (
	wgs84     = newEllipsoid(6378137.0, 298.257223563)
	hayford24 = newEllipsoid(6378388.0, 297.0)
)

func dms(d, m, s float64) float64 {
	return (d + m/60 + s/3600) * math.Pi / 180
}

func validGeo(p model.GeoPoint) error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return model.NewError(model.KindInvalidCoordinate, "coordinates must be finite numbers")
	}
	if p.Lat < -90 || p.Lat > 90 {
		return model.NewError(model.KindInvalidCoordinate, "latitude must be in [-90,90]")
	}
	if p.Lon < -180 || p.Lon > 180 {
		return model.NewError(model.KindInvalidCoordinate, "longitude must be in [-180,180]")
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// geodetic (radians, h=0) to earth-centred cartesian
func toECEF(el ellipsoid, lat, lon float64) (x, y, z float64) {
	sinLat := math.Sin(lat)
	n := el.a / math.Sqrt(1-el.e2*sinLat*sinLat)
	return n * math.Cos(lat) * math.Cos(lon),
		n * math.Cos(lat) * math.Sin(lon),
		n * (1 - el.e2) * sinLat
}

// earth-centred cartesian to geodetic (radians); height is dropped
func fromECEF(el ellipsoid, x, y, z float64) (lat, lon float64) {
	p := math.Hypot(x, y)
	lon = math.Atan2(y, x)
	lat = math.Atan2(z, p*(1-el.e2))
	for range 12 {
		sinLat := math.Sin(lat)
		n := el.a / math.Sqrt(1-el.e2*sinLat*sinLat)
		next := math.Atan2(z+el.e2*n*sinLat, p)
		if math.Abs(next-lat) < 1e-14 {
			return next, lon
		}
		lat = next
	}
	return lat, lon
}
