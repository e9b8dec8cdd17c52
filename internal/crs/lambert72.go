package crs

import (
	"math"

	"github.com/mohammed-shakir/statsector/internal/core/model"
)

// Helmert parameters BD72 -> WGS84, position vector convention.
var bd72ToWGS84 = helmert{
	tx: -106.8686, ty: 52.2978, tz: -103.7239,
	rx: 0.3366, ry: -0.457, rz: 1.8422,
	ppm: -1.2747,
}

// Lambert72 implements EPSG:31370 (Lambert Conic Conformal 2SP on the
// International 1924 ellipsoid) with the BD72 datum shift.
type Lambert72 struct {
	el     ellipsoid
	e      float64
	lon0   float64
	fe, fn float64
	n      float64
	af     float64 // a*F
	rF     float64
	shift  helmert
	inv    [3][3]float64
}

var _ Transformer = (*Lambert72)(nil)

func NewLambert72() *Lambert72 {
	el := hayford24
	e := math.Sqrt(el.e2)
	lat1 := dms(51, 10, 0.00204)
	lat2 := dms(49, 50, 0.00204)

	m := func(phi float64) float64 {
		s := math.Sin(phi)
		return math.Cos(phi) / math.Sqrt(1-el.e2*s*s)
	}
	t1 := isometricT(lat1, e)
	t2 := isometricT(lat2, e)
	n := (math.Log(m(lat1)) - math.Log(m(lat2))) / (math.Log(t1) - math.Log(t2))
	f := m(lat1) / (n * math.Pow(t1, n))

	l := &Lambert72{
		el:    el,
		e:     e,
		lon0:  dms(4, 22, 2.952),
		fe:    150000.013,
		fn:    5400088.438,
		n:     n,
		af:    el.a * f,
		rF:    0, // latitude of origin is the pole
		shift: bd72ToWGS84,
	}
	l.inv = invert3(l.shift.matrix())
	return l
}

func isometricT(phi, e float64) float64 {
	s := math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-e*s)/(1+e*s), e/2)
}

func (l *Lambert72) ToProjected(p model.GeoPoint) (model.ProjectedPoint, error) {
	if err := validGeo(p); err != nil {
		return model.ProjectedPoint{}, err
	}
	// the cone's apex is the north pole; the south pole maps to infinity
	if p.Lat <= -90 {
		return model.ProjectedPoint{}, model.NewError(model.KindInvalidCoordinate, "point outside projection domain")
	}
	x, y, z := toECEF(wgs84, p.Lat*math.Pi/180, p.Lon*math.Pi/180)
	x, y, z = l.shift.inverse(l.inv, x, y, z)
	phi, lam := fromECEF(l.el, x, y, z)

	r := l.af * math.Pow(isometricT(phi, l.e), l.n)
	theta := l.n * (lam - l.lon0)
	out := model.ProjectedPoint{
		X: l.fe + r*math.Sin(theta),
		Y: l.fn + l.rF - r*math.Cos(theta),
	}
	if !finite(out.X, out.Y) {
		return model.ProjectedPoint{}, model.NewError(model.KindInvalidCoordinate, "point outside projection domain")
	}
	return out, nil
}

func (l *Lambert72) ToGeodetic(p model.ProjectedPoint) (model.GeoPoint, error) {
	if !finite(p.X, p.Y) {
		return model.GeoPoint{}, model.NewError(model.KindInvalidCoordinate, "coordinates must be finite numbers")
	}
	dx := p.X - l.fe
	dy := l.rF - (p.Y - l.fn)
	r := math.Copysign(math.Hypot(dx, dy), l.n)
	t := math.Pow(r/l.af, 1/l.n)
	theta := math.Atan2(dx, dy)

	phi := math.Pi/2 - 2*math.Atan(t)
	for range 20 {
		s := math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-l.e*s)/(1+l.e*s), l.e/2))
		if math.Abs(next-phi) < 1e-14 {
			phi = next
			break
		}
		phi = next
	}
	lam := theta/l.n + l.lon0

	x, y, z := toECEF(l.el, phi, lam)
	x, y, z = l.shift.forward(x, y, z)
	lat, lon := fromECEF(wgs84, x, y, z)

	out := model.GeoPoint{Lat: lat * 180 / math.Pi, Lon: lon * 180 / math.Pi}
	if err := validGeo(out); err != nil {
		return model.GeoPoint{}, model.NewError(model.KindInvalidCoordinate, "point outside projection domain")
	}
	return out, nil
}
