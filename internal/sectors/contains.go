package sectors

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// MultiPolygonContains uses closed semantics: a point lying exactly on any
// ring edge, outer or hole, is contained.
func MultiPolygonContains(mp orb.MultiPolygon, pt orb.Point) bool {
	for _, p := range mp {
		if PolygonContains(p, pt) {
			return true
		}
	}
	return false
}

func PolygonContains(p orb.Polygon, pt orb.Point) bool {
	if len(p) == 0 || len(p[0]) == 0 {
		return false
	}
	outer := p[0]
	if onRing(outer, pt) {
		return true
	}
	if !planar.RingContains(outer, pt) {
		return false
	}
	for _, hole := range p[1:] {
		if len(hole) == 0 || onRing(hole, pt) {
			continue
		}
		if planar.RingContains(hole, pt) {
			return false
		}
	}
	return true
}

// onRing tests every edge, including the implicit closing edge, exactly.
func onRing(r orb.Ring, pt orb.Point) bool {
	n := len(r)
	for i := range n {
		if onSegment(r[i], r[(i+1)%n], pt) {
			return true
		}
	}
	return false
}

func onSegment(a, b, p orb.Point) bool {
	cross := (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
	if cross != 0 {
		return false
	}
	return p[0] >= min(a[0], b[0]) && p[0] <= max(a[0], b[0]) &&
		p[1] >= min(a[1], b[1]) && p[1] <= max(a[1], b[1])
}
