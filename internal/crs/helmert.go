package crs

import "math"

const arcSecond = math.Pi / (180 * 3600)

// seven-parameter similarity transform; rotations in arc-seconds
type helmert struct {
	tx, ty, tz float64
	rx, ry, rz float64
	ppm        float64
}

func (h helmert) matrix() [3][3]float64 {
	rx, ry, rz := h.rx*arcSecond, h.ry*arcSecond, h.rz*arcSecond
	return [3][3]float64{
		{1, -rz, ry},
		{rz, 1, -rx},
		{-ry, rx, 1},
	}
}

func (h helmert) scale() float64 { return 1 + h.ppm*1e-6 }

func (h helmert) forward(x, y, z float64) (float64, float64, float64) {
	m := h.matrix()
	s := h.scale()
	return s*(m[0][0]*x+m[0][1]*y+m[0][2]*z) + h.tx,
		s*(m[1][0]*x+m[1][1]*y+m[1][2]*z) + h.ty,
		s*(m[2][0]*x+m[2][1]*y+m[2][2]*z) + h.tz
}

// inverse undoes forward exactly using the precomputed matrix inverse
func (h helmert) inverse(inv [3][3]float64, x, y, z float64) (float64, float64, float64) {
	s := h.scale()
	vx, vy, vz := (x-h.tx)/s, (y-h.ty)/s, (z-h.tz)/s
	return inv[0][0]*vx + inv[0][1]*vy + inv[0][2]*vz,
		inv[1][0]*vx + inv[1][1]*vy + inv[1][2]*vz,
		inv[2][0]*vx + inv[2][1]*vy + inv[2][2]*vz
}

func invert3(m [3][3]float64) [3][3]float64 {
	a, b, c := m[0][0], m[0][1], m[0][2]
	d, e, f := m[1][0], m[1][1], m[1][2]
	g, h, i := m[2][0], m[2][1], m[2][2]
	det := a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
	return [3][3]float64{
		{(e*i - f*h) / det, (c*h - b*i) / det, (b*f - c*e) / det},
		{(f*g - d*i) / det, (a*i - c*g) / det, (c*d - a*f) / det},
		{(d*h - e*g) / det, (b*g - a*h) / det, (a*e - b*d) / det},
	}
}
