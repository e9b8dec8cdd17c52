// Package h3mapper builds an H3 cell index over sector bounds.
package h3mapper

import "fmt"

const kmPerDegree = 111.32

// average hexagon edge length per resolution, km
var avgEdgeKm = [16]float64{
	1281.256011, 483.0568391, 182.5129565, 68.97922179,
	26.07175968, 9.854090990, 3.724532667, 1.406475763,
	0.531414010, 0.200786148, 0.075863783, 0.028663897,
	0.010830188, 0.004092010, 0.001546100, 0.000584169,
}

const (
	MinIndexRes = 4
	MaxIndexRes = 10
)

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// coarser cells make huge candidate lists, finer ones a huge map
func validateIndexRes(res int) error {
	if err := validateRes(res); err != nil {
		return err
	}
	if res < MinIndexRes || res > MaxIndexRes {
		return fmt.Errorf("H3 index resolution %d outside %d..%d", res, MinIndexRes, MaxIndexRes)
	}
	return nil
}
