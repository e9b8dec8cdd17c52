package h3mapper

import (
	"fmt"
	"math"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/statsector/internal/core/model"
	"github.com/mohammed-shakir/statsector/internal/crs"
)

// Index maps H3 cells to the positions of sectors that may touch them.
// Registration over-covers each sector's bounds so a lookup never misses a
// containing sector.
type Index struct {
	res   int
	tr    crs.Transformer
	cells map[h3.Cell][]int
}

// NewIndex registers every sector at resolution res. Positions in each cell
// list are ascending, matching the sector order.
func NewIndex(secs []model.Sector, tr crs.Transformer, res int) (*Index, error) {
	if err := validateIndexRes(res); err != nil {
		return nil, err
	}
	ix := &Index{res: res, tr: tr, cells: make(map[h3.Cell][]int)}
	for i, s := range secs {
		cells, err := ix.coverSector(s)
		if err != nil {
			return nil, fmt.Errorf("sector %s: %w", s.ID, err)
		}
		for c := range cells {
			ix.cells[c] = append(ix.cells[c], i)
		}
	}
	return ix, nil
}

func (ix *Index) Resolution() int { return ix.res }

// Cells is the number of distinct cells holding at least one sector.
func (ix *Index) Cells() int { return len(ix.cells) }

func (ix *Index) Candidates(p model.ProjectedPoint) ([]int, bool) {
	g, err := ix.tr.ToGeodetic(p)
	if err != nil {
		return nil, false
	}
	c, err := h3.LatLngToCell(h3.LatLng{Lat: g.Lat, Lng: g.Lon}, ix.res)
	if err != nil {
		return nil, false
	}
	return ix.cells[c], true
}

// coverSector samples the sector's geodetic bounding box densely enough that
// every point inside lies in a sampled cell or one of its neighbours.
func (ix *Index) coverSector(s model.Sector) (map[h3.Cell]struct{}, error) {
	minLat, minLon, maxLat, maxLon, err := ix.geodeticBounds(s)
	if err != nil {
		return nil, err
	}
	stepKm := avgEdgeKm[ix.res] / 4
	midLat := (minLat + maxLat) / 2 * math.Pi / 180
	stepLat := stepKm / kmPerDegree
	stepLon := stepKm / (kmPerDegree * math.Cos(midLat))

	// widen by one step so curved projected edges stay covered
	minLat, maxLat = minLat-stepLat, maxLat+stepLat
	minLon, maxLon = minLon-stepLon, maxLon+stepLon

	seen := make(map[h3.Cell]struct{})
	for _, lat := range samples(minLat, maxLat, stepLat) {
		for _, lon := range samples(minLon, maxLon, stepLon) {
			c, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, ix.res)
			if err != nil {
				return nil, fmt.Errorf("h3 cell: %w", err)
			}
			seen[c] = struct{}{}
		}
	}

	out := make(map[h3.Cell]struct{}, len(seen)*3)
	for c := range seen {
		disk, err := h3.GridDisk(c, 1)
		if err != nil {
			return nil, fmt.Errorf("h3 grid disk: %w", err)
		}
		for _, d := range disk {
			out[d] = struct{}{}
		}
	}
	return out, nil
}

// geodeticBounds projects a densified outline of the sector's projected
// bounds back to WGS84.
func (ix *Index) geodeticBounds(s model.Sector) (minLat, minLon, maxLat, maxLon float64, err error) {
	b := s.Boundary.Bound()
	minLat, minLon = math.Inf(1), math.Inf(1)
	maxLat, maxLon = math.Inf(-1), math.Inf(-1)

	const steps = 8
	for i := 0; i <= steps; i++ {
		f := float64(i) / steps
		x := b.Min[0] + f*(b.Max[0]-b.Min[0])
		y := b.Min[1] + f*(b.Max[1]-b.Min[1])
		for _, p := range []model.ProjectedPoint{
			{X: x, Y: b.Min[1]}, {X: x, Y: b.Max[1]},
			{X: b.Min[0], Y: y}, {X: b.Max[0], Y: y},
		} {
			g, gerr := ix.tr.ToGeodetic(p)
			if gerr != nil {
				return 0, 0, 0, 0, fmt.Errorf("bounds to geodetic: %w", gerr)
			}
			minLat, maxLat = math.Min(minLat, g.Lat), math.Max(maxLat, g.Lat)
			minLon, maxLon = math.Min(minLon, g.Lon), math.Max(maxLon, g.Lon)
		}
	}
	return minLat, minLon, maxLat, maxLon, nil
}

// samples returns evenly spaced values covering [lo,hi] including both ends.
func samples(lo, hi, step float64) []float64 {
	n := int(math.Ceil((hi-lo)/step)) + 1
	if n < 2 {
		return []float64{lo, hi}
	}
	out := make([]float64, n)
	for i := range n {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}
