// Package sectors holds the read-only statistical sector index and resolves
// projected points against it.
package sectors

import (
	"errors"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/statsector/internal/core/model"
)

// CandidateIndex narrows the scan to sectors that may contain p. Returned
// positions must be ascending and must include every sector containing p.
// ok=false means the index cannot answer and a full scan is needed.
type CandidateIndex interface {
	Candidates(p model.ProjectedPoint) (positions []int, ok bool)
}

// Index is built once and never mutated; it is safe for concurrent reads.
type Index struct {
	sectors []model.Sector
	bounds  []orb.Bound
	cand    CandidateIndex
}

// NewIndex copies the sector slice; cand may be nil.
func NewIndex(secs []model.Sector, cand CandidateIndex) (*Index, error) {
	if len(secs) == 0 {
		return nil, errors.New("sector index: no sectors")
	}
	ix := &Index{
		sectors: make([]model.Sector, len(secs)),
		bounds:  make([]orb.Bound, len(secs)),
		cand:    cand,
	}
	copy(ix.sectors, secs)
	for i, s := range ix.sectors {
		ix.bounds[i] = s.Boundary.Bound()
	}
	return ix, nil
}

func (ix *Index) Len() int { return len(ix.sectors) }

// Resolve returns the first sector in index order whose closed boundary
// contains p, or NotFound.
func (ix *Index) Resolve(p model.ProjectedPoint) model.LookupResult {
	pt := p.Orb()
	if ix.cand != nil {
		if positions, ok := ix.cand.Candidates(p); ok {
			for _, i := range positions {
				if i >= 0 && i < len(ix.sectors) && ix.containsAt(i, pt) {
					return model.Found(&ix.sectors[i])
				}
			}
			return model.NotFound()
		}
	}
	for i := range ix.sectors {
		if ix.containsAt(i, pt) {
			return model.Found(&ix.sectors[i])
		}
	}
	return model.NotFound()
}

func (ix *Index) containsAt(i int, pt orb.Point) bool {
	if !ix.bounds[i].Contains(pt) {
		return false
	}
	return MultiPolygonContains(ix.sectors[i].Boundary, pt)
}
