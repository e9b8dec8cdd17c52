// Package model defines core domain types shared across the service.
package model

import (
	"fmt"

	"github.com/paulmach/orb"
)

// GeoPoint is a WGS84 (EPSG:4326) coordinate in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// ProjectedPoint is a Belgian Lambert 72 (EPSG:31370) coordinate in metres.
type ProjectedPoint struct {
	X float64
	Y float64
}

func (p ProjectedPoint) Orb() orb.Point { return orb.Point{p.X, p.Y} }

// Sector is one statistical sector; Boundary is in the projected CRS.
type Sector struct {
	ID       string
	Name     string
	Boundary orb.MultiPolygon
}

type Status int

const (
	StatusFound Status = iota
	StatusNotFound
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	default:
		return "error"
	}
}

// NotFoundMessage is reported for points outside every sector.
const NotFoundMessage = "Sector not found for the given coordinates"

// LookupResult is the outcome of resolving one point or address.
type LookupResult struct {
	Status     Status
	SectorID   string
	SectorName string
	Point      GeoPoint
	Err        *Error
}

func Found(s *Sector) LookupResult {
	return LookupResult{Status: StatusFound, SectorID: s.ID, SectorName: s.Name}
}

func NotFound() LookupResult {
	return LookupResult{Status: StatusNotFound}
}

func Failed(err error) LookupResult {
	return LookupResult{Status: StatusError, Err: AsError(err)}
}

// Fields renders the result the way it is returned to clients; batch field
// extraction reads from the same map.
func (r LookupResult) Fields() map[string]any {
	switch r.Status {
	case StatusFound:
		return map[string]any{
			"sector_id":   r.SectorID,
			"sector_name": r.SectorName,
			"lat":         r.Point.Lat,
			"lon":         r.Point.Lon,
		}
	case StatusNotFound:
		return map[string]any{"error": NotFoundMessage}
	default:
		return nil
	}
}

type Mode string

const (
	ModeAddress     Mode = "address"
	ModeCoordinates Mode = "coordinates"
)

// BatchCall is one row of a batch. Only the fields matching the batch mode
// are meaningful; nil means the row left the value out.
type BatchCall struct {
	Address *string
	Lat     *float64
	Lon     *float64
	// RowErr is set when the row could not be decoded into this shape.
	RowErr error
}

func AddressCall(text string) BatchCall {
	return BatchCall{Address: &text}
}

func CoordinateCall(lat, lon float64) BatchCall {
	return BatchCall{Lat: &lat, Lon: &lon}
}
