// Package lookup turns one request (a coordinate pair or an address) into a
// sector lookup result.
package lookup

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/statsector/internal/core/model"
	"github.com/mohammed-shakir/statsector/internal/core/observability"
	"github.com/mohammed-shakir/statsector/internal/crs"
)

type SectorResolver interface {
	Resolve(p model.ProjectedPoint) model.LookupResult
}

type AddressResolver interface {
	Resolve(ctx context.Context, text string) (model.GeoPoint, error)
}

// Recorder receives every finished lookup. Implementations must not block.
type Recorder interface {
	Record(ctx context.Context, source model.Mode, r model.LookupResult)
}

// Input is one lookup request; nil fields were not supplied.
type Input struct {
	Lat     *float64
	Lon     *float64
	Address *string
}

type Coordinator struct {
	tr        crs.Transformer
	sectors   SectorResolver
	addresses AddressResolver
	rec       Recorder
}

type Option func(*Coordinator)

func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.rec = r }
}

// New wires a coordinator. addresses may be nil when no geocoder exists;
// address lookups then fail with KindGeocoderUnavailable.
func New(tr crs.Transformer, sectors SectorResolver, addresses AddressResolver, opts ...Option) *Coordinator {
	c := &Coordinator{
		tr:        tr,
		sectors:   sectors,
		addresses: addresses,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Handle never panics on bad input; failures come back as a StatusError
// result and are logged by whoever renders them. A point outside every sector
// is StatusNotFound, not an error.
func (c *Coordinator) Handle(ctx context.Context, in Input) model.LookupResult {
	var (
		pt     model.GeoPoint
		source model.Mode
	)
	switch {
	case in.Lat != nil && in.Lon != nil:
		source = model.ModeCoordinates
		if !isFinite(*in.Lat) || !isFinite(*in.Lon) {
			return c.finish(ctx, source, model.Failed(
				model.NewError(model.KindInvalidInput, "Invalid coordinates: 'lat' and 'lon' must be finite numbers.")))
		}
		pt = model.GeoPoint{Lat: *in.Lat, Lon: *in.Lon}
	case in.Address != nil:
		source = model.ModeAddress
		if c.addresses == nil {
			return c.finish(ctx, source, model.Failed(model.NewError(model.KindGeocoderUnavailable,
				"Address lookups are unavailable: no geocoding provider is configured.")))
		}
		p, err := c.addresses.Resolve(ctx, *in.Address)
		if err != nil {
			return c.finish(ctx, source, model.Failed(err))
		}
		pt = p
	default:
		return c.finish(ctx, model.ModeCoordinates, model.Failed(
			model.NewError(model.KindMissingInput, model.MissingInputMessage)))
	}

	proj, err := c.tr.ToProjected(pt)
	if err != nil {
		return c.finish(ctx, source, model.Failed(err))
	}
	res := c.sectors.Resolve(proj)
	res.Point = pt
	return c.finish(ctx, source, res)
}

func (c *Coordinator) finish(ctx context.Context, source model.Mode, r model.LookupResult) model.LookupResult {
	outcome := r.Status.String()
	if r.Err != nil {
		outcome = string(r.Err.Kind)
	}
	observability.IncLookup(string(source), outcome)
	if c.rec != nil {
		c.rec.Record(ctx, source, r)
	}
	return r
}

// ParseCoordinate parses a query-string or JSON-string coordinate. name is
// the parameter name used in the error detail.
func ParseCoordinate(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || !isFinite(v) {
		return 0, model.NewError(model.KindInvalidInput,
			fmt.Sprintf("Invalid value for '%s': must be a finite number.", name))
	}
	return v, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
