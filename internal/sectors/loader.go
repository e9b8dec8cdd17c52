package sectors

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/statsector/internal/core/model"
)

const (
	DefaultIDProperty   = "cd_sector"
	DefaultNameProperty = "tx_sector_descr_nl"
)

type LoadOptions struct {
	IDProperty   string
	NameProperty string
	Logger       *slog.Logger
}

func (o *LoadOptions) defaults() {
	if o.IDProperty == "" {
		o.IDProperty = DefaultIDProperty
	}
	if o.NameProperty == "" {
		o.NameProperty = DefaultNameProperty
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// LoadFile reads a GeoJSON FeatureCollection in EPSG:31370; a ".gz" suffix
// selects gzip decompression.
func LoadFile(path string, opts LoadOptions) ([]model.Sector, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open sector dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip sector dataset: %w", err)
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}
	return Load(r, opts)
}

func Load(r io.Reader, opts LoadOptions) ([]model.Sector, error) {
	opts.defaults()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read sector dataset: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("parse sector dataset: %w", err)
	}

	out := make([]model.Sector, 0, len(fc.Features))
	skipped := 0
	for i, f := range fc.Features {
		s, err := toSector(f, opts)
		if err != nil {
			skipped++
			opts.Logger.Debug("skipping sector feature", "index", i, "err", err)
			continue
		}
		out = append(out, s)
	}
	if skipped > 0 {
		opts.Logger.Warn("sector features skipped", "skipped", skipped, "loaded", len(out))
	}
	if len(out) == 0 {
		return nil, errors.New("sector dataset contains no usable features")
	}
	return out, nil
}

func toSector(f *geojson.Feature, opts LoadOptions) (model.Sector, error) {
	if f == nil || f.Geometry == nil {
		return model.Sector{}, errors.New("missing geometry")
	}
	var mp orb.MultiPolygon
	switch g := f.Geometry.(type) {
	case orb.Polygon:
		mp = orb.MultiPolygon{g}
	case orb.MultiPolygon:
		mp = g
	default:
		return model.Sector{}, fmt.Errorf("unsupported geometry %s", f.Geometry.GeoJSONType())
	}
	if len(mp) == 0 {
		return model.Sector{}, errors.New("empty geometry")
	}

	id := propString(f.Properties, opts.IDProperty)
	if id == "" {
		return model.Sector{}, fmt.Errorf("missing %q property", opts.IDProperty)
	}
	return model.Sector{
		ID:       id,
		Name:     propString(f.Properties, opts.NameProperty),
		Boundary: mp,
	}, nil
}

func propString(p geojson.Properties, key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
