package geocode

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mohammed-shakir/statsector/internal/cache"
	"github.com/mohammed-shakir/statsector/internal/cache/keys"
	"github.com/mohammed-shakir/statsector/internal/core/model"
	"github.com/mohammed-shakir/statsector/internal/core/observability"
)

// Resolver puts the address cache in front of a Provider. The cache is keyed
// on whitespace-collapsed text; the provider gets the caller's text as is.
// Address text is never logged; log lines carry its length and fingerprint.
type Resolver struct {
	provider Provider
	cache    cache.Interface
	logger   *slog.Logger
}

// NewResolver accepts a nil provider, in which case every lookup fails with
// KindGeocoderUnavailable. Pass an untyped nil, not a nil *GoogleClient.
func NewResolver(p Provider, c cache.Interface, logger *slog.Logger) *Resolver {
	if c == nil {
		c = cache.New(cache.DefaultSize, cache.DefaultTTL)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{provider: p, cache: c, logger: logger}
}

// Configured reports whether a provider is wired in.
func (r *Resolver) Configured() bool { return r.provider != nil }

func (r *Resolver) Resolve(ctx context.Context, text string) (model.GeoPoint, error) {
	key := keys.Address(text)
	if key == "" {
		return model.GeoPoint{}, model.NewError(model.KindMissingInput, model.MissingInputMessage)
	}
	attrs := []any{"addr_len", len(key), "addr_fp", keys.Fingerprint(key)}

	if p, ok := r.cache.Get(key); ok {
		observability.IncAddressCacheHit()
		r.logger.DebugContext(ctx, "address cache hit", attrs...)
		return p, nil
	}
	observability.IncAddressCacheMiss()

	if r.provider == nil {
		return model.GeoPoint{}, model.NewError(model.KindGeocoderUnavailable,
			"Address lookups are unavailable: no geocoding provider is configured.")
	}

	r.logger.InfoContext(ctx, "looking up address with geocoding provider", attrs...)
	p, err := r.provider.Geocode(ctx, strings.TrimSpace(text))
	if err != nil {
		if model.IsKind(err, model.KindGeocodeNotFound) {
			r.logger.InfoContext(ctx, "address not found by provider", append(attrs, "err", err.Error())...)
			return model.GeoPoint{}, err
		}
		e := model.Opaquef(model.KindGeocodeProviderError, err, "geocoding failed")
		r.logger.ErrorContext(ctx, "geocoding failed",
			append(attrs, "correlation_id", e.CorrelationID, "err", err.Error())...)
		return model.GeoPoint{}, e
	}

	r.cache.Set(key, p)
	return p, nil
}
