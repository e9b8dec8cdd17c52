// Package geocode turns free-text addresses into WGS84 points through an
// external geocoding provider, with an in-memory cache in front of it.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mohammed-shakir/statsector/internal/core/model"
	"github.com/mohammed-shakir/statsector/internal/core/observability"
)

const (
	DefaultEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"
	DefaultMaxTries = 3

	upstreamName = "geocoder"
	maxBodyBytes = 1 << 20
)

// Provider resolves one normalized address. A provider-side "no match" is
// reported as a *model.Error of kind KindGeocodeNotFound; every other error
// is an operator-side failure.
type Provider interface {
	Geocode(ctx context.Context, address string) (model.GeoPoint, error)
}

// GoogleClient speaks the Google Geocoding JSON API.
type GoogleClient struct {
	hc         *http.Client
	endpoint   *url.URL
	apiKey     string
	maxTries   uint
	newBackOff func() backoff.BackOff
	logger     *slog.Logger
}

var _ Provider = (*GoogleClient)(nil)

type ClientOption func(*GoogleClient)

func WithMaxTries(n int) ClientOption {
	return func(c *GoogleClient) {
		if n > 0 {
			c.maxTries = uint(n)
		}
	}
}

// WithBackOff sets the retry schedule; f is called once per Geocode call.
func WithBackOff(f func() backoff.BackOff) ClientOption {
	return func(c *GoogleClient) { c.newBackOff = f }
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *GoogleClient) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewGoogleClient(hc *http.Client, endpoint, apiKey string, opts ...ClientOption) (*GoogleClient, error) {
	if apiKey == "" {
		return nil, errors.New("geocoder api key is empty")
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse geocoder url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("geocoder url %q: unsupported scheme", endpoint)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	c := &GoogleClient{
		hc:       hc,
		endpoint: u,
		apiKey:   apiKey,
		maxTries: DefaultMaxTries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type googleResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location struct {
				Lat *float64 `json:"lat"`
				Lng *float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (c *GoogleClient) Geocode(ctx context.Context, address string) (model.GeoPoint, error) {
	op := func() (model.GeoPoint, error) {
		p, err := c.attempt(ctx, address)
		var te *transientError
		if errors.As(err, &te) {
			observability.IncUpstreamResult(upstreamName, "retry")
			c.logger.DebugContext(ctx, "geocoder transient failure", "err", te.Error())
			return p, err
		}
		if err != nil {
			return p, backoff.Permanent(err)
		}
		return p, nil
	}
	p, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	switch {
	case err == nil:
		observability.IncUpstreamResult(upstreamName, "ok")
	case model.IsKind(err, model.KindGeocodeNotFound):
		observability.IncUpstreamResult(upstreamName, "not_found")
	default:
		observability.IncUpstreamResult(upstreamName, "error")
	}
	return p, err
}

func (c *GoogleClient) attempt(ctx context.Context, address string) (model.GeoPoint, error) {
	u := *c.endpoint
	q := u.Query()
	q.Set("address", address)
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.GeoPoint{}, fmt.Errorf("build geocoder request: %w", c.redact(err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	observability.ObserveUpstreamLatency(upstreamName, time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return model.GeoPoint{}, fmt.Errorf("geocoder call aborted: %w", ctx.Err())
		}
		return model.GeoPoint{}, &transientError{err: c.redact(err)}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 500:
		return model.GeoPoint{}, &transientError{err: fmt.Errorf("geocoder http status %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return model.GeoPoint{}, fmt.Errorf("geocoder http status %d", resp.StatusCode)
	}

	var body googleResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return model.GeoPoint{}, fmt.Errorf("decode geocoder response: %w", err)
	}

	switch body.Status {
	case "OK":
		if len(body.Results) == 0 {
			return model.GeoPoint{}, errors.New("geocoder returned OK without results")
		}
		loc := body.Results[0].Geometry.Location
		if loc.Lat == nil || loc.Lng == nil {
			return model.GeoPoint{}, errors.New("geocoder result has no location")
		}
		return model.GeoPoint{Lat: *loc.Lat, Lon: *loc.Lng}, nil
	case "ZERO_RESULTS", "INVALID_REQUEST":
		return model.GeoPoint{}, model.NewError(model.KindGeocodeNotFound,
			"Geocoding API response status: "+body.Status)
	case "UNKNOWN_ERROR":
		return model.GeoPoint{}, &transientError{err: errors.New("geocoder status UNKNOWN_ERROR")}
	default:
		if body.ErrorMessage != "" {
			return model.GeoPoint{}, fmt.Errorf("geocoder status %s: %s", body.Status, body.ErrorMessage)
		}
		return model.GeoPoint{}, fmt.Errorf("geocoder status %s", body.Status)
	}
}

// redact drops the query string from transport errors; it carries both the
// address and the API key.
func (c *GoogleClient) redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		clean := *c.endpoint
		clean.RawQuery = ""
		return &url.Error{Op: ue.Op, URL: clean.String(), Err: ue.Err}
	}
	return err
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }
