package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mohammed-shakir/statsector/internal/core/model"
)

const testKey = "test-key-123"

func okBody(lat, lng float64) string {
	return fmt.Sprintf(`{"status":"OK","results":[{"geometry":{"location":{"lat":%v,"lng":%v}}}]}`, lat, lng)
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...ClientOption) (*GoogleClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]ClientOption{
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	}, opts...)
	c, err := NewGoogleClient(srv.Client(), srv.URL+"/maps/api/geocode/json", testKey, opts...)
	if err != nil {
		t.Fatalf("NewGoogleClient: %v", err)
	}
	return c, srv
}

func TestGeocode_OK_SendsAddressAndKey(t *testing.T) {
	var gotAddr, gotKey string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAddr = r.URL.Query().Get("address")
		gotKey = r.URL.Query().Get("key")
		_, _ = w.Write([]byte(okBody(50.8798, 4.7005)))
	})

	p, err := c.Geocode(context.Background(), "Grote Markt 1, Leuven")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if p.Lat != 50.8798 || p.Lon != 4.7005 {
		t.Fatalf("point=%v", p)
	}
	if gotAddr != "Grote Markt 1, Leuven" || gotKey != testKey {
		t.Fatalf("query address=%q key=%q", gotAddr, gotKey)
	}
}

func TestGeocode_StatusClasses(t *testing.T) {
	cases := []struct {
		name     string
		code     int
		body     string
		notFound bool
	}{
		{"zero results", 200, `{"status":"ZERO_RESULTS","results":[]}`, true},
		{"invalid request", 200, `{"status":"INVALID_REQUEST"}`, true},
		{"denied", 200, `{"status":"REQUEST_DENIED","error_message":"bad key"}`, false},
		{"quota", 200, `{"status":"OVER_QUERY_LIMIT"}`, false},
		{"ok without results", 200, `{"status":"OK","results":[]}`, false},
		{"ok without location", 200, `{"status":"OK","results":[{"geometry":{}}]}`, false},
		{"malformed json", 200, `{"status":`, false},
		{"client error", 403, `{}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tc.code)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.Geocode(context.Background(), "somewhere")
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := model.IsKind(err, model.KindGeocodeNotFound); got != tc.notFound {
				t.Fatalf("not-found=%v want %v (err=%v)", got, tc.notFound, err)
			}
			if calls.Load() != 1 {
				t.Fatalf("permanent failure retried: %d calls", calls.Load())
			}
		})
	}
}

func TestGeocode_NotFoundDetailCarriesStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS"}`))
	})
	_, err := c.Geocode(context.Background(), "nowhere")
	var e *model.Error
	if !errors.As(err, &e) {
		t.Fatalf("want *model.Error, got %T", err)
	}
	if e.PublicDetail() != "Geocoding API response status: ZERO_RESULTS" {
		t.Fatalf("detail=%q", e.PublicDetail())
	}
}

func TestGeocode_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusBadGateway)
		case 2:
			_, _ = w.Write([]byte(`{"status":"UNKNOWN_ERROR"}`))
		default:
			_, _ = w.Write([]byte(okBody(51.0, 4.0)))
		}
	})
	p, err := c.Geocode(context.Background(), "retry me")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if p.Lat != 51.0 || calls.Load() != 3 {
		t.Fatalf("point=%v calls=%d", p, calls.Load())
	}
}

func TestGeocode_GivesUpAfterMaxTries(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithMaxTries(2))
	if _, err := c.Geocode(context.Background(), "down"); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 2 {
		t.Fatalf("calls=%d want 2", calls.Load())
	}
}

func TestGeocode_TransportErrorHidesKeyAndAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewGoogleClient(&http.Client{Timeout: time.Second}, url, testKey,
		WithMaxTries(1),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }))
	if err != nil {
		t.Fatalf("NewGoogleClient: %v", err)
	}
	_, err = c.Geocode(context.Background(), "Secret Street 7")
	if err == nil {
		t.Fatalf("expected transport error")
	}
	msg := err.Error()
	if strings.Contains(msg, testKey) || strings.Contains(msg, "Secret") {
		t.Fatalf("error leaks request query: %s", msg)
	}
}

func TestGeocode_CancelledContextStopsRetries(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		cancel()
		w.WriteHeader(http.StatusInternalServerError)
	}, WithMaxTries(5), WithBackOff(func() backoff.BackOff { return backoff.NewConstantBackOff(time.Hour) }))

	if _, err := c.Geocode(ctx, "x"); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() > 1 {
		t.Fatalf("retried after cancellation: %d calls", calls.Load())
	}
}

func TestNewGoogleClient_Validation(t *testing.T) {
	if _, err := NewGoogleClient(nil, "", ""); err == nil {
		t.Fatalf("empty key must be rejected")
	}
	if _, err := NewGoogleClient(nil, "ftp://x", "k"); err == nil {
		t.Fatalf("non-http endpoint must be rejected")
	}
	c, err := NewGoogleClient(nil, "", "k")
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if c.endpoint.String() != DefaultEndpoint {
		t.Fatalf("endpoint=%s", c.endpoint)
	}
}
