package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/mohammed-shakir/statsector/internal/batch"
	"github.com/mohammed-shakir/statsector/internal/core/model"
	"github.com/mohammed-shakir/statsector/internal/crs"
	"github.com/mohammed-shakir/statsector/internal/lookup"
	"github.com/mohammed-shakir/statsector/internal/sectors"
)

// fakeGeocoder knows two addresses; "broken" fails like a provider outage.
type fakeGeocoder struct{}

func (fakeGeocoder) Resolve(_ context.Context, text string) (model.GeoPoint, error) {
	switch text {
	case "Grote Markt 1, Leuven":
		return model.GeoPoint{Lat: 50.870, Lon: 4.705}, nil
	case "broken":
		return model.GeoPoint{}, model.Opaquef(model.KindGeocodeProviderError, errors.New("REQUEST_DENIED"), "geocoding failed")
	default:
		return model.GeoPoint{}, model.NewError(model.KindGeocodeNotFound, "Geocoding API response status: ZERO_RESULTS")
	}
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newCoordinator(t *testing.T) *lookup.Coordinator {
	t.Helper()
	secs, err := sectors.LoadFile("../../sectors/testdata/sectors.geojson", sectors.LoadOptions{})
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	ix, err := sectors.NewIndex(secs, nil)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return lookup.New(crs.NewLambert72(), ix, fakeGeocoder{})
}

func get(t *testing.T, h http.HandlerFunc, target string) (int, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not json: %v\n%s", err, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}
	return rr.Code, body
}

func TestHandleRoot(t *testing.T) {
	code, body := get(t, HandleRoot(), "/")
	if code != http.StatusOK || body["message"] != "Statsector API" {
		t.Fatalf("code=%d body=%v", code, body)
	}
}

func TestHandleLookup_Coordinates(t *testing.T) {
	h := HandleLookup(quiet, newCoordinator(t))
	code, body := get(t, h, "/get-statsector/?lat=50.870&lon=4.705")
	if code != http.StatusOK {
		t.Fatalf("code=%d body=%v", code, body)
	}
	if body["sector_id"] != "24062A10-" || body["sector_name"] != "LEUVEN-CENTRUM" {
		t.Fatalf("body=%v", body)
	}
	if body["lat"] != 50.870 || body["lon"] != 4.705 {
		t.Fatalf("point not echoed: %v", body)
	}
}

func TestHandleLookup_Address(t *testing.T) {
	h := HandleLookup(quiet, newCoordinator(t))
	code, body := get(t, h, "/get-statsector/?address=Grote+Markt+1%2C+Leuven")
	if code != http.StatusOK || body["sector_id"] != "24062A10-" {
		t.Fatalf("code=%d body=%v", code, body)
	}
}

func TestHandleLookup_NotFoundIs200WithError(t *testing.T) {
	h := HandleLookup(quiet, newCoordinator(t))
	code, body := get(t, h, "/get-statsector/?lat=50.8503&lon=4.3517")
	if code != http.StatusOK || body["error"] != model.NotFoundMessage {
		t.Fatalf("code=%d body=%v", code, body)
	}
	if _, ok := body["sector_id"]; ok {
		t.Fatalf("not-found body carries sector_id: %v", body)
	}
}

var opaqueRe = regexp.MustCompile(`^An internal error occurred - error id: [0-9a-f-]{36}$`)

func TestHandleLookup_Errors(t *testing.T) {
	h := HandleLookup(quiet, newCoordinator(t))
	cases := []struct {
		name   string
		target string
		code   int
		detail string
	}{
		{"missing input", "/get-statsector/", 400, model.MissingInputMessage},
		{"lat only", "/get-statsector/?lat=50.8", 400, model.MissingInputMessage},
		{"blank address", "/get-statsector/?address=%20%20", 400, model.MissingInputMessage},
		{"invalid lat", "/get-statsector/?lat=invalid&lon=4.7", 400, "Invalid value for 'lat': must be a finite number."},
		{"nan lon", "/get-statsector/?lat=50&lon=NaN", 400, "Invalid value for 'lon': must be a finite number."},
		{"lat out of range", "/get-statsector/?lat=95&lon=4.7", 400, "latitude must be in [-90,90]"},
		{"geocode not found", "/get-statsector/?address=Nowhere", 400, "Geocoding API response status: ZERO_RESULTS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := get(t, h, tc.target)
			if code != tc.code || body["detail"] != tc.detail {
				t.Fatalf("code=%d body=%v want %d %q", code, body, tc.code, tc.detail)
			}
		})
	}

	code, body := get(t, h, "/get-statsector/?address=broken")
	detail, _ := body["detail"].(string)
	if code != http.StatusInternalServerError || !opaqueRe.MatchString(detail) {
		t.Fatalf("provider failure: code=%d body=%v", code, body)
	}
}

func TestHandleLookup_GeocoderUnavailable(t *testing.T) {
	secs, _ := sectors.LoadFile("../../sectors/testdata/sectors.geojson", sectors.LoadOptions{})
	ix, _ := sectors.NewIndex(secs, nil)
	h := HandleLookup(quiet, lookup.New(crs.NewLambert72(), ix, nil))

	if code, _ := get(t, h, "/get-statsector/?address=Grote+Markt"); code != http.StatusServiceUnavailable {
		t.Fatalf("code=%d want 503", code)
	}
	if code, _ := get(t, h, "/get-statsector/?lat=50.870&lon=4.705"); code != http.StatusOK {
		t.Fatalf("coordinates must work without geocoder, code=%d", code)
	}
}

func post(t *testing.T, h http.HandlerFunc, body string) (int, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("body is not json: %v\n%s", err, rr.Body.String())
	}
	return rr.Code, out
}

func TestHandleBatch_Coordinates(t *testing.T) {
	h := HandleBatch(quiet, batch.New(newCoordinator(t), 4, quiet), 0)
	code, body := post(t, h, `{"requestId":"r1","userDefinedContext":{"mode":"coordinates","field":"sector_id"},
		"calls":[[50.870, 4.705], ["abc", 4.7], ["50.870", "4.705"], [50.8503, 4.3517]]}`)
	if code != http.StatusOK {
		t.Fatalf("code=%d body=%v", code, body)
	}
	replies, _ := body["replies"].([]any)
	want := []any{"24062A10-", nil, "24062A10-", nil}
	if len(replies) != len(want) {
		t.Fatalf("replies=%v", replies)
	}
	for i := range want {
		if replies[i] != want[i] {
			t.Fatalf("replies[%d]=%v want %v", i, replies[i], want[i])
		}
	}
}

func TestHandleBatch_AddressWithFailingMiddleRow(t *testing.T) {
	h := HandleBatch(quiet, batch.New(newCoordinator(t), 4, quiet), 0)
	code, body := post(t, h, `{"userDefinedContext":{"mode":"address","field":"sector_name"},
		"calls":[["Grote Markt 1, Leuven"], ["broken"], ["Grote Markt 1, Leuven"]]}`)
	replies, _ := body["replies"].([]any)
	if code != http.StatusOK || len(replies) != 3 ||
		replies[0] != "LEUVEN-CENTRUM" || replies[1] != nil || replies[2] != "LEUVEN-CENTRUM" {
		t.Fatalf("code=%d body=%v", code, body)
	}
}

func TestHandleBatch_EnvelopeErrors(t *testing.T) {
	h := HandleBatch(quiet, batch.New(newCoordinator(t), 4, quiet), 0)
	cases := []struct{ body, detail string }{
		{`{"calls":[]}`, batch.InvalidPayloadMessage},
		{`not json`, batch.InvalidPayloadMessage},
		{`{"userDefinedContext":{"mode":"zip","field":"sector_id"},"calls":[]}`, batch.InvalidModeMessage},
	}
	for _, tc := range cases {
		code, body := post(t, h, tc.body)
		if code != http.StatusBadRequest || body["detail"] != tc.detail {
			t.Fatalf("body %s: code=%d resp=%v", tc.body, code, body)
		}
	}
}

func TestHandleBatch_BodyLimit(t *testing.T) {
	h := HandleBatch(quiet, batch.New(newCoordinator(t), 4, quiet), 16)
	code, body := post(t, h, `{"userDefinedContext":{"mode":"address","field":"sector_id"},"calls":[]}`)
	if code != http.StatusBadRequest || body["detail"] != batch.InvalidPayloadMessage {
		t.Fatalf("code=%d body=%v", code, body)
	}
}

type failingBatch struct{ panic bool }

func (f failingBatch) Handle(context.Context, batch.Request) (batch.Reply, error) {
	if f.panic {
		panic("boom")
	}
	return batch.Reply{}, errors.New("disk on fire")
}

func TestHandleBatch_InternalFaultIsOpaque(t *testing.T) {
	envelope := `{"userDefinedContext":{"mode":"address","field":"sector_id"},"calls":[]}`
	for _, fb := range []failingBatch{{}, {panic: true}} {
		code, body := post(t, HandleBatch(quiet, fb, 0), envelope)
		detail, _ := body["detail"].(string)
		if code != http.StatusInternalServerError || !opaqueRe.MatchString(detail) {
			t.Fatalf("code=%d body=%v", code, body)
		}
		if strings.Contains(detail, "fire") || strings.Contains(detail, "boom") {
			t.Fatalf("cause leaked: %s", detail)
		}
	}
}

func TestParseLookupRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/get-statsector/?lat=50.1&lon=4.2&address=x", nil)
	in, err := ParseLookupRequest(r)
	if err != nil {
		t.Fatalf("ParseLookupRequest: %v", err)
	}
	if in.Lat == nil || *in.Lat != 50.1 || in.Lon == nil || *in.Lon != 4.2 || in.Address == nil {
		t.Fatalf("in=%+v", in)
	}
	if _, err := ParseLookupRequest(httptest.NewRequest(http.MethodGet, "/?lat=", nil)); err == nil {
		t.Fatalf("empty lat must be rejected")
	}
}
