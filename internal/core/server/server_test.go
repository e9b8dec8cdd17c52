package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/statsector/internal/batch"
	"github.com/mohammed-shakir/statsector/internal/core/config"
	"github.com/mohammed-shakir/statsector/internal/core/health"
	"github.com/mohammed-shakir/statsector/internal/core/model"
	"github.com/mohammed-shakir/statsector/internal/lookup"
)

type stubLookup struct{}

func (stubLookup) Handle(context.Context, lookup.Input) model.LookupResult {
	return model.Found(&model.Sector{ID: "S1", Name: "ONE"})
}

type stubBatch struct{}

func (stubBatch) Handle(_ context.Context, req batch.Request) (batch.Reply, error) {
	return batch.Reply{Replies: make([]any, len(req.Calls))}, nil
}

func newTestServer(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()
	h := NewHandler(cfg, slog.New(slog.DiscardHandler), Deps{
		Lookup:    stubLookup{},
		Batch:     stubBatch{},
		Readiness: health.StaticReporter{Sectors: 1},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewHandler_Routes(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	cases := []struct {
		method, path, body string
		code               int
	}{
		{http.MethodGet, "/", "", 200},
		{http.MethodGet, "/get-statsector/?lat=50&lon=4", "", 200},
		{http.MethodPost, "/", `{"userDefinedContext":{"mode":"address","field":"sector_id"},"calls":[["x"]]}`, 200},
		{http.MethodGet, "/healthz", "", 200},
		{http.MethodGet, "/readyz", "", 200},
		{http.MethodGet, "/metrics", "", 200},
		{http.MethodDelete, "/", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		req, _ := http.NewRequest(tc.method, srv.URL+tc.path, strings.NewReader(tc.body))
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.method, tc.path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != tc.code {
			t.Fatalf("%s %s: status=%d want %d", tc.method, tc.path, resp.StatusCode, tc.code)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Fatalf("%s %s: no request id header", tc.method, tc.path)
		}
	}
}

func TestNewHandler_SeparateMetricsListener(t *testing.T) {
	srv := newTestServer(t, config.Config{MetricsAddr: "127.0.0.1:0"})
	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("metrics should not be on the main router, status=%d", resp.StatusCode)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, config.Config{Addr: "127.0.0.1:0"}, slog.New(slog.DiscardHandler), Deps{
			Lookup: stubLookup{}, Batch: stubBatch{}, Readiness: health.StaticReporter{Sectors: 1},
		})
	}()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
