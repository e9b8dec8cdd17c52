package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/statsector/internal/core/observability"
)

func assertHasMetricLine(t *testing.T, body, metric string, wantLabels ...string) {
	t.Helper()
	for ln := range strings.SplitSeq(body, "\n") {
		if !strings.HasPrefix(ln, metric+"{") {
			continue
		}
		ok := true
		for _, s := range wantLabels {
			if !strings.Contains(ln, s) {
				ok = false
				break
			}
		}
		if ok && (len(ln) > 0 && ln[len(ln)-1] >= '0' && ln[len(ln)-1] <= '9') {
			return
		}
	}
	t.Fatalf("expected a %s line with labels %v; got:\n%s", metric, wantLabels, body)
}

func Test_AppMetrics_CustomRegistry_Smoke(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Version: "test"}})
	observability.Init(p.Registerer())

	observability.ObserveHTTP("GET", "/get-statsector/", 200, 0.002)
	observability.IncAddressCacheHit()
	observability.IncLookup("coordinates", "found")
	observability.ObserveUpstreamLatency("geocoder", 0.05)
	observability.ObserveBatch("address", 10, 0.3)

	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, s := range []string{
		`http_request_duration_seconds_bucket`,
		`upstream_latency_seconds_count{upstream="geocoder"} 1`,
		`address_cache_results_total{outcome="hit"} 1`,
		`batch_duration_seconds_count{mode="address"} 1`,
	} {
		if !strings.Contains(body, s) {
			t.Fatalf("expected metrics to contain %q;\n---\n%s", s, body)
		}
	}

	assertHasMetricLine(t, body, "http_requests_total",
		`route="/get-statsector/"`, `status="200"`)
	assertHasMetricLine(t, body, "sector_lookups_total",
		`source="coordinates"`, `outcome="found"`)
	assertHasMetricLine(t, body, "statsector_build_info", `version="test"`)
}
