// Package health serves liveness and readiness probes.
package health

import (
	"encoding/json"
	"net/http"
)

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// Status is what a ReadinessReporter knows about the running service.
type Status struct {
	Sectors            int  `json:"sectors"`
	GeocoderConfigured bool `json:"geocoder_configured"`
}

type ReadinessReporter interface {
	Readiness() (ready bool, st Status)
}

// Readiness reports 503 until the reporter is ready. A missing geocoder does
// not make the service unready; coordinate lookups still work.
func Readiness(rr ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			State string `json:"status"`
			Status
		}
		ready, st := rr.Readiness()
		out := resp{State: "not_ready", Status: st}
		if ready {
			out.State = "ready"
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

// StaticReporter is ready once it holds at least one sector.
type StaticReporter Status

func (s StaticReporter) Readiness() (bool, Status) {
	return s.Sectors > 0, Status(s)
}
