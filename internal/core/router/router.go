// Package router holds the HTTP handlers for the lookup endpoints.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mohammed-shakir/statsector/internal/batch"
	"github.com/mohammed-shakir/statsector/internal/core/model"
	"github.com/mohammed-shakir/statsector/internal/core/observability"
	mylog "github.com/mohammed-shakir/statsector/internal/logger"
	"github.com/mohammed-shakir/statsector/internal/lookup"
)

const (
	RouteRoot   = "/"
	RouteLookup = "/get-statsector/"

	DefaultMaxBatchBytes = 8 << 20
)

// LookupHandler resolves a single request.
type LookupHandler interface {
	Handle(ctx context.Context, in lookup.Input) model.LookupResult
}

// BatchHandler resolves a decoded batch envelope.
type BatchHandler interface {
	Handle(ctx context.Context, req batch.Request) (batch.Reply, error)
}

func HandleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		writeJSON(w, http.StatusOK, map[string]string{"message": "Statsector API"})
		observability.ObserveHTTP(r.Method, RouteRoot, http.StatusOK, time.Since(start).Seconds())
	}
}

// HandleLookup serves GET /get-statsector/?lat=&lon= or ?address=.
func HandleLookup(logger *slog.Logger, h LookupHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, RouteLookup, sw.code, time.Since(start).Seconds())
		}()

		in, err := ParseLookupRequest(r)
		if err != nil {
			writeError(r.Context(), sw, logger, err)
			return
		}
		res := h.Handle(r.Context(), in)
		if res.Status == model.StatusError {
			writeError(r.Context(), sw, logger, res.Err)
			return
		}
		writeJSON(sw, http.StatusOK, res.Fields())
	}
}

// HandleBatch serves POST / with a batch envelope. maxBytes caps the body.
func HandleBatch(logger *slog.Logger, h BatchHandler, maxBytes int64) http.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBatchBytes
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, RouteRoot, sw.code, time.Since(start).Seconds())
		}()
		defer func() {
			if rec := recover(); rec != nil {
				writeError(r.Context(), sw, logger, fmt.Errorf("batch panicked: %v", rec))
			}
		}()

		req, err := batch.Decode(http.MaxBytesReader(sw, r.Body, maxBytes))
		if err != nil {
			writeError(r.Context(), sw, logger, err)
			return
		}
		reply, err := h.Handle(r.Context(), req)
		if err != nil {
			writeError(r.Context(), sw, logger, err)
			return
		}
		writeJSON(sw, http.StatusOK, reply)
	}
}

// ParseLookupRequest reads lat, lon and address from the query string. A
// coordinate that is present must parse; a blank address counts as absent.
func ParseLookupRequest(r *http.Request) (lookup.Input, error) {
	q := r.URL.Query()
	var in lookup.Input
	for _, name := range []string{"lat", "lon"} {
		if !q.Has(name) {
			continue
		}
		v, err := lookup.ParseCoordinate(name, q.Get(name))
		if err != nil {
			return lookup.Input{}, err
		}
		if name == "lat" {
			in.Lat = &v
		} else {
			in.Lon = &v
		}
	}
	if a := q.Get("address"); strings.TrimSpace(a) != "" {
		in.Address = &a
	}
	return in, nil
}

type statusWriter struct {
	http.ResponseWriter
	code    int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if w.written {
		return
	}
	w.code = code
	w.written = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"detail": ...}. Opaque kinds only expose their
// correlation id; untyped errors become Internal first.
func writeError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	e := model.AsError(err)
	if e.Kind == model.KindInternal {
		logger.ErrorContext(mylog.WithCorrelationID(ctx, e.CorrelationID), "request failed", "err", e.Error())
	}
	writeJSON(w, e.HTTPStatus(), map[string]string{"detail": e.PublicDetail()})
}
