// Package batch fans a batch envelope out to the single-lookup coordinator and
// gathers one reply per call, in call order.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/statsector/internal/core/model"
	"github.com/mohammed-shakir/statsector/internal/core/observability"
	mylog "github.com/mohammed-shakir/statsector/internal/logger"
	"github.com/mohammed-shakir/statsector/internal/lookup"
)

type Handler interface {
	Handle(ctx context.Context, in lookup.Input) model.LookupResult
}

// Reply is the batch response body; Replies[i] answers Calls[i] and is nil
// when that row produced no value.
type Reply struct {
	Replies []any `json:"replies"`
}

type Orchestrator struct {
	h      Handler
	limit  int
	logger *slog.Logger
}

// DefaultConcurrency is the per-batch goroutine bound when none is configured.
func DefaultConcurrency() int { return runtime.GOMAXPROCS(0) * 16 }

func New(h Handler, limit int, logger *slog.Logger) *Orchestrator {
	if limit <= 0 {
		limit = DefaultConcurrency()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{h: h, limit: limit, logger: logger}
}

// Handle waits for every row. A failing row never cancels its siblings.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (Reply, error) {
	if req.Mode != model.ModeAddress && req.Mode != model.ModeCoordinates {
		return Reply{}, model.NewError(model.KindInvalidBatchRequest, InvalidModeMessage)
	}
	if req.Field == "" {
		return Reply{}, model.NewError(model.KindInvalidBatchRequest, InvalidPayloadMessage)
	}

	ctx = mylog.WithComponent(ctx, "batch")
	ctx = mylog.WithBatchMode(ctx, string(req.Mode))
	start := time.Now()

	results := make([]model.LookupResult, len(req.Calls))
	var g errgroup.Group
	g.SetLimit(o.limit)
	for i, call := range req.Calls {
		if call.RowErr != nil {
			results[i] = model.Failed(call.RowErr)
			continue
		}
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					results[i] = model.Failed(fmt.Errorf("batch row %d panicked: %v", i, rec))
				}
			}()
			results[i] = o.h.Handle(ctx, Input(call))
			return nil
		})
	}
	_ = g.Wait()

	reply := Reply{Replies: make([]any, len(results))}
	for i, r := range results {
		reply.Replies[i] = o.extract(ctx, i, r, req.Field)
	}

	o.logger.InfoContext(ctx, "batch done",
		"request_id_client", req.RequestID,
		"rows", len(req.Calls),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	observability.ObserveBatch(string(req.Mode), len(req.Calls), time.Since(start).Seconds())
	return reply, nil
}

// extract pulls field out of a row's response map; anything it cannot
// produce becomes nil.
func (o *Orchestrator) extract(ctx context.Context, row int, r model.LookupResult, field string) any {
	if r.Status == model.StatusError {
		attrs := []any{"row", row, "kind", string(r.Err.Kind)}
		switch {
		case r.Err.Kind == model.KindInternal:
			attrs = append(attrs, "correlation_id", r.Err.CorrelationID, "err", r.Err.Error())
		case r.Err.Opaque():
			attrs = append(attrs, "correlation_id", r.Err.CorrelationID)
		default:
			attrs = append(attrs, "detail", r.Err.Detail)
		}
		o.logger.WarnContext(ctx, "batch row failed", attrs...)
		return nil
	}
	v, ok := r.Fields()[field]
	if !ok {
		o.logger.WarnContext(ctx, "batch row has no such field",
			"row", row, "field", field, "status", r.Status.String())
		return nil
	}
	return v
}
