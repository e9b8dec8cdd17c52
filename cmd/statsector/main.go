package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/statsector/internal/batch"
	"github.com/mohammed-shakir/statsector/internal/cache"
	"github.com/mohammed-shakir/statsector/internal/core/config"
	"github.com/mohammed-shakir/statsector/internal/core/health"
	"github.com/mohammed-shakir/statsector/internal/core/httpclient"
	"github.com/mohammed-shakir/statsector/internal/core/observability"
	"github.com/mohammed-shakir/statsector/internal/core/server"
	"github.com/mohammed-shakir/statsector/internal/crs"
	"github.com/mohammed-shakir/statsector/internal/geocode"
	"github.com/mohammed-shakir/statsector/internal/logger"
	"github.com/mohammed-shakir/statsector/internal/lookup"
	"github.com/mohammed-shakir/statsector/internal/lookupevents"
	h3mapper "github.com/mohammed-shakir/statsector/internal/mapper/h3"
	"github.com/mohammed-shakir/statsector/internal/metrics"
	"github.com/mohammed-shakir/statsector/internal/secrets"
	"github.com/mohammed-shakir/statsector/internal/sectors"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before reading the environment")
	flag.Parse()

	// a missing .env is normal in containers
	_ = godotenv.Load(*envFile)
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "statsector",
		Component: "main",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting statsector",
		"addr", cfg.Addr,
		"version", Version,
		"sectors_path", cfg.Sectors.Path,
		"sector_index", cfg.Sectors.Index)

	var metricsProvider *metrics.Provider
	if cfg.MetricsEnabled {
		metricsProvider = metrics.Init(metrics.Config{
			Build: metrics.BuildInfo{
				Version:   Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		observability.Init(metricsProvider.Registerer())
	}

	tr, err := crs.New(cfg.SourceCRS, cfg.TargetCRS)
	if err != nil {
		appLog.Error("unsupported coordinate reference systems", "err", err)
		return 1
	}

	secs, err := sectors.LoadFile(cfg.Sectors.Path, sectors.LoadOptions{
		IDProperty:   cfg.Sectors.IDProperty,
		NameProperty: cfg.Sectors.NameProperty,
		Logger:       appLog,
	})
	if err != nil {
		appLog.Error("failed to load sector dataset", "err", err)
		return 1
	}

	var cand sectors.CandidateIndex
	if cfg.Sectors.Index == "h3" {
		hx, err := h3mapper.NewIndex(secs, tr, cfg.Sectors.IndexRes)
		if err != nil {
			appLog.Error("failed to build h3 sector index", "err", err)
			return 1
		}
		appLog.Info("h3 sector index built", "res", hx.Resolution(), "cells", hx.Cells())
		cand = hx
	}
	index, err := sectors.NewIndex(secs, cand)
	if err != nil {
		appLog.Error("failed to build sector index", "err", err)
		return 1
	}
	appLog.Info("sector dataset loaded", "sectors", index.Len())

	httpClient := httpclient.NewOutbound(cfg.Geocoder.Timeout)
	defer httpClient.CloseIdleConnections()

	var provider geocode.Provider
	apiKey, err := secrets.GeocodingAPIKey()
	switch {
	case errors.Is(err, secrets.ErrNotConfigured):
		appLog.Warn("no geocoding api key configured; address lookups will return 503")
	case err != nil:
		appLog.Error("failed to read geocoding api key", "err", err)
		return 1
	default:
		gc, err := geocode.NewGoogleClient(httpClient, cfg.Geocoder.URL, apiKey,
			geocode.WithMaxTries(cfg.Geocoder.MaxTries),
			geocode.WithLogger(appLog))
		if err != nil {
			appLog.Error("failed to configure geocoder", "err", err)
			return 1
		}
		provider = gc
	}
	addresses := geocode.NewResolver(provider, cache.New(cfg.CacheSize, cfg.CacheTTL), appLog)

	var opts []lookup.Option
	if cfg.LookupEvents.Enabled {
		pub, err := lookupevents.Dial(cfg.LookupEvents.Brokers, cfg.LookupEvents.Topic, cfg.LookupEvents.Queue, appLog)
		if err != nil {
			appLog.Error("failed to start lookup event publisher", "err", err)
			return 1
		}
		defer func() {
			if err := pub.Close(); err != nil {
				appLog.Warn("lookup event publisher close", "err", err)
			}
		}()
		opts = append(opts, lookup.WithRecorder(pub))
	}
	coord := lookup.New(tr, index, addresses, opts...)
	orch := batch.New(coord, cfg.BatchMaxConc, appLog)

	deps := server.Deps{
		Lookup: coord,
		Batch:  orch,
		Readiness: health.StaticReporter{
			Sectors:            index.Len(),
			GeocoderConfigured: addresses.Configured(),
		},
	}
	if metricsProvider != nil {
		deps.Metrics = metricsProvider.Handler()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
