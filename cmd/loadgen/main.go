// Command loadgen drives a running statsector with single or batch lookups
// and writes per-request samples (CSV) plus a latency summary (JSON).
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

type Config struct {
	BaseURL         string
	Concurrency     int
	Duration        time.Duration
	ZipfS           float64
	ZipfV           float64
	PointCount      int
	AddressFile     string
	BatchSize       int
	Field           string
	OutputPrefix    string
	RequestTimeout  time.Duration
	AppendTimestamp bool
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "target", "http://localhost:8080", "statsector base URL")
	flag.IntVar(&cfg.Concurrency, "concurrency", 32, "Concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 60*time.Second, "Test duration")
	flag.Float64Var(&cfg.ZipfS, "zipf-s", 1.3, "Zipf parameter s (>1)")
	flag.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	flag.IntVar(&cfg.PointCount, "points", 512, "Distinct coordinates in the pool")
	flag.StringVar(&cfg.AddressFile, "addresses", "", "Optional file with one address per line; switches to address mode")
	flag.IntVar(&cfg.BatchSize, "batch", 0, "Rows per POST / batch; 0 sends single GET lookups")
	flag.StringVar(&cfg.Field, "field", "sector_id", "Field requested in batch mode")
	flag.StringVar(&cfg.OutputPrefix, "out", "results/loadgen", "Output file prefix (JSON/CSV)")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", 10*time.Second, "Per-request timeout")
	flag.BoolVar(&cfg.AppendTimestamp, "append-ts", true, "Append timestamp to output prefix")
	flag.Parse()
	return cfg
}

// request result (one sample per request)
type sample struct {
	Timestamp time.Time
	Latency   time.Duration
	Status    int
	ErrorMsg  string
	Index     int
	Rows      int
}

type summary struct {
	StartTime     time.Time `json:"start"`
	EndTime       time.Time `json:"end"`
	DurationSec   float64   `json:"duration_sec"`
	TotalRequests int64     `json:"total"`
	SuccessCount  int64     `json:"success"`
	ErrorCount    int64     `json:"errors"`
	Rows          int64     `json:"rows"`
	ThroughputRPS float64   `json:"throughput_rps"`
	P50Ms         float64   `json:"p50_ms"`
	P95Ms         float64   `json:"p95_ms"`
	P99Ms         float64   `json:"p99_ms"`
	Concurrency   int       `json:"concurrency"`
	Mode          string    `json:"mode"`
	BatchSize     int       `json:"batch_size"`
	ZipfS         float64   `json:"zipf_s"`
	ZipfV         float64   `json:"zipf_v"`
	Pool          int       `json:"pool"`
	BaseURL       string    `json:"target"`
}

type aggregatedResult struct {
	total   int64
	success int64
	errors  int64
	rows    int64
	latMs   []float64
}

func main() {
	cfg := loadConfig()
	if cfg.ZipfS <= 1 || cfg.ZipfV < 1 {
		log.Fatalf("invalid zipf parameters s=%.2f v=%.2f (need s>1, v>=1)", cfg.ZipfS, cfg.ZipfV)
	}
	if cfg.Concurrency < 1 {
		log.Fatalf("concurrency must be >= 1")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPrefix), 0o750); err != nil {
		log.Fatalf("mkdir results: %v", err)
	}
	prefix := cfg.OutputPrefix
	if cfg.AppendTimestamp {
		prefix = fmt.Sprintf("%s_%s", prefix, time.Now().UTC().Format("20060102_150405Z"))
	}

	seed := time.Now().UnixNano()
	r := rand.New(rand.NewSource(seed))

	var wl workload
	if strings.TrimSpace(cfg.AddressFile) != "" {
		addrs, err := loadAddresses(cfg.AddressFile)
		if err != nil {
			log.Fatalf("%v", err)
		}
		wl.addresses = addrs
	} else {
		wl.points = makePoints(cfg.PointCount, r)
	}
	if wl.size() == 0 {
		log.Fatalf("empty workload")
	}
	imax := uint64(wl.size()) - 1

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		log.Fatalf("parse target: %v", err)
	}
	lookupURL := base.JoinPath("/get-statsector/")
	batchURL := base.JoinPath("/")

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 4 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          1024,
			MaxIdleConnsPerHost:   256,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   4 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		Timeout: cfg.RequestTimeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	csvPath := prefix + "_samples.csv"
	jsonPath := prefix + "_summary.json"
	csvFile, err := os.Create(filepath.Clean(csvPath))
	if err != nil {
		log.Printf("open csv: %v", err)
		return
	}
	defer func() { _ = csvFile.Close() }()
	csvWriter := csv.NewWriter(csvFile)

	samplesChan := make(chan sample, 4096)
	resultsChan := make(chan aggregatedResult, 1)
	go func() {
		_ = csvWriter.Write([]string{"timestamp", "latency_ms", "status", "error", "index", "rows"})
		var agg aggregatedResult
		agg.latMs = make([]float64, 0, 1<<20)
		for s := range samplesChan {
			agg.total++
			agg.rows += int64(s.Rows)
			if s.ErrorMsg == "" {
				agg.success++
				agg.latMs = append(agg.latMs, float64(s.Latency.Microseconds())/1000.0)
			} else {
				agg.errors++
			}
			_ = csvWriter.Write([]string{
				s.Timestamp.UTC().Format(time.RFC3339Nano),
				fmt.Sprintf("%.3f", float64(s.Latency.Microseconds())/1000.0),
				fmt.Sprintf("%d", s.Status),
				s.ErrorMsg,
				fmt.Sprintf("%d", s.Index),
				fmt.Sprintf("%d", s.Rows),
			})
		}
		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			log.Printf("csv flush error: %v", err)
		}
		resultsChan <- agg
	}()

	startTime := time.Now()
	log.Printf("loadgen start target=%s mode=%s batch=%d dur=%s conc=%d zipf(s=%.2f,v=%.2f) pool=%d",
		cfg.BaseURL, wl.mode(), cfg.BatchSize, cfg.Duration, cfg.Concurrency, cfg.ZipfS, cfg.ZipfV, wl.size())

	var wg sync.WaitGroup
	wg.Add(cfg.Concurrency)
	for workerID := range cfg.Concurrency {
		go func(id int) {
			defer wg.Done()
			rWorker := rand.New(rand.NewSource(seed + int64(id) + 1))
			zipfDist := rand.NewZipf(rWorker, cfg.ZipfS, cfg.ZipfV, imax)
			next := func() int {
				for {
					v := zipfDist.Uint64()
					if v <= uint64(math.MaxInt) && int(v) < wl.size() {
						return int(v)
					}
				}
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				var (
					req *http.Request
					s   sample
				)
				if cfg.BatchSize > 0 {
					idx := make([]int, cfg.BatchSize)
					for i := range idx {
						idx[i] = next()
					}
					body, err := wl.batchBody(idx, cfg.Field)
					if err != nil {
						log.Fatalf("encode batch: %v", err)
					}
					req, _ = http.NewRequestWithContext(ctx, http.MethodPost, batchURL.String(), bytes.NewReader(body))
					req.Header.Set("Content-Type", "application/json")
					s = sample{Index: idx[0], Rows: len(idx)}
				} else {
					i := next()
					u := *lookupURL
					u.RawQuery = wl.singleQuery(i).Encode()
					req, _ = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
					s = sample{Index: i, Rows: 1}
				}
				req.Header.Set("Accept", "application/json")

				s.Timestamp = time.Now()
				resp, err := httpClient.Do(req)
				s.Latency = time.Since(s.Timestamp)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.ErrorMsg = err.Error()
				} else {
					s.Status = resp.StatusCode
					_, _ = io.Copy(io.Discard, resp.Body)
					_ = resp.Body.Close()
					if resp.StatusCode < 200 || resp.StatusCode >= 300 {
						s.ErrorMsg = fmt.Sprintf("status=%d", resp.StatusCode)
					}
				}

				select {
				case samplesChan <- s:
				case <-ctx.Done():
					return
				}
			}
		}(workerID)
	}

	go func() {
		<-ctx.Done()
		wg.Wait()
		close(samplesChan)
	}()

	agg := <-resultsChan
	endTime := time.Now()
	elapsed := endTime.Sub(startTime).Seconds()

	sort.Float64s(agg.latMs)
	runSummary := summary{
		StartTime:     startTime.UTC(),
		EndTime:       endTime.UTC(),
		DurationSec:   elapsed,
		TotalRequests: agg.total,
		SuccessCount:  agg.success,
		ErrorCount:    agg.errors,
		Rows:          agg.rows,
		ThroughputRPS: float64(agg.total) / elapsed,
		P50Ms:         percentile(agg.latMs, 50),
		P95Ms:         percentile(agg.latMs, 95),
		P99Ms:         percentile(agg.latMs, 99),
		Concurrency:   cfg.Concurrency,
		Mode:          wl.mode(),
		BatchSize:     cfg.BatchSize,
		ZipfS:         cfg.ZipfS,
		ZipfV:         cfg.ZipfV,
		Pool:          wl.size(),
		BaseURL:       cfg.BaseURL,
	}

	jsonFile, err := os.Create(filepath.Clean(jsonPath))
	if err == nil {
		enc := json.NewEncoder(jsonFile)
		enc.SetIndent("", "  ")
		_ = enc.Encode(runSummary)
		_ = jsonFile.Close()
	}

	log.Printf("done: total=%d succ=%d err=%d rows=%d thr=%.2f rps p50=%.1fms p95=%.1fms p99=%.1fms",
		agg.total, agg.success, agg.errors, agg.rows, runSummary.ThroughputRPS,
		runSummary.P50Ms, runSummary.P95Ms, runSummary.P99Ms)
	log.Printf("wrote %s and %s", jsonPath, csvPath)
}
