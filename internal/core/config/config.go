// Package config reads service settings from the environment.
package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type SectorsCfg struct {
	Path         string
	IDProperty   string
	NameProperty string
	// Index is "linear" or "h3".
	Index    string
	IndexRes int
}

type GeocoderCfg struct {
	URL      string
	Timeout  time.Duration
	MaxTries int
}

type LookupEventsCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
	Queue   int
}

type Config struct {
	Addr           string
	LogLevel       string
	LogConsole     bool
	LogSampleN     int
	SourceCRS      string
	TargetCRS      string
	Sectors        SectorsCfg
	Geocoder       GeocoderCfg
	CacheSize      int
	CacheTTL       time.Duration
	BatchMaxConc   int
	MaxBatchBytes  int64
	RequestTimeout time.Duration
	MetricsEnabled bool
	MetricsAddr    string
	LookupEvents   LookupEventsCfg
}

func FromEnv() Config {
	index := strings.ToLower(strings.TrimSpace(getenv("SECTOR_INDEX", "linear")))
	if index != "h3" {
		index = "linear"
	}
	conc := getint("BATCH_MAX_CONCURRENCY", 0)
	if conc <= 0 {
		conc = runtime.GOMAXPROCS(0) * 16
	}

	return Config{
		Addr:       getenv("ADDR", ":8080"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),
		SourceCRS:  getenv("SOURCE_CRS", "EPSG:4326"),
		TargetCRS:  getenv("TARGET_CRS", "EPSG:31370"),
		Sectors: SectorsCfg{
			Path:         getenv("SECTORS_PATH", "data/statistical_sectors.geojson"),
			IDProperty:   getenv("SECTOR_ID_PROPERTY", "cd_sector"),
			NameProperty: getenv("SECTOR_NAME_PROPERTY", "tx_sector_descr_nl"),
			Index:        index,
			IndexRes:     getint("SECTOR_INDEX_H3_RES", 7),
		},
		Geocoder: GeocoderCfg{
			URL:      getenv("GEOCODER_URL", "https://maps.googleapis.com/maps/api/geocode/json"),
			Timeout:  getduration("GEOCODER_TIMEOUT", 10*time.Second),
			MaxTries: getint("GEOCODER_MAX_TRIES", 3),
		},
		CacheSize:      getint("ADDRESS_CACHE_SIZE", 10000),
		CacheTTL:       getduration("ADDRESS_CACHE_TTL", 10*time.Minute),
		BatchMaxConc:   conc,
		MaxBatchBytes:  int64(getint("MAX_BATCH_BYTES", 8<<20)),
		RequestTimeout: getduration("REQUEST_TIMEOUT", 60*time.Second),
		MetricsEnabled: getbool("METRICS_ENABLED", true),
		MetricsAddr:    getenv("METRICS_ADDR", ""),
		LookupEvents: LookupEventsCfg{
			Enabled: getbool("LOOKUP_EVENTS_ENABLED", false),
			Brokers: splitList(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getenv("KAFKA_TOPIC", "statsector-lookups"),
			Queue:   getint("LOOKUP_EVENTS_QUEUE", 1024),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

// splitList parses "a:9092, b:9092" into its non-empty parts.
func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
