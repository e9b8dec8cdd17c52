package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

type point struct{ Lat, Lon float64 }

// makePoints mixes "hot" points around a few Belgian cities with "cold"
// points spread over the country's bounding box.
func makePoints(count int, r *rand.Rand) []point {
	centers := []point{
		{50.8798, 4.7005}, // Leuven
		{50.8467, 4.3525}, // Brussels
		{51.2194, 4.4025}, // Antwerp
		{51.0543, 3.7174}, // Ghent
		{50.6326, 5.5797}, // Liège
	}
	pts := make([]point, 0, count)

	hot := int(math.Max(8, float64(count/4)))
	for i := range hot {
		c := centers[i%len(centers)]
		pts = append(pts, point{
			Lat: c.Lat + (r.Float64()-0.5)*0.05,
			Lon: c.Lon + (r.Float64()-0.5)*0.08,
		})
	}
	for len(pts) < count {
		pts = append(pts, point{
			Lat: 49.50 + r.Float64()*(51.50-49.50),
			Lon: 2.55 + r.Float64()*(6.40-2.55),
		})
	}
	return pts
}

// loadAddresses reads one address per line; blank lines and lines starting
// with '#' are skipped.
func loadAddresses(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open addresses: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read addresses: %w", err)
	}
	return out, nil
}

// workload yields request targets by index; exactly one of points and
// addresses is set.
type workload struct {
	points    []point
	addresses []string
}

func (w workload) size() int {
	if w.addresses != nil {
		return len(w.addresses)
	}
	return len(w.points)
}

func (w workload) mode() string {
	if w.addresses != nil {
		return "address"
	}
	return "coordinates"
}

func (w workload) singleQuery(i int) url.Values {
	q := url.Values{}
	if w.addresses != nil {
		q.Set("address", w.addresses[i])
		return q
	}
	p := w.points[i]
	q.Set("lat", fmt.Sprintf("%.6f", p.Lat))
	q.Set("lon", fmt.Sprintf("%.6f", p.Lon))
	return q
}

func (w workload) call(i int) []any {
	if w.addresses != nil {
		return []any{w.addresses[i]}
	}
	return []any{w.points[i].Lat, w.points[i].Lon}
}

// batchBody builds a batch envelope for the given workload indexes.
func (w workload) batchBody(idx []int, field string) ([]byte, error) {
	calls := make([][]any, len(idx))
	for i, j := range idx {
		calls[i] = w.call(j)
	}
	return json.Marshal(map[string]any{
		"requestId":          fmt.Sprintf("loadgen-%d", idx[0]),
		"userDefinedContext": map[string]string{"mode": w.mode(), "field": field},
		"calls":              calls,
	})
}
