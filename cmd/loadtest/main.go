package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	RPS         float64
	Requests    []Request
}

// Request is one templated call in the workload mix.
type Request struct {
	Endpoint string
	Params   url.Values
}

func (r Request) URL(base string) string {
	return base + r.Endpoint + "?" + r.Params.Encode()
}

type endpointStats struct {
	requests  atomic.Int64
	errors    atomic.Int64
	cacheHits atomic.Int64
	mu        sync.Mutex
	latencies []time.Duration
}

type Stats struct {
	mu          sync.Mutex
	endpoints   map[string]*endpointStats
	statusCodes map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		endpoints:   make(map[string]*endpointStats),
		statusCodes: make(map[int]int64),
	}
}

func (s *Stats) endpoint(name string) *endpointStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.endpoints[name]
	if !ok {
		e = &endpointStats{latencies: make([]time.Duration, 0, 10000)}
		s.endpoints[name] = e
	}
	return e
}

func (s *Stats) Record(endpoint string, d time.Duration, status int, cacheHit bool, err error) {
	e := s.endpoint(endpoint)
	e.requests.Add(1)
	if err != nil || status < 200 || status >= 300 {
		e.errors.Add(1)
	}
	if cacheHit {
		e.cacheHits.Add(1)
	}
	if err != nil {
		return
	}
	e.mu.Lock()
	e.latencies = append(e.latencies, d)
	e.mu.Unlock()

	s.mu.Lock()
	s.statusCodes[status]++
	s.mu.Unlock()
}

func workload() []Request {
	search := func(kv ...string) Request {
		v := url.Values{}
		for i := 0; i+1 < len(kv); i += 2 {
			v.Add(kv[i], kv[i+1])
		}
		return Request{Endpoint: "/api/v1/search", Params: v}
	}
	suggest := func(q string) Request {
		return Request{Endpoint: "/api/v1/autocomplete", Params: url.Values{"q": {q}}}
	}
	return []Request{
		search("q", "austin"),
		search("q", "phoenix", "limit", "10"),
		search("q", "san", "state", "CA"),
		search("q", "springfeld"),
		search("type", "memory-care", "rating", "4"),
		search("cost", "3000-4000", "state", "TX"),
		search("amenities", "pool,wifi", "page", "2"),
		search("lat", "30.2672", "lng", "-97.7431", "distance", "25"),
		search("q", "sunrise", "type", "assisted-living"),
		search(),
		suggest("au"),
		suggest("por"),
		suggest("new y"),
		suggest("sacramen"),
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	rps := flag.Float64("rps", 0, "overall request rate limit (0 = unlimited)")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		RPS:         *rps,
		Requests:    workload(),
	}

	fmt.Println("=== Directory Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	if cfg.RPS > 0 {
		fmt.Printf("Rate:        %.0f req/s\n", cfg.RPS)
	}
	fmt.Printf("Requests:    %d templates\n", len(cfg.Requests))
	fmt.Println()

	stats := runLoadTest(cfg)
	if !printReport(stats, cfg.Duration) {
		os.Exit(1)
	}
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), max(1, int(cfg.RPS)/10))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := range cfg.Concurrency {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				r := cfg.Requests[next%len(cfg.Requests)]
				next++

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL(cfg.BaseURL), nil)
				if err != nil {
					stats.Record(r.Endpoint, 0, 0, false, err)
					continue
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					stats.Record(r.Endpoint, elapsed, 0, false, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.Record(r.Endpoint, elapsed, resp.StatusCode, resp.Header.Get("X-Cache") == "hit", nil)
			}
		}(w)
	}

	wg.Wait()
	return stats
}

func printReport(stats *Stats, duration time.Duration) bool {
	stats.mu.Lock()
	names := make([]string, 0, len(stats.endpoints))
	for name := range stats.endpoints {
		names = append(names, name)
	}
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	stats.mu.Unlock()
	sort.Strings(names)
	sort.Ints(codes)

	var total int64
	for _, name := range names {
		e := stats.endpoint(name)
		n := e.requests.Load()
		total += n

		e.mu.Lock()
		latencies := append([]time.Duration(nil), e.latencies...)
		e.mu.Unlock()
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

		fmt.Printf("=== %s ===\n", name)
		fmt.Printf("Requests:   %d (%.2f/s)\n", n, float64(n)/duration.Seconds())
		fmt.Printf("Errors:     %d\n", e.errors.Load())
		if n > 0 {
			fmt.Printf("Cache hits: %.1f%%\n", float64(e.cacheHits.Load())/float64(n)*100)
		}
		if len(latencies) > 0 {
			fmt.Printf("P50 %s  P95 %s  P99 %s  Max %s\n",
				percentile(latencies, 50),
				percentile(latencies, 95),
				percentile(latencies, 99),
				latencies[len(latencies)-1],
			)
		}
		fmt.Println()
	}

	fmt.Println("=== Status Codes ===")
	stats.mu.Lock()
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code])
	}
	stats.mu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
