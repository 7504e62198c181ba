// Package feed loads the directory record set from its data sources and
// hands out immutable snapshots. Sources are tried once each, in order; the
// loaded snapshot is reused until an explicit Refresh.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/seniorliving/directory-search/internal/directory"
	"github.com/seniorliving/directory-search/pkg/config"
	"github.com/seniorliving/directory-search/pkg/postgres"
	"github.com/seniorliving/directory-search/pkg/resilience"
)

// maxFeedBytes bounds a single feed document.
const maxFeedBytes = 256 << 20

// Source produces a snapshot of the directory.
type Source interface {
	Name() string
	Load(ctx context.Context) (*directory.Snapshot, error)
}

// FileSource reads a JSON feed from the local filesystem.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string { return "file:" + s.Path }

func (s *FileSource) Load(ctx context.Context) (*directory.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.Path, err)
	}
	return snapshotFrom(data, s.Name())
}

// HTTPSource fetches a JSON feed over HTTP behind a circuit breaker.
type HTTPSource struct {
	URL     string
	client  *http.Client
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

func NewHTTPSource(rawURL string, cfg config.FeedConfig, client *http.Client) *HTTPSource {
	return newHTTPSource(rawURL, cfg, Deps{HTTPClient: client})
}

func newHTTPSource(rawURL string, cfg config.FeedConfig, deps Deps) *HTTPSource {
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSource{
		URL:    rawURL,
		client: client,
		breaker: resilience.NewCircuitBreaker("feed:"+rawURL, resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.BreakerFailure,
			ResetTimeout:     cfg.BreakerReset,
			OnStateChange:    deps.OnBreakerChange,
		}),
		timeout: cfg.HTTPTimeout,
	}
}

func (s *HTTPSource) Name() string { return s.URL }

// Breaker exposes the circuit breaker for state reporting.
func (s *HTTPSource) Breaker() *resilience.CircuitBreaker { return s.breaker }

func (s *HTTPSource) Load(ctx context.Context) (*directory.Snapshot, error) {
	var data []byte
	err := s.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, s.timeout, "feed fetch "+s.URL, func(ctx context.Context) error {
			var err error
			data, err = s.fetch(ctx)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return snapshotFrom(data, s.Name())
}

func (s *HTTPSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", s.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", s.URL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.URL, err)
	}
	return data, nil
}

func snapshotFrom(data []byte, name string) (*directory.Snapshot, error) {
	recs, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return directory.NewSnapshot(recs.Cities, recs.Facilities, directory.Meta{
		Source:   name,
		LoadedAt: time.Now().UTC(),
	}), nil
}

// Deps carries optional backends a source URI may refer to.
type Deps struct {
	Postgres   *postgres.Client
	HTTPClient *http.Client
	// OnBreakerChange observes HTTP source circuit breaker transitions.
	OnBreakerChange func(name string, from, to resilience.State)
}

// NewSource resolves a configured source URI: "postgres" for the directory
// tables, an http(s) URL, or a file path (optionally file://).
func NewSource(uri string, cfg config.FeedConfig, deps Deps) (Source, error) {
	uri = strings.TrimSpace(uri)
	switch {
	case uri == "":
		return nil, fmt.Errorf("empty feed source")
	case uri == "postgres" || strings.HasPrefix(uri, "postgres://"):
		if deps.Postgres == nil {
			return nil, fmt.Errorf("feed source %q needs a postgres connection", uri)
		}
		return NewPostgresSource(deps.Postgres), nil
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		if _, err := url.Parse(uri); err != nil {
			return nil, fmt.Errorf("parsing feed url: %w", err)
		}
		return newHTTPSource(uri, cfg, deps), nil
	case strings.HasPrefix(uri, "file://"):
		return &FileSource{Path: strings.TrimPrefix(uri, "file://")}, nil
	default:
		return &FileSource{Path: uri}, nil
	}
}

// NewSources resolves every configured source in fallback order.
func NewSources(cfg config.FeedConfig, deps Deps) ([]Source, error) {
	uris := cfg.Sources()
	if len(uris) == 0 {
		return nil, fmt.Errorf("no feed sources configured")
	}
	sources := make([]Source, 0, len(uris))
	for _, uri := range uris {
		src, err := NewSource(uri, cfg, deps)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}
