package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/seniorliving/directory-search/internal/directory"
	apperrors "github.com/seniorliving/directory-search/pkg/errors"
	"github.com/seniorliving/directory-search/pkg/health"
	"github.com/seniorliving/directory-search/pkg/metrics"
	"github.com/seniorliving/directory-search/pkg/resilience"
)

const defaultLoadTimeout = 30 * time.Second

// Provider owns the process-wide snapshot. Get loads it at most once and
// reuses it; only Refresh replaces it.
type Provider struct {
	sources     []Source
	loadTimeout time.Duration
	metrics     *metrics.Metrics
	current     atomic.Pointer[directory.Snapshot]
	group       singleflight.Group
	logger      *slog.Logger

	mu        sync.Mutex
	listeners []func(*directory.Snapshot)
}

// NewProvider builds a Provider over sources in fallback order. m may be nil.
func NewProvider(sources []Source, loadTimeout time.Duration, m *metrics.Metrics) *Provider {
	if loadTimeout <= 0 {
		loadTimeout = defaultLoadTimeout
	}
	return &Provider{
		sources:     sources,
		loadTimeout: loadTimeout,
		metrics:     m,
		logger:      slog.Default().With("component", "feed-provider"),
	}
}

// OnRefresh registers fn to run after a snapshot replaces a previous one.
func (p *Provider) OnRefresh(fn func(*directory.Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Current returns the resident snapshot without loading, or nil.
func (p *Provider) Current() *directory.Snapshot {
	return p.current.Load()
}

// Get returns the resident snapshot, loading it on first use. Concurrent
// first callers share one load. When every source fails the error wraps
// ErrDataUnavailable; a later call will try again.
func (p *Provider) Get(ctx context.Context) (*directory.Snapshot, error) {
	if snap := p.current.Load(); snap != nil {
		return snap, nil
	}
	return p.load(ctx, false)
}

// Refresh reloads from the sources and swaps the snapshot in. On failure
// the previous snapshot stays resident.
func (p *Provider) Refresh(ctx context.Context) (*directory.Snapshot, error) {
	return p.load(ctx, true)
}

func (p *Provider) load(ctx context.Context, force bool) (*directory.Snapshot, error) {
	// First-use loads and refreshes share one flight so only one of them
	// can swap the snapshot at a time.
	v, err, _ := p.group.Do("load", func() (any, error) {
		if !force {
			if snap := p.current.Load(); snap != nil {
				return snap, nil
			}
		}
		// The load is shared, so it must not die with the first caller.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.loadTimeout)
		defer cancel()

		snap, err := p.loadSources(loadCtx)
		if err != nil {
			return nil, err
		}
		prev := p.current.Swap(snap)
		if prev != nil {
			p.notify(snap)
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*directory.Snapshot), nil
}

// loadSources tries each source once, in order.
func (p *Provider) loadSources(ctx context.Context) (*directory.Snapshot, error) {
	if len(p.sources) == 0 {
		return nil, apperrors.Unavailable(errors.New("no feed sources configured"))
	}
	var errs []error
	for i, src := range p.sources {
		start := time.Now()
		snap, err := src.Load(ctx)
		if err == nil && (snap == nil || len(snap.Cities()) == 0 && len(snap.Facilities()) == 0) {
			err = fmt.Errorf("%s: %w", src.Name(), ErrEmptyFeed)
		}
		if err != nil {
			p.observe(src.Name(), "error")
			p.logger.Warn("feed source failed",
				"source", src.Name(),
				"position", i,
				"timeout", resilience.IsTimeout(err),
				"error", err,
			)
			errs = append(errs, err)
			continue
		}

		p.observe(src.Name(), "ok")
		if p.metrics != nil {
			p.metrics.SnapshotRecords.WithLabelValues("city").Set(float64(len(snap.Cities())))
			p.metrics.SnapshotRecords.WithLabelValues("facility").Set(float64(len(snap.Facilities())))
		}
		p.logger.Info("snapshot loaded",
			"source", src.Name(),
			"fallback", i > 0,
			"cities", len(snap.Cities()),
			"facilities", len(snap.Facilities()),
			"version", snap.Version(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return snap, nil
	}
	return nil, apperrors.Unavailable(errors.Join(errs...))
}

func (p *Provider) observe(source, status string) {
	if p.metrics != nil {
		p.metrics.FeedLoadsTotal.WithLabelValues(source, status).Inc()
	}
}

func (p *Provider) notify(snap *directory.Snapshot) {
	p.mu.Lock()
	listeners := append(([]func(*directory.Snapshot))(nil), p.listeners...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// Check reports whether a snapshot is resident, for readiness probes.
func (p *Provider) Check(ctx context.Context) health.ComponentHealth {
	snap := p.current.Load()
	if snap == nil {
		return health.ComponentHealth{Status: health.StatusDown, Message: "no snapshot loaded"}
	}
	return health.ComponentHealth{
		Status:  health.StatusUp,
		Message: fmt.Sprintf("%s %s (%d cities, %d facilities)", snap.Source(), snap.Version(), len(snap.Cities()), len(snap.Facilities())),
	}
}
