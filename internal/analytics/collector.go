package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/seniorliving/directory-search/pkg/kafka"
)

// Publisher delivers batches of events. *kafka.Producer and *Aggregator both
// satisfy it; the aggregator is used directly when Kafka is disabled.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers events off the request path and publishes them in
// batches, flushing when a batch fills or the interval elapses.
type Collector struct {
	publisher     Publisher
	eventCh       chan SearchEvent
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
}

func NewCollector(publisher Publisher, bufferSize, batchSize int, flushInterval time.Duration) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Collector{
		publisher:     publisher,
		eventCh:       make(chan SearchEvent, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		batch := make([]kafka.Event, 0, c.batchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.flush(context.Background(), batch)
					return
				}
				batch = append(batch, kafka.Event{Key: string(event.Type), Value: event})
				if len(batch) >= c.batchSize {
					c.flush(ctx, batch)
					batch = batch[:0]
				}
			case <-ticker.C:
				c.flush(ctx, batch)
				batch = batch[:0]
			case <-ctx.Done():
				batch = c.drainRemaining(batch)
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx, batch)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track enqueues event without blocking; a full buffer drops it.
func (c *Collector) Track(event SearchEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the final flush. Call it
// instead of cancelling the Start context, not in addition.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

// Wait blocks until the collector loop has exited.
func (c *Collector) Wait() {
	<-c.done
}

func (c *Collector) drainRemaining(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, kafka.Event{Key: string(event.Type), Value: event})
		default:
			return batch
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics batch", "events", len(batch), "error", err)
		return
	}
	c.logger.Debug("analytics batch published", "events", len(batch))
}
