package events

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/observability/metrics"
)

// Source is the unpublished side of the event log.
type Source interface {
	FetchUnpublishedEvents(ctx context.Context, limit int) ([]appointment.EventLog, error)
	MarkEventsPublished(ctx context.Context, ids []int64) error
}

type Publisher interface {
	Publish(ctx context.Context, batch []appointment.EventLog) error
}

// Relay moves event log rows to the broker. Delivery is at least once: a batch is marked
// published only after the broker accepted all of it.
type Relay struct {
	source    Source
	publisher Publisher
	interval  time.Duration
	batchSize int
	metrics   *metrics.SchedulingMetrics
	logger    *zap.Logger
}

func NewRelay(source Source, publisher Publisher, interval time.Duration, batchSize int, m *metrics.SchedulingMetrics, logger *zap.Logger) *Relay {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		source:    source,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		metrics:   m,
		logger:    logger,
	}
}

// Run relays on every tick until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("event relay started", zap.Duration("interval", r.interval), zap.Int("batch_size", r.batchSize))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("event relay shutting down")
			return
		case <-ticker.C:
			n, err := r.RunOnce(ctx)
			if err != nil {
				r.logger.Error("relay events", zap.Error(err))
				continue
			}
			if n > 0 {
				r.logger.Info("relayed events", zap.Int("count", n))
			}
		}
	}
}

// RunOnce relays a single batch and returns how many events were published.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	batch, err := r.source.FetchUnpublishedEvents(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch events: %w", err)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if err := r.publisher.Publish(ctx, batch); err != nil {
		r.metrics.ObserveRelayed("failed", len(batch))
		return 0, fmt.Errorf("publish events: %w", err)
	}

	ids := make([]int64, 0, len(batch))
	for _, ev := range batch {
		ids = append(ids, ev.ID)
	}
	if err := r.source.MarkEventsPublished(ctx, ids); err != nil {
		return 0, fmt.Errorf("mark events published: %w", err)
	}

	r.metrics.ObserveRelayed("published", len(batch))
	return len(batch), nil
}
