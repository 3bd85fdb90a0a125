package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/prismlabs/prism/pkg/bus"
	"github.com/prismlabs/prism/pkg/ledger"
	"github.com/prismlabs/prism/pkg/log"
	"github.com/prismlabs/prism/pkg/types"
)

// Collector periodically scrapes gauge-style values that have no
// natural call site of their own (queue depth, configured worker
// count, task status aggregate) and sets them on the Prometheus
// registry, grounded on the teacher's metrics.Collector ticker-driven
// scrape loop. Counters and histograms are instead updated directly at
// their call sites in pkg/worker and pkg/dispatcher, matching the
// teacher's ContainersScheduled.Inc()-at-the-call-site style.
type Collector struct {
	bus    bus.Bus
	ledger ledger.Store
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewCollector builds a Collector that scrapes the given Bus and
// ledger. l may be nil for a process (e.g. a pure Pool Manager) that
// has no ledger connection; task-status scraping is then skipped.
func NewCollector(b bus.Bus, l ledger.Store) *Collector {
	return &Collector{
		bus:    b,
		ledger: l,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs the scrape loop in a background goroutine until Stop is
// called.
func (c *Collector) Start(ctx context.Context) {
	go c.loop(ctx)
}

// Stop signals the loop to exit and waits for it.
func (c *Collector) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

func (c *Collector) loop(ctx context.Context) {
	defer close(c.doneCh)

	logger := log.WithComponent("metrics-collector")

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	c.collect(ctx, logger)
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.collect(ctx, logger)
		}
	}
}

func (c *Collector) collect(ctx context.Context, logger zerolog.Logger) {
	depth, err := c.bus.QueueLength(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("reading queue depth failed")
	} else {
		QueueDepth.Set(float64(depth))
	}

	count, err := c.bus.WorkersCount(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("reading workers count failed")
	} else {
		WorkersConfigured.Set(float64(count))
	}

	if c.ledger == nil {
		return
	}
	counts, err := c.ledger.CountTasksByStatus(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("reading task status counts failed")
		return
	}
	for _, status := range []types.TaskStatus{types.TaskPending, types.TaskProcessing, types.TaskCompleted, types.TaskFailed} {
		TasksByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
