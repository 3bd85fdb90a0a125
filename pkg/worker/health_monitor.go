package worker

import (
	"context"
	"sync"
	"time"

	"github.com/prismlabs/prism/pkg/bus"
	"github.com/prismlabs/prism/pkg/health"
	"github.com/prismlabs/prism/pkg/log"
)

// dependency pairs a named health.Checker with its own hysteresis
// config, grounded on the teacher's per-task containerHealthMonitor
// generalized to a fixed, worker-process-lifetime set of dependency
// checks rather than one monitor per running container.
type dependency struct {
	name    string
	checker health.Checker
	config  health.Config
	status  *health.Status
}

// HealthMonitor runs a fixed set of dependency checks (the VLM
// server, the queue bus, the ledger) together on one shared tick and
// renews the worker's bus readiness key only while every dependency
// is healthy, grounded on the teacher's healthCheckLoop/reportHealth
// shape but reporting through pkg/bus's readiness key instead of a
// gRPC ReportContainerHealth call (pkg/health's doc.go "Worker
// Integration" section).
type HealthMonitor struct {
	workerID string
	bus      bus.Bus

	mu   sync.Mutex
	deps []*dependency

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHealthMonitor builds a monitor for the VLM server (HTTP),
// Redis (TCP), and PostgreSQL (TCP), all sharing one Config (5s
// timeout, 3 retries, 30s start period) tuned by pkg/health/doc.go's
// "Configuration Tuning" guidance. The Config's Interval is not used;
// loop's fixed 10s ticker sets the cadence.
func NewHealthMonitor(workerID string, b bus.Bus, modelHealthURL, redisAddr, postgresAddr string) *HealthMonitor {
	hm := &HealthMonitor{
		workerID: workerID,
		bus:      b,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	standard := health.Config{
		Interval:    15 * time.Second,
		Timeout:     5 * time.Second,
		Retries:     3,
		StartPeriod: 30 * time.Second,
	}

	if modelHealthURL != "" {
		hm.deps = append(hm.deps, &dependency{
			name:    "model",
			checker: health.NewHTTPChecker(modelHealthURL),
			config:  standard,
			status:  health.NewStatus(),
		})
	}
	if redisAddr != "" {
		hm.deps = append(hm.deps, &dependency{
			name:    "queue-bus",
			checker: health.NewTCPChecker(redisAddr),
			config:  standard,
			status:  health.NewStatus(),
		})
	}
	if postgresAddr != "" {
		hm.deps = append(hm.deps, &dependency{
			name:    "ledger",
			checker: health.NewTCPChecker(postgresAddr),
			config:  standard,
			status:  health.NewStatus(),
		})
	}

	return hm
}

// Start runs the check-and-renew loop until Stop is called.
func (hm *HealthMonitor) Start(ctx context.Context) {
	go hm.loop(ctx)
}

// Stop signals the loop to exit and blocks until it has.
func (hm *HealthMonitor) Stop() {
	close(hm.stopCh)
	<-hm.doneCh
}

// loop runs every dependency's check on a 10s cadence and renews the
// worker's readiness key only when every dependency reports healthy,
// per pkg/health/doc.go's Worker Integration note: a degraded worker
// simply stops renewing, so its readiness key expires and readiness
// checks such as the Pool Manager's see it as not ready, without any
// explicit deregistration call.
func (hm *HealthMonitor) loop(ctx context.Context) {
	defer close(hm.doneCh)

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	logger := log.WithWorkerID(hm.workerID)

	for {
		select {
		case <-hm.stopCh:
			return
		case <-ticker.C:
			if hm.checkAll(ctx) {
				if err := hm.bus.SetWorkerReady(ctx, hm.workerID); err != nil {
					logger.Warn().Err(err).Msg("renewing worker readiness key failed")
				}
			}
		}
	}
}

// checkAll runs every dependency's check and returns whether all are
// currently healthy. A dependency still inside its StartPeriod grace
// window is treated as healthy, matching health.Status.InStartPeriod.
func (hm *HealthMonitor) checkAll(ctx context.Context) bool {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	allHealthy := true
	for _, dep := range hm.deps {
		if dep.status.InStartPeriod(dep.config) {
			continue
		}

		checkCtx, cancel := context.WithTimeout(ctx, dep.config.Timeout)
		result := dep.checker.Check(checkCtx)
		cancel()

		dep.status.Update(result, dep.config)
		if !dep.status.Healthy {
			allHealthy = false
		}
	}
	return allHealthy
}
