// Package poolmgr implements the Pool Manager: the process that
// decides how many Worker processes a host should run, spawns them as
// separate OS processes, and restarts them when they crash, grounded
// on original_source/worker/worker_pool_manager.py's WorkerPoolManager
// translated from Python multiprocessing to Go os/exec, and on the
// teacher's pkg/worker's stopCh-based lifecycle for the supervising
// goroutine shape.
package poolmgr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/prismlabs/prism/pkg/bus"
	"github.com/prismlabs/prism/pkg/log"
	"github.com/prismlabs/prism/pkg/metrics"
	"github.com/prismlabs/prism/pkg/poolmgr/election"
)

// gbPerWorker and vramHeadroomFrac encode spec.md's VRAM-based
// worker-count formula, translated from
// worker_pool_manager.py's _determine_worker_count: each worker needs
// ~28GB (16GB model + 8-12GB KV cache/activations), and only 75% of
// total VRAM is budgeted to leave headroom for the host OS and driver.
const (
	gbPerWorker      = 28.0
	vramHeadroomFrac = 0.75
	minWorkers       = 1
	maxWorkers       = 4

	// crashLoopWindow/crashLoopMaxCount bound how many restarts a
	// worker may have before the Pool Manager treats it as a crash
	// loop and backs off, rather than respawning in a tight cycle.
	crashLoopWindow   = 60 * time.Second
	crashLoopMaxCount = 3
	crashLoopBackoff  = 15 * time.Second
)

// WorkerCount derives the number of worker processes a host should run
// from its GPU memory, clamped to [1, 4] for safety. vramGB <= 0 means
// no GPU was detected and falls back to a single worker.
func WorkerCount(vramGB float64) int {
	if vramGB <= 0 {
		return minWorkers
	}
	n := int((vramGB * vramHeadroomFrac) / gbPerWorker)
	if n < minWorkers {
		n = minWorkers
	}
	if n > maxWorkers {
		n = maxWorkers
	}
	return n
}

// Config holds Pool Manager configuration.
type Config struct {
	// WorkerBinaryPath is the prism-worker executable to fork/exec.
	WorkerBinaryPath string
	// WorkerCount overrides the VRAM-derived count when > 0.
	WorkerCount   int
	VRAMGigabytes float64
	// WorkerEnv is appended to each spawned worker's environment
	// (typically the shared REDIS_*/DB_*/S3_* settings).
	WorkerEnv        []string
	ReadyWaitTimeout time.Duration
	MonitorInterval  time.Duration
	ShutdownGrace    time.Duration
}

// process tracks one supervised worker's OS process and lifecycle
// state.
type process struct {
	index    int
	id       string
	cmd      *exec.Cmd
	state    State
	restarts []time.Time
	// exited is closed once cmd.Wait() has returned, letting Stop wait
	// for natural exit without calling Wait a second time.
	exited chan struct{}
}

// exitEvent reports that a supervised process's Wait returned.
type exitEvent struct {
	index int
	err   error
}

// Manager spawns and supervises a host's worker pool, grounded on
// worker_pool_manager.py's sequential-spawn-then-monitor shape.
type Manager struct {
	cfg Config
	bus bus.Bus

	// elector is nil when HA election is disabled; the Manager then
	// always supervises, matching single-Pool-Manager-per-host
	// behavior unchanged.
	elector *election.Elector

	mu      sync.Mutex
	workers []*process

	exitCh chan exitEvent
	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Manager. elector may be nil.
func New(cfg Config, b bus.Bus, elector *election.Elector) *Manager {
	if cfg.ReadyWaitTimeout == 0 {
		cfg.ReadyWaitTimeout = 120 * time.Second
	}
	if cfg.MonitorInterval == 0 {
		cfg.MonitorInterval = 5 * time.Second
	}
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	return &Manager{
		cfg:     cfg,
		bus:     b,
		elector: elector,
		exitCh:  make(chan exitEvent, maxWorkers),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start spawns the pool sequentially (each worker waits for the prior
// one's readiness key before the next is spawned, avoiding concurrent
// model loads competing for the same GPU) and begins the monitor loop.
// If an elector is configured and this replica is not the leader,
// Start returns immediately without spawning anything; supervision
// begins only once this replica wins leadership (see loop).
func (m *Manager) Start(ctx context.Context) error {
	logger := log.WithComponent("poolmgr")

	if m.elector != nil && !m.elector.IsLeader() {
		logger.Info().Msg("starting as a Raft follower, not supervising workers")
		go m.loop(ctx)
		return nil
	}

	if err := m.spawnAll(ctx); err != nil {
		return err
	}
	go m.loop(ctx)
	return nil
}

// Stop sends SIGTERM to every supervised worker, waits up to
// ShutdownGrace for each to exit, and force-kills any stragglers,
// matching worker_pool_manager.py's stop(): terminate-then-join(10s)-
// then-kill.
func (m *Manager) Stop() {
	close(m.stopCh)
	<-m.doneCh
	m.stopWorkers(context.Background())
}

func (m *Manager) workerCount() int {
	if m.cfg.WorkerCount > 0 {
		return m.cfg.WorkerCount
	}
	return WorkerCount(m.cfg.VRAMGigabytes)
}

// spawnAll spawns every configured worker in order, each waiting for
// its predecessor's model-loaded readiness key.
func (m *Manager) spawnAll(ctx context.Context) error {
	logger := log.WithComponent("poolmgr")
	n := m.workerCount()
	logger.Info().Int("count", n).Msg("starting workers")

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < n; i++ {
		p, err := m.spawnLocked(i)
		if err != nil {
			return fmt.Errorf("spawning worker %d: %w", i+1, err)
		}
		m.workers = append(m.workers, p)

		if i < n-1 {
			if !m.waitForReady(ctx, p.id) {
				logger.Error().Str("worker_id", p.id).Msg("worker did not signal ready within timeout, continuing anyway")
			}
		}
	}

	if err := m.bus.SetWorkersCount(ctx, n); err != nil {
		logger.Warn().Err(err).Msg("heartbeating workers count failed")
	}

	logger.Info().Int("count", n).Msg("all workers started")
	return nil
}

func workerID(index int) string {
	return fmt.Sprintf("worker-%03d", index+1)
}

// spawnLocked starts one worker process and its exit watcher. Callers
// must hold m.mu.
func (m *Manager) spawnLocked(index int) (*process, error) {
	id := workerID(index)

	cmd := exec.Command(m.cfg.WorkerBinaryPath)
	cmd.Env = append(os.Environ(), m.cfg.WorkerEnv...)
	cmd.Env = append(cmd.Env, "WORKER_ID="+id)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	log.WithComponent("poolmgr").Info().Str("worker_id", id).Int("pid", cmd.Process.Pid).Msg("spawned worker")

	p := &process{index: index, id: id, cmd: cmd, state: StateRunning, exited: make(chan struct{})}
	go m.watch(index, p)
	return p, nil
}

// watch blocks on a spawned process's exit, closes p.exited so Stop
// can observe it without a second Wait call, and reports the exit on
// exitCh for the monitor loop to react to.
func (m *Manager) watch(index int, p *process) {
	err := p.cmd.Wait()
	close(p.exited)
	select {
	case m.exitCh <- exitEvent{index: index, err: err}:
	case <-m.stopCh:
	}
}

// waitForReady polls the worker's bus readiness key, matching
// worker_pool_manager.py's _wait_for_worker_ready 500ms poll.
func (m *Manager) waitForReady(ctx context.Context, workerID string) bool {
	deadline := time.Now().Add(m.cfg.ReadyWaitTimeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		ready, err := m.bus.WorkerReady(ctx, workerID)
		if err == nil && ready {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return false
}

// loop runs the heartbeat/crash-restart monitor and, when an elector
// is configured, reacts to leadership changes.
func (m *Manager) loop(ctx context.Context) {
	defer close(m.doneCh)

	logger := log.WithComponent("poolmgr")
	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()

	wasLeader := m.elector == nil || m.elector.IsLeader()

	for {
		select {
		case <-m.stopCh:
			return

		case ev := <-m.exitCh:
			m.handleExit(ctx, logger, ev)

		case <-ticker.C:
			if m.elector != nil {
				isLeader := m.elector.IsLeader()
				if isLeader && !wasLeader {
					logger.Info().Msg("won Raft leadership, spawning worker pool")
					if err := m.spawnAll(ctx); err != nil {
						logger.Error().Err(err).Msg("spawning worker pool after leadership change failed")
					}
				} else if !isLeader && wasLeader {
					logger.Info().Msg("lost Raft leadership, stopping worker pool")
					m.stopWorkers(ctx)
				}
				wasLeader = isLeader
				if !isLeader {
					continue
				}
			}

			if err := m.bus.SetWorkersCount(ctx, m.workerCount()); err != nil {
				logger.Warn().Err(err).Msg("heartbeating workers count failed")
			}
		}
	}
}

// handleExit restarts a worker that exited, applying crash-loop
// backoff once it has restarted crashLoopMaxCount times within
// crashLoopWindow.
func (m *Manager) handleExit(ctx context.Context, logger zerolog.Logger, ev exitEvent) {
	select {
	case <-m.stopCh:
		return
	default:
	}
	if m.elector != nil && !m.elector.IsLeader() {
		return
	}

	m.mu.Lock()
	if ev.index >= len(m.workers) {
		m.mu.Unlock()
		return
	}
	p := m.workers[ev.index]
	if ev.err != nil {
		p.state = StateCrashed
	} else {
		p.state = StateExited
	}

	now := time.Now()
	cutoff := now.Add(-crashLoopWindow)
	recent := p.restarts[:0]
	for _, t := range p.restarts {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	p.restarts = append(recent, now)
	crashLooping := len(p.restarts) > crashLoopMaxCount
	m.mu.Unlock()

	logger.Warn().Str("worker_id", p.id).Err(ev.err).Bool("crash_looping", crashLooping).Msg("worker exited, restarting")

	reason := "exited"
	if ev.err != nil {
		reason = "crashed"
	}
	metrics.WorkerRestartsTotal.WithLabelValues(reason).Inc()
	if crashLooping {
		metrics.WorkerCrashLoopTotal.Inc()
		time.Sleep(crashLoopBackoff)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	newP, err := m.spawnLocked(ev.index)
	if err != nil {
		logger.Error().Str("worker_id", p.id).Err(err).Msg("respawning worker failed")
		return
	}
	newP.restarts = p.restarts
	m.workers[ev.index] = newP
}

// stopWorkers sends SIGTERM to every supervised process, waits up to
// ShutdownGrace, then force-kills whatever remains.
func (m *Manager) stopWorkers(ctx context.Context) {
	logger := log.WithComponent("poolmgr")

	m.mu.Lock()
	procs := make([]*process, len(m.workers))
	copy(procs, m.workers)
	m.workers = nil
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range procs {
		if p.cmd.Process == nil {
			continue
		}
		logger.Info().Str("worker_id", p.id).Msg("sending SIGTERM")
		_ = p.cmd.Process.Signal(syscall.SIGTERM)

		wg.Add(1)
		go func(p *process) {
			defer wg.Done()
			select {
			case <-p.exited:
			case <-time.After(m.cfg.ShutdownGrace):
				logger.Warn().Str("worker_id", p.id).Msg("did not stop in time, killing")
				_ = p.cmd.Process.Kill()
				<-p.exited
			}
		}(p)
	}
	wg.Wait()

	if err := m.bus.SetWorkersCount(ctx, 0); err != nil {
		logger.Warn().Err(err).Msg("clearing workers count failed")
	}
	logger.Info().Msg("all workers stopped")
}
