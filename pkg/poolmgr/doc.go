/*
Package poolmgr implements the Pool Manager: the process that decides
how many Worker processes a host should run, spawns them as separate
OS processes via os/exec, waits for each to finish loading its model
before spawning the next, and restarts any that crash.

Grounded on original_source/worker/worker_pool_manager.py's
WorkerPoolManager, translated from Python multiprocessing.Process to
Go os/exec.Cmd: spawn is still sequential (avoiding concurrent model
loads competing for the same GPU), readiness is still a Redis key poll,
and shutdown is still SIGTERM-then-join-then-kill.

# Worker count

WorkerCount implements spec.md's VRAM-based formula: ~28GB per worker,
75% of total VRAM budgeted to leave headroom, clamped to [1, 4]. A
Config.WorkerCount override bypasses the formula entirely for
development or testing.

# Supervision

Each spawned process is watched by a dedicated goroutine blocking on
Cmd.Wait; its exit is reported on a channel the monitor loop selects
on, so a crash triggers an immediate respawn rather than waiting for
the next liveness tick. A worker that restarts more than 3 times within
60 seconds is treated as crash-looping: the Pool Manager still
restarts it, but after a 15s backoff and with a
prism_worker_crash_loop_total increment an operator can alert on, per
spec.md §7's worker-init-failure error kind.

# High availability

pkg/poolmgr/election adds optional multi-replica leader election via
hashicorp/raft. With fewer than two configured peers it is a no-op
(always leader); with peers configured, only the elected leader
supervises workers, and a follower that wins leadership spawns the pool
immediately rather than waiting for a restart.

# See Also

  - pkg/poolmgr/election - the optional Raft leader-election layer
  - pkg/worker - the process this package spawns and supervises
  - pkg/bus - the readiness-key and workers-count census primitives
*/
package poolmgr
