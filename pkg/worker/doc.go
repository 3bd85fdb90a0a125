/*
Package worker implements the Worker process: the component that
actually calls the Model Adapter and turns one page into the
artifacts a task's caller downloads.

A Worker is a single-purpose agent that bridges the queue bus and the
Model Adapter: it blocking-dequeues a QueueMessage, downloads the
page's rasterized image, runs pkg/pageproc against the format the
message names, and persists every resulting artifact to the object
store and the ledger.

# Architecture

	┌────────────────────────── WORKER PROCESS ───────────────────────────┐
	│                                                                       │
	│  ┌────────────────────────────────────────────┐                     │
	│  │              dequeue loop                   │                     │
	│  │  - BRPOP the task queue (pkg/bus)            │                     │
	│  │  - idempotent re-delivery short-circuit      │                     │
	│  │  - mark unit processing                      │                     │
	│  └──────┬───────────────────────────┬───────────┘                     │
	│         │                           │                                 │
	│  ┌──────▼───────┐           ┌───────▼────────────┐                   │
	│  │ object store │           │   pkg/pageproc      │                   │
	│  │ (page image) │──────────▶│   (one Processor)   │                   │
	│  └──────────────┘           └───────┬──────────────┘                 │
	│                                     │                                 │
	│                              ┌──────▼────────┐                       │
	│                              │ modeladapter   │                       │
	│                              │ (VLM process)  │                       │
	│                              └────────────────┘                       │
	│                                                                       │
	│  ┌─────────────────────────────────────────────┐                    │
	│  │        ledger + object store + bus            │                    │
	│  │  - upload primary/side artifacts              │                    │
	│  │  - upsert page unit, recompute task status    │                    │
	│  │  - publish task update                        │                    │
	│  └────────────────────────────────────────────────┘                   │
	│                                                                       │
	│  ┌─────────────────────────────────────────────┐                    │
	│  │            HealthMonitor                      │                    │
	│  │  - HTTP check: VLM server                     │                    │
	│  │  - TCP check: queue bus (Redis)                │                    │
	│  │  - TCP check: ledger (Postgres)                 │                    │
	│  │  - renews bus worker-readiness key              │                    │
	│  └────────────────────────────────────────────────┘                   │
	└───────────────────────────────────────────────────────────────────────┘

# Processing a unit

 1. Dequeue a QueueMessage, with a bounded poll timeout.
 2. Check the ledger for an already-terminal PageUnit with the same
    composite identity (task, page, format). If found, skip — at-least-
    once delivery must never re-invoke the Model Adapter for a unit
    that already completed, since GPU time is the pipeline's scarcest
    resource.
 3. Mark the unit processing in the ledger.
 4. Download the page image, decode its pixel dimensions, and call
    pkg/pageproc.Process with the message's format and options.
 5. Upload every resulting artifact (primary, side, and the derived
    txt sibling for a completed html unit) to the object store.
 6. Upsert the unit's terminal status and keys, recompute the owning
    task's aggregate status, and publish a task update.

A processing error (Model Adapter failure, download failure, timeout)
marks the unit failed with the error's message and still recomputes
and publishes the task's status — a failed unit is not a silent drop.

# Health Monitoring

A Worker's HealthMonitor runs independently of the dequeue loop. It
checks the VLM server over HTTP and the queue bus/ledger over TCP on a
fixed interval. While every dependency reports healthy it renews the
worker's bus.SetWorkerReady key; the moment a dependency degrades it
simply stops renewing, and the key's TTL expiry removes the worker
from whatever census a Pool Manager or load balancer consults — no
explicit deregistration call is needed.

# See Also

  - pkg/pageproc - the per-format extraction pipeline a Worker drives
  - pkg/bus - the queue, task metadata, and readiness-key primitives
  - pkg/ledger - the PostgreSQL-backed Task/PageUnit store
  - pkg/health - the Checker types HealthMonitor is built from
*/
package worker
