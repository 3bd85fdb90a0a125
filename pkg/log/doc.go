/*
Package log provides structured logging for prism using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

prism's logging system provides structured JSON logging with minimal overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("dispatcher")               │          │
	│  │  - WithWorkerID("worker-3")                  │          │
	│  │  - WithTaskID("task-def456")                │          │
	│  │  - WithUnitID(2, "kvp")                      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "worker",                   │          │
	│  │    "time": "2026-07-31T10:30:00Z",          │          │
	│  │    "message": "unit completed"              │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF unit completed component=worker │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all prism packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithWorkerID: Add worker ID context
  - WithTaskID: Add task ID context
  - WithUnitID: Add page_number/format context for a single PageUnit

# Usage

Initializing the Logger:

	import "github.com/prismlabs/prism/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("dispatcher starting")
	log.Debug("enqueuing page unit")
	log.Warn("queue depth above threshold")
	log.Error("failed to connect to redis")
	log.Fatal("cannot start without database")

Component Loggers:

	workerLog := log.WithComponent("worker").With().Str("worker_id", "worker-3").Logger()
	workerLog.Info().Msg("starting processing loop")

	taskLog := log.WithTaskID("task-abc123")
	taskLog.Info().Msg("task created")

	unitLog := taskLog.With().Int("page_number", 2).Str("format", "kvp").Logger()
	unitLog.Info().Msg("unit completed")

# Integration Points

This package integrates with:

  - pkg/dispatcher: Logs task submission and enqueue decisions
  - pkg/worker: Logs unit processing and model-adapter calls
  - pkg/poolmgr: Logs worker spawn, liveness, and restart events

pkg/bus and pkg/ledger do not log; they return wrapped errors that
their callers log.

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers down into per-task, per-unit call chains
  - Automatically includes context in all logs
  - Avoids repetitive field specification

# Security

Log Content:
  - Never log extracted document content or anonymization mappings
  - Redact credentials, presigned URLs, and API keys
  - Review logs before sharing externally
*/
package log
