/*
Package health provides health check mechanisms for monitoring the
dependencies a worker process relies on: the VLM server it calls, and
the Redis/PostgreSQL backends the queue bus and ledger are built on.

This package implements three types of health checks: HTTP, TCP, and
Exec. A Worker uses them to decide whether it is fit to keep pulling
work from the queue, and a Pool Manager uses the aggregate result to
decide whether to restart a worker process rather than leave it
spinning against a dependency that will never come back.

# Architecture

The health check system follows a modular checker design:

	┌─────────────────────────────────────────────────────────────┐
	│                   Health Check System                       │
	└─────┬──────────────────────────────────────────────────────┘
	      │
	      ▼
	┌──────────────────────────────────────────────────────────────┐
	│                     Checker Interface                        │
	│  • Check(ctx) Result                                         │
	│  • Type() CheckType                                          │
	└────────┬─────────────────────────────────────────────────────┘
	         │
	    ┌────┴──────┬──────────┐
	    ▼           ▼          ▼
	┌────────┐  ┌──────┐  ┌────────┐
	│  HTTP  │  │ TCP  │  │  Exec  │
	│Checker │  │Checker│ │Checker │
	└────────┘  └──────┘  └────────┘
	     │          │          │
	     ▼          ▼          ▼
	  GET /    Connect     Run cmd
	  /health    :port      locally

## Health Check Flow

 1. Worker process starts → constructs one checker per dependency
 2. Wait for StartPeriod (grace period while the model server warms up)
 3. Every Interval: run all checks
 4. If a check fails: increment consecutive failures
 5. If failures >= Retries: mark that dependency unhealthy
 6. Pool Manager observes sustained unhealthy status → restarts the worker

# Health Check Types

## HTTP Health Checks

HTTP checks verify the VLM server is accepting requests:

	Check Type: HTTP
	Configuration:
	├── URL: http://vlm-host:8000/health
	├── Method: GET, POST, HEAD
	├── Headers: Custom HTTP headers
	├── Expected Status: 200-399 (configurable)
	└── Timeout: 10 seconds

Example responses:
  - 200 OK → Healthy
  - 503 Service Unavailable → Unhealthy
  - Connection timeout → Unhealthy
  - Connection refused → Unhealthy

## TCP Health Checks

TCP checks verify a dependency's port is listening and accepting
connections:

	Check Type: TCP
	Configuration:
	├── Address: redis-host:6379
	├── Timeout: 5 seconds
	└── Connection test only (no data sent)

Use cases:
  - Redis queue bus reachability
  - PostgreSQL ledger reachability
  - Any dependency with a bare TCP listener

## Exec Health Checks

Exec checks run a local command and check its exit code:

	Check Type: Exec
	Configuration:
	├── Command: ["pg_isready", "-h", "ledger-host"]
	├── Timeout: 10 seconds
	├── Exit code 0 → Healthy
	└── Exit code != 0 → Unhealthy

Use cases:
  - Database-specific readiness probes (pg_isready)
  - Custom operational scripts
  - Local filesystem/scratch-directory checks

# Core Components

## Checker Interface

All health checkers implement this interface:

	type Checker interface {
		Check(ctx context.Context) Result
		Type() CheckType
	}

This allows polymorphic health checking - a Worker's health monitor
doesn't need to know the check type, just call Check() and interpret
the Result.

## Result Structure

All checks return a standardized Result:

	type Result struct {
		Healthy   bool          // Check passed?
		Message   string        // Human-readable message
		CheckedAt time.Time     // When check ran
		Duration  time.Duration // How long check took
	}

## Status Tracking

Status tracks health over time:

	type Status struct {
		ConsecutiveFailures  int    // Failure streak
		ConsecutiveSuccesses int    // Success streak
		LastCheck            time.Time
		LastResult           Result
		Healthy              bool   // Current health state
		StartedAt            time.Time
	}

The status implements hysteresis - multiple failures required before
marking unhealthy, preventing flapping from transient issues.

## Configuration

Health checks are configured per dependency:

	type Config struct {
		Interval    time.Duration  // Time between checks (default: 30s)
		Timeout     time.Duration  // Max check duration (default: 10s)
		Retries     int            // Failures before unhealthy (default: 3)
		StartPeriod time.Duration  // Grace period for slow startup (default: 0)
	}

# Usage Examples

## HTTP Health Check

	import "github.com/prismlabs/prism/pkg/health"

	checker := health.NewHTTPChecker("http://vlm-host:8000/health")
	checker.WithMethod("GET").
		WithHeader("User-Agent", "prism-worker-health/1.0").
		WithStatusRange(200, 299).
		WithTimeout(5 * time.Second)

	ctx := context.Background()
	result := checker.Check(ctx)

	if result.Healthy {
		fmt.Printf("healthy: %s (took %v)\n", result.Message, result.Duration)
	} else {
		fmt.Printf("unhealthy: %s\n", result.Message)
	}

## TCP Health Check

	checker := health.NewTCPChecker("redis-host:6379")
	checker.WithTimeout(3 * time.Second)

	result := checker.Check(ctx)
	if result.Healthy {
		fmt.Println("queue bus is accepting connections")
	}

## Exec Health Check

	checker := health.NewExecChecker([]string{"pg_isready", "-h", "ledger-host"})
	checker.WithTimeout(5 * time.Second)

	result := checker.Check(ctx)
	if result.Healthy {
		fmt.Println("ledger is ready")
	}

## Health Status Tracking

	status := health.NewStatus()
	config := health.Config{
		Interval:    10 * time.Second,
		Timeout:     5 * time.Second,
		Retries:     3,
		StartPeriod: 30 * time.Second,
	}
	checker := health.NewHTTPChecker("http://vlm-host:8000/health")

	for {
		if status.InStartPeriod(config) {
			time.Sleep(config.Interval)
			continue
		}

		checkCtx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		result := checker.Check(checkCtx)
		cancel()

		status.Update(result, config)
		if !status.Healthy {
			fmt.Printf("dependency unhealthy after %d failures\n", status.ConsecutiveFailures)
			break
		}
		time.Sleep(config.Interval)
	}

# Integration Points

## Worker Integration

A Worker's health monitor runs one checker per dependency (VLM server,
queue bus, ledger) on its own interval and surfaces aggregate health
through the worker's readiness key (pkg/bus's SetWorkerReady): a worker
failing its health checks stops renewing that key, so a Dispatcher or
load balancer consulting worker census naturally excludes it.

## Pool Manager Integration

The Pool Manager's crash-loop detector (pkg/poolmgr) is a coarser,
process-exit-code-based signal; this package's health checks are a
finer-grained, still-running-but-degraded signal a Worker can act on
without waiting for a crash (e.g. skip dispatch to a VLM endpoint that
is currently failing its HTTP check, rather than let every unit time
out against it).

# Design Patterns

## Strategy Pattern

Different checkers implement the Checker interface:

	Checker (interface)
	├── HTTPChecker (HTTP strategy)
	├── TCPChecker (TCP strategy)
	└── ExecChecker (Exec strategy)

This allows runtime selection of check type without code changes.

## Builder Pattern

Checkers use fluent builders for configuration:

	checker := NewHTTPChecker(url).
		WithMethod("POST").
		WithHeader("Auth", "token").
		WithTimeout(5 * time.Second)

## Hysteresis Pattern

Status tracking implements hysteresis to prevent flapping:

	Healthy → 1 failure → Still healthy
	Healthy → 2 failures → Still healthy
	Healthy → 3 failures → Unhealthy!

	Unhealthy → 1 success → Healthy!

## Context-Based Cancellation

All checks respect context deadlines:

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result := checker.Check(ctx)

# Best Practices

1. Health Check Design
  - Check critical dependencies only (VLM server, queue bus, ledger)
  - Return quickly (< 1 second ideal)
  - Don't overwhelm the dependency being checked

2. Configuration Tuning
  - Set Interval = 10-30s (balance detection vs. overhead)
  - Set Timeout = 5-10s (2x expected response time)
  - Set Retries = 3 (tolerate transients)
  - Set StartPeriod = 2x model-server startup time

# Security Considerations

## HTTP Health Checks

  - Health endpoints should not require authentication
  - Don't expose sensitive information in health responses
  - Use internal networks only (not public internet)

## Exec Health Checks

  - Validate command arguments (prevent injection)
  - Run commands as non-root user
  - Limit command execution time

# See Also

  - pkg/worker - runs health checks against its own dependencies
  - pkg/poolmgr - restarts worker processes on sustained unhealthiness
*/
package health
