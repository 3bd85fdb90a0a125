/*
Package dispatcher turns one Task submission into ledger state and
queue traffic: it allocates a task_id, writes the task row, and for
every requested format inserts one PageUnit row per page before
enqueuing that page's QueueMessage.

Grounded on original_source/worker/db_client.py's create_task_with_pages
and spec.md §4.1, translated onto pkg/ledger and pkg/bus's narrow
interfaces so tests substitute ledgertest.Fake and bustest.Fake rather
than a real Postgres/Redis, matching the teacher's storage.Store fake
pattern.

# Ordering

Rows are always inserted before their QueueMessage is enqueued: a crash
between the two leaves a pending, unenqueued row rather than a message
with no backing row, and a resubmission with the same TaskID recovers
by re-running Submit. Pages of the same format enqueue in ascending
order via a single pipelined EnqueueBatch call so the earliest pages
become visible to Workers first under FIFO dequeue; order across
formats is not significant.

# Idempotency

Submit is safe to call twice with the same TaskID. Any PageUnit whose
ledger row already exists with a terminal status is left alone and its
message is not re-enqueued, per spec.md §4.1's idempotency guarantee.

# See Also

  - pkg/ledger - the Postgres-backed task/unit rows this package writes
  - pkg/bus - the Redis work queue this package enqueues onto
  - pkg/worker - the consumer of the messages this package produces
*/
package dispatcher
