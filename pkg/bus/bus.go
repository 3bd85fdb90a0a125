// Package bus wraps the Redis-backed work queue, pub/sub channels, and
// ephemeral task metadata hashes that connect a Dispatcher to the
// Worker pool, grounded on original_source/worker/redis_client.py's
// key patterns and the teacher's narrow-interface style
// (pkg/storage.Store consumed by the raft FSM).
package bus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prismlabs/prism/pkg/config"
	"github.com/prismlabs/prism/pkg/types"
)

// Redis key and channel names, translated from
// original_source/worker/config.py's TASK_QUEUE_KEY /
// TASK_DATA_KEY_PREFIX / TASK_UPDATES_CHANNEL /
// USER_NOTIFICATIONS_CHANNEL_PREFIX constants.
const (
	taskQueueKey                = "prism:task:queue"
	taskDataKeyPrefix           = "prism:task:data:"
	notificationsChannel        = "prism:notifications"
	userNotificationsChanPrefix = "prism:notifications:user:"
	taskUpdatesChannel          = "prism:task:updates"

	// taskMetadataTTL bounds task metadata hashes to the 24h retention
	// window spec.md §3 mandates. Queue entries carry no expiry.
	taskMetadataTTL = 24 * time.Hour

	// workersCountKey is the Pool Manager's heartbeated census key. Its
	// TTL (60s) outlives the 5s monitor cadence on purpose, per spec.md
	// §9's documented stale-count window.
	workersCountKey  = "prism:workers:count"
	workersCountTTL  = 60 * time.Second
	workerReadyKeyFmt = "prism:worker:ready:%s"
	workerReadyTTL    = 60 * time.Second
)

// Bus is the narrow interface pkg/dispatcher, pkg/worker, and
// pkg/poolmgr depend on. Defining it here (rather than a concrete
// *Client everywhere) lets tests substitute pkg/bus/bustest's fake,
// mirroring the teacher's storage.Store-behind-an-interface pattern.
type Bus interface {
	Enqueue(ctx context.Context, msg types.QueueMessage) error
	EnqueueBatch(ctx context.Context, msgs []types.QueueMessage) error
	Dequeue(ctx context.Context, timeout time.Duration) (*types.QueueMessage, error)
	QueueLength(ctx context.Context) (int64, error)

	SetTaskMetadata(ctx context.Context, taskID string, fields map[string]string) error
	GetTaskMetadata(ctx context.Context, taskID string) (map[string]string, error)

	PublishTaskUpdate(ctx context.Context, update types.TaskUpdate) error
	PublishUserNotification(ctx context.Context, userID string, payload any) error
	SubscribeTaskUpdates(ctx context.Context) (<-chan types.TaskUpdate, func() error, error)

	SetWorkerReady(ctx context.Context, workerID string) error
	WorkerReady(ctx context.Context, workerID string) (bool, error)
	SetWorkersCount(ctx context.Context, n int) error
	WorkersCount(ctx context.Context) (int, error)

	Ping(ctx context.Context) error
	Close() error
}

// Client is the production Bus backed by a single Redis connection.
type Client struct {
	rdb *redis.Client
}

// New dials Redis using the TLS/auth settings in cfg and verifies
// connectivity with a Ping, following redis_client.py's
// connect-then-ping-or-raise behavior.
func New(cfg config.Config) (*Client, error) {
	opts := &redis.Options{
		Addr: fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		DB:   cfg.RedisDB,
	}

	if cfg.RedisTLSEnabled {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: !cfg.RedisTLSVerify,
			MinVersion:         tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}

	return &Client{rdb: rdb}, nil
}

// Enqueue pushes msg onto the work queue as a left-push, paired with
// Dequeue's blocking right-pop, matching BRPOP/LPUSH FIFO ordering.
func (c *Client) Enqueue(ctx context.Context, msg types.QueueMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling queue message: %w", err)
	}
	if err := c.rdb.LPush(ctx, taskQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueuing message for task %s page %d: %w", msg.TaskID, msg.PageNumber, err)
	}
	return nil
}

// EnqueueBatch pushes msgs onto the work queue in a single pipelined
// round trip, preserving the same LPUSH-then-BRPOP FIFO ordering
// Enqueue gives a lone message: pushing msgs[0..n) in order leaves
// msgs[0] nearest the BRPOP tail, so it is dequeued first. The
// Dispatcher uses this for a Task's per-format page batch so that
// ascending-page-order enqueueing (spec.md §4.1) costs one Redis round
// trip instead of one per page.
func (c *Client) EnqueueBatch(ctx context.Context, msgs []types.QueueMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for _, msg := range msgs {
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshaling queue message: %w", err)
		}
		pipe.LPush(ctx, taskQueueKey, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueuing batch of %d messages: %w", len(msgs), err)
	}
	return nil
}

// Dequeue performs a blocking right-pop with the given timeout,
// mirroring get_task_from_queue's BRPOP call. A nil result with no
// error means the timeout elapsed with nothing to process.
func (c *Client) Dequeue(ctx context.Context, timeout time.Duration) (*types.QueueMessage, error) {
	result, err := c.rdb.BRPop(ctx, timeout, taskQueueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeuing from %s: %w", taskQueueKey, err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply shape: %d elements", len(result))
	}

	var msg types.QueueMessage
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, fmt.Errorf("parsing queue message: %w", err)
	}
	return &msg, nil
}

// QueueLength reports the current depth of the work queue.
func (c *Client) QueueLength(ctx context.Context) (int64, error) {
	n, err := c.rdb.LLen(ctx, taskQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("reading queue length: %w", err)
	}
	return n, nil
}

// SetTaskMetadata writes fields into the task's metadata hash and
// refreshes its TTL, matching update_task_metadata + set_task_expiry.
func (c *Client) SetTaskMetadata(ctx context.Context, taskID string, fields map[string]string) error {
	key := taskDataKeyPrefix + taskID
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	if err := c.rdb.HSet(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("updating metadata for task %s: %w", taskID, err)
	}
	if err := c.rdb.Expire(ctx, key, taskMetadataTTL).Err(); err != nil {
		return fmt.Errorf("setting expiry for task %s: %w", taskID, err)
	}
	return nil
}

// GetTaskMetadata reads a task's metadata hash, returning a nil map
// (not an error) if the hash does not exist or has expired.
func (c *Client) GetTaskMetadata(ctx context.Context, taskID string) (map[string]string, error) {
	data, err := c.rdb.HGetAll(ctx, taskDataKeyPrefix+taskID).Result()
	if err != nil {
		return nil, fmt.Errorf("reading metadata for task %s: %w", taskID, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// PublishTaskUpdate publishes a status-change payload to the
// task_updates channel, matching publish_task_update.
func (c *Client) PublishTaskUpdate(ctx context.Context, update types.TaskUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshaling task update: %w", err)
	}
	if err := c.rdb.Publish(ctx, taskUpdatesChannel, payload).Err(); err != nil {
		return fmt.Errorf("publishing task update for %s: %w", update.TaskID, err)
	}
	return nil
}

// PublishUserNotification publishes to both the general notifications
// channel and the user-specific channel, matching publish_notification's
// dual-publish behavior.
func (c *Client) PublishUserNotification(ctx context.Context, userID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}
	if err := c.rdb.Publish(ctx, notificationsChannel, data).Err(); err != nil {
		return fmt.Errorf("publishing to notifications channel: %w", err)
	}
	if userID != "" {
		userChannel := userNotificationsChanPrefix + userID
		if err := c.rdb.Publish(ctx, userChannel, data).Err(); err != nil {
			return fmt.Errorf("publishing to %s: %w", userChannel, err)
		}
	}
	return nil
}

// SubscribeTaskUpdates returns a channel of decoded TaskUpdate payloads
// from the task_updates channel, draining a redis.PubSub internally so
// callers never see the raw client (spec.md §9's QueueBackend
// capability model: channel-based subscription, not raw client
// exposure). The returned close func unsubscribes and stops the drain
// goroutine; the channel is closed once draining stops. Malformed
// payloads are dropped rather than surfaced, since one bad message
// must not wedge every other subscriber's stream.
func (c *Client) SubscribeTaskUpdates(ctx context.Context) (<-chan types.TaskUpdate, func() error, error) {
	pubsub := c.rdb.Subscribe(ctx, taskUpdatesChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribing to %s: %w", taskUpdatesChannel, err)
	}

	out := make(chan types.TaskUpdate)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var update types.TaskUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				continue
			}
			select {
			case out <- update:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, pubsub.Close, nil
}

// SetWorkerReady sets the per-worker readiness key a Worker writes
// once its model has finished loading (spec.md §4.6 Init step).
func (c *Client) SetWorkerReady(ctx context.Context, workerID string) error {
	key := fmt.Sprintf(workerReadyKeyFmt, workerID)
	if err := c.rdb.Set(ctx, key, "1", workerReadyTTL).Err(); err != nil {
		return fmt.Errorf("setting ready key for worker %s: %w", workerID, err)
	}
	return nil
}

// WorkerReady reports whether a worker's readiness key is currently
// set, used by the Pool Manager's sequential-spawn wait.
func (c *Client) WorkerReady(ctx context.Context, workerID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, fmt.Sprintf(workerReadyKeyFmt, workerID)).Result()
	if err != nil {
		return false, fmt.Errorf("checking ready key for worker %s: %w", workerID, err)
	}
	return n > 0, nil
}

// SetWorkersCount heartbeats the intended pool size so other
// components can observe it, per spec.md §9's documented staleness
// caveat relative to the 5s monitor cadence.
func (c *Client) SetWorkersCount(ctx context.Context, n int) error {
	if err := c.rdb.Set(ctx, workersCountKey, n, workersCountTTL).Err(); err != nil {
		return fmt.Errorf("heartbeating workers count: %w", err)
	}
	return nil
}

// WorkersCount reads the last heartbeated pool size, or 0 if the key
// has expired.
func (c *Client) WorkersCount(ctx context.Context) (int, error) {
	n, err := c.rdb.Get(ctx, workersCountKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading workers count: %w", err)
	}
	return n, nil
}

// Ping verifies the Redis connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying Redis connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

var _ Bus = (*Client)(nil)
