// Package bustest provides an in-memory Bus fake for tests, standing
// in for alicebob/miniredis (not present in this module's dependency
// pack) behind the same narrow bus.Bus interface the teacher's raft
// FSM pattern uses for storage.Store.
package bustest

import (
	"context"
	"sync"
	"time"

	"github.com/prismlabs/prism/pkg/bus"
	"github.com/prismlabs/prism/pkg/types"
)

// Fake is a goroutine-safe, in-memory implementation of bus.Bus.
type Fake struct {
	mu sync.Mutex

	queue []types.QueueMessage

	taskMetadata map[string]map[string]string

	TaskUpdates       []types.TaskUpdate
	UserNotifications []UserNotification

	workerReady  map[string]bool
	workersCount int

	subscribers []chan types.TaskUpdate
}

// UserNotification records one PublishUserNotification call.
type UserNotification struct {
	UserID  string
	Payload any
}

// New returns an empty Fake ready for use.
func New() *Fake {
	return &Fake{
		taskMetadata: make(map[string]map[string]string),
		workerReady:  make(map[string]bool),
	}
}

func (f *Fake) Enqueue(_ context.Context, msg types.QueueMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, msg)
	return nil
}

func (f *Fake) EnqueueBatch(_ context.Context, msgs []types.QueueMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, msgs...)
	return nil
}

func (f *Fake) Dequeue(_ context.Context, _ time.Duration) (*types.QueueMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, nil
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return &msg, nil
}

func (f *Fake) QueueLength(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.queue)), nil
}

func (f *Fake) SetTaskMetadata(_ context.Context, taskID string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.taskMetadata[taskID]
	if !ok {
		m = make(map[string]string)
		f.taskMetadata[taskID] = m
	}
	for k, v := range fields {
		m[k] = v
	}
	return nil
}

func (f *Fake) GetTaskMetadata(_ context.Context, taskID string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.taskMetadata[taskID]
	if !ok {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) PublishTaskUpdate(_ context.Context, update types.TaskUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TaskUpdates = append(f.TaskUpdates, update)
	for _, sub := range f.subscribers {
		select {
		case sub <- update:
		default:
		}
	}
	return nil
}

// SubscribeTaskUpdates registers a buffered channel that receives every
// subsequent PublishTaskUpdate call, mirroring the real Client's
// redis.PubSub-backed fan-out without a Redis dependency.
func (f *Fake) SubscribeTaskUpdates(_ context.Context) (<-chan types.TaskUpdate, func() error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan types.TaskUpdate, 16)
	f.subscribers = append(f.subscribers, ch)
	closeFn := func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, sub := range f.subscribers {
			if sub == ch {
				f.subscribers = append(f.subscribers[:i], f.subscribers[i+1:]...)
				close(ch)
				break
			}
		}
		return nil
	}
	return ch, closeFn, nil
}

func (f *Fake) PublishUserNotification(_ context.Context, userID string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UserNotifications = append(f.UserNotifications, UserNotification{UserID: userID, Payload: payload})
	return nil
}

func (f *Fake) SetWorkerReady(_ context.Context, workerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workerReady[workerID] = true
	return nil
}

func (f *Fake) WorkerReady(_ context.Context, workerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.workerReady[workerID], nil
}

func (f *Fake) SetWorkersCount(_ context.Context, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workersCount = n
	return nil
}

func (f *Fake) WorkersCount(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.workersCount, nil
}

func (f *Fake) Ping(_ context.Context) error { return nil }
func (f *Fake) Close() error                 { return nil }

var _ bus.Bus = (*Fake)(nil)
