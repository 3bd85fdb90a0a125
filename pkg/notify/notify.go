package notify

import (
	"context"
	"sync"

	"github.com/prismlabs/prism/pkg/types"
)

// Subscriber is a channel that receives task update events.
type Subscriber chan types.TaskUpdate

// Broker fans a single stream of TaskUpdates out to many local
// subscribers. One Broker normally sits behind one
// bus.Bus.SubscribeTaskUpdates call (Relay below drives that), letting
// many local CLI/HTTP clients share a single Redis subscription
// instead of one each.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]bool
}

// NewBroker returns an empty Broker ready for use.
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[Subscriber]bool)}
}

// Subscribe registers a new subscription and returns its channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 32)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Publish fans update out to every current subscriber. A subscriber
// whose buffer is full misses the update rather than blocking the
// others; callers that need guaranteed delivery should poll
// GetTaskMetadata instead (notifications are best-effort, spec.md §6).
func (b *Broker) Publish(update types.TaskUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- update:
		default:
		}
	}
}

// SubscriberCount reports the number of active subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// TaskUpdateSource is the subset of bus.Bus a Relay needs: something
// that can hand back a channel of TaskUpdates and a way to stop it.
type TaskUpdateSource interface {
	SubscribeTaskUpdates(ctx context.Context) (<-chan types.TaskUpdate, func() error, error)
}

// Relay bridges one bus.Bus Redis subscription into a Broker so many
// local subscribers (an admin CLI's watch command, a notification
// gateway's SSE handlers) can share it instead of each opening their
// own Redis subscription.
type Relay struct {
	broker *Broker
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewRelay returns a Relay publishing to broker.
func NewRelay(broker *Broker) *Relay {
	return &Relay{
		broker: broker,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start subscribes to src's task updates and republishes each one to
// the Relay's Broker until Stop is called or ctx is done.
func (r *Relay) Start(ctx context.Context, src TaskUpdateSource) error {
	updates, closeSub, err := src.SubscribeTaskUpdates(ctx)
	if err != nil {
		return err
	}

	go func() {
		defer close(r.doneCh)
		defer closeSub()
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				r.broker.Publish(update)
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop halts the relay goroutine and waits for it to exit.
func (r *Relay) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// Broker returns the Broker this Relay publishes to.
func (r *Relay) Broker() *Broker {
	return r.broker
}
