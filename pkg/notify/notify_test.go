package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismlabs/prism/pkg/bus/bustest"
	"github.com/prismlabs/prism/pkg/notify"
	"github.com/prismlabs/prism/pkg/types"
)

func TestBrokerFansOutToEverySubscriber(t *testing.T) {
	b := notify.NewBroker()
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(types.TaskUpdate{TaskID: "t1", Status: "completed"})

	select {
	case update := <-sub1:
		assert.Equal(t, "t1", update.TaskID)
	case <-time.After(time.Second):
		t.Fatal("sub1 never received the update")
	}
	select {
	case update := <-sub2:
		assert.Equal(t, "t1", update.TaskID)
	case <-time.After(time.Second):
		t.Fatal("sub2 never received the update")
	}

	b.Unsubscribe(sub1)
	assert.Equal(t, 1, b.SubscriberCount())
	_, open := <-sub1
	assert.False(t, open, "unsubscribed channel must be closed")
}

func TestBrokerPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	b := notify.NewBroker()
	sub := b.Subscribe()

	for i := 0; i < 64; i++ {
		b.Publish(types.TaskUpdate{TaskID: "flood"})
	}
	// Publish must return even though sub's buffer (32) overflowed.
	assert.NotNil(t, sub)
}

func TestRelayBridgesBusSubscriptionIntoBroker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fakeBus := bustest.New()
	broker := notify.NewBroker()
	relay := notify.NewRelay(broker)
	require.NoError(t, relay.Start(ctx, fakeBus))
	defer relay.Stop()

	sub := broker.Subscribe()
	require.NoError(t, fakeBus.PublishTaskUpdate(ctx, types.TaskUpdate{TaskID: "t1", Status: "processing"}))

	select {
	case update := <-sub:
		assert.Equal(t, "t1", update.TaskID)
		assert.Equal(t, "processing", update.Status)
	case <-time.After(time.Second):
		t.Fatal("relay never republished the update")
	}
}
