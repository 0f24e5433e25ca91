package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mesa-backend/pkg/logger"
)

type fakeBroker struct {
	published map[string][][]byte
	failNext  bool
}

func (b *fakeBroker) Publish(_ context.Context, topic string, payload []byte) error {
	if b.failNext {
		b.failNext = false
		return errors.New("redis down")
	}
	if b.published == nil {
		b.published = map[string][][]byte{}
	}
	b.published[topic] = append(b.published[topic], payload)
	return nil
}

func (b *fakeBroker) Subscribe(context.Context, ...string) (*goredis.PubSub, error) {
	return nil, errors.New("not supported in tests")
}

func (b *fakeBroker) ChannelKey(topic string) string {
	if topic == "" {
		return "mesa:events"
	}
	return "mesa:events:" + topic
}

func newTestHub(t *testing.T) (*Hub, *fakeBroker) {
	t.Helper()
	broker := &fakeBroker{}
	hub, err := NewHub(broker, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return hub, broker
}

func TestPublishSerializesToBroker(t *testing.T) {
	hub, broker := newTestHub(t)

	hub.Publish(context.Background(), TopicOrders, map[string]string{"type": "order.opened"})

	require.Len(t, broker.published[TopicOrders], 1)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(broker.published[TopicOrders][0], &decoded))
	assert.Equal(t, "order.opened", decoded["type"])
}

func TestPublishSwallowsBrokerErrors(t *testing.T) {
	hub, broker := newTestHub(t)
	broker.failNext = true

	// must not panic or surface the error
	hub.Publish(context.Background(), TopicOrders, map[string]string{"type": "order.opened"})
	assert.Empty(t, broker.published[TopicOrders])
}

func TestDispatchFiltersByTopic(t *testing.T) {
	hub, _ := newTestHub(t)

	ordersCh, cancelOrders := hub.Subscribe(TopicOrders)
	defer cancelOrders()
	allCh, cancelAll := hub.Subscribe()
	defer cancelAll()

	hub.dispatch(Event{Topic: TopicKitchen, Payload: json.RawMessage(`{}`)})

	select {
	case event := <-allCh:
		assert.Equal(t, TopicKitchen, event.Topic)
	default:
		t.Fatal("subscriber without topic filter should receive everything")
	}
	select {
	case <-ordersCh:
		t.Fatal("orders subscriber should not receive kitchen events")
	default:
	}
}

func TestCancelClosesChannel(t *testing.T) {
	hub, _ := newTestHub(t)

	ch, cancel := hub.Subscribe(TopicOrders)
	cancel()
	cancel() // second cancel is a no-op

	_, open := <-ch
	assert.False(t, open)
}

func TestTopicFromChannel(t *testing.T) {
	hub, _ := newTestHub(t)
	assert.Equal(t, "orders", hub.topicFromChannel("mesa:events:orders"))
}
