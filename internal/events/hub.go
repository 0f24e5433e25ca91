package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/mesa-backend/pkg/logger"
)

// Topics the hub carries. Services publish, SSE clients subscribe.
const (
	TopicOrders        = "orders"
	TopicKitchen       = "kitchen"
	TopicInventory     = "inventory"
	TopicNotifications = "notifications"
)

// Event is one message on a topic.
type Event struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Broker is the redis surface the hub fans out through. Going through redis
// even for local subscribers keeps every API instance seeing the same
// stream.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topics ...string) (*goredis.PubSub, error)
	ChannelKey(topic string) string
}

// Hub bridges redis pub/sub to in-process subscriber channels.
type Hub struct {
	broker Broker
	logg   *logger.Logger

	mu   sync.RWMutex
	subs map[uuid.UUID]*subscriber
}

type subscriber struct {
	topics map[string]bool
	ch     chan Event
}

// NewHub wires the event hub.
func NewHub(broker Broker, logg *logger.Logger) (*Hub, error) {
	if broker == nil {
		return nil, fmt.Errorf("event broker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Hub{
		broker: broker,
		logg:   logg,
		subs:   map[uuid.UUID]*subscriber{},
	}, nil
}

// Publish serializes the payload onto the topic. Delivery is best effort;
// a failed publish is logged, never surfaced to the business operation that
// triggered it.
func (h *Hub) Publish(ctx context.Context, topic string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logg.Error(ctx, "marshal event payload", err)
		return
	}
	if err := h.broker.Publish(ctx, topic, raw); err != nil {
		h.logg.Error(ctx, fmt.Sprintf("publish event on %s", topic), err)
	}
}

// Subscribe registers an in-process listener for the given topics. The
// returned cancel func must be called when the listener goes away.
func (h *Hub) Subscribe(topics ...string) (<-chan Event, func()) {
	sub := &subscriber{
		topics: map[string]bool{},
		ch:     make(chan Event, 16),
	}
	for _, topic := range topics {
		sub.topics[topic] = true
	}

	id := uuid.New()
	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub.ch)
		}
		h.mu.Unlock()
	}
	return sub.ch, cancel
}

// Run consumes the redis subscription and fans messages out to local
// subscribers until the context ends.
func (h *Hub) Run(ctx context.Context) error {
	pubsub, err := h.broker.Subscribe(ctx, TopicOrders, TopicKitchen, TopicInventory, TopicNotifications)
	if err != nil {
		return fmt.Errorf("subscribe event topics: %w", err)
	}
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.dispatch(Event{
				Topic:   h.topicFromChannel(msg.Channel),
				Payload: json.RawMessage(msg.Payload),
			})
		}
	}
}

func (h *Hub) dispatch(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if len(sub.topics) > 0 && !sub.topics[event.Topic] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// slow consumer drops the event rather than blocking the hub
		}
	}
}

func (h *Hub) topicFromChannel(channel string) string {
	prefix := h.broker.ChannelKey("")
	trimmed := strings.TrimPrefix(channel, prefix)
	return strings.TrimPrefix(trimmed, ":")
}
