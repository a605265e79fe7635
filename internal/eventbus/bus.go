// Package eventbus is an in-process, synchronous, best-effort pub/sub
// bus (spec §4.11, §9, C11). It simplifies the teacher's
// internal/stream/bus.go EventBus interface down to the single-process
// shape this pipeline actually needs: no brokers, partitions, consumer
// groups, or dead-letter queues, since every publisher and subscriber
// lives in the same orchestrator process.
package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Event types emitted across the pipeline (spec §6).
const (
	TopicBootstrapProgress  = "bootstrap.progress"
	TopicBootstrapDone      = "bootstrap.done"
	TopicBootstrapFailed    = "bootstrap.failed"
	TopicResolverUpdated    = "resolver.updated"
	TopicAlertNew           = "alert.new"
	TopicSignalNew          = "signal.new"
	TopicSignalStateChanged = "signal.state_changed"
)

// Message is the teacher's Message shape trimmed to what a
// single-process bus needs: no partition/offset, since there is no
// broker assigning either.
type Message struct {
	Topic     string
	Key       string
	Payload   interface{}
	Timestamp time.Time
}

// Handler processes one message. A handler error is logged but never
// stops delivery to the other subscribers of the same topic — this is
// a best-effort bus, not an at-least-once queue.
type Handler func(ctx context.Context, msg Message) error

// HealthStatus mirrors the teacher's health-report shape, trimmed to
// the fields a single-process bus can actually report.
type HealthStatus struct {
	Healthy      bool
	Started      bool
	ActiveTopics int
	LastCheck    time.Time
}

// Bus is the EventBus implementation (spec §4.11: Publish/Subscribe/
// Start/Stop/Health).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	started     bool
}

func New() *Bus {
	return &Bus{subscribers: map[string][]Handler{}}
}

func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = true
	return nil
}

func (b *Bus) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = false
	return nil
}

// Subscribe registers handler for topic. group is accepted for
// interface parity with the teacher's consumer-group concept but is
// unused: a single-process bus delivers every message to every
// subscribed handler, there is no competing-consumer semantics to
// partition by group.
func (b *Bus) Subscribe(topic, group string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], handler)
}

// Publish delivers msg synchronously to every handler subscribed to
// topic. Delivery is best-effort: a handler error is logged and does
// not block or fail delivery to the remaining handlers.
func (b *Bus) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	msg := Message{Topic: topic, Key: key, Payload: payload, Timestamp: time.Now().UTC()}
	for _, h := range handlers {
		if err := h(ctx, msg); err != nil {
			log.Warn().Str("topic", topic).Str("key", key).Err(err).Msg("eventbus: subscriber handler failed")
		}
	}
	return nil
}

func (b *Bus) Health() HealthStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return HealthStatus{
		Healthy:      true,
		Started:      b.started,
		ActiveTopics: len(b.subscribers),
		LastCheck:    time.Now().UTC(),
	}
}
