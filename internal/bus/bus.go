// Package bus provides the in-process topic bus connecting the dispatcher to
// the inspectors (fan-out) and the inspectors to the notifier (fan-in).
package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agiledigital-labs/sleuthbot/internal/domain"
)

const publishTimeout = 10 * time.Second

// consumerQueue is one subscriber's ordered delivery channel.
type consumerQueue struct {
	name string
	ch   chan domain.Delivery
}

// InMemoryBus is a Go-channel based topic bus. Every consumer subscribed to a
// topic gets its own buffered queue and receives its own copy of each
// published payload, so one slow consumer only delays its own queue.
type InMemoryBus struct {
	queueSize int
	topics    map[string][]*consumerQueue
	mu        sync.RWMutex
	closed    bool
	logger    *slog.Logger
}

// New creates a bus with the given per-consumer queue size.
func New(queueSize int, logger *slog.Logger) *InMemoryBus {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &InMemoryBus{
		queueSize: queueSize,
		topics:    make(map[string][]*consumerQueue),
		logger:    logger,
	}
}

// Publish fans payload out to every consumer of topic. A full queue blocks up
// to 10 seconds before the copy for that consumer is dropped; other consumers
// still receive theirs.
func (b *InMemoryBus) Publish(topic string, payload []byte) error {
	// The read lock is held across the sends; Close takes the write lock, so
	// it cannot close a queue with a send in flight.
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("publish to closed bus on topic %q", topic)
	}
	queues := b.topics[topic]

	if len(queues) == 0 {
		b.logger.Warn("no consumers for topic, message dropped", "topic", topic)
		return nil
	}

	for _, q := range queues {
		d := domain.Delivery{Payload: payload, Attempt: 1}
		select {
		case q.ch <- d:
		default:
			// Queue full: wait with timeout instead of dropping.
			b.logger.Warn("consumer queue full, waiting...", "topic", topic, "consumer", q.name)
			timer := time.NewTimer(publishTimeout)
			select {
			case q.ch <- d:
				b.logger.Info("message delivered after wait", "topic", topic, "consumer", q.name)
			case <-timer.C:
				b.logger.Error("message dropped: consumer queue full for 10s",
					"topic", topic,
					"consumer", q.name,
				)
			}
			timer.Stop()
		}
	}
	return nil
}

// Subscribe registers consumer on topic and returns its delivery channel.
// Subscribing the same consumer twice returns the existing channel.
func (b *InMemoryBus) Subscribe(topic, consumer string) <-chan domain.Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, q := range b.topics[topic] {
		if q.name == consumer {
			return q.ch
		}
	}

	q := &consumerQueue{name: consumer, ch: make(chan domain.Delivery, b.queueSize)}
	b.topics[topic] = append(b.topics[topic], q)
	b.logger.Debug("consumer subscribed", "topic", topic, "consumer", consumer)
	return q.ch
}

// Close closes every consumer queue. Publish after Close returns an error.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, queues := range b.topics {
		for _, q := range queues {
			close(q.ch)
		}
	}
}
