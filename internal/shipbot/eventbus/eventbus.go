// Package eventbus is the in-process publish/subscribe bus that carries ledger
// and allocator notifications from the conversation core to observers such as the
// admin notifier. Delivery is best effort: a subscriber that does not keep up loses
// events instead of stalling the publisher.
package eventbus

import (
	"strings"
	"sync"
	"time"
)

// Topics published by the bot.
const (
	TopicRowCommitted       = "ledger.row.committed"
	TopicCommitFinished     = "ledger.commit.finished"
	TopicAllocationDegraded = "allocator.degraded"
)

// Event is one published message.
type Event struct {
	Topic string
	Data  any
}

type subscriber struct {
	topic string
	ch    chan Event

	mu     sync.Mutex
	closed bool
}

func (s *subscriber) send(ev Event, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if timeout <= 0 {
		select {
		case s.ch <- ev:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case s.ch <- ev:
		return true
	case <-t.C:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Bus routes events to subscribers by topic. Subscriptions may use "*" for a whole
// dot separated segment, "ledger.*.committed", or "*" alone for everything.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*subscriber
	nextID uint64
}

func New() *Bus {
	return &Bus{subs: make(map[string]map[uint64]*subscriber)}
}

// Subscribe returns a channel receiving events for topic and a function that ends
// the subscription and closes the channel.
func (b *Bus) Subscribe(topic string, bufferSize int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	sub := &subscriber{topic: topic, ch: make(chan Event, bufferSize)}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]*subscriber)
	}
	b.subs[topic][id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if m, ok := b.subs[topic]; ok {
				delete(m, id)
				if len(m) == 0 {
					delete(b.subs, topic)
				}
			}
			sub.close()
		})
	}
}

// Publish delivers data to every matching subscriber, waiting at most timeout per
// subscriber. It returns the number of subscribers that received the event.
func (b *Bus) Publish(topic string, data any, timeout time.Duration) int {
	ev := Event{Topic: topic, Data: data}

	b.mu.RLock()
	var targets []*subscriber
	for pattern, m := range b.subs {
		if !matchTopic(pattern, topic) {
			continue
		}
		for _, s := range m {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if s.send(ev, timeout) {
			delivered++
		}
	}
	return delivered
}

// Shutdown closes every subscription.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.subs {
		for _, s := range m {
			s.close()
		}
	}
	b.subs = make(map[string]map[uint64]*subscriber)
}

func matchTopic(pattern, topic string) bool {
	if pattern == "" || topic == "" {
		return false
	}
	if pattern == "*" || pattern == topic {
		return true
	}
	pp := strings.Split(pattern, ".")
	tp := strings.Split(topic, ".")
	if len(pp) != len(tp) {
		return false
	}
	for i := range pp {
		if pp[i] != "*" && pp[i] != tp[i] {
			return false
		}
	}
	return true
}
