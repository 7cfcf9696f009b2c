package events

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"
)

// subscriberBuffer is the per-subscription channel capacity. Messages
// arriving while it is full are dropped.
const subscriberBuffer = 64

// Message is one event received from the bus.
type Message struct {
	Topic     string
	// Dashboard is the dashboard the event belongs to, taken from the
	// DashboardHeader or, failing that, the payload. Empty when neither
	// names one.
	Dashboard string
	Data      []byte
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers messages whose subject matches topic, NATS
	// wildcards included. The returned cancel function unsubscribes and
	// closes the channel.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}

// NATSSubscriber subscribes to canvas events on NATS.
type NATSSubscriber struct {
	conn    *nats.Conn
	dropped atomic.Uint64
}

// NewNATSSubscriber connects to NATS. Extra options such as disconnect
// handlers are applied after the reconnect defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := connect(url, "canvas-subscriber", opts)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Dropped returns how many messages were discarded because a subscriber
// channel was full.
func (s *NATSSubscriber) Dropped() uint64 { return s.dropped.Load() }

// subscription guards a delivery channel against sends after cancel.
type subscription struct {
	mu     sync.Mutex
	ch     chan Message
	closed bool
	once   sync.Once
}

func (sub *subscription) deliver(m Message) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return true
	}
	select {
	case sub.ch <- m:
		return true
	default:
		return false
	}
}

func (sub *subscription) close() {
	sub.once.Do(func() {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		sub.closed = true
		for {
			select {
			case <-sub.ch:
			default:
				close(sub.ch)
				return
			}
		}
	})
}

// Subscribe implements Subscriber.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan Message, func(), error) {
	sub := &subscription{ch: make(chan Message, subscriberBuffer)}

	ns, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		if !sub.deliver(messageFromNATS(msg)) {
			if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
				slog.Warn("events: subscriber channel full, dropping", "topic", msg.Subject, "dropped", n)
			}
		}
	})
	if err != nil {
		sub.close()
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	// The subscription must reach the server before messages published on
	// other connections are routed to it.
	if err := s.conn.Flush(); err != nil {
		_ = ns.Unsubscribe()
		sub.close()
		return nil, nil, fmt.Errorf("flushing subscription to %s: %w", topic, err)
	}

	cancel := func() {
		_ = ns.Unsubscribe()
		sub.close()
	}
	return sub.ch, cancel, nil
}

// Close closes the connection. Open subscriptions stop receiving.
func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}

func messageFromNATS(msg *nats.Msg) Message {
	m := Message{Topic: msg.Subject, Data: msg.Data}
	if msg.Header != nil {
		m.Dashboard = msg.Header.Get(DashboardHeader)
	}
	if m.Dashboard == "" {
		m.Dashboard = PayloadDashboardID(msg.Data)
	}
	return m
}
