package events

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

// connectPair returns a publisher and subscriber on a fresh embedded server.
func connectPair(t *testing.T) (*NATSPublisher, *NATSSubscriber) {
	t.Helper()
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	t.Cleanup(func() { _ = pub.Close() })
	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })
	return pub, sub
}

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestNATSSubscriber_ReceivesMessages(t *testing.T) {
	pub, sub := connectPair(t)

	ch, cancel, err := sub.Subscribe("canvas.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	if err := pub.conn.Publish("canvas.widget.added", []byte(`{"id":"1"}`)); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	pub.conn.Flush()

	msg := receive(t, ch)
	if string(msg.Data) != `{"id":"1"}` {
		t.Errorf("got %q, want %q", msg.Data, `{"id":"1"}`)
	}
	if msg.Topic != "canvas.widget.added" {
		t.Errorf("got topic %q", msg.Topic)
	}
	if msg.Dashboard != "" {
		t.Errorf("got dashboard %q for an untagged payload", msg.Dashboard)
	}
}

func TestNATSSubscriber_DashboardFromHeader(t *testing.T) {
	pub, sub := connectPair(t)

	ch, cancel, err := sub.Subscribe("canvas.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	err = pub.Publish(context.Background(), TopicValueChanged, ValueChanged{DashboardID: "db-1", ControlID: "w-c"})
	if err != nil {
		t.Fatalf("publishing: %v", err)
	}
	pub.conn.Flush()

	if msg := receive(t, ch); msg.Dashboard != "db-1" {
		t.Errorf("got dashboard %q, want db-1", msg.Dashboard)
	}
}

func TestNATSSubscriber_HeaderWinsOverPayload(t *testing.T) {
	pub, sub := connectPair(t)

	ch, cancel, err := sub.Subscribe("canvas.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	msg := nats.NewMsg("canvas.widget.updated")
	msg.Header.Set(DashboardHeader, "db-header")
	msg.Data = []byte(`{"dashboard_id":"db-payload"}`)
	if err := pub.conn.PublishMsg(msg); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	pub.conn.Flush()

	if got := receive(t, ch); got.Dashboard != "db-header" {
		t.Errorf("got dashboard %q, want db-header", got.Dashboard)
	}
}

func TestNATSSubscriber_CountsDropped(t *testing.T) {
	pub, sub := connectPair(t)

	_, cancel, err := sub.Subscribe("canvas.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		_ = pub.conn.Publish("canvas.widget.added", []byte(`{}`))
	}
	pub.conn.Flush()

	deadline := time.Now().Add(time.Second)
	for sub.Dropped() < 10 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := sub.Dropped(); got != 10 {
		t.Errorf("Dropped() = %d, want 10", got)
	}
}

func TestNATSSubscriber_Cancel(t *testing.T) {
	url := startTestNATS(t)

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe("canvas.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	cancel()

	// Channel should be closed.
	_, ok := <-ch
	if ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}

func TestNATSSubscriber_WildcardTopicMatching(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe("canvas.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	topics := []string{"canvas.widget.added", "canvas.widget.updated", "canvas.layout.changed"}
	for i, topic := range topics {
		data := []byte(`{"n":` + string(rune('0'+i)) + `}`)
		if err := pub.conn.Publish(topic, data); err != nil {
			t.Fatalf("publishing to %s: %v", topic, err)
		}
	}
	pub.conn.Flush()

	for i := range len(topics) {
		select {
		case msg := <-ch:
			if msg.Topic != topics[i] {
				t.Errorf("message %d topic = %q, want %q", i, msg.Topic, topics[i])
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestNATSSubscriber_ImplementsSubscriber(t *testing.T) {
	var _ Subscriber = (*NATSSubscriber)(nil)
}

func TestNATSSubscriber_DoubleCancel(t *testing.T) {
	url := startTestNATS(t)

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	_, cancel, err := sub.Subscribe("canvas.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	// Calling cancel twice should not panic.
	cancel()
	cancel()
}

func TestNATSSubscriber_CancelDuringMessages(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe("canvas.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	// Publish 100 messages concurrently with cancel.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = pub.conn.Publish("canvas.widget.added", []byte(`{"id":"x"}`))
		}
		pub.conn.Flush()
	}()

	// Cancel while messages are being sent -- must not panic.
	cancel()
	<-done

	// Channel should be closed.
	_, ok := <-ch
	if ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}

func TestNATSSubscriber_ReconnectHandler(t *testing.T) {
	url := startTestNATS(t)

	reconnected := make(chan struct{}, 1)
	sub, err := NewNATSSubscriber(url,
		nats.ReconnectHandler(func(_ *nats.Conn) {
			select {
			case reconnected <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	// Verify the handler option was accepted (connection is alive).
	if !sub.conn.IsConnected() {
		t.Fatal("expected subscriber to be connected")
	}
}
