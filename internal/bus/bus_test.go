package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/finsight/internal/domain"
)

func waitFor(t *testing.T, ch <-chan *domain.Message) *domain.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		got := make(chan *domain.Message, 1)
		_, err := bus.Subscribe(ctx, "test.topic", func(ctx context.Context, msg *domain.Message) error {
			got <- msg
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		if err := bus.Publish(ctx, "test.topic", []byte("hello")); err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		msg := waitFor(t, got)
		if string(msg.Payload) != "hello" {
			t.Errorf("expected payload 'hello', got '%s'", string(msg.Payload))
		}
		if msg.Topic != "test.topic" {
			t.Errorf("expected topic 'test.topic', got '%s'", msg.Topic)
		}
		if msg.ID == "" {
			t.Error("expected message ID")
		}
	})

	t.Run("TopicIsolation", func(t *testing.T) {
		var other atomic.Int32
		got := make(chan *domain.Message, 1)

		bus.Subscribe(ctx, "isolation.a", func(ctx context.Context, msg *domain.Message) error {
			got <- msg
			return nil
		})
		bus.Subscribe(ctx, "isolation.b", func(ctx context.Context, msg *domain.Message) error {
			other.Add(1)
			return nil
		})

		bus.Publish(ctx, "isolation.a", []byte("a"))
		waitFor(t, got)
		time.Sleep(20 * time.Millisecond)

		if other.Load() != 0 {
			t.Errorf("subscriber on another topic received %d messages", other.Load())
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var count atomic.Int32
		sub, err := bus.Subscribe(ctx, "unsub.topic", func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}
		if err := sub.Unsubscribe(); err != nil {
			t.Fatalf("unsubscribe failed: %v", err)
		}

		bus.Publish(ctx, "unsub.topic", []byte("ignored"))
		time.Sleep(20 * time.Millisecond)

		if count.Load() != 0 {
			t.Errorf("expected no deliveries after unsubscribe, got %d", count.Load())
		}

		bus.mu.RLock()
		n := len(bus.subscriptions["unsub.topic"])
		bus.mu.RUnlock()
		if n != 0 {
			t.Errorf("expected subscription removed, %d remain", n)
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		got := make(chan *domain.Message, 3)
		for i := 0; i < 3; i++ {
			bus.Subscribe(ctx, "multi.topic", func(ctx context.Context, msg *domain.Message) error {
				got <- msg
				return nil
			})
		}

		bus.Publish(ctx, "multi.topic", []byte("fan-out"))
		for i := 0; i < 3; i++ {
			waitFor(t, got)
		}
	})

	t.Run("HandlerErrorDoesNotStopDelivery", func(t *testing.T) {
		got := make(chan *domain.Message, 2)
		bus.Subscribe(ctx, "failing.topic", func(ctx context.Context, msg *domain.Message) error {
			got <- msg
			return errors.New("boom")
		})

		bus.Publish(ctx, "failing.topic", []byte("1"))
		bus.Publish(ctx, "failing.topic", []byte("2"))
		waitFor(t, got)
		waitFor(t, got)
	})

	t.Run("Ping", func(t *testing.T) {
		if err := bus.Ping(ctx); err != nil {
			t.Errorf("ping failed: %v", err)
		}
	})

	t.Run("SubscriptionTopic", func(t *testing.T) {
		sub, _ := bus.Subscribe(ctx, "my.topic", func(ctx context.Context, msg *domain.Message) error {
			return nil
		})
		if sub.Topic() != "my.topic" {
			t.Errorf("expected topic 'my.topic', got '%s'", sub.Topic())
		}
	})
}

func TestPublishJSON(t *testing.T) {
	bus := NewChannelBus(10)
	defer bus.Close()

	ctx := context.Background()
	got := make(chan *domain.Message, 1)
	bus.Subscribe(ctx, domain.TopicTransactionCreated, func(ctx context.Context, msg *domain.Message) error {
		got <- msg
		return nil
	})

	event := domain.TransactionEvent{TransactionID: "tx-1", UserID: "user-1", Type: domain.TypeExpense}
	if err := PublishJSON(ctx, bus, domain.TopicTransactionCreated, event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	var decoded domain.TransactionEvent
	if err := json.Unmarshal(waitFor(t, got).Payload, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.TransactionID != "tx-1" || decoded.UserID != "user-1" {
		t.Errorf("unexpected event: %+v", decoded)
	}
}

func TestChannelBusClose(t *testing.T) {
	bus := NewChannelBus(10)
	ctx := context.Background()

	bus.Subscribe(ctx, "close.topic", func(ctx context.Context, msg *domain.Message) error {
		return nil
	})

	if err := bus.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}

	if err := bus.Publish(ctx, "close.topic", []byte("x")); err == nil {
		t.Error("expected error publishing to closed bus")
	}
	if _, err := bus.Subscribe(ctx, "close.topic", nil); err == nil {
		t.Error("expected error subscribing to closed bus")
	}
	if err := bus.Ping(ctx); err == nil {
		t.Error("expected ping error on closed bus")
	}
}

func TestNewBus(t *testing.T) {
	t.Run("Channel", func(t *testing.T) {
		b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 10})
		if err != nil {
			t.Fatalf("failed to create channel bus: %v", err)
		}
		defer b.Close()

		if _, ok := b.(*ChannelBus); !ok {
			t.Errorf("expected *ChannelBus, got %T", b)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
			t.Error("expected error for unsupported bus type")
		}
	})
}

func TestChannelBusHighLoad(t *testing.T) {
	bus := NewChannelBus(10000)
	defer bus.Close()

	ctx := context.Background()
	const total = 1000

	var received atomic.Int32
	done := make(chan struct{})
	bus.Subscribe(ctx, "load.topic", func(ctx context.Context, msg *domain.Message) error {
		if received.Add(1) == total {
			close(done)
		}
		return nil
	})

	for i := 0; i < total; i++ {
		if err := bus.Publish(ctx, "load.topic", []byte("x")); err != nil {
			t.Fatalf("publish %d failed: %v", i, err)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("received %d of %d messages", received.Load(), total)
	}
}
