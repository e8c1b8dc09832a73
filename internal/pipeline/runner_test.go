package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"gastobot/internal/bus"
	"gastobot/internal/domain"
)

func TestRunner_DeliversRepliesThroughBus(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := newHarness(t, 100, Config{})
	h.consents.grant("+5690000001")

	b := bus.New(10, logger)
	runner := NewRunner(h.pipeline, b, 2, logger)

	var mu sync.Mutex
	var replies []domain.OutboundMessage
	b.OnOutbound("whatsapp", func(msg domain.OutboundMessage) {
		mu.Lock()
		replies = append(replies, msg)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	b.Publish(inbound("m1", "help"))

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(replies)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no reply delivered before deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	got := replies[0]
	mu.Unlock()
	if got.Channel != "whatsapp" || got.SenderID != "+5690000001" {
		t.Fatalf("unexpected outbound %+v", got)
	}
	if !strings.Contains(got.Body, "Comandos") {
		t.Fatalf("expected help text, got %q", got.Body)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop on cancel")
	}
}

func TestRunner_StopsWhenBusCloses(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := newHarness(t, 100, Config{})

	b := bus.New(10, logger)
	runner := NewRunner(h.pipeline, b, 1, logger)

	done := make(chan struct{})
	go func() {
		runner.Run(context.Background())
		close(done)
	}()

	b.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop when the bus closed")
	}
}
