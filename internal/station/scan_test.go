package station

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestPipelineNormalizesAndRejectsEmpty(t *testing.T) {
	t.Parallel()
	p := NewPipeline()

	if p.Publish("   ") {
		t.Error("whitespace-only candidate must be rejected")
	}
	if p.Publish("") {
		t.Error("empty candidate must be rejected")
	}
	if !p.Publish("  ticket-123  ") {
		t.Fatal("trimmed candidate must be accepted")
	}

	got, err := p.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != "ticket-123" {
		t.Errorf("Next: got %q, want %q", got, "ticket-123")
	}
}

func TestPipelineDropsWhenSlotFull(t *testing.T) {
	t.Parallel()
	p := NewPipeline()

	if !p.Publish("first") {
		t.Fatal("first candidate must be accepted")
	}
	// A held-up QR code streaming repeated frames must not queue.
	for i := 0; i < 10; i++ {
		if p.Publish("repeat") {
			t.Fatal("candidate accepted while slot full")
		}
	}
	if got := p.Dropped(); got != 10 {
		t.Errorf("Dropped: got %d, want 10", got)
	}
}

func TestPipelinePauseDropsAndDiscardsStale(t *testing.T) {
	t.Parallel()
	p := NewPipeline()

	p.Publish("stale")
	p.Pause()

	if p.Publish("during-pause") {
		t.Error("candidate accepted while paused")
	}

	p.Resume()
	// The stale pre-pause candidate must be gone: Next should block until a
	// fresh candidate arrives.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if got, err := p.Next(ctx); err == nil {
		t.Fatalf("Next returned stale candidate %q, want timeout", got)
	}

	p.Publish("fresh")
	got, err := p.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != "fresh" {
		t.Errorf("Next: got %q, want %q", got, "fresh")
	}
}

func TestPipelinePauseExcludesConcurrentPublishes(t *testing.T) {
	t.Parallel()
	p := NewPipeline()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ctx.Err() == nil {
			p.Publish("candidate")
		}
	}()

	// Once Pause returns, nothing may sit in the slot until Resume, no
	// matter how Publish calls interleave with it.
	for i := 0; i < 500; i++ {
		p.Pause()
		for j := 0; j < 3; j++ {
			runtime.Gosched()
			if len(p.ch) != 0 {
				t.Fatal("candidate deposited while paused")
			}
		}
		p.Resume()
	}

	cancel()
	<-done
}

func TestReaderSourcePublishesLines(t *testing.T) {
	t.Parallel()
	p := NewPipeline()
	src := &ReaderSource{R: strings.NewReader("abc\n")}

	if err := src.Run(context.Background(), p); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := p.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != "abc" {
		t.Errorf("Next: got %q, want %q", got, "abc")
	}
}
