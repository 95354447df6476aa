package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tinygate/tinygate/internal/core/domain"
)

type recordingProcessor struct {
	mu     sync.Mutex
	byUser map[string][]string
	err    error
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{byUser: map[string][]string{}}
}

func (p *recordingProcessor) Process(_ context.Context, event domain.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byUser[event.Username] = append(p.byUser[event.Username], event.ID)
	return p.err
}

func TestDispatcher_PreservesPerUserOrder(t *testing.T) {
	proc := newRecordingProcessor()
	d := NewDispatcher(3, proc, zerolog.Nop())
	d.Start(context.Background())

	users := []string{"alice", "bob", "carol", "dave"}
	for i := 0; i < 50; i++ {
		for _, u := range users {
			if !d.Enqueue(domain.AuthEvent{ID: fmt.Sprintf("%s-%03d", u, i), Username: u}) {
				t.Fatalf("enqueue %s/%d dropped", u, i)
			}
		}
	}
	d.Close()

	for _, u := range users {
		got := proc.byUser[u]
		if len(got) != 50 {
			t.Fatalf("%s: expected 50 events, got %d", u, len(got))
		}
		for i, id := range got {
			if want := fmt.Sprintf("%s-%03d", u, i); id != want {
				t.Fatalf("%s: event %d out of order: got %s want %s", u, i, id, want)
			}
		}
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d := NewDispatcher(1, newRecordingProcessor(), zerolog.Nop())

	// Workers are not started, so the channel fills up.
	for i := 0; i < channelBuffer; i++ {
		if !d.Enqueue(domain.AuthEvent{Username: "alice"}) {
			t.Fatalf("event %d dropped before buffer was full", i)
		}
	}
	if d.Enqueue(domain.AuthEvent{Username: "alice"}) {
		t.Fatal("expected enqueue on a full channel to report a drop")
	}
	d.Close()
}

func TestDispatcher_EnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(2, newRecordingProcessor(), zerolog.Nop())
	d.Start(context.Background())
	d.Close()
	d.Close()

	if d.Enqueue(domain.AuthEvent{Username: "alice"}) {
		t.Fatal("expected enqueue after close to be rejected")
	}
}

func TestDispatcher_ProcessorErrorDoesNotStopWorker(t *testing.T) {
	proc := newRecordingProcessor()
	proc.err = errors.New("store down")
	d := NewDispatcher(1, proc, zerolog.Nop())
	d.Start(context.Background())

	for i := 0; i < 5; i++ {
		d.Enqueue(domain.AuthEvent{ID: fmt.Sprint(i), Username: "alice"})
	}
	d.Close()

	if n := len(proc.byUser["alice"]); n != 5 {
		t.Fatalf("expected every event to reach the processor, got %d", n)
	}
}

func TestShardIndex_Deterministic(t *testing.T) {
	d := NewDispatcher(8, newRecordingProcessor(), zerolog.Nop())
	first := d.shardIndex("alice")
	for i := 0; i < 10; i++ {
		if got := d.shardIndex("alice"); got != first {
			t.Fatalf("shard changed: %d != %d", got, first)
		}
	}
	if idx := d.shardIndex(""); idx < 0 || idx >= 8 {
		t.Fatalf("shard out of range: %d", idx)
	}
}
