package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"brothereye/internal/assistant"
)

type fakeDucker struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeDucker) Duck(context.Context) error    { f.add("duck"); return nil }
func (f *fakeDucker) Restore(context.Context) error { f.add("restore"); return nil }

func (f *fakeDucker) add(s string) {
	f.mu.Lock()
	f.calls = append(f.calls, s)
	f.mu.Unlock()
}

func (f *fakeDucker) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func waitFor(t *testing.T, f *fakeDucker, want string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for f.last() != want {
		if time.Now().After(deadline) {
			t.Fatalf("last call = %q, want %q", f.last(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDucking(t *testing.T) {
	f := &fakeDucker{}
	k := NewDucking(f)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		k.Run(ctx)
		close(done)
	}()

	k.Publish(assistant.Event{Kind: assistant.EventTransition, State: assistant.ActiveListening})
	waitFor(t, f, "duck")

	k.Publish(assistant.Event{Kind: assistant.EventChunk, State: assistant.Processing})
	k.Publish(assistant.Event{Kind: assistant.EventTransition, State: assistant.Processing})
	waitFor(t, f, "restore")

	k.Publish(assistant.Event{Kind: assistant.EventTransition, State: assistant.WakeWordListening})
	waitFor(t, f, "duck")

	cancel()
	<-done
	if f.last() != "restore" {
		t.Errorf("shutdown left volume ducked: %v", f.calls)
	}
}

func TestDuckingPublishNeverBlocks(t *testing.T) {
	k := NewDucking(&fakeDucker{})
	for range 5 {
		k.Publish(assistant.Event{Kind: assistant.EventTransition, State: assistant.ActiveListening})
		k.Publish(assistant.Event{Kind: assistant.EventTransition, State: assistant.Idle})
	}
	if down := <-k.want; down {
		t.Error("latest wanted level should be restored")
	}
}
