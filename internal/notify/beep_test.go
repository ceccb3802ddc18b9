package notify

import (
	"sync"
	"testing"

	"brothereye/internal/assistant"
)

type recorder struct {
	mu     sync.Mutex
	plays  int
	alerts []string
}

func newTestNotifier(r *recorder) *Notifier {
	return &Notifier{
		play: func() error {
			r.mu.Lock()
			r.plays++
			r.mu.Unlock()
			return nil
		},
		alert: func(_, msg string) error {
			r.mu.Lock()
			r.alerts = append(r.alerts, msg)
			r.mu.Unlock()
			return nil
		},
	}
}

func TestNotifierCues(t *testing.T) {
	cases := []struct {
		ev    assistant.Event
		plays int
		alert string
	}{
		{assistant.Event{Kind: assistant.EventTransition, State: assistant.ActiveListening}, 1, "Listening..."},
		{assistant.Event{Kind: assistant.EventTransition, State: assistant.WakeWordListening}, 0, "Waiting for the wake word"},
		{assistant.Event{Kind: assistant.EventTransition, State: assistant.Error, Message: "microphone busy"}, 0, "microphone busy"},
		{assistant.Event{Kind: assistant.EventTransition, State: assistant.Idle}, 0, ""},
		{assistant.Event{Kind: assistant.EventChunk, State: assistant.ActiveListening}, 0, ""},
	}

	for _, tc := range cases {
		var r recorder
		n := newTestNotifier(&r)
		n.Publish(tc.ev)
		n.Wait()

		if r.plays != tc.plays {
			t.Errorf("%v/%v: plays = %d, want %d", tc.ev.Kind, tc.ev.State, r.plays, tc.plays)
		}
		switch {
		case tc.alert == "" && len(r.alerts) != 0:
			t.Errorf("%v/%v: unexpected alert %v", tc.ev.Kind, tc.ev.State, r.alerts)
		case tc.alert != "" && (len(r.alerts) != 1 || r.alerts[0] != tc.alert):
			t.Errorf("%v/%v: alerts = %v, want %q", tc.ev.Kind, tc.ev.State, r.alerts, tc.alert)
		}
	}
}

func TestNotifierDropsWhileBusy(t *testing.T) {
	var r recorder
	n := newTestNotifier(&r)

	release := make(chan struct{})
	n.play = func() error {
		<-release
		return nil
	}

	listening := assistant.Event{Kind: assistant.EventTransition, State: assistant.ActiveListening}
	n.Publish(listening)
	n.Publish(listening)
	close(release)
	n.Wait()

	if len(r.alerts) != 1 {
		t.Errorf("alerts = %v, want one", r.alerts)
	}
}

func TestLoadChimeMissing(t *testing.T) {
	if _, err := LoadChime("/nonexistent/beep.mp3"); err == nil {
		t.Fatal("expected error")
	}
}
