package bus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"

	"brothereye/internal/assistant"
)

type hub struct {
	srv   *httptest.Server
	got   chan Message
	conns atomic.Int32
	// dropFirst closes the first connection after one message.
	dropFirst bool
	greet     *Message
}

func newHub(t *testing.T, h *hub) *hub {
	h.got = make(chan Message, 256)
	up := ws.Upgrader{}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := h.conns.Add(1)

		if h.greet != nil {
			conn.WriteJSON(h.greet)
		}
		for {
			var m Message
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			h.got <- m
			if h.dropFirst && n == 1 {
				return
			}
		}
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *hub) url() string { return "ws" + strings.TrimPrefix(h.srv.URL, "http") }

func (h *hub) next(t *testing.T) Message {
	t.Helper()
	select {
	case m := <-h.got:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("hub got nothing")
		return Message{}
	}
}

func run(t *testing.T, b *Bus) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestMirrorsEvents(t *testing.T) {
	h := newHub(t, &hub{})
	b := New(Config{URL: h.url(), Reconn: 10 * time.Millisecond})
	run(t, b)

	b.Publish(assistant.Event{Kind: assistant.EventTransition, State: assistant.ActiveListening, Message: "listening"})
	b.Publish(assistant.Event{Kind: assistant.EventUtterance, State: assistant.Processing, Text: "what time is it"})
	b.Publish(assistant.Event{Kind: assistant.EventChunk, State: assistant.Processing, Chunk: assistant.Chunk{Text: "It's noon.", Final: true}})

	m := h.next(t)
	if m.Kind != KindTransition || m.State != "listening" || m.From != "brothereye" || m.To != Broadcast {
		t.Errorf("transition = %+v", m)
	}
	if m = h.next(t); m.Kind != KindUtterance || m.Content != "what time is it" {
		t.Errorf("utterance = %+v", m)
	}
	if m = h.next(t); m.Kind != KindChunk || m.Content != "It's noon." || !m.Final {
		t.Errorf("chunk = %+v", m)
	}
}

func TestReconnects(t *testing.T) {
	h := newHub(t, &hub{dropFirst: true})
	b := New(Config{URL: h.url(), Reconn: 10 * time.Millisecond})
	run(t, b)

	b.Publish(assistant.Event{Kind: assistant.EventUtterance, Text: "one"})
	if m := h.next(t); m.Content != "one" {
		t.Fatalf("first = %+v", m)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.conns.Load() < 2 && time.Now().Before(deadline) {
		b.Publish(assistant.Event{Kind: assistant.EventUtterance, Text: "two"})
		time.Sleep(20 * time.Millisecond)
	}
	if h.conns.Load() < 2 {
		t.Fatal("bus never reconnected")
	}
	if m := h.next(t); m.Content != "two" {
		t.Errorf("after reconnect = %+v", m)
	}
}

func TestCommands(t *testing.T) {
	got := make(chan string, 1)
	h := newHub(t, &hub{greet: &Message{From: "hub", To: "brothereye", Kind: KindCommand, Content: "listen_now"}})
	b := New(Config{URL: h.url(), OnCommand: func(c string) { got <- c }})
	run(t, b)

	select {
	case c := <-got:
		if c != "listen_now" {
			t.Errorf("command = %q", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no command delivered")
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	b := New(Config{URL: "ws://127.0.0.1:1", Buffer: 2})
	done := make(chan struct{})
	go func() {
		for range 10 {
			b.Publish(assistant.Event{Kind: assistant.EventChunk})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked without a connection")
	}
	if len(b.out) != 2 {
		t.Errorf("queued = %d, want 2", len(b.out))
	}
}
