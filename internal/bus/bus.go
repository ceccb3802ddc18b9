// Package bus mirrors assistant events to a websocket hub and accepts
// commands from it.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	log "log/slog"
	"time"

	ws "github.com/gorilla/websocket"

	"brothereye/internal/assistant"
)

const (
	KindTransition = "transition"
	KindUtterance  = "utterance"
	KindChunk      = "chunk"
	KindCommand    = "command"

	Broadcast = "ALL"
)

type Message struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	Kind    string    `json:"kind"`
	Content string    `json:"content"`
	State   string    `json:"state,omitempty"`
	Final   bool      `json:"final,omitempty"`
	Time    time.Time `json:"time"`
}

type Config struct {
	URL    string
	Shard  string
	Reconn time.Duration
	Buffer int
	// OnCommand receives the content of command messages addressed to
	// Shard or Broadcast. It runs on the reader goroutine.
	OnCommand func(string)
}

// Bus is an assistant sink. Publish never blocks: messages queue while
// the hub is unreachable and the newest are dropped once the queue is full.
type Bus struct {
	cfg Config
	out chan Message
}

func New(cfg Config) *Bus {
	if cfg.Shard == "" {
		cfg.Shard = "brothereye"
	}
	if cfg.Reconn <= 0 {
		cfg.Reconn = 2 * time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	return &Bus{cfg: cfg, out: make(chan Message, cfg.Buffer)}
}

func (b *Bus) Publish(e assistant.Event) {
	m := Message{
		From:  b.cfg.Shard,
		To:    Broadcast,
		Kind:  e.Kind.String(),
		State: e.State.String(),
		Time:  e.Time,
	}
	switch e.Kind {
	case assistant.EventTransition:
		m.Content = e.Message
	case assistant.EventUtterance:
		m.Content = e.Text
	case assistant.EventChunk:
		m.Content, m.Final = e.Chunk.Text, e.Chunk.Final
	}

	select {
	case b.out <- m:
	default:
		log.Warn("bus queue full, dropping event", "kind", m.Kind)
	}
}

// Run keeps a connection to the hub until ctx is done.
func (b *Bus) Run(ctx context.Context) error {
	log.Debug("init bus", "url", b.cfg.URL)
	for {
		conn, _, err := ws.DefaultDialer.DialContext(ctx, b.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("bus dial failed", "url", b.cfg.URL, "err", err)
			if !sleep(ctx, b.cfg.Reconn) {
				return nil
			}
			continue
		}

		log.Info("connected to bus", "url", b.cfg.URL)
		err = b.serve(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		log.Warn("bus connection lost, reconnecting", "err", err)
		if !sleep(ctx, b.cfg.Reconn) {
			return nil
		}
	}
}

func (b *Bus) serve(ctx context.Context, conn *ws.Conn) error {
	readErr := make(chan error, 1)
	go func() { readErr <- b.read(conn) }()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return ctx.Err()
		case err := <-readErr:
			return err
		case m := <-b.out:
			data, err := json.Marshal(m)
			if err != nil {
				log.Error("bus encode", "err", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				return err
			}
		}
	}
}

func (b *Bus) read(conn *ws.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if isClosed(err) {
				return errors.New("closed by hub")
			}
			return err
		}

		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			log.Warn("bus parse", "msg", string(data), "err", err)
			continue
		}
		if m.Kind != KindCommand || (m.To != b.cfg.Shard && m.To != Broadcast) {
			continue
		}
		if b.cfg.OnCommand != nil {
			b.cfg.OnCommand(m.Content)
		}
	}
}

func isClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
