// Package tts reads finished replies aloud.
package tts

import (
	log "log/slog"
	"strings"
	"sync"

	"brothereye/internal/assistant"
)

// Speaker is an assistant sink. It collects the chunks of a reply and
// speaks the whole reply once the final chunk arrives. A reply cut short
// by a transition is discarded.
type Speaker struct {
	say  func(text string) error
	lang string

	buf  strings.Builder
	busy sync.Mutex
	wg   sync.WaitGroup
}

func NewSpeaker(lang string) *Speaker {
	if lang == "" {
		lang = "en"
	}
	s := &Speaker{lang: lang}
	s.say = func(text string) error { return Say(text, s.lang) }
	return s
}

func (s *Speaker) Publish(e assistant.Event) {
	switch e.Kind {
	case assistant.EventTransition:
		if e.State != assistant.Processing {
			s.buf.Reset()
		}
	case assistant.EventChunk:
		s.buf.WriteString(e.Chunk.Text)
		if !e.Chunk.Final {
			return
		}
		text := strings.TrimSpace(s.buf.String())
		s.buf.Reset()
		if text == "" || !s.busy.TryLock() {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.busy.Unlock()
			if err := s.say(text); err != nil {
				log.Warn("Failed to voice out", "err", err)
			}
		}()
	}
}

// Wait blocks until the reply being spoken is done.
func (s *Speaker) Wait() { s.wg.Wait() }
