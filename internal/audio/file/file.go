// Package file replays a decoded audio file as a capture source.
package file

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"brothereye/internal/audio"
	"brothereye/pkg/audioconv"
)

var ErrBusy = errors.New("file source already open")

// Source decodes the file once and hands out one stream at a time.
// Every Open rewinds to the start. After the last frame the stream keeps
// yielding silence so that recognizers can run into their timeouts.
type Source struct {
	frames   []audio.Frame
	realtime bool

	mu   sync.Mutex
	open bool
}

func New(path string, realtime bool) (*Source, error) {
	pcm, err := audioconv.DecodeFile(path, audioconv.Options{})
	if err != nil {
		return nil, err
	}
	return FromPCM(pcm, realtime), nil
}

func FromPCM(pcm []float32, realtime bool) *Source {
	return &Source{frames: audio.Split(pcm), realtime: realtime}
}

func (s *Source) Open() (audio.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return nil, ErrBusy
	}
	s.open = true

	st := &stream{owner: s}
	if s.realtime {
		st.tick = time.NewTicker(audio.FrameDuration)
	}
	return st, nil
}

type stream struct {
	owner *Source
	pos   int
	tick  *time.Ticker
	once  sync.Once
}

func (st *stream) Read(ctx context.Context) (audio.Frame, error) {
	if st.tick != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-st.tick.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	if st.pos >= len(st.owner.frames) {
		if st.tick == nil && st.pos > len(st.owner.frames)+int(time.Minute/audio.FrameDuration) {
			return nil, io.EOF
		}
		st.pos++
		return make(audio.Frame, audio.FrameSamples), nil
	}

	f := st.owner.frames[st.pos]
	st.pos++
	return f, nil
}

func (st *stream) Close() error {
	st.once.Do(func() {
		if st.tick != nil {
			st.tick.Stop()
		}
		st.owner.mu.Lock()
		st.owner.open = false
		st.owner.mu.Unlock()
	})
	return nil
}
