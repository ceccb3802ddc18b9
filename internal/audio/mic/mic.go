package mic

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"brothereye/internal/audio"
)

var ErrBusy = errors.New("microphone already open")

// Microphone captures the default input device through portaudio.
type Microphone struct {
	mu   sync.Mutex
	open bool
}

func New() *Microphone { return &Microphone{} }

func (m *Microphone) Init() error {
	return portaudio.Initialize()
}

func (m *Microphone) Close() {
	portaudio.Terminate()
}

func (m *Microphone) Open() (audio.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.open {
		return nil, ErrBusy
	}

	buf := make([]float32, audio.FrameSamples)
	stream, err := portaudio.OpenDefaultStream(1, 0, audio.SampleRate, len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start input stream: %w", err)
	}

	m.open = true
	return &micStream{owner: m, stream: stream, buf: buf}, nil
}

type micStream struct {
	owner  *Microphone
	stream *portaudio.Stream
	buf    []float32
	once   sync.Once
}

func (s *micStream) Read(ctx context.Context) (audio.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return nil, fmt.Errorf("read input stream: %w", err)
	}

	out := make(audio.Frame, len(s.buf))
	copy(out, s.buf)
	return out, nil
}

func (s *micStream) Close() error {
	var err error
	s.once.Do(func() {
		err = errors.Join(s.stream.Stop(), s.stream.Close())

		s.owner.mu.Lock()
		s.owner.open = false
		s.owner.mu.Unlock()
	})
	return err
}
