package audio

import (
	"context"
	"encoding/binary"
	"math"
	"time"
)

const (
	SampleRate   = 16000
	FrameSamples = 512 // 32ms, also porcupine's frame length
)

// FrameDuration is the wall-clock length of one frame.
const FrameDuration = time.Duration(FrameSamples) * time.Second / SampleRate

// Frame is mono PCM at SampleRate, float32 in [-1, 1].
type Frame []float32

// Stream is an open capture handle. Read blocks for at most one frame.
type Stream interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// Source hands out exclusive capture handles.
type Source interface {
	Open() (Stream, error)
}

func (f Frame) RMS() float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}

func (f Frame) Int16() []int16 {
	out := make([]int16, len(f))
	for i, x := range f {
		v := float64(x) * 32767
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

// PCM16 returns little-endian signed 16-bit bytes.
func (f Frame) PCM16() []byte {
	out := make([]byte, len(f)*2)
	for i, s := range f.Int16() {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func FromInt16(pcm []int16) Frame {
	out := make(Frame, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Split cuts pcm into FrameSamples-sized frames, zero-padding the tail.
func Split(pcm []float32) []Frame {
	var frames []Frame
	for off := 0; off < len(pcm); off += FrameSamples {
		f := make(Frame, FrameSamples)
		copy(f, pcm[off:min(off+FrameSamples, len(pcm))])
		frames = append(frames, f)
	}
	return frames
}
