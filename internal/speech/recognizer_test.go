package speech

import (
	"context"
	"errors"
	"testing"
	"time"

	"brothereye/internal/audio"
)

type fakeTranscriber struct {
	text    string
	err     error
	calls   int
	samples int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, pcm []float32) (string, error) {
	f.calls++
	f.samples = len(pcm)
	return f.text, f.err
}

func level(v float32) audio.Frame {
	f := make(audio.Frame, audio.FrameSamples)
	for i := range f {
		f[i] = v
	}
	return f
}

var (
	quiet = level(0)
	loud  = level(0.2)
)

func limits() Limits {
	return Limits{
		SilenceTimeout: 10 * audio.FrameDuration,
		EndSilence:     3 * audio.FrameDuration,
		MaxPhrase:      20 * audio.FrameDuration,
	}
}

func feed(t *testing.T, r Recognizer, frames ...audio.Frame) (*Utterance, int) {
	t.Helper()
	for i, f := range frames {
		u, err := r.Consume(context.Background(), f)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if u != nil {
			return u, i
		}
	}
	return nil, -1
}

func repeat(f audio.Frame, n int) []audio.Frame {
	out := make([]audio.Frame, n)
	for i := range out {
		out[i] = f
	}
	return out
}

func TestSilenceTimeoutYieldsEmptyUtterance(t *testing.T) {
	tr := &fakeTranscriber{text: "never"}
	r := NewVADRecognizer(tr, limits())

	u, at := feed(t, r, repeat(quiet, 20)...)
	if u == nil {
		t.Fatal("no utterance after silence timeout")
	}
	if u.Transcript != "" {
		t.Errorf("transcript = %q, want empty", u.Transcript)
	}
	if at != 9 {
		t.Errorf("timed out at frame %d, want 9", at)
	}
	if tr.calls != 0 {
		t.Errorf("transcriber called %d times on silence", tr.calls)
	}

	if _, err := r.Consume(context.Background(), quiet); !errors.Is(err, ErrDone) {
		t.Errorf("Consume after finish err = %v, want ErrDone", err)
	}
}

func TestPhraseEndsOnTrailingSilence(t *testing.T) {
	tr := &fakeTranscriber{text: "  what time is it "}
	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewVADRecognizer(tr, limits()).WithClock(func() time.Time { return stamp })

	frames := append(repeat(quiet, 4), repeat(loud, 5)...)
	frames = append(frames, repeat(quiet, 10)...)

	u, _ := feed(t, r, frames...)
	if u == nil {
		t.Fatal("no utterance")
	}
	if u.Transcript != "what time is it" {
		t.Errorf("transcript = %q", u.Transcript)
	}
	if !u.Timestamp.Equal(stamp) {
		t.Errorf("timestamp = %v", u.Timestamp)
	}
	if tr.calls != 1 {
		t.Fatalf("transcriber calls = %d, want 1", tr.calls)
	}
	// preroll + speech + hang
	want := (4 + 5 + 3) * audio.FrameSamples
	if tr.samples != want {
		t.Errorf("samples = %d, want %d", tr.samples, want)
	}
}

func TestPhraseCappedAtMaxLength(t *testing.T) {
	tr := &fakeTranscriber{text: "long story"}
	r := NewVADRecognizer(tr, limits())

	u, at := feed(t, r, repeat(loud, 40)...)
	if u == nil {
		t.Fatal("no utterance for endless speech")
	}
	if at > 25 {
		t.Errorf("capped at frame %d, want within max phrase", at)
	}
}

func TestTranscriberErrorPropagates(t *testing.T) {
	boom := errors.New("model crashed")
	r := NewVADRecognizer(&fakeTranscriber{err: boom}, limits())

	frames := append(repeat(loud, 3), repeat(quiet, 5)...)
	var err error
	for _, f := range frames {
		if _, err = r.Consume(context.Background(), f); err != nil {
			break
		}
	}
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
