package wakeword

import (
	"context"
	"errors"
	"testing"
	"time"

	"brothereye/internal/audio"
)

func TestMatch(t *testing.T) {
	phrase := []string{"hey", "google"}

	cases := []struct {
		text string
		want bool
	}{
		{"Hey Google", true},
		{"hey, google! what's up", true},
		{"ok so hey googl", true},
		{"hey", false},
		{"hay google", false}, // short words must match exactly
		{"google hey", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := Match(phrase, tc.text); got != tc.want {
			t.Errorf("Match(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"google", "google", 0},
		{"googel", "google", 2},
		{"gogle", "google", 1},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

type stubTranscriber struct {
	text  string
	err   error
	calls int
}

func (s *stubTranscriber) Transcribe(context.Context, []float32) (string, error) {
	s.calls++
	return s.text, s.err
}

func level(v float32) audio.Frame {
	f := make(audio.Frame, audio.FrameSamples)
	for i := range f {
		f[i] = v
	}
	return f
}

func run(t *testing.T, d Detector, loud, quiet int) (bool, error) {
	t.Helper()
	var frames []audio.Frame
	for i := 0; i < quiet; i++ {
		frames = append(frames, level(0))
	}
	for i := 0; i < loud; i++ {
		frames = append(frames, level(0.3))
	}
	for i := 0; i < quiet; i++ {
		frames = append(frames, level(0))
	}

	for _, f := range frames {
		hit, err := d.Consume(context.Background(), f)
		if err != nil || hit {
			return hit, err
		}
	}
	return false, nil
}

func TestSpotterDetectsPhrase(t *testing.T) {
	tr := &stubTranscriber{text: " Hey Gogle."}
	s, err := NewSpotter("hey google", tr)
	if err != nil {
		t.Fatal(err)
	}

	hit, err := run(t, s, 20, 15)
	if err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Fatal("wake phrase not detected")
	}
	if tr.calls != 1 {
		t.Errorf("transcriber calls = %d, want 1", tr.calls)
	}
}

func TestSpotterIgnoresOtherSpeech(t *testing.T) {
	tr := &stubTranscriber{text: "turn on the lights"}
	s, _ := NewSpotter("hey google", tr)

	if hit, _ := run(t, s, 20, 15); hit {
		t.Fatal("false detection")
	}
}

func TestSpotterSkipsBlipsAndLongSpeech(t *testing.T) {
	tr := &stubTranscriber{text: "hey google"}
	s, _ := NewSpotter("hey google", tr)

	// ~64ms of sound: too short to be a phrase
	if hit, _ := run(t, s, 3, 15); hit {
		t.Fatal("blip detected as wake phrase")
	}
	// ~6s of continuous sound: too long
	if hit, _ := run(t, s, 200, 15); hit {
		t.Fatal("long speech detected as wake phrase")
	}
	if tr.calls != 0 {
		t.Errorf("transcriber calls = %d, want 0", tr.calls)
	}
}

func TestSpotterTranscriberError(t *testing.T) {
	boom := errors.New("no model")
	s, _ := NewSpotter("hey google", &stubTranscriber{err: boom})

	if _, err := run(t, s, 20, 15); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestNewEngines(t *testing.T) {
	if _, err := NewSpotter(" !? ", &stubTranscriber{}); err == nil {
		t.Error("empty phrase accepted")
	}
	if _, err := New(Options{Engine: "magic", Phrase: "x"}, nil); err == nil {
		t.Error("unknown engine accepted")
	}
	if _, err := New(Options{Phrase: "hey google"}, nil); err == nil {
		t.Error("transcript engine without transcriber accepted")
	}
	d, err := New(Options{Phrase: "hey google"}, &stubTranscriber{})
	if err != nil {
		t.Fatal(err)
	}
	d.Close()
}

type blockingTranscriber struct {
	started chan struct{}
}

func (b *blockingTranscriber) Transcribe(ctx context.Context, _ []float32) (string, error) {
	close(b.started)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(2 * time.Second):
		return "hey google", nil
	}
}

func TestSpotterTranscriptionHonoursContext(t *testing.T) {
	tr := &blockingTranscriber{started: make(chan struct{})}
	s, err := NewSpotter("hey google", tr)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-tr.started
		cancel()
	}()

	begin := time.Now()
	hit, err := run(t, &ctxDetector{ctx: ctx, d: s}, 20, 15)
	if took := time.Since(begin); took > 500*time.Millisecond {
		t.Errorf("Consume returned after %v", took)
	}
	if hit || !errors.Is(err, context.Canceled) {
		t.Errorf("hit=%v err=%v, want context.Canceled", hit, err)
	}
}

// ctxDetector pins the context used by run.
type ctxDetector struct {
	ctx context.Context
	d   Detector
}

func (c *ctxDetector) Consume(_ context.Context, f audio.Frame) (bool, error) {
	return c.d.Consume(c.ctx, f)
}

func (c *ctxDetector) Close() error { return c.d.Close() }
