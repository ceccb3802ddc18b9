// Package speech turns a frame stream into one transcribed utterance.
package speech

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"time"

	"brothereye/internal/audio"
)

var ErrDone = errors.New("recognizer already produced an utterance")

type Utterance struct {
	Transcript string
	Timestamp  time.Time
}

// Recognizer consumes frames until it can return an utterance. A nil
// utterance means "keep feeding". An utterance with an empty transcript
// means nothing intelligible was said.
type Recognizer interface {
	Consume(ctx context.Context, frame audio.Frame) (*Utterance, error)
	Close() error
}

// Transcriber is the opaque speech-to-text model.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

type Limits struct {
	SilenceTimeout time.Duration // no speech at all
	EndSilence     time.Duration // trailing quiet that closes a phrase
	MaxPhrase      time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		SilenceTimeout: 5 * time.Second,
		EndSilence:     800 * time.Millisecond,
		MaxPhrase:      15 * time.Second,
	}
}

const prerollFrames = 8

// VADRecognizer buffers the phrase found by an energy VAD and hands it to
// a Transcriber in one go. Timeouts are counted in frames so that the
// outcome does not depend on how fast frames arrive.
type VADRecognizer struct {
	tr  Transcriber
	vad *audio.VAD
	now func() time.Time

	silenceFrames int
	maxFrames     int

	preroll []audio.Frame
	phrase  []float32
	waited  int
	taken   int
	started bool
	done    bool
}

func NewVADRecognizer(tr Transcriber, lim Limits) *VADRecognizer {
	vad := audio.NewVAD()
	vad.HangFrames = max(frames(lim.EndSilence), 1)

	return &VADRecognizer{
		tr:            tr,
		vad:           vad,
		now:           time.Now,
		silenceFrames: max(frames(lim.SilenceTimeout), 1),
		maxFrames:     max(frames(lim.MaxPhrase), 1),
	}
}

// WithClock replaces the timestamp source.
func (r *VADRecognizer) WithClock(now func() time.Time) *VADRecognizer {
	r.now = now
	return r
}

func frames(d time.Duration) int {
	return int(d / audio.FrameDuration)
}

func (r *VADRecognizer) Consume(ctx context.Context, frame audio.Frame) (*Utterance, error) {
	if r.done {
		return nil, ErrDone
	}

	speaking := r.vad.Feed(frame)

	if !r.started {
		if !speaking {
			r.push(frame)
			r.waited++
			if r.waited >= r.silenceFrames {
				log.Debug("Silence timeout", "frames", r.waited)
				r.done = true
				return &Utterance{Timestamp: r.now()}, nil
			}
			return nil, nil
		}

		r.started = true
		for _, f := range r.preroll {
			r.phrase = append(r.phrase, f...)
		}
		r.preroll = nil
	}

	r.phrase = append(r.phrase, frame...)
	r.taken++

	if speaking && r.taken < r.maxFrames {
		return nil, nil
	}

	r.done = true
	log.Debug("Phrase captured", "frames", r.taken, "capped", speaking)

	text, err := r.tr.Transcribe(ctx, r.phrase)
	if err != nil {
		return nil, err
	}
	return &Utterance{Transcript: strings.TrimSpace(text), Timestamp: r.now()}, nil
}

func (r *VADRecognizer) push(f audio.Frame) {
	if len(r.preroll) == prerollFrames {
		r.preroll = r.preroll[1:]
	}
	r.preroll = append(r.preroll, f)
}

func (r *VADRecognizer) Close() error {
	r.phrase = nil
	r.preroll = nil
	return nil
}
