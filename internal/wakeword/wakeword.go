// Package wakeword decides, frame by frame, whether the wake phrase was said.
package wakeword

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"time"
	"unicode"

	"brothereye/internal/audio"
	"brothereye/internal/speech"
)

// Detector consumes frames and reports a match on the frame that completes it.
// Consume returns promptly once ctx is done.
type Detector interface {
	Consume(ctx context.Context, frame audio.Frame) (bool, error)
	Close() error
}

const (
	minPhrase = 300 * time.Millisecond
	maxPhrase = 3 * time.Second
	endQuiet  = 300 * time.Millisecond
)

// Spotter runs short bursts of speech through a transcriber and looks for
// the wake phrase in the text. It keeps its own rolling phrase buffer.
type Spotter struct {
	phrase  []string
	tr      speech.Transcriber
	vad     *audio.VAD
	timeout time.Duration

	buf      []float32
	voiced   int
	overlong bool
}

func NewSpotter(phrase string, tr speech.Transcriber) (*Spotter, error) {
	words := strings.Fields(normalize(phrase))
	if len(words) == 0 {
		return nil, fmt.Errorf("wake phrase %q has no words", phrase)
	}

	vad := audio.NewVAD()
	vad.HangFrames = int(endQuiet / audio.FrameDuration)

	return &Spotter{
		phrase:  words,
		tr:      tr,
		vad:     vad,
		timeout: 10 * time.Second,
	}, nil
}

func (s *Spotter) Consume(ctx context.Context, frame audio.Frame) (bool, error) {
	wasSpeaking := s.vad.Speaking()
	speaking := s.vad.Feed(frame)

	if speaking {
		if s.overlong {
			return false, nil
		}
		s.buf = append(s.buf, frame...)
		if s.vad.Loud(frame) {
			s.voiced++
		}
		if len(s.buf) > samples(maxPhrase) {
			// too long for a wake phrase, skip until the speaker pauses
			s.overlong = true
			s.buf = nil
		}
		return false, nil
	}

	if !wasSpeaking {
		return false, nil
	}

	phrase, voiced, overlong := s.buf, s.voiced, s.overlong
	s.buf, s.voiced, s.overlong = nil, 0, false

	if overlong || voiced*audio.FrameSamples < samples(minPhrase) {
		return false, nil
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.tr.Transcribe(tctx, phrase)
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return false, fmt.Errorf("transcribe wake phrase: %w", err)
	}

	hit := Match(s.phrase, text)
	log.Debug("Wake candidate", "text", text, "match", hit)
	return hit, nil
}

func (s *Spotter) Close() error {
	s.buf, s.voiced, s.overlong = nil, 0, false
	s.vad.Reset()
	return nil
}

func samples(d time.Duration) int {
	return int(d.Seconds() * audio.SampleRate)
}

// Match reports whether the phrase words occur in text, in order, allowing
// one edit per word of four letters or more.
func Match(phrase []string, text string) bool {
	words := strings.Fields(normalize(text))
	if len(words) < len(phrase) {
		return false
	}

	for i := 0; i+len(phrase) <= len(words); i++ {
		ok := true
		for j, want := range phrase {
			if !near(words[i+j], want) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func near(got, want string) bool {
	if got == want {
		return true
	}
	if len(want) < 4 {
		return false
	}
	return levenshtein(got, want) <= 1
}

// normalize lowercases, drops punctuation and collapses whitespace.
func normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
