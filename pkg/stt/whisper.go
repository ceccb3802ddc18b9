package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

type Options struct {
	Language      string // e.g. "auto", "en"
	Threads       int    // <=0 => NumCPU()
	InitialPrompt string // biases decoding towards the wake phrase and intents
	BeamSize      int    // 0 = greedy
	SplitOnWord   bool
}

type Segment struct {
	Text     string
	StartSec float64
	EndSec   float64
}

type Result struct {
	Text     string
	Segments []Segment
	Language string // detected or forced
}

// Whisper wraps a loaded whisper.cpp model. Contexts are created per call;
// the model itself is not safe for concurrent Process calls, hence mu.
type Whisper struct {
	mu    sync.Mutex
	model whisper.Model
	opt   Options
}

func NewWhisper(modelPath string, opt Options) (*Whisper, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if opt.Language == "" {
		opt.Language = "en"
	}
	return &Whisper{model: m, opt: opt}, nil
}

func (w *Whisper) Close() error {
	if w.model == nil {
		return nil
	}
	return w.model.Close()
}

// Transcribe returns the joined text of all segments, trimmed.
func (w *Whisper) Transcribe(ctx context.Context, pcm16k []float32) (string, error) {
	res, err := w.TranscribePCM(ctx, pcm16k)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Text), nil
}

// pcm16k must be mono @ 16 kHz, float32 in [-1, 1]
func (w *Whisper) TranscribePCM(ctx context.Context, pcm16k []float32) (Result, error) {
	if w.model == nil {
		return Result{}, errors.New("nil model")
	}
	if len(pcm16k) == 0 {
		return Result{}, errors.New("no audio samples provided")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("new context: %w", err)
	}

	if err := wctx.SetLanguage(w.opt.Language); err != nil {
		return Result{}, fmt.Errorf("set language: %w", err)
	}

	threads := w.opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if w.opt.SplitOnWord {
		wctx.SetSplitOnWord(true)
	}
	if w.opt.BeamSize > 0 {
		wctx.SetBeamSize(w.opt.BeamSize)
	}
	if w.opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(w.opt.InitialPrompt)
	}

	// returning false from the encoder callback aborts the run
	proceed := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(pcm16k, proceed, nil, nil); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("process: %w", err)
	}

	var (
		segs  []Segment
		parts []string
	)
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("next segment: %w", err)
		}
		segs = append(segs, Segment{
			Text:     s.Text,
			StartSec: s.Start.Seconds(),
			EndSec:   s.End.Seconds(),
		})
		parts = append(parts, strings.TrimSpace(s.Text))
	}

	lang := wctx.DetectedLanguage()
	if lang == "" {
		lang = wctx.Language()
	}

	return Result{
		Text:     strings.Join(parts, " "),
		Segments: segs,
		Language: lang,
	}, nil
}
