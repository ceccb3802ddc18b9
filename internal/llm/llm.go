// Package llm streams replies from a locally hosted language model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrTimeout    = errors.New("model stream timed out")
	ErrIncomplete = errors.New("model stream ended before completion")
)

// Client streams one reply. onDelta receives text pieces in arrival order;
// returning an error from it aborts the stream with that error.
type Client interface {
	Stream(ctx context.Context, prompt string, onDelta func(string) error) error
	Reset()
}

type Flavor string

const (
	FlavorOllama Flavor = "ollama"
	FlavorOpenAI Flavor = "openai"
)

type Config struct {
	Flavor      Flavor
	Endpoint    string
	Model       string
	System      string
	APIKey      string
	IdleTimeout time.Duration // no data for this long aborts the stream
	History     int           // openai: past exchanges kept
	HTTP        *http.Client
}

func New(cfg Config) (Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("model name is empty")
	}
	if cfg.HTTP == nil {
		cfg.HTTP = &http.Client{}
	}

	switch cfg.Flavor {
	case "", FlavorOllama:
		return NewOllama(cfg), nil
	case FlavorOpenAI:
		return NewOpenAI(cfg), nil
	}
	return nil, fmt.Errorf("unknown model flavor %q", cfg.Flavor)
}

// idleContext cancels with ErrTimeout unless kick is called at least once
// every d. stop releases the timer.
func idleContext(parent context.Context, d time.Duration) (ctx context.Context, kick func(), stop func()) {
	ctx, cancel := context.WithCancelCause(parent)
	if d <= 0 {
		return ctx, func() {}, func() { cancel(nil) }
	}

	t := time.AfterFunc(d, func() { cancel(ErrTimeout) })
	return ctx, func() { t.Reset(d) }, func() {
		t.Stop()
		cancel(nil)
	}
}

// streamErr prefers the watchdog cause over whatever the transport reported.
func streamErr(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), ErrTimeout) {
		return ErrTimeout
	}
	return err
}
