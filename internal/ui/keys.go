package ui

import (
	"context"
	"fmt"
	log "log/slog"

	"github.com/atotto/clipboard"
	"github.com/eiannone/keyboard"

	"brothereye/internal/assistant"
)

type Commander interface {
	Send(ctx context.Context, cmd assistant.Command) error
}

type action int

const (
	actNone action = iota
	actCommand
	actCopy
	actForget
)

func bind(key keyboard.Key) (action, assistant.Command) {
	switch key {
	case keyboard.KeyCtrlW:
		return actCommand, assistant.ListenForWakeWord
	case keyboard.KeyCtrlL:
		return actCommand, assistant.ListenNow
	case keyboard.KeyCtrlS:
		return actCommand, assistant.Stop
	case keyboard.KeyCtrlQ, keyboard.KeyCtrlC:
		return actCommand, assistant.Quit
	case keyboard.KeyCtrlY:
		return actCopy, 0
	case keyboard.KeyCtrlR:
		return actForget, 0
	}
	return actNone, 0
}

// hooks are the key actions that do not go through the controller.
type hooks struct {
	copy   func(string) error
	forget func()
}

// Keys reads the terminal until ctx is done or quit is pressed. The
// terminal is left in raw mode while it runs. forget clears the model's
// conversation context.
func Keys(ctx context.Context, c Commander, r *Renderer, forget func()) error {
	events, err := keyboard.GetKeys(16)
	if err != nil {
		return fmt.Errorf("open keyboard: %w", err)
	}
	defer keyboard.Close()

	h := hooks{copy: clipboard.WriteAll, forget: forget}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if ev.Err != nil {
				return fmt.Errorf("read keyboard: %w", ev.Err)
			}
			if done := handleKey(ctx, ev.Key, c, r, h); done {
				return nil
			}
		}
	}
}

func handleKey(ctx context.Context, key keyboard.Key, c Commander, r *Renderer, h hooks) bool {
	act, cmd := bind(key)
	switch act {
	case actCopy:
		text := r.Transcript()
		if text == "" {
			r.Note("[nothing to copy]")
			return false
		}
		if err := h.copy(text); err != nil {
			log.Warn("clipboard", "err", err)
			r.Note("[copy failed: " + err.Error() + "]")
			return false
		}
		r.Note("[conversation copied]")

	case actForget:
		if h.forget != nil {
			h.forget()
			r.Note("[conversation context cleared]")
		}

	case actCommand:
		if err := c.Send(ctx, cmd); err != nil {
			log.Warn("send command", "cmd", cmd, "err", err)
		}
		return cmd == assistant.Quit
	}
	return false
}
