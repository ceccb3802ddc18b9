package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/eiannone/keyboard"

	"brothereye/internal/assistant"
)

func tr(s assistant.State, msg string) assistant.Event {
	return assistant.Event{Kind: assistant.EventTransition, State: s, Message: msg}
}

func chunk(text string, final bool) assistant.Event {
	return assistant.Event{Kind: assistant.EventChunk, State: assistant.Processing, Chunk: assistant.Chunk{Text: text, Final: final}}
}

func TestRenderer(t *testing.T) {
	var out strings.Builder
	r := NewRenderer(&out)
	r.Header("gemma3:4b", "google")

	r.Publish(tr(assistant.ActiveListening, "listening"))
	r.Publish(assistant.Event{Kind: assistant.EventUtterance, Text: "tell me a joke"})
	r.Publish(tr(assistant.Processing, ""))
	r.Publish(chunk("Why did ", false))
	r.Publish(chunk("the gopher cross?", false))
	r.Publish(chunk("", true))
	r.Publish(tr(assistant.Idle, ""))

	want := strings.Join([]string{
		"brother eye | model: gemma3:4b | wake word: 'google'",
		"  ctrl+w  listen for wake word",
		"  ctrl+l  listen now",
		"  ctrl+s  stop",
		"  ctrl+y  copy conversation",
		"  ctrl+r  forget conversation context",
		"  ctrl+q  quit",
		"",
		"[listening]",
		"you: tell me a joke",
		"[thinking]",
		"eye: Why did the gopher cross?",
		"[idle]",
		"",
	}, "\n")
	if out.String() != want {
		t.Errorf("output:\n%s\nwant:\n%s", out.String(), want)
	}

	if got := r.Transcript(); got != "You: tell me a joke\nAssistant: Why did the gopher cross?" {
		t.Errorf("transcript = %q", got)
	}
}

func TestRendererInterruptedReply(t *testing.T) {
	var out strings.Builder
	r := NewRenderer(&out).RawMode()

	r.Publish(chunk("partial", false))
	r.Publish(tr(assistant.Idle, "stopped"))
	r.Publish(chunk("\n[model timed out]", true))

	want := "eye: partial\r\n[idle: stopped]\r\neye: \r\n[model timed out]\r\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

type sent struct{ cmds []assistant.Command }

func (s *sent) Send(_ context.Context, c assistant.Command) error {
	s.cmds = append(s.cmds, c)
	return nil
}

func TestKeyBindings(t *testing.T) {
	var s sent
	var out strings.Builder
	r := NewRenderer(&out)
	var copied []string
	copyFn := func(text string) error {
		copied = append(copied, text)
		return nil
	}
	forgot := 0
	h := hooks{copy: copyFn, forget: func() { forgot++ }}
	ctx := context.Background()

	for _, k := range []keyboard.Key{keyboard.KeyCtrlW, keyboard.KeyCtrlL, keyboard.KeyCtrlS, keyboard.KeyEnter} {
		if handleKey(ctx, k, &s, r, h) {
			t.Fatalf("key %v ended the loop", k)
		}
	}
	want := []assistant.Command{assistant.ListenForWakeWord, assistant.ListenNow, assistant.Stop}
	if len(s.cmds) != len(want) {
		t.Fatalf("cmds = %v, want %v", s.cmds, want)
	}
	for i := range want {
		if s.cmds[i] != want[i] {
			t.Errorf("cmd %d = %v, want %v", i, s.cmds[i], want[i])
		}
	}

	handleKey(ctx, keyboard.KeyCtrlY, &s, r, h)
	if len(copied) != 0 || !strings.Contains(out.String(), "nothing to copy") {
		t.Errorf("empty copy: copied=%v out=%q", copied, out.String())
	}

	r.Publish(assistant.Event{Kind: assistant.EventUtterance, Text: "hi"})
	handleKey(ctx, keyboard.KeyCtrlY, &s, r, h)
	if len(copied) != 1 || copied[0] != "You: hi" {
		t.Errorf("copied = %v", copied)
	}

	failing := func(string) error { return errors.New("no clipboard") }
	handleKey(ctx, keyboard.KeyCtrlY, &s, r, hooks{copy: failing})
	if !strings.Contains(out.String(), "copy failed: no clipboard") {
		t.Errorf("copy failure not shown: %q", out.String())
	}

	if handleKey(ctx, keyboard.KeyCtrlR, &s, r, h) || forgot != 1 {
		t.Errorf("ctrl+r: forgot %d times", forgot)
	}
	if !strings.Contains(out.String(), "context cleared") {
		t.Errorf("forget not shown: %q", out.String())
	}
	if n := len(s.cmds); n != len(want) {
		t.Errorf("ctrl+r sent a command: %v", s.cmds)
	}

	if !handleKey(ctx, keyboard.KeyCtrlQ, &s, r, h) {
		t.Error("ctrl+q did not end the loop")
	}
	if s.cmds[len(s.cmds)-1] != assistant.Quit {
		t.Errorf("last cmd = %v", s.cmds[len(s.cmds)-1])
	}
}
