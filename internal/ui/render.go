// Package ui is the terminal front end: an append-only renderer sink and
// the keyboard command loop.
package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"brothereye/internal/assistant"
)

var KeyHelp = []string{
	"ctrl+w  listen for wake word",
	"ctrl+l  listen now",
	"ctrl+s  stop",
	"ctrl+y  copy conversation",
	"ctrl+r  forget conversation context",
	"ctrl+q  quit",
}

var statusLabel = map[assistant.State]string{
	assistant.Idle:              "idle",
	assistant.WakeWordListening: "waiting for wake word",
	assistant.ActiveListening:   "listening",
	assistant.Processing:        "thinking",
	assistant.Error:             "error",
}

// Renderer writes events as they arrive and keeps a plain transcript of
// the conversation for the clipboard.
type Renderer struct {
	mu  sync.Mutex
	w   io.Writer
	nl  string
	mid bool // a reply is being streamed

	transcript strings.Builder
}

func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w, nl: "\n"}
}

// RawMode switches to CRLF line endings for a terminal without output
// post-processing.
func (r *Renderer) RawMode() *Renderer {
	r.nl = "\r\n"
	return r
}

func (r *Renderer) Header(model, wakeWord string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.line(fmt.Sprintf("brother eye | model: %s | wake word: '%s'", model, wakeWord))
	for _, h := range KeyHelp {
		r.line("  " + h)
	}
	r.line("")
}

func (r *Renderer) Publish(e assistant.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Kind {
	case assistant.EventTransition:
		r.endReply()
		status := statusLabel[e.State]
		if e.Message != "" && e.Message != status {
			status += ": " + e.Message
		}
		r.line("[" + status + "]")

	case assistant.EventUtterance:
		r.endReply()
		r.line("you: " + e.Text)
		fmt.Fprintf(&r.transcript, "You: %s\n", e.Text)

	case assistant.EventChunk:
		if !r.mid {
			io.WriteString(r.w, "eye: ")
			r.transcript.WriteString("Assistant: ")
			r.mid = true
		}
		io.WriteString(r.w, strings.ReplaceAll(e.Chunk.Text, "\n", r.nl))
		r.transcript.WriteString(e.Chunk.Text)
		if e.Chunk.Final {
			r.endReply()
		}
	}
}

// Transcript is the conversation so far, one "You:"/"Assistant:" entry per line.
func (r *Renderer) Transcript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.TrimRight(r.transcript.String(), "\n")
}

func (r *Renderer) Note(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endReply()
	r.line(s)
}

func (r *Renderer) endReply() {
	if !r.mid {
		return
	}
	io.WriteString(r.w, r.nl)
	r.transcript.WriteString("\n")
	r.mid = false
}

func (r *Renderer) line(s string) {
	io.WriteString(r.w, s+r.nl)
}
