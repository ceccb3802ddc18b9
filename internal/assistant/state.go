package assistant

import (
	"fmt"
	"strings"
)

type State int

const (
	Idle State = iota
	WakeWordListening
	ActiveListening
	Processing
	Error
)

var stateNames = [...]string{
	Idle:              "idle",
	WakeWordListening: "wake-word",
	ActiveListening:   "listening",
	Processing:        "processing",
	Error:             "error",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Listening reports whether the state owns the microphone.
func (s State) Listening() bool {
	return s == WakeWordListening || s == ActiveListening
}

type Command int

const (
	ListenForWakeWord Command = iota + 1
	ListenNow
	Stop
	Quit
)

var commandNames = map[Command]string{
	ListenForWakeWord: "listen_for_wake_word",
	ListenNow:         "listen_now",
	Stop:              "stop",
	Quit:              "quit",
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// ParseCommand accepts the canonical names plus a few short aliases.
func ParseCommand(s string) (Command, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "wake", "wake_word", "trigger":
		return ListenForWakeWord, nil
	case "listen", "now":
		return ListenNow, nil
	}
	for c, name := range commandNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", s)
}
