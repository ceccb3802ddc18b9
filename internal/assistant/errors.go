package assistant

import (
	"errors"

	"brothereye/internal/builtin"
	"brothereye/internal/llm"
)

var (
	// ErrResource puts the controller into Error until the next command.
	ErrResource = errors.New("audio resource unavailable")
	// ErrNoSpeech ends a capture that heard nothing.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrLookup is a failed weather or model call.
	ErrLookup = builtin.ErrLookup
	// ErrStreamTimeout is a model stream that went quiet. Output so far is kept.
	ErrStreamTimeout = llm.ErrTimeout
)

// describe is the Idle transition message for how a reply ended.
func describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStreamTimeout):
		return "model timed out"
	case errors.Is(err, ErrLookup):
		return "lookup failed"
	}
	return "reply failed"
}
