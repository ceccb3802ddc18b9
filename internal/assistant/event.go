package assistant

import "time"

// Chunk is one piece of a reply. The last chunk of every reply has Final set.
type Chunk struct {
	Text  string
	Final bool
}

type EventKind int

const (
	EventTransition EventKind = iota
	EventUtterance
	EventChunk
)

func (k EventKind) String() string {
	switch k {
	case EventTransition:
		return "transition"
	case EventUtterance:
		return "utterance"
	case EventChunk:
		return "chunk"
	}
	return "unknown"
}

// Event is everything a sink ever sees. State is set on every event;
// Message only on transitions, Text only on utterances.
type Event struct {
	Kind    EventKind
	State   State
	Message string
	Text    string
	Chunk   Chunk
	Time    time.Time
}

// Sink receives events synchronously from the control loop, in order.
// Implementations must not block for long and must not call back into
// the controller's Send.
type Sink interface {
	Publish(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }
