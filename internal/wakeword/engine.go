package wakeword

import (
	"errors"
	"fmt"

	"brothereye/internal/speech"
)

var ErrNotCompiled = errors.New("wake word engine not compiled in")

type Engine string

const (
	EngineTranscript Engine = "transcript"
	EnginePorcupine  Engine = "porcupine"
	EngineVosk       Engine = "vosk"
)

type Options struct {
	Engine      Engine
	Phrase      string
	ModelPath   string  // porcupine params or vosk model dir
	KeywordPath string  // porcupine .ppn
	Sensitivity float32 // porcupine, 0..1
}

// New builds a fresh detector. The transcriber is only used by the
// transcript engine.
func New(opt Options, tr speech.Transcriber) (Detector, error) {
	switch opt.Engine {
	case "", EngineTranscript:
		if tr == nil {
			return nil, fmt.Errorf("transcript engine needs a transcriber")
		}
		return NewSpotter(opt.Phrase, tr)
	case EnginePorcupine:
		return newPorcupine(opt)
	case EngineVosk:
		return newVosk(opt)
	}
	return nil, fmt.Errorf("unknown wake word engine %q", opt.Engine)
}
