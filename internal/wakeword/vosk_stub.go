//go:build !vosk

package wakeword

import "fmt"

func newVosk(Options) (Detector, error) {
	return nil, fmt.Errorf("vosk: %w (build with -tags vosk)", ErrNotCompiled)
}
