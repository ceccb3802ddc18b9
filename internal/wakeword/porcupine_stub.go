//go:build !porcupine

package wakeword

import "fmt"

func newPorcupine(Options) (Detector, error) {
	return nil, fmt.Errorf("porcupine: %w (build with -tags porcupine)", ErrNotCompiled)
}
