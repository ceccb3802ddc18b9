//go:build !vosk

package stt

import (
	"context"
	"errors"
)

var errNoVosk = errors.New("vosk support not compiled in (build with -tags vosk)")

type Vosk struct{}

func NewVosk(string) (*Vosk, error) { return nil, errNoVosk }

func (v *Vosk) Close() error { return nil }

func (v *Vosk) Transcribe(context.Context, []float32) (string, error) {
	return "", errNoVosk
}
