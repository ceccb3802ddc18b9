//go:build porcupine

package wakeword

import (
	"context"
	"errors"
	"fmt"

	porcupine "github.com/Picovoice/porcupine/binding/go"

	"brothereye/internal/audio"
)

// porcupineDetector re-slices our frames to porcupine's frame length.
type porcupineDetector struct {
	p       porcupine.Porcupine
	pending []int16
}

func newPorcupine(opt Options) (Detector, error) {
	sens := opt.Sensitivity
	if sens <= 0 {
		sens = 0.5
	}

	p := porcupine.Porcupine{
		ModelPath:     opt.ModelPath,
		Sensitivities: []float32{sens},
	}
	if opt.KeywordPath != "" {
		p.KeywordPaths = []string{opt.KeywordPath}
	} else {
		p.BuiltInKeywords = []porcupine.BuiltInKeyword{porcupine.BuiltInKeyword(normalize(opt.Phrase))}
	}

	if err := p.Init(); err != nil {
		return nil, fmt.Errorf("init porcupine: %w", err)
	}
	return &porcupineDetector{p: p}, nil
}

func (d *porcupineDetector) Consume(_ context.Context, frame audio.Frame) (bool, error) {
	d.pending = append(d.pending, frame.Int16()...)

	n := porcupine.FrameLength
	if n <= 0 {
		return false, errors.New("porcupine frame length unknown")
	}

	hit := false
	for len(d.pending) >= n {
		idx, err := d.p.Process(d.pending[:n])
		if err != nil {
			return false, fmt.Errorf("porcupine process: %w", err)
		}
		d.pending = d.pending[n:]
		if idx >= 0 {
			hit = true
		}
	}
	return hit, nil
}

func (d *porcupineDetector) Close() error {
	return d.p.Delete()
}
