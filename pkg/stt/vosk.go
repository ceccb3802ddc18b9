//go:build vosk

package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"
)

// Vosk is a lighter offline transcriber. One recognizer is reused across calls.
type Vosk struct {
	mu    sync.Mutex
	model *vosk.VoskModel
	rec   *vosk.VoskRecognizer
}

type voskResult struct {
	Text string `json:"text"`
}

func NewVosk(modelPath string) (*Vosk, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	vosk.SetLogLevel(-1)

	m, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	rec, err := vosk.NewRecognizer(m, 16000)
	if err != nil {
		m.Free()
		return nil, fmt.Errorf("new recognizer: %w", err)
	}
	return &Vosk{model: m, rec: rec}, nil
}

func (v *Vosk) Close() error {
	v.rec.Free()
	v.model.Free()
	return nil
}

func (v *Vosk) Transcribe(ctx context.Context, pcm16k []float32) (string, error) {
	if len(pcm16k) == 0 {
		return "", errors.New("no audio samples provided")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var parts []string
	for off := 0; off < len(pcm16k); off += 4000 {
		if err := ctx.Err(); err != nil {
			v.rec.Reset()
			return "", err
		}
		chunk := pcm16k[off:min(off+4000, len(pcm16k))]
		if v.rec.AcceptWaveform(PCM16(chunk)) != 0 {
			parts = appendText(parts, v.rec.Result())
		}
	}
	parts = appendText(parts, v.rec.FinalResult())

	return strings.Join(parts, " "), nil
}

func appendText(parts []string, raw string) []string {
	var r voskResult
	if err := json.Unmarshal([]byte(raw), &r); err != nil || r.Text == "" {
		return parts
	}
	return append(parts, r.Text)
}
