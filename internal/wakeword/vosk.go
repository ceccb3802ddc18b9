//go:build vosk

package wakeword

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	vosk "github.com/alphacep/vosk-api/go"

	"brothereye/internal/audio"
)

// voskDetector restricts a vosk recognizer to the wake phrase plus [unk]
// and checks partial results.
type voskDetector struct {
	phrase []string
	model  *vosk.VoskModel
	rec    *vosk.VoskRecognizer
}

func newVosk(opt Options) (Detector, error) {
	phrase := strings.Fields(normalize(opt.Phrase))
	if len(phrase) == 0 {
		return nil, fmt.Errorf("wake phrase %q has no words", opt.Phrase)
	}

	vosk.SetLogLevel(-1)
	m, err := vosk.NewModel(opt.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load vosk model: %w", err)
	}

	grammar, _ := json.Marshal([]string{strings.Join(phrase, " "), "[unk]"})
	rec, err := vosk.NewRecognizerGrm(m, audio.SampleRate, string(grammar))
	if err != nil {
		m.Free()
		return nil, fmt.Errorf("new vosk recognizer: %w", err)
	}

	return &voskDetector{phrase: phrase, model: m, rec: rec}, nil
}

func (d *voskDetector) Consume(_ context.Context, frame audio.Frame) (bool, error) {
	var raw string
	if d.rec.AcceptWaveform(frame.PCM16()) != 0 {
		raw = d.rec.Result()
	} else {
		raw = d.rec.PartialResult()
	}

	var r struct {
		Text    string `json:"text"`
		Partial string `json:"partial"`
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return false, nil
	}

	if Match(d.phrase, r.Text+" "+r.Partial) {
		d.rec.Reset()
		return true, nil
	}
	return false, nil
}

func (d *voskDetector) Close() error {
	d.rec.Free()
	d.model.Free()
	return nil
}
