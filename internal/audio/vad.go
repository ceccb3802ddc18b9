package audio

// VAD is an RMS energy detector with hysteresis: speech starts after
// StartFrames loud frames and ends after HangFrames quiet ones.
type VAD struct {
	SpeechRMS   float64
	SilenceRMS  float64
	StartFrames int
	HangFrames  int

	speaking bool
	loud     int
	quiet    int
}

func NewVAD() *VAD {
	return &VAD{
		SpeechRMS:   0.015,
		SilenceRMS:  0.008,
		StartFrames: 2,
		HangFrames:  25, // ~800ms
	}
}

// Feed classifies one frame and reports whether speech is ongoing.
func (v *VAD) Feed(f Frame) bool {
	level := f.RMS()

	if v.speaking {
		if level < v.SilenceRMS {
			v.quiet++
			if v.quiet >= v.HangFrames {
				v.speaking = false
				v.quiet = 0
			}
		} else {
			v.quiet = 0
		}
		return v.speaking
	}

	if level >= v.SpeechRMS {
		v.loud++
		if v.loud >= v.StartFrames {
			v.speaking = true
			v.loud = 0
		}
	} else {
		v.loud = 0
	}

	return v.speaking
}

// Loud reports whether a single frame carries speech energy.
func (v *VAD) Loud(f Frame) bool {
	return f.RMS() >= v.SpeechRMS
}

func (v *VAD) Speaking() bool {
	return v.speaking
}

func (v *VAD) Reset() {
	v.speaking = false
	v.loud = 0
	v.quiet = 0
}
