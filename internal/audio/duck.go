package audio

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var volumeRe = regexp.MustCompile(`(\d+)\s*%`)

type sinkInput struct {
	ID      int
	Volume  int
	AppName string
}

// Runner executes pactl. Swapped out in tests.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

func pactl(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "pactl", args...).Output()
}

// Ducker lowers the volume of other PulseAudio/PipeWire streams while the
// microphone is hot and restores it afterwards.
type Ducker struct {
	mu       sync.Mutex
	run      Runner
	self     []string
	factor   float64
	floor    int
	fade     time.Duration
	saved    map[int]int
	isDucked bool
}

func NewDucker(self []string, factor float64, floor int, fade time.Duration) *Ducker {
	return &Ducker{
		run:    pactl,
		self:   append([]string(nil), self...),
		factor: factor,
		floor:  clampVolume(floor),
		fade:   fade,
		saved:  make(map[int]int),
	}
}

// WithRunner replaces the pactl invocation.
func (d *Ducker) WithRunner(r Runner) *Ducker {
	d.run = r
	return d
}

func (d *Ducker) Ducked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isDucked
}

func (d *Ducker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isDucked {
		return nil
	}

	inputs, err := d.list(ctx)
	if err != nil {
		return err
	}

	d.saved = make(map[int]int)
	var steps []volumeStep
	for _, in := range inputs {
		if d.isSelf(in) {
			continue
		}
		to := int(math.Round(float64(in.Volume) * d.factor))
		if to < d.floor {
			to = d.floor
		}
		d.saved[in.ID] = in.Volume
		steps = append(steps, volumeStep{id: in.ID, from: in.Volume, to: clampVolume(to)})
	}

	if err := d.ramp(ctx, steps); err != nil {
		return err
	}
	d.isDucked = true
	return nil
}

func (d *Ducker) Restore(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isDucked {
		return nil
	}

	inputs, err := d.list(ctx)
	if err != nil {
		return err
	}

	var steps []volumeStep
	for _, in := range inputs {
		orig, ok := d.saved[in.ID]
		if !ok || d.isSelf(in) {
			// stream appeared after ducking
			continue
		}
		steps = append(steps, volumeStep{id: in.ID, from: in.Volume, to: orig})
	}

	if err := d.ramp(ctx, steps); err != nil {
		return err
	}
	d.saved = make(map[int]int)
	d.isDucked = false
	return nil
}

func (d *Ducker) isSelf(in sinkInput) bool {
	for _, name := range d.self {
		if in.AppName == name {
			return true
		}
	}
	return false
}

type volumeStep struct {
	id, from, to int
}

func (d *Ducker) ramp(ctx context.Context, steps []volumeStep) error {
	if len(steps) == 0 {
		return nil
	}

	n := int(d.fade / (10 * time.Millisecond))
	if n < 1 {
		n = 1
	}
	pause := d.fade / time.Duration(n)

	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		frac := float64(i) / float64(n)
		for _, s := range steps {
			v := int(math.Round(float64(s.from) + float64(s.to-s.from)*frac))
			if err := d.setVolume(ctx, s.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", s.id, err)
			}
		}
		if i < n && pause > 0 {
			time.Sleep(pause)
		}
	}
	return nil
}

func (d *Ducker) setVolume(ctx context.Context, id, percent int) error {
	_, err := d.run(ctx, "set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", clampVolume(percent)))
	return err
}

func (d *Ducker) list(ctx context.Context) ([]sinkInput, error) {
	out, err := d.run(ctx, "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func parseSinkInputs(text string) []sinkInput {
	blocks := strings.Split(text, "Sink Input #")
	var res []sinkInput

	for _, block := range blocks[1:] {
		header, body, ok := strings.Cut(block, "\n")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(header))
		if err != nil {
			continue
		}

		in := sinkInput{ID: id}
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "Volume:") && in.Volume == 0:
				if m := volumeRe.FindStringSubmatch(line); m != nil {
					in.Volume, _ = strconv.Atoi(m[1])
				}
			case strings.HasPrefix(line, "application.name =") && in.AppName == "":
				_, rest, _ := strings.Cut(line, "=")
				in.AppName = strings.Trim(strings.TrimSpace(rest), `"`)
			}
		}

		if in.Volume == 0 && in.AppName == "" {
			continue
		}
		res = append(res, in)
	}
	return res
}

func clampVolume(v int) int {
	return max(0, min(v, 150))
}
