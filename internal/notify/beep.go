// Package notify plays a chime and raises a desktop notification when the
// assistant starts listening.
package notify

import (
	"fmt"
	log "log/slog"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/gen2brain/beeep"

	"brothereye/internal/assistant"
)

const appName = "Brother Eye"

// Chime is a decoded sound kept in memory.
type Chime struct {
	buf  *beep.Buffer
	once sync.Once
	err  error
}

func LoadChime(path string) (*Chime, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chime: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode chime: %w", err)
	}
	defer streamer.Close()

	buf := beep.NewBuffer(format)
	buf.Append(streamer)
	return &Chime{buf: buf}, nil
}

// Play blocks until the chime has finished.
func (c *Chime) Play() error {
	c.once.Do(func() {
		rate := c.buf.Format().SampleRate
		c.err = speaker.Init(rate, rate.N(time.Second/10))
	})
	if c.err != nil {
		return c.err
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(c.buf.Streamer(0, c.buf.Len()), beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}

// Notifier is an assistant sink. Work happens off the control loop;
// cues that arrive while one is still playing are dropped.
type Notifier struct {
	play  func() error
	alert func(title, msg string) error
	busy  sync.Mutex
	wg    sync.WaitGroup
}

// New accepts a nil chime, in which case only desktop notifications are raised.
func New(chime *Chime) *Notifier {
	n := &Notifier{
		alert: func(title, msg string) error {
			return beeep.Notify(title, msg, "")
		},
	}
	if chime != nil {
		n.play = chime.Play
	}
	return n
}

func (n *Notifier) Publish(e assistant.Event) {
	if e.Kind != assistant.EventTransition {
		return
	}

	var msg string
	chime := false
	switch e.State {
	case assistant.WakeWordListening:
		msg = "Waiting for the wake word"
	case assistant.ActiveListening:
		msg, chime = "Listening...", true
	case assistant.Error:
		msg = e.Message
	default:
		return
	}

	if !n.busy.TryLock() {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer n.busy.Unlock()
		if chime && n.play != nil {
			if err := n.play(); err != nil {
				log.Warn("chime failed", "err", err)
			}
		}
		if err := n.alert(appName, msg); err != nil {
			log.Debug("desktop notification failed", "err", err)
		}
	}()
}

// Wait blocks until in-flight cues are done.
func (n *Notifier) Wait() { n.wg.Wait() }
