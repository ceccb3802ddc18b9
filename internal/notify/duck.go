package notify

import (
	"context"
	log "log/slog"
	"time"

	"brothereye/internal/assistant"
)

type Ducker interface {
	Duck(ctx context.Context) error
	Restore(ctx context.Context) error
}

// Ducking lowers other audio while the assistant listens. Only the
// latest wanted level is applied; intermediate flips are skipped.
type Ducking struct {
	d    Ducker
	want chan bool
}

func NewDucking(d Ducker) *Ducking {
	return &Ducking{d: d, want: make(chan bool, 1)}
}

func (k *Ducking) Publish(e assistant.Event) {
	if e.Kind != assistant.EventTransition {
		return
	}
	down := e.State.Listening()
	for {
		select {
		case k.want <- down:
			return
		default:
		}
		select {
		case <-k.want:
		default:
		}
	}
}

// Run applies changes until ctx is done, then restores volume.
func (k *Ducking) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := k.d.Restore(rctx); err != nil {
				log.Warn("restore volume", "err", err)
			}
			cancel()
			return
		case down := <-k.want:
			var err error
			if down {
				err = k.d.Duck(ctx)
			} else {
				err = k.d.Restore(ctx)
			}
			if err != nil && ctx.Err() == nil {
				log.Warn("ducking failed", "duck", down, "err", err)
			}
		}
	}
}
