// Package assistant holds the listening/dispatch state machine.
package assistant

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"brothereye/internal/audio"
	"brothereye/internal/nlu"
	"brothereye/internal/speech"
	"brothereye/internal/wakeword"
)

type Router interface {
	Route(transcript string) nlu.Result
	Threshold() float64
}

type Builtins interface {
	Handle(ctx context.Context, res nlu.Result) (string, error)
}

type Model interface {
	Stream(ctx context.Context, prompt string, onDelta func(string) error) error
}

type Deps struct {
	Source     audio.Source
	Detector   func() (wakeword.Detector, error)
	Recognizer func() (speech.Recognizer, error)
	Router     Router
	Builtins   Builtins
	Model      Model
	Sinks      []Sink
}

func (d Deps) validate() error {
	switch {
	case d.Source == nil:
		return errors.New("no audio source")
	case d.Detector == nil:
		return errors.New("no wake word detector factory")
	case d.Recognizer == nil:
		return errors.New("no speech recognizer factory")
	case d.Router == nil:
		return errors.New("no intent router")
	case d.Builtins == nil:
		return errors.New("no builtin handlers")
	case d.Model == nil:
		return errors.New("no model client")
	}
	return nil
}

type Options struct {
	// Rearm goes back to wake word listening after a reply to a session
	// that was started by the wake word.
	Rearm bool
}

// Controller owns the state, the microphone handle and at most one
// background job. Everything except State and Send runs on the Run goroutine.
type Controller struct {
	opt  Options
	deps Deps
	now  func() time.Time

	cmds   chan Command
	events chan jobEvent
	done   chan struct{}

	mu    sync.RWMutex
	state State

	// owned by Run
	stream   audio.Stream
	job      *job
	gen      uint64
	fromWake bool
}

type job struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

type jobKind int

const (
	jobWake jobKind = iota
	jobUtterance
	jobChunk
	jobFinished
	jobFailed
)

type jobEvent struct {
	gen   uint64
	kind  jobKind
	utt   *speech.Utterance
	chunk Chunk
	msg   string
	err   error
}

func New(opt Options, deps Deps) (*Controller, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &Controller{
		opt:    opt,
		deps:   deps,
		now:    time.Now,
		cmds:   make(chan Command),
		events: make(chan jobEvent),
		done:   make(chan struct{}),
	}, nil
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Send queues a command for the control loop. It fails once Run has returned.
func (c *Controller) Send(ctx context.Context, cmd Command) error {
	select {
	case c.cmds <- cmd:
		return nil
	case <-c.done:
		return errors.New("assistant is not running")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the state machine until Quit or ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.shutdown()

	log.Debug("Controller running", "state", c.State())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd := <-c.cmds:
			log.Debug("Command", "cmd", cmd, "state", c.State())
			if cmd == Quit {
				return nil
			}
			c.handle(ctx, cmd)

		case ev := <-c.events:
			if c.job == nil || ev.gen != c.job.gen {
				log.Debug("Dropping stale job event", "gen", ev.gen, "kind", ev.kind)
				continue
			}
			c.onJob(ctx, ev)
		}
	}
}

func (c *Controller) handle(ctx context.Context, cmd Command) {
	if c.State() == Error {
		c.transition(Idle, "")
		if cmd == Stop {
			return
		}
	}

	switch cmd {
	case ListenForWakeWord:
		switch c.State() {
		case Idle:
			c.startWake(ctx)
		case WakeWordListening:
			// already armed
		default:
			log.Debug("Ignoring wake command while busy", "state", c.State())
		}

	case ListenNow:
		switch c.State() {
		case Idle:
			c.startListen(ctx, false)
		case WakeWordListening:
			c.stopJob()
			c.release()
			c.startListen(ctx, false)
		default:
			log.Debug("Ignoring listen command while busy", "state", c.State())
		}

	case Stop:
		if c.State() == Idle {
			return
		}
		c.stopJob()
		c.release()
		c.transition(Idle, "stopped")
	}
}

func (c *Controller) onJob(ctx context.Context, ev jobEvent) {
	switch ev.kind {
	case jobWake:
		c.finishJob()
		c.release()
		c.startListen(ctx, true)

	case jobUtterance:
		c.finishJob()
		c.release()

		if ev.utt.Transcript == "" {
			c.transition(Idle, ErrNoSpeech.Error())
			return
		}

		c.publish(Event{Kind: EventUtterance, Text: ev.utt.Transcript})
		c.transition(Processing, "")
		c.spawn(ctx, func(jctx context.Context, post poster) {
			c.dispatch(jctx, post, *ev.utt)
		})

	case jobChunk:
		c.publish(Event{Kind: EventChunk, Chunk: ev.chunk})

	case jobFinished:
		c.finishJob()
		c.transition(Idle, ev.msg)
		if c.opt.Rearm && c.fromWake {
			c.startWake(ctx)
		}

	case jobFailed:
		c.finishJob()
		c.release()
		c.fail(ev.err)
	}
}

// fail turns a component error into a transition with a short message.
func (c *Controller) fail(err error) {
	log.Warn("Assistant failure", "err", err)
	if errors.Is(err, ErrResource) {
		c.transition(Error, err.Error())
		return
	}
	c.transition(Idle, err.Error())
}

func (c *Controller) startWake(ctx context.Context) {
	det, err := c.deps.Detector()
	if err != nil {
		c.fail(fmt.Errorf("%w: wake word detector: %v", ErrResource, err))
		return
	}
	stream, err := c.acquire()
	if err != nil {
		det.Close()
		c.fail(err)
		return
	}

	c.fromWake = false
	c.transition(WakeWordListening, "listening for wake word")
	c.spawn(ctx, func(jctx context.Context, post poster) {
		defer det.Close()
		c.wakeLoop(jctx, post, stream, det)
	})
}

func (c *Controller) startListen(ctx context.Context, fromWake bool) {
	rec, err := c.deps.Recognizer()
	if err != nil {
		c.fail(fmt.Errorf("%w: speech recognizer: %v", ErrResource, err))
		return
	}
	stream, err := c.acquire()
	if err != nil {
		rec.Close()
		c.fail(err)
		return
	}

	c.fromWake = fromWake
	msg := "listening..."
	if fromWake {
		msg = "wake word detected, listening..."
	}
	c.transition(ActiveListening, msg)
	c.spawn(ctx, func(jctx context.Context, post poster) {
		defer rec.Close()
		c.listenLoop(jctx, post, stream, rec)
	})
}

func (c *Controller) wakeLoop(ctx context.Context, post poster, stream audio.Stream, det wakeword.Detector) {
	for {
		frame, err := stream.Read(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			post(jobEvent{kind: jobFailed, err: fmt.Errorf("%w: read microphone: %v", ErrResource, err)})
			return
		}

		hit, err := det.Consume(ctx, frame)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			post(jobEvent{kind: jobFailed, err: fmt.Errorf("wake word detection failed: %w", err)})
			return
		}
		if hit {
			log.Info("Wake word detected")
			post(jobEvent{kind: jobWake})
			return
		}
	}
}

func (c *Controller) listenLoop(ctx context.Context, post poster, stream audio.Stream, rec speech.Recognizer) {
	for {
		frame, err := stream.Read(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			post(jobEvent{kind: jobFailed, err: fmt.Errorf("%w: read microphone: %v", ErrResource, err)})
			return
		}

		utt, err := rec.Consume(ctx, frame)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			post(jobEvent{kind: jobFailed, err: fmt.Errorf("speech recognition failed: %w", err)})
			return
		}
		if utt != nil {
			log.Info("Heard", "text", utt.Transcript)
			post(jobEvent{kind: jobUtterance, utt: utt})
			return
		}
	}
}

// dispatch answers one utterance and always ends with a final chunk
// followed by jobFinished, unless the job was cancelled.
func (c *Controller) dispatch(ctx context.Context, post poster, utt speech.Utterance) {
	res := c.deps.Router.Route(utt.Transcript)
	log.Info("Intent", "intent", res.Intent, "confidence", res.Confidence, "slots", res.Slots)

	if res.Intent.Builtin() && res.Confidence >= c.deps.Router.Threshold() {
		text, err := c.deps.Builtins.Handle(ctx, res)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warn("Builtin handler failed", "intent", res.Intent, "err", err)
		}
		if post(jobEvent{kind: jobChunk, chunk: Chunk{Text: text, Final: true}}) {
			post(jobEvent{kind: jobFinished, msg: describe(err)})
		}
		return
	}

	err := c.deps.Model.Stream(ctx, utt.Transcript, func(delta string) error {
		if !post(jobEvent{kind: jobChunk, chunk: Chunk{Text: delta}}) {
			return ctx.Err()
		}
		return nil
	})
	if ctx.Err() != nil {
		return
	}

	final := Chunk{Final: true}
	switch {
	case err == nil:
	case errors.Is(err, ErrStreamTimeout):
		log.Warn("Model stream timed out")
		final.Text = "\n[model timed out]"
	default:
		log.Warn("Model stream failed", "err", err)
		final.Text = "\n[model error: " + err.Error() + "]"
		err = fmt.Errorf("%w: model: %w", ErrLookup, err)
	}

	if post(jobEvent{kind: jobChunk, chunk: final}) {
		post(jobEvent{kind: jobFinished, msg: describe(err)})
	}
}

// poster delivers a job event to the loop. It returns false once the job
// has been cancelled; the event is then dropped.
type poster func(jobEvent) bool

func (c *Controller) spawn(ctx context.Context, fn func(context.Context, poster)) {
	jctx, cancel := context.WithCancel(ctx)
	c.gen++
	j := &job{gen: c.gen, cancel: cancel, done: make(chan struct{})}
	c.job = j

	post := func(ev jobEvent) bool {
		ev.gen = j.gen
		select {
		case c.events <- ev:
			return true
		case <-jctx.Done():
			return false
		}
	}

	go func() {
		defer close(j.done)
		fn(jctx, post)
	}()
}

// stopJob cancels the running job and waits until it can no longer post.
func (c *Controller) stopJob() {
	if c.job == nil {
		return
	}
	c.job.cancel()
	<-c.job.done
	c.job = nil
}

// finishJob waits for a job that has posted its last event.
func (c *Controller) finishJob() {
	if c.job == nil {
		return
	}
	<-c.job.done
	c.job.cancel()
	c.job = nil
}

func (c *Controller) acquire() (audio.Stream, error) {
	if c.stream != nil {
		return nil, fmt.Errorf("%w: microphone already held", ErrResource)
	}
	s, err := c.deps.Source.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResource, err)
	}
	c.stream = s
	log.Debug("Microphone acquired")
	return s, nil
}

func (c *Controller) release() {
	if c.stream == nil {
		return
	}
	if err := c.stream.Close(); err != nil {
		log.Warn("Failed to close microphone", "err", err)
	}
	c.stream = nil
	log.Debug("Microphone released")
}

func (c *Controller) transition(to State, msg string) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()

	log.Debug("Transition", "from", from, "to", to, "msg", msg)
	c.publish(Event{Kind: EventTransition, Message: msg})
}

func (c *Controller) publish(e Event) {
	e.State = c.State()
	e.Time = c.now()
	for _, s := range c.deps.Sinks {
		s.Publish(e)
	}
}

func (c *Controller) shutdown() {
	c.stopJob()
	c.release()
	if c.State() != Idle {
		c.transition(Idle, "shutting down")
	}
}
