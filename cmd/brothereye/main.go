package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	log "log/slog"

	"brothereye/internal/assistant"
	"brothereye/internal/audio"
	"brothereye/internal/audio/file"
	"brothereye/internal/audio/mic"
	"brothereye/internal/builtin"
	"brothereye/internal/bus"
	"brothereye/internal/config"
	"brothereye/internal/ipc"
	"brothereye/internal/llm"
	"brothereye/internal/nlu"
	"brothereye/internal/notify"
	"brothereye/internal/proxy"
	"brothereye/internal/speech"
	"brothereye/internal/tts"
	"brothereye/internal/ui"
	"brothereye/internal/wakeword"
	"brothereye/internal/weather"
	"brothereye/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

type transcriber interface {
	speech.Transcriber
	Close() error
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		fmt.Println(err)
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "brothereye:", err)
		os.Exit(2)
	}

	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "brothereye: open log file:", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	log.SetDefault(log.New(tint.NewHandler(logOut, &tint.Options{
		Level:      logLevelMap[cfg.LogLevel],
		TimeFormat: time.TimeOnly,
		NoColor:    cfg.LogFile != "",
	})))

	log.Info("Booting up")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	httpClient, err := proxy.NewClient(cfg.Proxy)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.Proxy, "err", err)
		os.Exit(1)
	}

	tr, err := newTranscriber(cfg)
	if err != nil {
		log.Error("Failed to init transcriber", "engine", cfg.STTEngine, "err", err)
		os.Exit(1)
	}
	defer tr.Close()

	log.Debug("Loaded transcriber", "engine", cfg.STTEngine)

	var source audio.Source
	if cfg.InputFile != "" {
		src, err := file.New(cfg.InputFile, cfg.Realtime)
		if err != nil {
			log.Error("Failed to load input file", "path", cfg.InputFile, "err", err)
			os.Exit(1)
		}
		source = src
	} else {
		m := mic.New()
		if err := m.Init(); err != nil {
			log.Error("Failed to init audio", "err", err)
			os.Exit(1)
		}
		defer m.Close()
		source = m
	}

	router, err := nlu.NewRouter(nlu.Config{
		Threshold:    cfg.Threshold,
		Priority:     cfg.Priority,
		HomeLocation: cfg.HomeLocation,
		Ignore:       []string{cfg.WakePhrase},
	})
	if err != nil {
		log.Error("Failed to build intent router", "err", err)
		os.Exit(1)
	}

	model, err := llm.New(llm.Config{
		Flavor:      llm.Flavor(cfg.ModelFlavor),
		Endpoint:    cfg.ModelEndpoint,
		Model:       cfg.Model,
		System:      cfg.SystemPrompt,
		APIKey:      cfg.APIKey,
		IdleTimeout: cfg.ModelTimeout,
		History:     cfg.History,
		HTTP:        httpClient,
	})
	if err != nil {
		log.Error("Failed to init model client", "err", err)
		os.Exit(1)
	}
	if o, ok := model.(*llm.Ollama); ok {
		pctx, pcancel := context.WithTimeout(ctx, 3*time.Second)
		if err := o.Ping(pctx); err != nil {
			log.Warn("Ollama not reachable, replies will fail until it is", "err", err)
		}
		pcancel()
	}

	var wg sync.WaitGroup
	var sinks []assistant.Sink

	var renderer *ui.Renderer
	if cfg.Headless {
		sinks = append(sinks, assistant.SinkFunc(logEvent))
	} else {
		renderer = ui.NewRenderer(os.Stdout).RawMode()
		renderer.Header(cfg.Model, cfg.WakePhrase)
		sinks = append(sinks, renderer)
	}

	if cfg.Notify {
		chime, err := notify.LoadChime(cfg.Chime)
		if err != nil {
			log.Warn("No chime, notifications only", "err", err)
		}
		sinks = append(sinks, notify.New(chime))
	}

	if cfg.Speak {
		if tts.Available {
			sinks = append(sinks, tts.NewSpeaker(cfg.Language))
		} else {
			log.Warn("Speech output requested but not compiled in")
		}
	}

	if cfg.Duck {
		d := notify.NewDucking(audio.NewDucker([]string{"brothereye"}, 0.3, 10, 300*time.Millisecond))
		sinks = append(sinks, d)
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Run(ctx)
		}()
	}

	var ctrl *assistant.Controller

	var hub *bus.Bus
	if cfg.BusURL != "" {
		hub = bus.New(bus.Config{
			URL: cfg.BusURL,
			OnCommand: func(s string) {
				cmd, err := assistant.ParseCommand(s)
				if err != nil {
					log.Warn("Bus command", "err", err)
					return
				}
				ctrl.Send(ctx, cmd)
			},
		})
		sinks = append(sinks, hub)
	}

	ctrl, err = assistant.New(assistant.Options{Rearm: cfg.Rearm}, assistant.Deps{
		Source: source,
		Detector: func() (wakeword.Detector, error) {
			return wakeword.New(wakeword.Options{
				Engine:      wakeword.Engine(cfg.WakeEngine),
				Phrase:      cfg.WakePhrase,
				ModelPath:   cfg.WakeModel,
				KeywordPath: cfg.WakeKeyword,
				Sensitivity: float32(cfg.WakeSensitivity),
			}, tr)
		},
		Recognizer: func() (speech.Recognizer, error) {
			return speech.NewVADRecognizer(tr, speech.Limits{
				SilenceTimeout: cfg.SilenceTimeout,
				EndSilence:     cfg.EndSilence,
				MaxPhrase:      cfg.MaxPhrase,
			}), nil
		},
		Router:   router,
		Builtins: builtin.New(weather.NewClient(cfg.WeatherURL, httpClient)),
		Model:    model,
		Sinks:    sinks,
	})
	if err != nil {
		log.Error("Failed to build assistant", "err", err)
		os.Exit(1)
	}

	if hub != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Run(ctx)
		}()
	}

	srv, err := ipc.StartServer(cfg.Socket, func(msg ipc.ControlMessage) ipc.Reply {
		switch msg.Cmd {
		case "status":
			return ipc.Reply{OK: true, State: ctrl.State().String()}
		case "forget":
			model.Reset()
			return ipc.Reply{OK: true, State: ctrl.State().String()}
		}
		cmd, err := assistant.ParseCommand(msg.Cmd)
		if err != nil {
			return ipc.Reply{Error: err.Error()}
		}
		if err := ctrl.Send(ctx, cmd); err != nil {
			return ipc.Reply{Error: err.Error()}
		}
		return ipc.Reply{OK: true, State: ctrl.State().String()}
	})
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	log.Info("Boot up - successful", "model", cfg.Model, "wake_word", cfg.WakePhrase)

	runErr := make(chan error, 1)
	go func() { runErr <- ctrl.Run(ctx) }()

	if renderer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ui.Keys(ctx, ctrl, renderer, model.Reset); err != nil {
				log.Error("Keyboard closed", "err", err)
			}
		}()
	}

	err = <-runErr
	cancel()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Assistant stopped", "err", err)
		os.Exit(1)
	}
	log.Info("Bye")
}

func newTranscriber(cfg config.Session) (transcriber, error) {
	switch cfg.STTEngine {
	case "whisper":
		return stt.NewWhisper(cfg.WhisperModel, stt.Options{
			Language:      cfg.Language,
			InitialPrompt: cfg.WakePhrase + ". What's the weather? What time is it?",
		})
	case "vosk":
		return stt.NewVosk(cfg.VoskModel)
	}
	return nil, fmt.Errorf("unknown stt engine %q", cfg.STTEngine)
}

func logEvent(e assistant.Event) {
	switch e.Kind {
	case assistant.EventTransition:
		log.Info("State", "state", e.State, "msg", e.Message)
	case assistant.EventUtterance:
		log.Info("Heard", "text", e.Text)
	case assistant.EventChunk:
		if e.Chunk.Text != "" {
			log.Info("Reply", "text", e.Chunk.Text, "final", e.Chunk.Final)
		}
	}
}
