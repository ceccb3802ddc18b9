// Package config loads the immutable session configuration from flags,
// the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"brothereye/internal/nlu"
)

const EnvPrefix = "BROTHEREYE_"

// ErrHelp is returned by Load for -h/--help; the error text carries the usage.
var ErrHelp = cli.ErrHelp

const DefaultSystemPrompt = `You are Brother Eye, a voice assistant living in a terminal.
Answer briefly and in plain text, without markdown, as if speaking aloud.
Always give temperatures in degrees Fahrenheit.`

type Session struct {
	EnvFile  string
	LogLevel string
	LogFile  string
	Headless bool

	WakePhrase      string
	WakeEngine      string
	WakeModel       string
	WakeKeyword     string
	WakeSensitivity float64
	Rearm           bool

	STTEngine    string
	WhisperModel string
	VoskModel    string
	Language     string
	InputFile    string
	Realtime     bool

	SilenceTimeout time.Duration
	EndSilence     time.Duration
	MaxPhrase      time.Duration

	Threshold    float64
	Priority     []nlu.Intent
	HomeLocation string
	WeatherURL   string

	ModelFlavor   string
	ModelEndpoint string
	Model         string
	APIKey        string
	SystemPrompt  string
	ModelTimeout  time.Duration
	History       int

	Proxy  string
	BusURL string
	Socket string
	Duck   bool
	Notify bool
	Chime  string
	Speak  bool
}

// Load parses args (without the program name). Flags win over
// BROTHEREYE_* variables, which win over built-in defaults.
func Load(args []string) (Session, error) {
	var s Session
	var priority []string
	var promptFile string

	fs := cli.NewFlagSet("brothereye", cli.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVarP(&s.EnvFile, "env", "e", ".env", "Env file path")
	fs.StringVarP(&s.LogLevel, "log", "l", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&s.LogFile, "log-file", "", "Write logs to this file instead of stderr")
	fs.BoolVar(&s.Headless, "headless", false, "No terminal UI; control over the IPC socket only")

	fs.StringVarP(&s.WakePhrase, "wake-word", "w", "google", "Wake word to listen for")
	fs.StringVar(&s.WakeEngine, "wake-engine", "transcript", "Wake word engine (transcript, porcupine, vosk)")
	fs.StringVar(&s.WakeModel, "wake-model", "", "Porcupine params file or vosk model dir")
	fs.StringVar(&s.WakeKeyword, "wake-keyword", "", "Porcupine keyword file (.ppn)")
	fs.Float64Var(&s.WakeSensitivity, "wake-sensitivity", 0.5, "Porcupine sensitivity")
	fs.BoolVar(&s.Rearm, "rearm", false, "Listen for the wake word again after answering")

	fs.StringVar(&s.STTEngine, "stt", "whisper", "Speech-to-text engine (whisper, vosk)")
	fs.StringVar(&s.WhisperModel, "whisper-model", "models/ggml-base.en.bin", "Whisper model path")
	fs.StringVar(&s.VoskModel, "vosk-model", "models/vosk", "Vosk model dir")
	fs.StringVar(&s.Language, "lang", "en", "Transcription language")
	fs.StringVarP(&s.InputFile, "input", "i", "", "Read audio from this file instead of the microphone")
	fs.BoolVar(&s.Realtime, "realtime", true, "Pace file input in real time")

	fs.DurationVar(&s.SilenceTimeout, "silence-timeout", 5*time.Second, "Give up when nothing is said for this long")
	fs.DurationVar(&s.EndSilence, "end-silence", 800*time.Millisecond, "Pause that ends a phrase")
	fs.DurationVar(&s.MaxPhrase, "max-phrase", 15*time.Second, "Longest phrase captured")

	fs.Float64Var(&s.Threshold, "threshold", nlu.DefaultThreshold, "Minimum confidence for builtin answers")
	fs.StringSliceVar(&priority, "priority", []string{"weather", "time", "date", "general"}, "Intent tie-break order")
	fs.StringVar(&s.HomeLocation, "location", "San Francisco", "Default weather location")
	fs.StringVar(&s.WeatherURL, "weather-url", "https://wttr.in", "Weather provider base URL")

	fs.StringVar(&s.ModelFlavor, "api", "ollama", "Model API (ollama, openai)")
	fs.StringVar(&s.ModelEndpoint, "endpoint", "", "Model endpoint (defaults to a local ollama)")
	fs.StringVarP(&s.Model, "model", "m", "gemma3:4b", "Model to use")
	fs.StringVar(&s.SystemPrompt, "system-prompt", DefaultSystemPrompt, "System prompt")
	fs.StringVar(&promptFile, "prompt-file", "", "File containing the system prompt")
	fs.DurationVar(&s.ModelTimeout, "model-timeout", 30*time.Second, "Abort a reply after this long without output")
	fs.IntVar(&s.History, "history", 8, "Exchanges kept as context (openai api)")

	fs.StringVarP(&s.Proxy, "proxy", "p", "", "SOCKS5 proxy for outbound HTTP")
	fs.StringVar(&s.BusURL, "bus-url", "", "Websocket URL to mirror events to")
	fs.StringVar(&s.Socket, "socket", "/tmp/brothereye.sock", "IPC socket path")
	fs.BoolVar(&s.Duck, "duck", false, "Lower other audio while listening")
	fs.BoolVar(&s.Notify, "notify", true, "Chime and desktop notification on listening")
	fs.StringVar(&s.Chime, "chime", "beep.mp3", "Chime sound")
	fs.BoolVar(&s.Speak, "speak", false, "Read replies aloud (espeak builds)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return Session{}, fmt.Errorf("%w\n\nUsage of brothereye:\n%s", err, fs.FlagUsages())
		}
		return Session{}, err
	}

	if err := godotenv.Load(s.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Session{}, fmt.Errorf("load %s: %w", s.EnvFile, err)
	}
	if err := applyEnv(fs); err != nil {
		return Session{}, err
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		s.APIKey = key
	}

	if promptFile != "" {
		b, err := os.ReadFile(promptFile)
		if err != nil {
			return Session{}, fmt.Errorf("load prompt file: %w", err)
		}
		s.SystemPrompt = strings.TrimSpace(string(b))
	}

	for _, p := range priority {
		in, err := nlu.ParseIntent(p)
		if err != nil {
			return Session{}, fmt.Errorf("--priority: %w", err)
		}
		s.Priority = append(s.Priority, in)
	}

	return s, s.validate()
}

// applyEnv fills every flag the user did not set from BROTHEREYE_<FLAG>.
func applyEnv(fs *cli.FlagSet) error {
	var err error
	fs.VisitAll(func(f *cli.Flag) {
		if err != nil || f.Changed || f.Name == "env" {
			return
		}
		key := EnvPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if v, ok := os.LookupEnv(key); ok {
			if serr := fs.Set(f.Name, v); serr != nil {
				err = fmt.Errorf("%s: %w", key, serr)
			}
		}
	})
	return err
}

func (s Session) validate() error {
	switch {
	case strings.TrimSpace(s.WakePhrase) == "":
		return errors.New("wake word is empty")
	case s.Threshold <= 0 || s.Threshold > 1:
		return fmt.Errorf("threshold %v out of (0, 1]", s.Threshold)
	case strings.TrimSpace(s.HomeLocation) == "":
		return errors.New("default location is empty")
	case s.Model == "":
		return errors.New("model is empty")
	case s.ModelTimeout <= 0:
		return errors.New("model timeout must be positive")
	case s.SilenceTimeout <= 0 || s.EndSilence <= 0 || s.MaxPhrase <= 0:
		return errors.New("listening timeouts must be positive")
	}
	return nil
}
