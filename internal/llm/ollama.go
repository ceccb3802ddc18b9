package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"strings"
	"sync"
)

const DefaultOllamaURL = "http://localhost:11434"

// Ollama talks to the native /api/generate endpoint and carries the
// returned context tokens into the next request of the session.
type Ollama struct {
	cfg Config

	mu      sync.Mutex
	context []int
}

type generateRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	System  string `json:"system,omitempty"`
	Stream  bool   `json:"stream"`
	Context []int  `json:"context,omitempty"`
}

type generateEvent struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Context  []int  `json:"context"`
	Error    string `json:"error"`
}

func NewOllama(cfg Config) *Ollama {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultOllamaURL
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.HTTP == nil {
		cfg.HTTP = &http.Client{}
	}
	return &Ollama{cfg: cfg}
}

func (o *Ollama) Reset() {
	o.mu.Lock()
	o.context = nil
	o.mu.Unlock()
}

func (o *Ollama) Stream(ctx context.Context, prompt string, onDelta func(string) error) error {
	o.mu.Lock()
	body, err := json.Marshal(generateRequest{
		Model:   o.cfg.Model,
		Prompt:  prompt,
		System:  o.cfg.System,
		Stream:  true,
		Context: o.context,
	})
	o.mu.Unlock()
	if err != nil {
		return err
	}

	ctx, kick, stop := idleContext(ctx, o.cfg.IdleTimeout)
	defer stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.Endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.cfg.HTTP.Do(req)
	if err != nil {
		return streamErr(ctx, fmt.Errorf("ollama request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ollama: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for sc.Scan() {
		kick()

		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var ev generateEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			log.Warn("Skipping malformed ollama line", "err", err)
			continue
		}
		if ev.Error != "" {
			return fmt.Errorf("ollama: %s", ev.Error)
		}
		if ev.Response != "" {
			if err := onDelta(ev.Response); err != nil {
				return err
			}
		}
		if ev.Done {
			o.mu.Lock()
			o.context = ev.Context
			o.mu.Unlock()
			return nil
		}
	}

	if err := sc.Err(); err != nil {
		return streamErr(ctx, fmt.Errorf("read ollama stream: %w", err))
	}
	if err := streamErr(ctx, nil); err != nil {
		return err
	}
	return ErrIncomplete
}

// Ping checks that the server is up and the model is pulled.
func (o *Ollama) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.Endpoint+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.cfg.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", o.cfg.Endpoint, err)
	}
	defer resp.Body.Close()

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decode tags: %w", err)
	}
	for _, m := range tags.Models {
		if m.Name == o.cfg.Model || strings.TrimSuffix(m.Name, ":latest") == o.cfg.Model {
			return nil
		}
	}
	return errors.New("model " + o.cfg.Model + " is not pulled")
}
