package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type turn struct {
	user, assistant string
}

// OpenAI streams chat completions from any OpenAI-compatible server
// (llama.cpp, vLLM, LM Studio, Ollama's /v1). It keeps the last few
// exchanges as conversation context.
type OpenAI struct {
	cfg    Config
	client openai.Client

	mu      sync.Mutex
	history []turn
}

func NewOpenAI(cfg Config) *OpenAI {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultOllamaURL + "/v1"
	}
	if cfg.History <= 0 {
		cfg.History = 8
	}
	key := cfg.APIKey
	if key == "" {
		key = "local"
	}

	opts := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(cfg.Endpoint, "/") + "/"),
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if cfg.HTTP != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTP))
	}

	return &OpenAI{cfg: cfg, client: openai.NewClient(opts...)}
}

func (c *OpenAI) Reset() {
	c.mu.Lock()
	c.history = nil
	c.mu.Unlock()
}

func (c *OpenAI) messages(prompt string) []openai.ChatCompletionMessageParamUnion {
	c.mu.Lock()
	defer c.mu.Unlock()

	var msgs []openai.ChatCompletionMessageParamUnion
	if c.cfg.System != "" {
		msgs = append(msgs, openai.SystemMessage(c.cfg.System))
	}
	for _, t := range c.history {
		msgs = append(msgs, openai.UserMessage(t.user), openai.AssistantMessage(t.assistant))
	}
	return append(msgs, openai.UserMessage(prompt))
}

func (c *OpenAI) Stream(ctx context.Context, prompt string, onDelta func(string) error) error {
	ctx, kick, stop := idleContext(ctx, c.cfg.IdleTimeout)
	defer stop()

	stream := c.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.cfg.Model),
		Messages: c.messages(prompt),
	})
	defer stream.Close()

	var (
		reply    strings.Builder
		finished bool
	)
	for stream.Next() {
		kick()

		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if d := choice.Delta.Content; d != "" {
			reply.WriteString(d)
			if err := onDelta(d); err != nil {
				return err
			}
		}
		if choice.FinishReason != "" {
			finished = true
		}
	}

	if err := stream.Err(); err != nil {
		return streamErr(ctx, fmt.Errorf("chat stream: %w", err))
	}
	if err := streamErr(ctx, nil); err != nil {
		return err
	}
	if !finished {
		return ErrIncomplete
	}

	c.mu.Lock()
	c.history = append(c.history, turn{user: prompt, assistant: reply.String()})
	if len(c.history) > c.cfg.History {
		c.history = c.history[len(c.history)-c.cfg.History:]
	}
	c.mu.Unlock()
	return nil
}
