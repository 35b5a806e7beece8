// Package llm wraps the hosted chat-completion API the assistant features
// depend on. Callers only see the small Client interface plus a sentinel
// error taxonomy, so tests and offline runs can swap in a fake.
package llm

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"labtrack/internal/config"
)

// Completion is one model answer with its token accounting.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client generates text from a system instruction and a user prompt.
type Client interface {
	Complete(ctx context.Context, system, user string) (Completion, error)
}

type openAIClient struct {
	api      *openai.Client
	cfg      config.ModelConfig
	observer Observer
}

// NewClient builds the production client. An api_version in the config
// selects the Azure-style endpoint, otherwise the endpoint is used as a
// plain OpenAI-compatible base URL.
func NewClient(cfg config.ModelConfig, observer Observer) Client {
	if observer == nil {
		observer = NoopObserver{}
	}
	var clientCfg openai.ClientConfig
	if cfg.APIVersion != "" {
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		clientCfg.APIVersion = cfg.APIVersion
	} else {
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.Endpoint != "" {
			clientCfg.BaseURL = cfg.Endpoint
		}
	}
	return &openAIClient{
		api:      openai.NewClientWithConfig(clientCfg),
		cfg:      cfg,
		observer: observer,
	}
}

func (c *openAIClient) Complete(ctx context.Context, system, user string) (Completion, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutMs)*time.Millisecond)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Deployment,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature:      c.cfg.Temperature,
		MaxTokens:        c.cfg.MaxTokens,
		TopP:             c.cfg.TopP,
		FrequencyPenalty: c.cfg.FrequencyPenalty,
		PresencePenalty:  c.cfg.PresencePenalty,
	})
	latency := time.Since(start).Milliseconds()

	if err != nil {
		err = Classify(err)
		c.observer.OnCallComplete(CallEvent{
			Model:     c.cfg.Deployment,
			LatencyMs: latency,
			ErrorCode: errorCode(err),
		})
		return Completion{}, err
	}

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	out := Completion{
		Text:         text,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	// Some gateways omit usage; approximate at four characters per token.
	if out.InputTokens == 0 {
		out.InputTokens = (len(system) + len(user)) / 4
	}
	if out.OutputTokens == 0 {
		out.OutputTokens = len(text) / 4
	}

	c.observer.OnCallComplete(CallEvent{
		Model:        c.cfg.Deployment,
		LatencyMs:    latency,
		InputTokens:  out.InputTokens,
		OutputTokens: out.OutputTokens,
		Success:      true,
	})
	return out, nil
}
