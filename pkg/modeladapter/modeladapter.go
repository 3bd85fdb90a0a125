// Package modeladapter is the thin wrapper around the persistent VLM
// process a Worker loads once and calls repeatedly, grounded on
// original_source/worker/model_loader.py's load-once contract and
// qwen_worker.py's call sites, adapted onto langchaingo's
// OpenAI-compatible client so the worker talks to any VLM server
// exposing that convention (vLLM, TGI, a local llama.cpp server).
package modeladapter

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/prismlabs/prism/pkg/config"
)

// DecodingParams carries the per-call sampling parameters spec.md §6's
// decoding-parameter table names. Every field is overridable by the
// caller; pkg/pageproc's format handlers supply their own per-format
// defaults.
type DecodingParams struct {
	Temperature     float64
	MaxTokens       int
	TopP            float64
	RepetitionPenalty float64
}

// Adapter is the narrow interface pkg/pageproc depends on.
type Adapter interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, imageJPEG []byte, params DecodingParams) (string, error)
}

// Client is the production Adapter, backed by an OpenAI-compatible
// chat-completions endpoint.
type Client struct {
	llm   llms.Model
	model string
}

// Load connects to the VLM server named by cfg.ModelPath (an
// OpenAI-compatible base URL) and cfg.ModelName. The "load" step the
// spec describes as a 30-60s blocking model load happens server-side
// for an externally served model; this call only verifies the client
// can be constructed, matching the error-wrapping shape of a real load
// failure (spec.md error kind 5: worker init failure).
func Load(cfg config.Config) (*Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.ModelPath),
		openai.WithModel(cfg.ModelName),
		openai.WithToken("unused"),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing model adapter for %s: %w", cfg.ModelName, err)
	}
	return &Client{llm: llm, model: cfg.ModelName}, nil
}

// Generate issues one multimodal chat completion: a system prompt, a
// user prompt, and a single page image. Callers pass a
// context.Context with the deadline spec.md §6 names (default 300s);
// on cancellation the error surfaces as a unit failure, never a
// process crash (spec.md §5).
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string, imageJPEG []byte, params DecodingParams) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextContent{Text: userPrompt},
				llms.BinaryContent{MIMEType: "image/jpeg", Data: imageJPEG},
			},
		},
	}

	opts := []llms.CallOption{
		llms.WithTemperature(params.Temperature),
		llms.WithMaxTokens(params.MaxTokens),
	}
	if params.TopP > 0 {
		opts = append(opts, llms.WithTopP(params.TopP))
	}
	if params.RepetitionPenalty > 0 {
		opts = append(opts, llms.WithRepetitionPenalty(params.RepetitionPenalty))
	}

	resp, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("generating with model %s: %w", c.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model %s returned no choices", c.model)
	}
	return resp.Choices[0].Content, nil
}

var _ Adapter = (*Client)(nil)
