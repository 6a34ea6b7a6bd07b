// Package anthropic provides a reason.Reasoner implementation for the
// Anthropic Claude Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/intentmesh/reason"
)

const classifySystemPrompt = `You are an intent and entity extractor for a personal assistant.
Given one user utterance plus conversational context, respond with ONLY a JSON object:
{"intents":[{"name":"...","confidence":0.0}],"entities":[{"kind":"...","value":"...","slot_key":"...","candidates":[]}],"risk_hints":["..."]}
Use slot_key for anaphoric mentions ("it", "that email") naming the reference slot they point at.`

const synthesizeSystemPrompt = `You are a planner for a personal assistant.
Given classified intents/entities and a list of available capabilities with JSON schemas,
respond with ONLY a JSON object:
{"steps":[{"id":"s1","capability":"...","args":{},"depends_on":[],"critical":false}]}
Only use listed capabilities, reference step ids in depends_on, and never invent argument fields.`

// Options configures the Anthropic reasoner adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Reasoner wraps the Anthropic Messages API behind the reason.Reasoner interface.
type Reasoner struct {
	client *anthropic.Client
	opts   Options
}

// NewReasoner creates a new Anthropic reasoner using the official client.
func NewReasoner(optFns ...func(o *Options)) *Reasoner {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.0,
		MaxTokens:   2048,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Reasoner{client: &client, opts: opts}
}

// NewReasonerFromClient creates a new Anthropic reasoner from an existing client.
func NewReasonerFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Reasoner {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.0,
		MaxTokens:   2048,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Reasoner{client: client, opts: opts}
}

// Classify implements reason.Reasoner.
func (r *Reasoner) Classify(ctx context.Context, req reason.ClassifyRequest) (*reason.Classification, error) {
	user, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal classify request: %w", err)
	}
	raw, err := r.complete(ctx, classifySystemPrompt, string(user))
	if err != nil {
		return nil, err
	}
	var out reason.Classification
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	return &out, nil
}

// SynthesizePlan implements reason.Reasoner.
func (r *Reasoner) SynthesizePlan(ctx context.Context, req reason.SynthesizeRequest) (*reason.DraftPlan, error) {
	user, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal synthesize request: %w", err)
	}
	raw, err := r.complete(ctx, synthesizeSystemPrompt, string(user))
	if err != nil {
		return nil, err
	}
	var out reason.DraftPlan
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode draft plan: %w", err)
	}
	return &out, nil
}

// complete runs one non-streaming message and concatenates the text blocks.
func (r *Reasoner) complete(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       r.opts.Model,
		MaxTokens:   r.opts.MaxTokens,
		Temperature: anthropic.Float(r.opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	resp, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	return stripFences(sb.String()), nil
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
