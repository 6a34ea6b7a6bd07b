// Package openai provides a reason.Reasoner implementation using the OpenAI
// Chat Completions API. The adapter prompts for strict JSON and unmarshals it
// into the normalized Classification / DraftPlan structures.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

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

// Options configure the OpenAI reasoner adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Reasoner wraps the OpenAI Chat Completions API behind the reason.Reasoner interface.
type Reasoner struct {
	client *openai.Client
	opts   Options
}

// NewReasoner creates a new OpenAI reasoner using the official client.
func NewReasoner(optFns ...func(o *Options)) *Reasoner {
	client := openai.NewClient()
	return NewReasonerFromClient(&client, optFns...)
}

// NewReasonerFromClient creates a new OpenAI reasoner from an existing client.
func NewReasonerFromClient(client *openai.Client, optFns ...func(o *Options)) *Reasoner {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.0,
		MaxCompletionTokens: 2048,
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

// complete runs one non-streaming chat completion and returns the trimmed
// JSON payload of the first choice.
func (r *Reasoner) complete(ctx context.Context, system, user string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:               r.opts.Model,
		Temperature:         openai.Float(r.opts.Temperature),
		MaxCompletionTokens: openai.Int(r.opts.MaxCompletionTokens),
	}
	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return stripFences(resp.Choices[0].Message.Content), nil
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
