package llm

import (
	"context"
	"encoding/json"
)

// Provider is the generation collaborator. Lesson planning, step content,
// quiz generation and open-ended grading all go through it.
type Provider interface {
	// Generate sends a prompt to the model and returns its output. When the
	// request carries a Schema, the returned Content is JSON that has been
	// validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the model.
type Request struct {
	// System is the system prompt.
	System string

	// Messages is the conversation so far. Most tutor calls are single-turn
	// and carry one user message.
	Messages []Message

	// Schema, when set, asks the provider for JSON conforming to it.
	// When nil, the response Content is the raw text.
	Schema *Schema

	// MaxTokens caps the response length.
	MaxTokens int

	// Temperature controls randomness (0.0 - 1.0). Zero leaves the
	// provider default in place.
	Temperature float64
}

// Message is a single conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the model.
type Schema struct {
	// Name identifies this schema, kebab-case, e.g. "lesson-plan".
	// Compiled schemas are cached by name.
	Name string

	// Description tells the model what the object represents.
	Description string

	// Definition is the JSON Schema document.
	Definition map[string]any
}

// Response holds the model output.
type Response struct {
	// Content is the validated JSON object when a Schema was requested,
	// otherwise the raw text.
	Content json.RawMessage

	Usage Usage

	// Model is the model that actually served the request.
	Model string

	// StopReason is normalized to "end", "max_tokens" or "refusal".
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
