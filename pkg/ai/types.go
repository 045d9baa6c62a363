package ai

import (
	"context"
	"encoding/json"
)

// Provider is a generative backend that answers a prompt with structured JSON.
type Provider interface {
	// Generate sends the prompt and returns the model output. When the request
	// carries a Schema the returned Content has already been validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier the provider is configured with.
	ModelID() string
}

// Request describes a single prompt call.
type Request struct {
	System      string
	Messages    []Message
	Schema      *Schema
	MaxTokens   int
	Temperature float64
}

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserMessage is a shorthand for a single user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Schema is the JSON schema the model output must satisfy.
type Schema struct {
	// Name is a kebab-case identifier, also used as the compiled schema cache key.
	Name        string
	Description string
	Definition  map[string]any
}

// Response holds the validated model output.
type Response struct {
	Content    json.RawMessage
	Usage      Usage
	Model      string
	StopReason string
}

// Usage reports token consumption for a call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Decode unmarshals the response content into target, reporting failures as
// validation errors so callers treat them like any other malformed output.
func (r *Response) Decode(schemaName string, target any) error {
	if r == nil {
		return &ValidationError{Schema: schemaName, Err: errEmptyResponse}
	}
	if err := json.Unmarshal(r.Content, target); err != nil {
		return &ValidationError{Schema: schemaName, Content: r.Content, Err: err}
	}
	return nil
}
