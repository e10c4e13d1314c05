// Package gemini provides a structured-output AI completion client.
// Callers hand it a prompt and a response schema; they get schema-shaped
// JSON decoded into their own typed result struct.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Config for the Gemini client.
type Config struct {
	APIKey string
	Model  string
}

// Client wraps the genai SDK for single-shot structured completions.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini-backed structured completion client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{client: client, model: cfg.Model}, nil
}

// GenerateJSON runs one completion constrained to the given schema and decodes
// the response into out. Responses that are not valid JSON for out fail as a
// whole; no partial result is returned.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any) error {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
		Temperature:      genai.Ptr[float32](0.2),
	})
	if err != nil {
		return fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	text = stripCodeFence(text)
	if text == "" {
		return fmt.Errorf("empty model response")
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode model response: %w", err)
	}

	return nil
}

// stripCodeFence removes a markdown code fence if the model wrapped its JSON
// in one despite the JSON response MIME type.
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
