package model

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"google.golang.org/genai"
)

const (
	backoffBase = 1 * time.Second
	backoffCap  = 10 * time.Second
	maxRetries  = 3
)

// GeminiClient talks to Google's Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a client for the given API key and model. An
// empty model defaults to "gemini-2.5-flash-lite".
func NewGeminiClient(apiKey, modelName string) (*GeminiClient, error) {
	if modelName == "" {
		modelName = "gemini-2.5-flash-lite"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client, model: modelName}, nil
}

func (c *GeminiClient) convertMessages(messages []Message) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range messages {
		role := msg.Role
		if role == "assistant" {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}
	return contents
}

func (c *GeminiClient) extractSystemInstruction(messages []Message) (string, []Message) {
	var systemInstruction string
	var remaining []Message
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemInstruction != "" {
				systemInstruction += "\n\n"
			}
			systemInstruction += msg.Content
		} else {
			remaining = append(remaining, msg)
		}
	}
	return systemInstruction, remaining
}

// withBackoff retries fn on 5xx/connection-style failures with exponential
// backoff and jitter, up to maxRetries. It does not attempt to distinguish
// retryable from non-retryable errors beyond that count, since the genai
// client does not expose a stable structured error type to branch on.
func withBackoff(fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt == maxRetries {
			break
		}

		delay := backoffBase * time.Duration(1<<uint(attempt))
		if delay > backoffCap {
			delay = backoffCap
		}
		jitter := time.Duration(rand.Int63n(int64(delay) / 10))
		time.Sleep(delay + jitter)
	}
	return "", lastErr
}

// Chat sends a non-streaming request and returns the complete response.
func (c *GeminiClient) Chat(messages []Message) (string, error) {
	return withBackoff(func() (string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
		defer cancel()

		systemInstruction, conversation := c.extractSystemInstruction(messages)
		contents := c.convertMessages(conversation)

		var config *genai.GenerateContentConfig
		if systemInstruction != "" {
			config = &genai.GenerateContentConfig{
				SystemInstruction: &genai.Content{
					Parts: []*genai.Part{genai.NewPartFromText(systemInstruction)},
				},
			}
		}

		response, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
		if err != nil {
			return "", fmt.Errorf("gemini (model: %s) request failed: %w", c.model, err)
		}
		return response.Text(), nil
	})
}

// ChatStream sends a streaming request and calls callback for each chunk.
func (c *GeminiClient) ChatStream(messages []Message, callback StreamCallback) (string, error) {
	ctx := context.Background()

	systemInstruction, conversation := c.extractSystemInstruction(messages)
	contents := c.convertMessages(conversation)

	var config *genai.GenerateContentConfig
	if systemInstruction != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{genai.NewPartFromText(systemInstruction)},
			},
		}
	}

	var fullContent string
	for response, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, config) {
		if err != nil {
			if fullContent != "" {
				return fullContent, fmt.Errorf("streaming interrupted: %w", err)
			}
			return "", fmt.Errorf("gemini streaming failed: %w", err)
		}
		chunk := response.Text()
		if chunk != "" {
			fullContent += chunk
			if callback != nil {
				callback(chunk)
			}
		}
	}

	return fullContent, nil
}

// CheckConnection verifies the Gemini API is reachable.
func (c *GeminiClient) CheckConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{genai.NewPartFromText("Hello")}},
	}
	_, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to Gemini API: %w", err)
	}
	return nil
}

// GetModel returns the model name in use.
func (c *GeminiClient) GetModel() string {
	return c.model
}
