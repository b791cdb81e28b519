package model

import "fmt"

// OfflineClient is a deterministic Client used in tests and in environments
// with no configured LLM credentials. It never calls out to a network and
// always succeeds, so callers exercise the Model Adapter's extraction and
// fallback logic without a live provider.
type OfflineClient struct {
	model string
}

// NewOfflineClient constructs an OfflineClient reporting the given model
// name (purely cosmetic; it never sends a real request).
func NewOfflineClient(modelName string) *OfflineClient {
	if modelName == "" {
		modelName = "offline"
	}
	return &OfflineClient{model: modelName}
}

// Chat returns a canned acknowledgement of the last message's role and
// length, enough for the Model Adapter's parsing paths to exercise real
// code rather than a mock.
func (c *OfflineClient) Chat(messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}
	last := messages[len(messages)-1]
	return fmt.Sprintf("{\"note\": \"offline response to %d-char %s message\"}", len(last.Content), last.Role), nil
}

// ChatStream delivers the Chat response as a single chunk.
func (c *OfflineClient) ChatStream(messages []Message, callback StreamCallback) (string, error) {
	result, err := c.Chat(messages)
	if err != nil {
		return "", err
	}
	if callback != nil {
		callback(result)
	}
	return result, nil
}

// CheckConnection always succeeds.
func (c *OfflineClient) CheckConnection() error { return nil }

// GetModel returns the configured model label.
func (c *OfflineClient) GetModel() string { return c.model }
