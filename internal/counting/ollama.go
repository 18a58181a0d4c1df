package counting

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Ollama implements the Counter interface using a local Ollama server
type Ollama struct {
	model  string
	client *resty.Client
}

// NewOllama creates a new Ollama Counter instance
// Any vision model works; llava and qwen2-vl count reasonably well.
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(120 * time.Second) // vision models are slow on CPU

	return &Ollama{
		model:  modelName,
		client: client,
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Count sends the image to Ollama and parses the count out of its reply
func (o *Ollama) Count(ctx context.Context, payload string) (int, error) {
	imageData, _, err := prepareImageData(payload)
	if err != nil {
		return 0, err
	}

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "user",
				Content: countPrompt,
				Images:  []string{base64.StdEncoding.EncodeToString(imageData)},
			},
		},
	}

	var chatResp ollamaChatResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&chatResp).
		Post("/api/chat")
	if err != nil {
		return 0, fmt.Errorf("calling ollama API: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode(), resp.String())
	}

	return parseCount(chatResp.Message.Content), nil
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
