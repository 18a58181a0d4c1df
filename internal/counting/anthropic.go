package counting

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com"
	anthropicAPIVersion = "2023-06-01"
	anthropicMaxTokens  = 16
)

// Anthropic implements the Counter interface using the Anthropic Messages API
type Anthropic struct {
	model  string
	client *resty.Client
}

// NewAnthropic creates a new Anthropic Counter instance
func NewAnthropic(apiKey, modelName, baseURL string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, ErrMissingCredentials
	}
	if modelName == "" {
		modelName = "claude-3-haiku-20240307"
	}
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", anthropicAPIVersion).
		SetHeader("content-type", "application/json").
		SetTimeout(30 * time.Second)

	return &Anthropic{
		model:  modelName,
		client: client,
	}, nil
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Count sends the image to Anthropic and parses the count out of its reply
func (a *Anthropic) Count(ctx context.Context, payload string) (int, error) {
	imageData, mimeType, err := prepareImageData(payload)
	if err != nil {
		return 0, err
	}

	reqBody := anthropicRequest{
		Model:     a.model,
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropicMessage{
			{
				Role: "user",
				Content: []anthropicContent{
					{
						Type: "image",
						Source: &anthropicSource{
							Type:      "base64",
							MediaType: mimeType,
							Data:      base64.StdEncoding.EncodeToString(imageData),
						},
					},
					{Type: "text", Text: countPrompt},
				},
			},
		},
	}

	var respBody anthropicResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&respBody).
		Post("/v1/messages")
	if err != nil {
		return 0, fmt.Errorf("anthropic api call: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("anthropic api error (status %d): %s", resp.StatusCode(), resp.String())
	}

	var reply strings.Builder
	for _, block := range respBody.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}

	return parseCount(reply.String()), nil
}

// Close is a no-op for the HTTP client
func (a *Anthropic) Close() error {
	return nil
}
