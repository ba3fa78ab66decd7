// Package llamacpp binds the batch classifier contract to a llama.cpp
// server through its OpenAI-compatible chat completions endpoint.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vudang/BlurDetector/pkg/classifier"
	"github.com/vudang/BlurDetector/pkg/imageio"
	"github.com/vudang/BlurDetector/pkg/types"
)

const sendQuality = 90

// Client classifies patches through a llama.cpp server. It implements
// classifier.BatchClassifier and is safe for concurrent use.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// Message is an OpenAI-compatible chat message.
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content interface{} `json:"content"` // string or []ContentPart
		} `json:"message"`
	} `json:"choices"`
}

// NewClient creates a llama.cpp-backed classifier for the given server URL
// and model name.
func NewClient(serverURL, model string) (*Client, error) {
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	return &Client{
		baseURL:    strings.TrimSuffix(serverURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// Classify sends each patch to the server with the classification prompt
// and returns one prediction per patch in input order. Any per-patch
// failure fails the whole batch.
func (c *Client) Classify(ctx context.Context, patches []image.Image) ([]types.Prediction, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(len(patches))*60*time.Second)
		defer cancel()
	}

	preds := make([]types.Prediction, len(patches))
	for i, patch := range patches {
		pred, err := c.classifyOne(ctx, patch)
		if err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
		preds[i] = pred
	}
	return preds, nil
}

func (c *Client) classifyOne(ctx context.Context, patch image.Image) (types.Prediction, error) {
	imgB64, err := imageio.EncodeJPEGBase64(patch, sendQuality)
	if err != nil {
		return types.Prediction{}, fmt.Errorf("failed to encode patch: %w", err)
	}

	req := chatCompletionRequest{
		Model: c.model,
		Messages: []Message{
			{
				Role: "user",
				Content: []ContentPart{
					{Type: "text", Text: classifier.Prompt},
					{Type: "image_url", ImageURL: &ImageURL{URL: "data:image/jpeg;base64," + imgB64}},
				},
			},
		},
		Temperature: 0.0,
		MaxTokens:   256,
		Stream:      false,
	}

	respBody, err := c.sendRequest(ctx, "/v1/chat/completions", req)
	if err != nil {
		return types.Prediction{}, fmt.Errorf("request failed: %w", err)
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return types.Prediction{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return types.Prediction{}, fmt.Errorf("no choices in response")
	}

	text := extractText(resp.Choices[0].Message.Content)
	if text == "" {
		return types.Prediction{}, fmt.Errorf("no text content in response")
	}
	return classifier.ParsePrediction(text)
}

// extractText pulls the text out of a message content field, which llama.cpp
// returns either as a plain string or as an array of content parts.
func extractText(content interface{}) string {
	switch v := content.(type) {
	case string:
		return v
	case []interface{}:
		for _, item := range v {
			if part, ok := item.(map[string]interface{}); ok {
				if text, ok := part["text"].(string); ok && text != "" {
					return text
				}
			}
		}
	}
	return ""
}

func (c *Client) sendRequest(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
