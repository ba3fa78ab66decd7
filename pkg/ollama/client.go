// Package ollama binds the batch classifier contract to an Ollama server
// running a vision model.
package ollama

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/vudang/BlurDetector/pkg/classifier"
	"github.com/vudang/BlurDetector/pkg/imageio"
	"github.com/vudang/BlurDetector/pkg/types"
)

// sendQuality is the JPEG quality used for patches sent to the model.
// Patches are small fixed-size crops, so high quality keeps blur cues
// intact without much transport cost.
const sendQuality = 90

// Client classifies patches through the Ollama chat API. It implements
// classifier.BatchClassifier and is safe for concurrent use.
type Client struct {
	client *api.Client
	model  string
}

// NewClient creates an Ollama-backed classifier for the given server URL
// and model name. Any path on the URL (e.g. /api/chat) is ignored.
func NewClient(serverURL, model string) (*Client, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &Client{
		client: api.NewClient(base, http.DefaultClient),
		model:  model,
	}, nil
}

// Classify sends each patch to the model with the classification prompt and
// returns one prediction per patch in input order. Any per-patch failure
// fails the whole batch.
func (c *Client) Classify(ctx context.Context, patches []image.Image) ([]types.Prediction, error) {
	// Vision models on CPU are slow; give the batch a generous default
	// deadline when the caller did not set one.
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
	imgData, err := imageio.EncodeJPEG(patch, sendQuality)
	if err != nil {
		return types.Prediction{}, fmt.Errorf("failed to encode patch: %w", err)
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: classifier.Prompt,
				Images:  []api.ImageData{api.ImageData(imgData)},
			},
		},
		Stream: &streamFalse,
		Options: map[string]any{
			"temperature": 0.0,
		},
	}

	var responseContent string
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent = resp.Message.Content
		return nil
	})
	if err != nil {
		return types.Prediction{}, fmt.Errorf("ollama chat error: %w", err)
	}
	if responseContent == "" {
		return types.Prediction{}, fmt.Errorf("empty response from ollama")
	}

	return classifier.ParsePrediction(responseContent)
}
