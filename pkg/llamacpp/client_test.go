package llamacpp

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vudang/BlurDetector/pkg/types"
)

func testPatch() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 32, 32))
}

func TestClassify(t *testing.T) {
	responses := []string{
		`{"label":"blurred","confidence":0.9}`,
		`{"label":"focused","confidence":0.7}`,
	}
	call := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Messages) != 1 || len(req.Messages[0].Content) != 2 {
			t.Errorf("expected one message with text and image parts, got %+v", req.Messages)
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": responses[call%len(responses)]}},
			},
		}
		call++
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "test-model")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	preds, err := client.Classify(context.Background(), []image.Image{testPatch(), testPatch()})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if len(preds) != 2 {
		t.Fatalf("got %d predictions, want 2", len(preds))
	}
	if preds[0].Label != types.LabelBlurred || preds[1].Label != types.LabelFocused {
		t.Errorf("labels = %q, %q; want blurred, focused", preds[0].Label, preds[1].Label)
	}
	if preds[0].Confidence[types.LabelBlurred] != 0.9 {
		t.Errorf("confidence = %v, want 0.9", preds[0].Confidence[types.LabelBlurred])
	}
}

func TestClassifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "test-model")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := client.Classify(context.Background(), []image.Image{testPatch()}); err == nil {
		t.Error("expected error from failing server")
	}
}

func TestExtractText(t *testing.T) {
	if got := extractText("plain"); got != "plain" {
		t.Errorf("extractText(string) = %q", got)
	}

	parts := []interface{}{
		map[string]interface{}{"type": "text", "text": "from parts"},
	}
	if got := extractText(parts); got != "from parts" {
		t.Errorf("extractText(parts) = %q", got)
	}

	if got := extractText(42); got != "" {
		t.Errorf("extractText(unexpected) = %q, want empty", got)
	}
}
