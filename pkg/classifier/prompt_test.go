package classifier

import (
	"math"
	"testing"

	"github.com/vudang/BlurDetector/pkg/types"
)

func TestParsePrediction(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantLbl  types.Label
		wantConf float64
	}{
		{
			name:     "plain JSON",
			raw:      `{"label":"blurred","confidence":0.92}`,
			wantLbl:  types.LabelBlurred,
			wantConf: 0.92,
		},
		{
			name:     "code-fenced JSON",
			raw:      "```json\n{\"label\":\"focused\",\"confidence\":0.8}\n```",
			wantLbl:  types.LabelFocused,
			wantConf: 0.8,
		},
		{
			name:     "JSON embedded in prose",
			raw:      `Sure! Here is the result: {"label":"blurred","confidence":0.6} Hope that helps.`,
			wantLbl:  types.LabelBlurred,
			wantConf: 0.6,
		},
		{
			name:     "trailing comma and comment",
			raw:      "{\"label\":\"focused\", // sharp edges\n\"confidence\":0.75,}",
			wantLbl:  types.LabelFocused,
			wantConf: 0.75,
		},
		{
			name:     "uppercase label normalized",
			raw:      `{"label":"Blurred","confidence":0.5}`,
			wantLbl:  types.LabelBlurred,
			wantConf: 0.5,
		},
		{
			name:     "confidence clamped to 1",
			raw:      `{"label":"blurred","confidence":1.4}`,
			wantLbl:  types.LabelBlurred,
			wantConf: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := ParsePrediction(tt.raw)
			if err != nil {
				t.Fatalf("ParsePrediction failed: %v", err)
			}
			if pred.Label != tt.wantLbl {
				t.Errorf("label = %q, want %q", pred.Label, tt.wantLbl)
			}
			if math.Abs(pred.Confidence[tt.wantLbl]-tt.wantConf) > 1e-9 {
				t.Errorf("confidence = %v, want %v", pred.Confidence[tt.wantLbl], tt.wantConf)
			}
		})
	}
}

func TestParsePredictionComplementaryConfidence(t *testing.T) {
	pred, err := ParsePrediction(`{"label":"blurred","confidence":0.9}`)
	if err != nil {
		t.Fatalf("ParsePrediction failed: %v", err)
	}
	if got := pred.Confidence[types.LabelFocused]; math.Abs(got-0.1) > 1e-9 {
		t.Errorf("focused confidence = %v, want complement 0.1", got)
	}
}

func TestParsePredictionUnknownLabelPassesThrough(t *testing.T) {
	// An out-of-set label is not rejected here; the aggregator treats it
	// as an integrity error.
	pred, err := ParsePrediction(`{"label":"grainy","confidence":0.7}`)
	if err != nil {
		t.Fatalf("ParsePrediction failed: %v", err)
	}
	if pred.Label != "grainy" {
		t.Errorf("label = %q, want passthrough %q", pred.Label, "grainy")
	}
	if len(pred.Confidence) != 1 {
		t.Errorf("unknown label should only carry its own confidence, got %v", pred.Confidence)
	}
}

func TestParsePredictionErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"non-JSON response", "The image looks blurry to me."},
		{"empty response", ""},
		{"missing label", `{"confidence":0.9}`},
		{"malformed JSON", `{"label": blurred}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePrediction(tt.raw); err == nil {
				t.Errorf("expected error for %q", tt.raw)
			}
		})
	}
}
