package classifier

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/vudang/BlurDetector/pkg/types"
)

// Prompt is the classification prompt sent to vision-model backends for
// each patch.
const Prompt = `You are an image sharpness classifier.

Look at the image patch and decide whether it is blurred (out of focus,
motion blurred, soft) or focused (sharp, crisp detail).

Return JSON only:
{"label": "blurred" | "focused", "confidence": 0.0}

HARD RULES
- "label" must be exactly "blurred" or "focused", lowercase.
- "confidence" is your confidence in the chosen label, in [0,1].
- JSON only. No markdown, no code fences, no comments, no extra keys.`

// modelPrediction is the raw JSON shape returned by vision-model backends.
type modelPrediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ParsePrediction parses a model response into a Prediction. The top-label
// confidence is mirrored into a per-label confidence map; an unknown label
// is passed through so the aggregator can reject it as an integrity error.
func ParsePrediction(raw string) (types.Prediction, error) {
	raw = sanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return types.Prediction{}, fmt.Errorf("model returned non-JSON response: %q", truncate(raw, 120))
	}

	var mp modelPrediction
	if err := json.Unmarshal([]byte(raw), &mp); err != nil {
		return types.Prediction{}, fmt.Errorf("failed to parse model response: %w", err)
	}

	label := types.Label(strings.ToLower(strings.TrimSpace(mp.Label)))
	if label == "" {
		return types.Prediction{}, fmt.Errorf("model response missing label")
	}

	conf := clamp(mp.Confidence, 0, 1)
	pred := types.Prediction{
		Label:      label,
		Confidence: map[types.Label]float64{label: conf},
	}
	if label.Known() {
		for _, other := range types.Labels() {
			if other != label {
				pred.Confidence[other] = 1 - conf
			}
		}
	}
	return pred, nil
}

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInlineComment = regexp.MustCompile(`(?m)//.*$`)
	reTrailing      = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments, and trailing commas, and
// keeps only the outermost JSON object. Vision models routinely wrap their
// output despite being told not to.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reInlineComment.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
