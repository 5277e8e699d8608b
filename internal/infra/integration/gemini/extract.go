package gemini

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencePattern  = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	objectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractResult reports how the reply text was turned into JSON.
type ExtractResult struct {
	Object map[string]any
	// Lossy is set when the object had to be cut out of surrounding text.
	Lossy bool
}

// StripFences removes markdown code-fence lines such as ```json and ```.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	// single-line form: ```json {...} ```
	if strings.HasPrefix(text, "```") && !strings.Contains(text, "\n") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimPrefix(text, "json")
		text = strings.TrimSuffix(text, "```")
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
}

// ExtractObject parses the model reply into a JSON object. It tries the
// fence-stripped text first and falls back to the greedy {...} substring.
// ok is false when neither yields an object.
func ExtractObject(text string) (ExtractResult, bool) {
	clean := StripFences(text)

	var obj map[string]any
	if err := json.Unmarshal([]byte(clean), &obj); err == nil && obj != nil {
		return ExtractResult{Object: obj}, true
	}

	match := objectPattern.FindString(clean)
	if match == "" {
		return ExtractResult{}, false
	}
	obj = nil
	if err := json.Unmarshal([]byte(match), &obj); err != nil || obj == nil {
		return ExtractResult{}, false
	}
	return ExtractResult{Object: obj, Lossy: true}, true
}

// HasKeys reports whether every key is present in obj.
func HasKeys(obj map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			return false
		}
	}
	return true
}
