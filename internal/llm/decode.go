package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ValidationError records a single validation failure on an LLM response.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// fenceRe matches a markdown code fence block (``` or ~~~) with an optional
// language tag and captures the content between the fences.
var fenceRe = regexp.MustCompile("(?s)^(?:`{3}|~{3})[^\\n]*\\n(.*?)(?:`{3}|~{3})\\s*$")

// openFenceRe matches only an opening fence line (no closing fence required).
var openFenceRe = regexp.MustCompile("^(?:`{3}|~{3})[^\\n]*\\n")

// StripMarkdownFences removes leading/trailing markdown code fences that LLMs
// sometimes wrap around JSON output (e.g., "```json\n...\n```"). If only an
// opening fence is present the opening line is stripped.
func StripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if loc := openFenceRe.FindStringIndex(s); loc != nil {
		return strings.TrimSpace(s[loc[1]:])
	}
	return s
}

// invalidJSONEscapeRe matches a backslash followed by any character that is not
// a valid JSON string escape character ("\/bfnrtu).
var invalidJSONEscapeRe = regexp.MustCompile(`\\([^"\\/bfnrtu])`)

// FixInvalidJSONEscapes double-escapes invalid JSON escape sequences in s.
func FixInvalidJSONEscapes(s string) string {
	return invalidJSONEscapeRe.ReplaceAllString(s, `\\$1`)
}

// DecodeJSON unmarshals a model response into v. Fences are stripped first;
// on failure the decoder retries with repaired escapes and then with the
// outermost {...} span, which recovers objects wrapped in prose. The
// returned error is a ValidationError on field "json_parse".
func DecodeJSON(raw string, v any) error {
	raw = StripMarkdownFences(raw)
	err := json.Unmarshal([]byte(raw), v)
	if err == nil {
		return nil
	}
	candidates := []string{FixInvalidJSONEscapes(raw)}
	if i, j := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); i >= 0 && j > i {
		span := raw[i : j+1]
		candidates = append(candidates, span, FixInvalidJSONEscapes(span))
	}
	for _, c := range candidates {
		if json.Unmarshal([]byte(c), v) == nil {
			return nil
		}
	}
	return ValidationError{Field: "json_parse", Message: err.Error()}
}
