package app

import (
	"bytes"
	"encoding/json"
	"strings"

	"contest-grading-service/internal/domain"
)

// essayAliases are the sub-fields checked, in order, when answers is an object.
var essayAliases = []string{"essay", "content", "answer"}

// resolveEssayText finds the essay in a payload. The lookup order is kept
// exactly as clients have always relied on it:
// essay, content, answer, answers (string), answers.{essay,content,answer},
// then the first non-empty string anywhere inside answers.
func resolveEssayText(p domain.SubmitPayload) string {
	for _, field := range []*string{p.Essay, p.Content, p.Answer} {
		if field != nil {
			if s := strings.TrimSpace(*field); s != "" {
				return s
			}
		}
	}

	raw := bytes.TrimSpace(p.Answers)
	if len(raw) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return strings.TrimSpace(asString)
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asObject); err == nil {
		for _, key := range essayAliases {
			var s string
			if v, ok := asObject[key]; ok && json.Unmarshal(v, &s) == nil {
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
			}
		}
	}

	return firstStringValue(raw)
}

// firstStringValue walks raw JSON in document order and returns the first
// non-empty string value, skipping object keys.
func firstStringValue(raw json.RawMessage) string {
	type frame struct{ object, wantKey bool }

	dec := json.NewDecoder(bytes.NewReader(raw))
	var stack []frame
	valueDone := func() {
		if n := len(stack); n > 0 && stack[n-1].object {
			stack[n-1].wantKey = true
		}
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{':
				stack = append(stack, frame{object: true, wantKey: true})
			case '[':
				stack = append(stack, frame{})
			default:
				stack = stack[:len(stack)-1]
				valueDone()
			}
			continue
		}
		if n := len(stack); n > 0 && stack[n-1].wantKey {
			stack[n-1].wantKey = false
			continue
		}
		if s, ok := tok.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
		valueDone()
	}
}

// decodeAnswerMap reads answers as questionId -> answer. Non-string values
// are kept as their JSON literal text; null entries count as unanswered.
func decodeAnswerMap(raw json.RawMessage) (map[string]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, domain.Invalid("answers are required")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, domain.Invalid("answers must be an object of questionId to answer")
	}
	answers := make(map[string]string, len(fields))
	for id, v := range fields {
		v = bytes.TrimSpace(v)
		if bytes.Equal(v, []byte("null")) {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			answers[id] = s
			continue
		}
		answers[id] = string(v)
	}
	return answers, nil
}
