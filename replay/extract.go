package replay

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON pulls the first JSON object out of an LLM response,
// tolerating markdown code fences and surrounding prose. Returns false
// if no valid JSON object is found.
func ExtractJSON(response string) ([]byte, bool) {
	// Fenced blocks first: judges are told to answer with JSON only,
	// but many wrap it in ```json anyway.
	for _, m := range fencedJSON.FindAllStringSubmatch(response, -1) {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) && strings.HasPrefix(candidate, "{") {
			return []byte(candidate), true
		}
	}

	// Fall back to the first balanced {...} span.
	if obj, ok := firstObject(response); ok {
		return obj, true
	}
	return nil, false
}

// firstObject scans for the first balanced top-level JSON object.
// Braces inside string literals are skipped.
func firstObject(s string) ([]byte, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					candidate := s[start : i+1]
					if json.Valid([]byte(candidate)) {
						return []byte(candidate), true
					}
					i = len(s) // abandon this start position
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start = start + 1 + next
	}
	return nil, false
}
