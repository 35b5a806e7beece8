package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractObject parses a JSON object of type T from raw model output. It
// first tries the whole response, then falls back to the first balanced
// { ... } block, tolerating markdown code fences and surrounding prose.
func ExtractObject[T any](raw string) (T, error) {
	return extract[T](raw, '{', '}')
}

// ExtractArray parses a JSON array of type T from raw model output, with the
// same fallback behavior as ExtractObject but for [ ... ] blocks.
func ExtractArray[T any](raw string) (T, error) {
	return extract[T](raw, '[', ']')
}

func extract[T any](raw string, open, closing byte) (T, error) {
	var zero T

	cleaned := strings.TrimSpace(stripCodeFences(raw))

	var result T
	if err := json.Unmarshal([]byte(cleaned), &result); err == nil {
		return result, nil
	}

	block := balancedBlock(cleaned, open, closing)
	if block == "" {
		return zero, fmt.Errorf("%w: no JSON %c...%c block found in response", ErrInvalidOutput, open, closing)
	}
	if err := json.Unmarshal([]byte(block), &result); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return result, nil
}

// stripCodeFences removes markdown code fences (```json ... ``` or ``` ... ```).
func stripCodeFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// balancedBlock finds the first balanced open...close block, skipping
// brackets inside string literals.
func balancedBlock(s string, open, closing byte) string {
	start := strings.IndexByte(s, open)
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
