package extraction

import "strings"

// JSONSpan returns the text between the first '{' and the last '}' inclusive.
// Models often wrap JSON in prose or code fences; this recovers the object
// without trying to balance braces.
func JSONSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
