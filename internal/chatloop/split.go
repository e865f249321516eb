package chatloop

import "strings"

// SplitMessage breaks text into chunks no longer than limit, preferring
// to break on a space so a word isn't cut in half (spec.md §6: "messages
// longer than the limit are split at a safe boundary").
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := limit
		if idx := strings.LastIndexByte(text[:limit], ' '); idx > 0 {
			cut = idx
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
