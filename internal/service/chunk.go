package service

import "strings"

// chunkContent splits content into boundary-preserving pieces no longer than
// maxLen runes, carrying overlap runes of context back from the end of each
// chunk into the start of the next (spec §4.5.3). Split points are chosen by
// priority: a double newline, else a single newline, else a sentence
// terminator, else a space, else a hard character cut. Grounded on the
// teacher's internal/llm/chunker.go sentence-aware splitting, reshaped from
// token-based sizing to character-based sizing with an explicit boundary
// priority list.
func chunkContent(content string, maxLen, overlap int) []string {
	runes := []rune(content)
	if len(runes) <= maxLen {
		if len(runes) == 0 {
			return nil
		}
		return []string{content}
	}
	if overlap < 0 || overlap >= maxLen {
		overlap = 0
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + maxLen
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := findSplitPoint(runes[start:end])
		if cut <= 0 {
			cut = maxLen
		}
		chunkEnd := start + cut
		chunks = append(chunks, string(runes[start:chunkEnd]))

		next := chunkEnd - overlap
		if next <= start {
			next = chunkEnd
		}
		start = next
	}
	return chunks
}

// findSplitPoint returns the offset (exclusive) within window to cut at,
// preferring the rightmost boundary of the highest-priority kind so the
// resulting chunk is as close to the window's length as possible.
func findSplitPoint(window []rune) int {
	text := string(window)

	if i := strings.LastIndex(text, "\n\n"); i > 0 {
		return len([]rune(text[:i])) + 2
	}
	if i := strings.LastIndex(text, "\n"); i > 0 {
		return len([]rune(text[:i])) + 1
	}
	if i := lastSentenceEnd(window); i > 0 {
		return i
	}
	if i := strings.LastIndex(text, " "); i > 0 {
		return len([]rune(text[:i])) + 1
	}
	return len(window)
}

// lastSentenceEnd returns the rune offset just past the last ".", "!", or
// "?" in window that is followed by whitespace or end-of-window, or 0 if
// none is found.
func lastSentenceEnd(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		r := window[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 == len(window) {
			continue // no lookahead room; prefer a later, confirmed boundary first
		}
		if window[i+1] == ' ' || window[i+1] == '\n' || window[i+1] == '\t' {
			return i + 2
		}
	}
	return 0
}
