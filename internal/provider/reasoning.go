package provider

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// SplitReasoning separates a model response into its answer and reasoning
// channels. Reasoning models interleave deliberation inside <think> blocks;
// every block is collected into the reasoning channel and removed from the
// answer. An unterminated block swallows the rest of the output, matching how
// streaming backends emit the marker before any answer tokens.
func SplitReasoning(raw string) (answer, reasoning string) {
	rest := raw
	var answerParts, reasoningParts []string
	for {
		start := strings.Index(rest, thinkOpen)
		if start == -1 {
			answerParts = append(answerParts, rest)
			break
		}
		answerParts = append(answerParts, rest[:start])
		rest = rest[start+len(thinkOpen):]

		end := strings.Index(rest, thinkClose)
		if end == -1 {
			reasoningParts = append(reasoningParts, rest)
			break
		}
		reasoningParts = append(reasoningParts, rest[:end])
		rest = rest[end+len(thinkClose):]
	}
	answer = strings.TrimSpace(strings.Join(answerParts, ""))
	reasoning = strings.TrimSpace(strings.Join(reasoningParts, "\n"))
	return answer, reasoning
}

// ExtractJSON trims conversational filler and markdown fences around a JSON
// value in a model response. Small local models frequently wrap structured
// output despite a format constraint; the cut is by first/last bracket so
// nested values survive. Returns the input unchanged when no JSON delimiters
// are found.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")
	start, closer := objStart, "}"
	if start == -1 || (arrStart != -1 && arrStart < objStart) {
		start, closer = arrStart, "]"
	}
	if start == -1 {
		return s
	}
	end := strings.LastIndex(s, closer)
	if end <= start {
		return s
	}
	return s[start : end+1]
}
