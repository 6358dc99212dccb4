package agents

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"joby/internal/domain"
)

// Lenient decoders for structured-ish model output. Models drift from the
// requested format, so every extractor tolerates absence and returns a
// zero value instead of erroring; the caller decides whether a missing
// piece degrades the response status.

var (
	jsonBlockRe     = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	scoreRe         = regexp.MustCompile(`Score:\s*(\d+)\s*/\s*100`)
	reasoningRe     = regexp.MustCompile(`(?s)Reasoning:\s*(.*?)(?:\n\n|$)`)
	suggestionsRe   = regexp.MustCompile(`(?s)Improvement Suggestions\s*\n(.*?)(?:\n\n|❓|$)`)
	clarificationRe = regexp.MustCompile(`(?s)❓\s*Clarification Question\s*\n(.*)$`)
	listItemRe      = regexp.MustCompile(`^(?:[-•*]\s+|\d+\.\s+)`)
)

// decodeAnalysis parses the analysis agent's sectioned response.
func decodeAnalysis(text string) AnalysisOutput {
	out := AnalysisOutput{
		Quality: domain.QualityScore{Score: extractScore(text), Reasoning: extractReasoning(text)},
	}

	if raw := extractJSONBlock(text); raw != nil {
		var profile domain.CandidateProfile
		if err := json.Unmarshal(raw, &profile); err == nil && profile.FullName != "" {
			out.Profile = &profile
		}
	}

	out.Suggestions = extractList(text, suggestionsRe)
	out.Clarification = extractClarification(text)
	return out
}

// extractJSONBlock returns the first fenced JSON block, or the whole text
// when it is itself a JSON object.
func extractJSONBlock(text string) json.RawMessage {
	if m := jsonBlockRe.FindStringSubmatch(text); m != nil {
		return json.RawMessage(m[1])
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	return nil
}

// extractScore returns the quality score, defaulting to 70 when the
// response omits the scored section.
func extractScore(text string) int {
	m := scoreRe.FindStringSubmatch(text)
	if m == nil {
		return 70
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 70
	}
	return n
}

func extractReasoning(text string) string {
	m := reasoningRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func extractList(text string, re *regexp.Regexp) []string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	var items []string
	for _, line := range strings.Split(m[1], "\n") {
		line = strings.TrimSpace(listItemRe.ReplaceAllString(strings.TrimSpace(line), ""))
		if line == "" || strings.EqualFold(line, "none") {
			continue
		}
		items = append(items, line)
	}
	return items
}

func extractClarification(text string) string {
	m := clarificationRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	q := strings.TrimSpace(m[1])
	if strings.EqualFold(q, "none") {
		return ""
	}
	return q
}
