package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Model output rarely arrives as clean JSON. recoverJSONArray runs an
// ordered chain of parse strategies and short-circuits on the first that
// yields an array; each element stays raw so one malformed object cannot
// sink its batch.

type parseStrategy struct {
	name string
	fn   func(string) ([]json.RawMessage, bool)
}

var parseStrategies = []parseStrategy{
	{"direct", parseDirect},
	{"bracket-slice", parseBracketSlice},
	{"regex-search", parseRegexSearch},
}

var arrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

func recoverJSONArray(text string) ([]json.RawMessage, string, bool) {
	text = stripCodeFences(text)
	for _, s := range parseStrategies {
		if arr, ok := s.fn(text); ok {
			return arr, s.name, true
		}
	}
	return nil, "", false
}

func stripCodeFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

func parseDirect(text string) ([]json.RawMessage, bool) {
	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(text), &arr); err != nil {
		return nil, false
	}
	return arr, true
}

func parseBracketSlice(text string) ([]json.RawMessage, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, false
	}
	return parseDirect(text[start : end+1])
}

func parseRegexSearch(text string) ([]json.RawMessage, bool) {
	m := arrayPattern.FindString(text)
	if m == "" {
		return nil, false
	}
	return parseDirect(m)
}
