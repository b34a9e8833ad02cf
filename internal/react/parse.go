package react

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/XiaoConstantine/reposcout/internal/gitsearch"
)

// Action is a structured tool invocation extracted from model output.
type Action struct {
	Tool string
	Args map[string]interface{}
	Raw  string
}

// Model responses are expected to carry a line of the form
//
//	Action: search_repositories("python web framework", max_results=10, sort="stars")
//
// Parsing is strict grammar first: anything that does not match yields
// ok=false and the caller falls back to the suggested action, so a malformed
// response can never stall the loop.
var actionLine = regexp.MustCompile(`(?m)^\s*Action:\s*([A-Za-z_][A-Za-z0-9_]*)\s*\((.*)\)\s*$`)

// finalAnswerMarkers signal that the model considers the search complete.
var finalAnswerMarkers = []string{"final answer:", "最终答案:", "最终答案："}

// positionalArgKey maps each tool to the parameter its first unnamed
// argument binds to.
var positionalArgKey = map[string]string{
	gitsearch.ToolSearchRepositories: "query",
	gitsearch.ToolRepositoryInfo:     "full_name",
	gitsearch.ToolRepositoryLangs:    "full_name",
	gitsearch.ToolRepositoryTree:     "full_name",
	gitsearch.ToolFileContent:        "full_name",
}

// ParseAction extracts the first well-formed action from a model response.
func ParseAction(text string) (Action, bool) {
	m := actionLine.FindStringSubmatch(text)
	if m == nil {
		return Action{}, false
	}

	tool := m[1]
	if !gitsearch.KnownTool(tool) {
		return Action{}, false
	}

	return Action{
		Tool: tool,
		Args: parseArgs(tool, m[2]),
		Raw:  strings.TrimSpace(m[0]),
	}, true
}

// ParseFinalAnswer extracts a final-answer payload if the response carries a
// completion marker.
func ParseFinalAnswer(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, marker := range finalAnswerMarkers {
		if idx := strings.Index(lowered, marker); idx >= 0 {
			answer := strings.TrimSpace(text[idx+len(marker):])
			if answer != "" {
				return answer, true
			}
		}
	}
	return "", false
}

// parseArgs splits a call argument list into a parameter map. The grammar is
// a comma-separated sequence of quoted strings, bare numbers, and key=value
// pairs; commas inside quotes are preserved.
func parseArgs(tool, raw string) map[string]interface{} {
	args := make(map[string]interface{})
	positional := 0

	for _, part := range splitArgs(raw) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if key, value, ok := splitKeyValue(part); ok {
			args[key] = coerceValue(value)
			continue
		}

		// Unnamed argument: bind the first one to the tool's primary
		// parameter, ignore the rest.
		if positional == 0 {
			if key, ok := positionalArgKey[tool]; ok {
				args[key] = coerceValue(part)
			}
		}
		positional++
	}

	return args
}

// splitArgs splits on commas that are outside quoted regions.
func splitArgs(raw string) []string {
	var parts []string
	var current strings.Builder
	inQuote := false
	var quote byte

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case inQuote:
			current.WriteByte(c)
			if c == quote {
				inQuote = false
			}
		case c == '"' || c == '\'':
			inQuote = true
			quote = c
			current.WriteByte(c)
		case c == ',':
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// splitKeyValue recognizes key=value pairs where the key is a bare
// identifier. Quoted strings containing '=' are not key=value pairs.
func splitKeyValue(part string) (string, string, bool) {
	idx := strings.Index(part, "=")
	if idx <= 0 {
		return "", "", false
	}
	key := strings.TrimSpace(part[:idx])
	for _, r := range key {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return "", "", false
		}
	}
	return key, strings.TrimSpace(part[idx+1:]), true
}

func coerceValue(value string) interface{} {
	value = strings.TrimSpace(value)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			return value[1 : len(value)-1]
		}
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}
