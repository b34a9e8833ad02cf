// Package gitsearch provides the repository-search tool backend: a fixed set
// of named operations returning JSON-shaped payloads. Two implementations
// exist, one speaking MCP to a search server subprocess and one calling the
// GitHub REST API directly.
package gitsearch

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

// Tool operation names understood by every backend.
const (
	ToolSearchRepositories = "search_repositories"
	ToolRepositoryInfo     = "get_repository_info"
	ToolRepositoryLangs    = "get_repository_languages"
	ToolRepositoryTree     = "get_repository_tree"
	ToolFileContent        = "get_repository_file_content"
)

// KnownTool reports whether name is one of the backend operations.
func KnownTool(name string) bool {
	switch name {
	case ToolSearchRepositories, ToolRepositoryInfo, ToolRepositoryLangs,
		ToolRepositoryTree, ToolFileContent:
		return true
	}
	return false
}

// ToolResult is the outcome of one tool invocation. Data is an opaque
// JSON-ish payload; IsError marks error payloads returned by the tool itself
// (as opposed to transport failures, which surface as Go errors).
type ToolResult struct {
	Data    string
	IsError bool
}

// Backend is the tool-invocation interface shared by both execution modes.
type Backend interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (ToolResult, error)
	Close() error
}

// Succeeded classifies a tool outcome: transport errors, error payloads, and
// empty payloads all count as failure.
func Succeeded(res ToolResult, err error) bool {
	return err == nil && !res.IsError && strings.TrimSpace(res.Data) != ""
}

// ErrorCategory maps a failed tool outcome to a coarse category suitable for
// observations. It never exposes raw transport errors.
func ErrorCategory(res ToolResult, err error) string {
	switch {
	case err != nil:
		return "transport_error"
	case res.IsError:
		return "tool_error"
	case strings.TrimSpace(res.Data) == "":
		return "empty_result"
	default:
		return ""
	}
}

var repoNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// IsRepoName reports whether s looks like an "owner/name" identifier.
func IsRepoName(s string) bool {
	return repoNamePattern.MatchString(strings.TrimSpace(s))
}

// ReposFromPayload extracts repository full names from a search payload.
// The canonical shape is a JSON string array, but free-form payloads are
// tolerated by scanning lines for owner/name identifiers.
func ReposFromPayload(data string) []string {
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err == nil {
		return filterRepoNames(names)
	}

	// Tolerate a JSON object with an "items" or "repositories" array.
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &doc); err == nil {
		for _, key := range []string{"repositories", "items", "repos"} {
			if raw, ok := doc[key]; ok {
				if err := json.Unmarshal(raw, &names); err == nil {
					return filterRepoNames(names)
				}
			}
		}
	}

	// Last resort: line scan.
	for _, line := range strings.Split(data, "\n") {
		line = strings.Trim(strings.TrimSpace(line), `",`)
		if IsRepoName(line) {
			names = append(names, line)
		}
	}
	return filterRepoNames(names)
}

func filterRepoNames(in []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(in))
	for _, name := range in {
		name = strings.TrimSpace(name)
		if !IsRepoName(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
