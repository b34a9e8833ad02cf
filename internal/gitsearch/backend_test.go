package gitsearch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnownTool(t *testing.T) {
	for _, name := range []string{
		ToolSearchRepositories, ToolRepositoryInfo, ToolRepositoryLangs,
		ToolRepositoryTree, ToolFileContent,
	} {
		assert.True(t, KnownTool(name), name)
	}
	assert.False(t, KnownTool("delete_repository"))
	assert.False(t, KnownTool(""))
}

func TestSucceeded(t *testing.T) {
	tests := []struct {
		name   string
		result ToolResult
		err    error
		want   bool
	}{
		{"ok payload", ToolResult{Data: `["a/b"]`}, nil, true},
		{"transport error", ToolResult{Data: `["a/b"]`}, fmt.Errorf("refused"), false},
		{"error payload", ToolResult{Data: "rate limited", IsError: true}, nil, false},
		{"empty payload", ToolResult{Data: "   "}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Succeeded(tt.result, tt.err))
		})
	}
}

func TestErrorCategory(t *testing.T) {
	assert.Equal(t, "transport_error", ErrorCategory(ToolResult{}, fmt.Errorf("refused")))
	assert.Equal(t, "tool_error", ErrorCategory(ToolResult{Data: "x", IsError: true}, nil))
	assert.Equal(t, "empty_result", ErrorCategory(ToolResult{Data: ""}, nil))
	assert.Equal(t, "", ErrorCategory(ToolResult{Data: "ok"}, nil))
}

func TestReposFromPayloadJSONArray(t *testing.T) {
	got := ReposFromPayload(`["django/django", "pallets/flask"]`)

	assert.Equal(t, []string{"django/django", "pallets/flask"}, got)
}

func TestReposFromPayloadObjectShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"repositories key", `{"repositories": ["a/b", "c/d"]}`},
		{"items key", `{"items": ["a/b", "c/d"]}`},
		{"repos key", `{"repos": ["a/b", "c/d"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, []string{"a/b", "c/d"}, ReposFromPayload(tt.payload))
		})
	}
}

func TestReposFromPayloadLineScan(t *testing.T) {
	payload := "Found these:\ndjango/django\nnot a repo name at all\npallets/flask\n"

	assert.Equal(t, []string{"django/django", "pallets/flask"}, ReposFromPayload(payload))
}

func TestReposFromPayloadFiltersAndDeduplicates(t *testing.T) {
	got := ReposFromPayload(`["a/b", "a/b", "not valid name!!", "", "c/d"]`)

	assert.Equal(t, []string{"a/b", "c/d"}, got)
}

func TestIsRepoName(t *testing.T) {
	assert.True(t, IsRepoName("tensorflow/tensorflow"))
	assert.True(t, IsRepoName("XiaoConstantine/dspy-go"))
	assert.False(t, IsRepoName("just-a-word"))
	assert.False(t, IsRepoName("a/b/c"))
	assert.False(t, IsRepoName("spaced name/repo"))
}
