package gitsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/XiaoConstantine/dspy-go/pkg/logging"
	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/XiaoConstantine/reposcout/internal/config"
)

// APIBackend implements the tool operations directly against the GitHub REST
// API, for deployments without a search MCP server in front.
type APIBackend struct {
	client *github.Client
	logger *logging.Logger
}

// NewAPIBackend creates a GitHub-API backend. An empty token yields an
// unauthenticated client subject to stricter rate limits.
func NewAPIBackend(token string) *APIBackend {
	ctx := context.Background()

	var client *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = github.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		client = github.NewClient(nil)
	}

	return &APIBackend{client: client, logger: logging.GetLogger()}
}

func (b *APIBackend) CallTool(ctx context.Context, name string, args map[string]interface{}) (ToolResult, error) {
	switch name {
	case ToolSearchRepositories:
		return b.searchRepositories(ctx, args)
	case ToolRepositoryInfo:
		return b.repositoryInfo(ctx, args)
	case ToolRepositoryLangs:
		return b.repositoryLanguages(ctx, args)
	case ToolRepositoryTree:
		return b.repositoryTree(ctx, args)
	case ToolFileContent:
		return b.fileContent(ctx, args)
	default:
		return ToolResult{Data: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
}

// Close is a no-op; the underlying HTTP client needs no teardown.
func (b *APIBackend) Close() error { return nil }

func (b *APIBackend) searchRepositories(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	query := stringArg(args, "query")
	if query == "" {
		return ToolResult{Data: "search query required", IsError: true}, nil
	}

	maxResults := intArg(args, "max_results", 5)
	if maxResults > 100 {
		maxResults = 100
	}
	sort := stringArg(args, "sort")
	if sort == "" {
		sort = "stars"
	}

	opts := &github.SearchOptions{
		Sort:        sort,
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: maxResults},
	}

	result, _, err := b.client.Search.Repositories(ctx, query, opts)
	if err != nil {
		return ToolResult{}, fmt.Errorf("repository search failed: %w", err)
	}

	names := make([]string, 0, len(result.Repositories))
	for i, repo := range result.Repositories {
		if i >= maxResults {
			break
		}
		names = append(names, repo.GetFullName())
	}

	b.logger.Debug(ctx, "GitHub search %q returned %d repositories", query, len(names))
	return marshalResult(names)
}

func (b *APIBackend) repositoryInfo(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	owner, repo, ok := splitFullName(stringArg(args, "full_name"))
	if !ok {
		return ToolResult{Data: "full_name must look like owner/repository", IsError: true}, nil
	}

	data, resp, err := b.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return ToolResult{Data: fmt.Sprintf("repository %s/%s not found", owner, repo), IsError: true}, nil
		}
		return ToolResult{}, fmt.Errorf("repository info fetch failed: %w", err)
	}

	info := map[string]interface{}{
		"name":           data.GetName(),
		"full_name":      data.GetFullName(),
		"description":    data.GetDescription(),
		"url":            data.GetHTMLURL(),
		"clone_url":      data.GetCloneURL(),
		"language":       data.GetLanguage(),
		"stars":          data.GetStargazersCount(),
		"forks":          data.GetForksCount(),
		"watchers":       data.GetWatchersCount(),
		"issues":         data.GetOpenIssuesCount(),
		"created_at":     data.GetCreatedAt().Format("2006-01-02T15:04:05Z"),
		"updated_at":     data.GetUpdatedAt().Format("2006-01-02T15:04:05Z"),
		"topics":         data.Topics,
		"default_branch": data.GetDefaultBranch(),
		"archived":       data.GetArchived(),
	}
	if lic := data.GetLicense(); lic != nil {
		info["license"] = lic.GetName()
	}
	if ownerInfo := data.GetOwner(); ownerInfo != nil {
		info["owner"] = map[string]interface{}{
			"login": ownerInfo.GetLogin(),
			"type":  ownerInfo.GetType(),
		}
	}

	return marshalResult(info)
}

func (b *APIBackend) repositoryLanguages(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	owner, repo, ok := splitFullName(stringArg(args, "full_name"))
	if !ok {
		return ToolResult{Data: "full_name must look like owner/repository", IsError: true}, nil
	}

	langs, resp, err := b.client.Repositories.ListLanguages(ctx, owner, repo)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return ToolResult{Data: fmt.Sprintf("repository %s/%s not found", owner, repo), IsError: true}, nil
		}
		return ToolResult{}, fmt.Errorf("language stats fetch failed: %w", err)
	}

	total := 0
	for _, bytes := range langs {
		total += bytes
	}

	stats := make(map[string]interface{}, len(langs))
	for lang, bytes := range langs {
		percentage := 0.0
		if total > 0 {
			percentage = float64(bytes) / float64(total) * 100
		}
		stats[lang] = map[string]interface{}{
			"bytes":      bytes,
			"percentage": fmt.Sprintf("%.2f", percentage),
		}
	}

	return marshalResult(map[string]interface{}{
		"repository":  owner + "/" + repo,
		"total_bytes": total,
		"languages":   stats,
	})
}

func (b *APIBackend) repositoryTree(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	owner, repo, ok := splitFullName(stringArg(args, "full_name"))
	if !ok {
		return ToolResult{Data: "full_name must look like owner/repository", IsError: true}, nil
	}
	path := stringArg(args, "path")

	file, dir, resp, err := b.client.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return ToolResult{Data: fmt.Sprintf("path %q not found in %s/%s", path, owner, repo), IsError: true}, nil
		}
		return ToolResult{}, fmt.Errorf("repository tree fetch failed: %w", err)
	}

	if dir != nil {
		items := make([]map[string]interface{}, 0, len(dir))
		for _, entry := range dir {
			item := map[string]interface{}{
				"name": entry.GetName(),
				"type": entry.GetType(),
				"path": entry.GetPath(),
			}
			if entry.GetType() == "file" {
				item["size"] = entry.GetSize()
			}
			items = append(items, item)
		}
		return marshalResult(map[string]interface{}{
			"repository":  owner + "/" + repo,
			"path":        orRoot(path),
			"type":        "directory",
			"items":       items,
			"total_items": len(items),
		})
	}

	return marshalResult(map[string]interface{}{
		"repository": owner + "/" + repo,
		"path":       path,
		"type":       "file",
		"name":       file.GetName(),
		"size":       file.GetSize(),
	})
}

func (b *APIBackend) fileContent(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	owner, repo, ok := splitFullName(stringArg(args, "full_name"))
	if !ok {
		return ToolResult{Data: "full_name must look like owner/repository", IsError: true}, nil
	}
	path := stringArg(args, "path")
	if path == "" {
		path = stringArg(args, "file_path")
	}
	if path == "" {
		return ToolResult{Data: "file path required", IsError: true}, nil
	}
	maxSize := intArg(args, "max_size", config.GetMaxFileSize())

	file, _, resp, err := b.client.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return ToolResult{Data: fmt.Sprintf("file %q not found in %s/%s", path, owner, repo), IsError: true}, nil
		}
		return ToolResult{}, fmt.Errorf("file content fetch failed: %w", err)
	}
	if file == nil {
		return ToolResult{Data: fmt.Sprintf("%q is a directory, not a file", path), IsError: true}, nil
	}

	if file.GetSize() > maxSize {
		return ToolResult{
			Data:    fmt.Sprintf("file %q is too large (%d bytes, limit %d)", path, file.GetSize(), maxSize),
			IsError: true,
		}, nil
	}

	content, err := file.GetContent()
	if err != nil {
		content = fmt.Sprintf("[binary file - %d bytes]", file.GetSize())
	}

	return marshalResult(map[string]interface{}{
		"repository": owner + "/" + repo,
		"file_path":  path,
		"name":       file.GetName(),
		"size":       file.GetSize(),
		"content":    content,
	})
}

// Argument helpers. Tool arguments arrive as loosely typed maps from parsed
// model output, so both native and string-encoded numbers are accepted.

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func intArg(args map[string]interface{}, key string, defaultVal int) int {
	switch v := args[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

func splitFullName(fullName string) (owner, repo string, ok bool) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func orRoot(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

func marshalResult(v interface{}) (ToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ToolResult{}, fmt.Errorf("failed to encode tool payload: %w", err)
	}
	return ToolResult{Data: string(data)}, nil
}
