// Package config provides centralized configuration management for repoScout.
package config

import (
	"os"
	"strconv"
)

// Default configuration values.
const (
	DefaultMaxIterations  = 5
	DefaultMaxFileSize    = 50000
	DefaultSessionWorkers = 4
)

// GetMaxIterations returns the iteration ceiling for a ReAct session.
// Configurable via REPOSCOUT_MAX_ITERATIONS environment variable.
func GetMaxIterations() int {
	return getEnvInt("REPOSCOUT_MAX_ITERATIONS", DefaultMaxIterations)
}

// GetSessionWorkers returns the number of concurrent query sessions the CLI
// batch mode will run. Configurable via REPOSCOUT_SESSION_WORKERS.
func GetSessionWorkers() int {
	return getEnvInt("REPOSCOUT_SESSION_WORKERS", DefaultSessionWorkers)
}

// GetMaxFileSize returns the byte ceiling for fetched repository files.
// Configurable via REPOSCOUT_MAX_FILE_SIZE.
func GetMaxFileSize() int {
	size := getEnvInt("REPOSCOUT_MAX_FILE_SIZE", DefaultMaxFileSize)
	// Validate range
	if size < 1024 || size > 10*1024*1024 {
		return DefaultMaxFileSize
	}
	return size
}

// GetMCPServerCommand returns the command used to spawn the search MCP
// server, or "" when the direct GitHub API backend should be used instead.
func GetMCPServerCommand() string {
	return os.Getenv("REPOSCOUT_MCP_SERVER")
}

// GetGitHubToken returns the GitHub API token, if any.
func GetGitHubToken() string {
	return os.Getenv("GITHUB_TOKEN")
}

// getEnvInt reads an integer from environment variable with a default fallback.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultVal
}
