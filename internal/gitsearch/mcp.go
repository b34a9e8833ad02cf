package gitsearch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	dspyLogging "github.com/XiaoConstantine/dspy-go/pkg/logging"
	"github.com/XiaoConstantine/mcp-go/pkg/client"
	mcpLogging "github.com/XiaoConstantine/mcp-go/pkg/logging"
	models "github.com/XiaoConstantine/mcp-go/pkg/model"
	"github.com/XiaoConstantine/mcp-go/pkg/transport"
)

// MCPBackend talks to a repository-search MCP server spawned as a subprocess
// over stdio. The server owns GitHub access; this side only names operations
// and classifies payloads.
type MCPBackend struct {
	mcpClient *client.Client
	logger    *dspyLogging.Logger
	mcpLogger mcpLogging.Logger
	cmd       *exec.Cmd
}

// NewMCPBackend starts the given server command and performs the MCP
// handshake. The command is split on whitespace; the first token is the
// executable.
func NewMCPBackend(serverCommand string) (*MCPBackend, error) {
	parts := strings.Fields(serverCommand)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty MCP server command")
	}

	cmd := exec.Command(parts[0], parts[1:]...)

	serverIn, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	serverOut, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	cmd.Stderr = os.Stderr

	// Run the server in its own process group so it does not receive
	// signals meant for the parent (like Ctrl+C).
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start search MCP server: %w", err)
	}

	// Give the server a moment to initialize
	time.Sleep(500 * time.Millisecond)

	logger := dspyLogging.GetLogger()
	mcpLogger := mcpLogging.NewStdLogger(mcpLogging.InfoLevel)

	stdio := transport.NewStdioTransport(serverOut, serverIn, mcpLogger)

	mcpClient := client.NewClient(
		stdio,
		client.WithLogger(mcpLogger),
		client.WithClientInfo("reposcout-search-client", "1.0.0"),
	)

	backend := &MCPBackend{
		mcpClient: mcpClient,
		logger:    logger,
		mcpLogger: mcpLogger,
		cmd:       cmd,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := mcpClient.Initialize(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to initialize MCP client: %w", err)
	}

	return backend, nil
}

// CallTool invokes a named server operation and flattens its text content
// into a single payload string.
func (b *MCPBackend) CallTool(ctx context.Context, name string, args map[string]interface{}) (ToolResult, error) {
	b.logger.Debug(ctx, "Calling search tool %s via MCP", name)

	result, err := b.mcpClient.CallTool(ctx, name, args)
	if err != nil {
		return ToolResult{}, fmt.Errorf("tool %s call failed: %w", name, err)
	}

	var output strings.Builder
	for _, content := range result.Content {
		if textContent, ok := content.(models.TextContent); ok {
			output.WriteString(textContent.Text)
		}
	}

	return ToolResult{Data: output.String(), IsError: result.IsError}, nil
}

// Close shuts down the MCP connection and terminates the server subprocess.
func (b *MCPBackend) Close() error {
	var firstErr error

	if b.mcpClient != nil {
		if err := b.mcpClient.Shutdown(); err != nil {
			firstErr = fmt.Errorf("error shutting down MCP client: %w", err)
		}
	}

	if b.cmd != nil && b.cmd.Process != nil {
		b.terminateProcess()
	}

	return firstErr
}

// terminateProcess gracefully stops the server with a SIGKILL fallback.
func (b *MCPBackend) terminateProcess() {
	pgid := b.cmd.Process.Pid

	done := make(chan error, 1)
	go func() {
		done <- b.cmd.Wait()
	}()

	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		b.logger.Debug(context.Background(), "Failed to send SIGTERM to process group: %v", err)
	}

	select {
	case <-done:
		b.logger.Debug(context.Background(), "Search MCP server terminated gracefully")
		return
	case <-time.After(2 * time.Second):
		b.logger.Debug(context.Background(), "Graceful shutdown timed out, sending SIGKILL")
	}

	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
		b.logger.Debug(context.Background(), "Failed to SIGKILL process group: %v", err)
		_ = b.cmd.Process.Kill()
	}

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		b.logger.Debug(context.Background(), "Process cleanup timed out")
	}
}
