package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/XiaoConstantine/dspy-go/pkg/core"
	"github.com/XiaoConstantine/dspy-go/pkg/llms"
	"github.com/XiaoConstantine/dspy-go/pkg/logging"
	"github.com/briandowns/spinner"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/XiaoConstantine/reposcout/internal/config"
	"github.com/XiaoConstantine/reposcout/internal/gitsearch"
	"github.com/XiaoConstantine/reposcout/internal/llm"
	"github.com/XiaoConstantine/reposcout/internal/planex"
	"github.com/XiaoConstantine/reposcout/internal/react"
	"github.com/XiaoConstantine/reposcout/internal/router"
	"github.com/XiaoConstantine/reposcout/internal/types"
)

func main() {
	_ = godotenv.Load()

	ctx := core.WithExecutionState(context.Background())
	apiKey := flag.String("api-key", "", "Anthropic API Key")
	githubToken := flag.String("github-token", config.GetGitHubToken(), "GitHub Token")
	mcpServer := flag.String("mcp-server", config.GetMCPServerCommand(), "Command to spawn the search MCP server (empty: direct GitHub API)")
	mode := flag.String("mode", "", "Force execution mode: react or plan_execute")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	logLevel := logging.INFO
	if *debug {
		logLevel = logging.DEBUG
	}

	output := logging.NewConsoleOutput(true, logging.WithColor(true))

	logger := logging.NewLogger(logging.Config{
		Severity: logLevel,
		Outputs:  []logging.Output{output},
	})
	logging.SetLogger(logger)

	forced, err := parseForcedMode(*mode)
	if err != nil {
		logger.Error(ctx, "%v", err)
		os.Exit(1)
	}

	llms.EnsureFactory()
	if err := core.ConfigureDefaultLLM(*apiKey, "llamacpp:"); err != nil {
		logger.Error(ctx, "Failed to configure LLM: %v", err)
	}

	backend, err := buildBackend(*mcpServer, *githubToken)
	if err != nil {
		logger.Error(ctx, "Failed to start search backend: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn(ctx, "Backend shutdown: %v", err)
		}
	}()

	model := llm.NewDspyModel()
	loop := react.NewLoop(model, backend)
	coordinator := planex.NewCoordinator(
		planex.NewPlanner(model), backend, model,
		planex.WithReactFallback(loop),
	)
	service := router.NewSearchService(router.NewRouter(loop, coordinator))

	queries := flag.Args()
	if len(queries) == 0 {
		query, err := promptForQuery()
		if err != nil {
			logger.Error(ctx, "Failed to read query: %v", err)
			os.Exit(1)
		}
		queries = []string{query}
	}

	var execOpts []router.ExecuteOption
	if forced != "" {
		execOpts = append(execOpts, router.WithForcedMode(forced))
	}

	if len(queries) == 1 {
		runSingle(ctx, logger, service, queries[0], execOpts)
		return
	}
	runBatch(ctx, logger, service, queries, execOpts)
}

func parseForcedMode(mode string) (types.Mode, error) {
	switch mode {
	case "":
		return "", nil
	case string(types.ModeReAct):
		return types.ModeReAct, nil
	case string(types.ModePlanExecute):
		return types.ModePlanExecute, nil
	}
	return "", fmt.Errorf("unknown mode %q, expected react or plan_execute", mode)
}

func buildBackend(mcpServer, githubToken string) (gitsearch.Backend, error) {
	if mcpServer != "" {
		return gitsearch.NewMCPBackend(mcpServer)
	}
	return gitsearch.NewAPIBackend(githubToken), nil
}

func promptForQuery() (string, error) {
	var query string
	prompt := &survey.Input{
		Message: "What would you like to search for?",
		Help:    "Describe the repositories you are looking for, e.g. \"Django vs Flask 哪个更好\"",
	}
	if err := survey.AskOne(prompt, &query, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}
	return strings.TrimSpace(query), nil
}

func runSingle(ctx context.Context, logger *logging.Logger, service *router.SearchService, query string, opts []router.ExecuteOption) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Prefix = "Searching "
	if err := s.Color("cyan"); err != nil {
		logger.Error(ctx, "Failed to start spinner properly")
	}

	s.Start()
	result, err := service.Search(ctx, query, opts...)
	s.Stop()

	if err != nil {
		logger.Error(ctx, "Search failed: %v", err)
		if result != nil {
			fmt.Println("\nPartial findings:")
			printResult(result)
		}
		os.Exit(1)
	}
	printResult(result)
}

func runBatch(ctx context.Context, logger *logging.Logger, service *router.SearchService, queries []string, opts []router.ExecuteOption) {
	logger.Info(ctx, "Running %d queries with %d workers", len(queries), config.GetSessionWorkers())

	results := make([]*types.Result, len(queries))
	errs := make([]error, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.GetSessionWorkers())
	for i, query := range queries {
		g.Go(func() error {
			results[i], errs[i] = service.Search(gctx, query, opts...)
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	for i, query := range queries {
		fmt.Printf("\n=== Query %d: %s ===\n", i+1, query)
		if errs[i] != nil {
			failures++
			logger.Error(ctx, "Query %q failed: %v", query, errs[i])
			if results[i] != nil {
				fmt.Println("Partial findings:")
				printResult(results[i])
			}
			continue
		}
		printResult(results[i])
	}
	if failures > 0 {
		os.Exit(1)
	}
}

func printResult(result *types.Result) {
	fmt.Printf("\nMode: %s (session %s)\n", result.ModeUsed, result.SessionID)
	if result.PlanSummary != "" {
		fmt.Printf("Plan: %s\n", result.PlanSummary)
	}
	fmt.Printf("Execution: %s\n", result.ExecutionSummary)

	fmt.Printf("\n%s\n", result.Results.Summary)

	if len(result.Results.DiscoveredRepositories) > 0 {
		fmt.Println("\nRepositories:")
		for _, repo := range result.Results.DiscoveredRepositories {
			fmt.Printf("  - %s\n", repo)
		}
	}
	if len(result.Results.KeyFindings) > 0 {
		fmt.Println("\nKey findings:")
		for _, finding := range result.Results.KeyFindings {
			fmt.Printf("  - %s\n", finding)
		}
	}
	fmt.Printf("\nSuccess rate: %.0f%%\n", result.Results.SuccessRate*100)
	fmt.Printf("Recommendation: %s\n", result.Recommendation)
}
