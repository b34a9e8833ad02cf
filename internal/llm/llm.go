// Package llm isolates the language-model call behind a single interface so
// the agent logic stays independent of the concrete provider.
package llm

import (
	"context"
	"fmt"

	"github.com/XiaoConstantine/dspy-go/pkg/core"
)

// Role selects the model persona a completion request runs under. The
// planner and executor use dedicated roles; the ReAct loop uses one role for
// both reasoning and final synthesis.
type Role string

const (
	RoleReAct    Role = "react"
	RolePlanner  Role = "planner"
	RoleExecutor Role = "executor"
)

// Model is the one language-model operation the agents depend on. Responses
// are free text; callers apply their own parsing and fallback rules.
type Model interface {
	Complete(ctx context.Context, role Role, prompt string) (string, error)
}

// roleTokenBudget caps response length per role. Planning responses carry a
// whole JSON plan; per-iteration ReAct responses stay short.
var roleTokenBudget = map[Role]int{
	RoleReAct:    600,
	RolePlanner:  1200,
	RoleExecutor: 400,
}

// DspyModel adapts the process-wide dspy-go LLM to the Model interface.
type DspyModel struct {
	llm core.LLM
}

// NewDspyModel wraps the default LLM configured via core.ConfigureDefaultLLM.
func NewDspyModel() *DspyModel {
	return &DspyModel{llm: core.GetDefaultLLM()}
}

// NewDspyModelWith wraps a specific dspy-go LLM instance.
func NewDspyModelWith(llm core.LLM) *DspyModel {
	return &DspyModel{llm: llm}
}

func (m *DspyModel) Complete(ctx context.Context, role Role, prompt string) (string, error) {
	if m.llm == nil {
		return "", fmt.Errorf("no language model configured")
	}

	budget, ok := roleTokenBudget[role]
	if !ok {
		budget = roleTokenBudget[RoleReAct]
	}

	resp, err := m.llm.Generate(ctx, prompt, core.WithMaxTokens(budget))
	if err != nil {
		return "", fmt.Errorf("%s completion failed: %w", role, err)
	}
	return resp.Content, nil
}
