// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package planner turns a task into an executable Python program through a
// two-phase LLM protocol: a plan phase that selects skills, then an
// implementation phase that writes code against the selected skills.
package planner

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/observability"
	"github.com/teradata-labs/heddle/pkg/skills"
	"github.com/teradata-labs/heddle/pkg/types"
)

// DefaultHistoryWindow bounds how many conversation turns enter a prompt.
const DefaultHistoryWindow = 5

// Config parameterizes a Generator.
type Config struct {
	// LLM performs both completion calls. Required.
	LLM types.ChatCompleter

	// Registry supplies skill metadata and validates selections. Required.
	Registry *skills.Registry

	// HistoryWindow overrides DefaultHistoryWindow when positive.
	HistoryWindow int

	Logger *zap.Logger
	Tracer observability.Tracer
}

// Request carries one generation's inputs.
type Request struct {
	Task      string
	History   []types.ConversationTurn
	Variables map[string]any
}

// Result is the generated program plus diagnostics. SelectedSkills and
// Reasoning are informational; downstream components only need Code.
type Result struct {
	SelectedSkills []string
	Reasoning      string
	Code           string

	// LLMCalls counts completion round trips attempted, including the one
	// that failed when an error is returned alongside a partial Result.
	LLMCalls int
	Usage    types.Usage
}

// Generator drives the two-phase protocol.
type Generator struct {
	llm           types.ChatCompleter
	registry      *skills.Registry
	historyWindow int
	logger        *zap.Logger
	tracer        observability.Tracer
}

// NewGenerator validates cfg and builds a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.LLM == nil {
		return nil, types.NewValidationError("planner requires an LLM client")
	}
	if cfg.Registry == nil {
		return nil, types.NewValidationError("planner requires a skill registry")
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoOpTracer()
	}
	return &Generator{
		llm:           cfg.LLM,
		registry:      cfg.Registry,
		historyWindow: cfg.HistoryWindow,
		logger:        cfg.Logger,
		tracer:        cfg.Tracer,
	}, nil
}

// Generate runs both phases and returns the cleaned program source.
//
// On failure the returned Result, when non-nil, still carries LLMCalls and
// Usage accumulated before the failure so callers can report metadata.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := g.tracer.StartSpan(ctx, "planner.generate", observability.WithSpanKind("llm"))
	defer g.tracer.EndSpan(span)

	if strings.TrimSpace(req.Task) == "" {
		err := types.NewValidationError("task is empty")
		span.RecordError(err)
		return nil, err
	}

	result := &Result{}
	contextSection := g.buildContext(req.History, req.Variables)

	// Phase 1: plan.
	planPrompt := g.buildPlanPrompt(contextSection, req.Task)
	result.LLMCalls++
	planResp, err := g.llm.Complete(ctx, []types.Message{
		{Role: types.RoleUser, Content: planPrompt},
	}, types.CompletionOptions{})
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	addUsage(&result.Usage, planResp.Usage)

	plan, err := extractPlan(planResp.Content)
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	result.SelectedSkills = plan.SelectedSkills
	result.Reasoning = plan.Reasoning
	span.SetAttribute("skills.selected", len(plan.SelectedSkills))

	// Selections are validated against the registry as it stands now, not
	// as it stood when the skill list was rendered.
	selected := make([]*skills.Manifest, 0, len(plan.SelectedSkills))
	for _, name := range plan.SelectedSkills {
		manifest, ok := g.registry.Get(name)
		if !ok {
			err := types.NewSkillNotFoundError(name)
			span.RecordError(err)
			return result, err
		}
		selected = append(selected, manifest)
	}

	g.logger.Debug("plan phase complete",
		zap.Strings("selected_skills", plan.SelectedSkills),
		zap.String("reasoning", plan.Reasoning))

	// Phase 2: implement.
	codePrompt := g.buildCodePrompt(contextSection, req.Task, selected)
	result.LLMCalls++
	codeResp, err := g.llm.Complete(ctx, []types.Message{
		{Role: types.RoleUser, Content: codePrompt},
	}, types.CompletionOptions{})
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	addUsage(&result.Usage, codeResp.Usage)

	code, err := extractCode(codeResp.Content)
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	result.Code = stripBoilerplate(code)

	span.SetAttribute("code.bytes", len(result.Code))
	return result, nil
}

func addUsage(total *types.Usage, u types.Usage) {
	total.PromptTokens += u.PromptTokens
	total.CompletionTokens += u.CompletionTokens
	total.TotalTokens += u.TotalTokens
}
