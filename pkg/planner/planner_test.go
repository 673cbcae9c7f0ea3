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
package planner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/heddle/pkg/skills"
	"github.com/teradata-labs/heddle/pkg/types"
)

// fakeLLM replays scripted responses and records the prompts it received.
type fakeLLM struct {
	responses []fakeResponse
	prompts   []string
}

type fakeResponse struct {
	content string
	err     error
}

func (f *fakeLLM) Complete(_ context.Context, messages []types.Message, _ types.CompletionOptions) (*types.CompletionResponse, error) {
	f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	idx := len(f.prompts) - 1
	if idx >= len(f.responses) {
		return nil, types.NewProviderError("no scripted response for call %d", idx+1)
	}
	r := f.responses[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &types.CompletionResponse{
		Content: r.content,
		Model:   "fake-model",
		Usage:   types.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func newTestRegistry(t *testing.T) *skills.Registry {
	t.Helper()
	root := t.TempDir()
	for name, description := range map[string]string{
		"weather":  "Fetches a weather forecast for a city",
		"currency": "Converts amounts between currencies",
	} {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		manifest := fmt.Sprintf("name: %s\ndescription: %s\ntags: [demo]\nversion: 1.0.0\n", name, description)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0o644))
	}
	registry, err := skills.NewRegistry(skills.Config{Dir: root})
	require.NoError(t, err)
	return registry
}

func newTestGenerator(t *testing.T, llm types.ChatCompleter) *Generator {
	t.Helper()
	g, err := NewGenerator(Config{LLM: llm, Registry: newTestRegistry(t)})
	require.NoError(t, err)
	return g
}

const planResponse = `<plan>{"selected_skills": ["weather"], "reasoning": "task needs a forecast"}</plan>`

const codeResponse = "```python\nforecast = await executor.execute('weather', {'city': 'Oslo'})\nprint(forecast)\n```"

func TestGenerateTwoPhases(t *testing.T) {
	llm := &fakeLLM{responses: []fakeResponse{
		{content: planResponse},
		{content: codeResponse},
	}}
	g := newTestGenerator(t, llm)

	result, err := g.Generate(context.Background(), Request{Task: "what is the weather in Oslo?"})
	require.NoError(t, err)

	assert.Equal(t, []string{"weather"}, result.SelectedSkills)
	assert.Equal(t, "task needs a forecast", result.Reasoning)
	assert.Contains(t, result.Code, "await executor.execute('weather'")
	assert.Equal(t, 2, result.LLMCalls)
	assert.Equal(t, types.Usage{PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30}, result.Usage)

	require.Len(t, llm.prompts, 2)
	// Phase 1 sees the full catalog; phase 2 only the selection, expanded.
	assert.Contains(t, llm.prompts[0], "- weather: Fetches a weather forecast for a city")
	assert.Contains(t, llm.prompts[0], "- currency: Converts amounts between currencies")
	assert.Contains(t, llm.prompts[0], "what is the weather in Oslo?")
	assert.Contains(t, llm.prompts[1], "### weather (v1.0.0)")
	assert.NotContains(t, llm.prompts[1], "### currency")
	assert.Contains(t, llm.prompts[1], "do not import asyncio")
}

func TestGenerateSkillNotFound(t *testing.T) {
	llm := &fakeLLM{responses: []fakeResponse{
		{content: `<plan>{"selected_skills": ["teleport"], "reasoning": "x"}</plan>`},
	}}
	g := newTestGenerator(t, llm)

	result, err := g.Generate(context.Background(), Request{Task: "teleport me"})
	require.Error(t, err)
	assert.Equal(t, types.KindSkillNotFound, types.KindOf(err))

	// Phase 2 never runs for an invalid selection.
	assert.Len(t, llm.prompts, 1)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.LLMCalls)
}

func TestGenerateUnparseablePlanStopsEarly(t *testing.T) {
	llm := &fakeLLM{responses: []fakeResponse{
		{content: "I refuse to produce a plan."},
	}}
	g := newTestGenerator(t, llm)

	result, err := g.Generate(context.Background(), Request{Task: "do something"})
	require.Error(t, err)
	assert.Equal(t, types.KindParse, types.KindOf(err))
	assert.Len(t, llm.prompts, 1)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.LLMCalls)
}

func TestGenerateEmptyTask(t *testing.T) {
	llm := &fakeLLM{}
	g := newTestGenerator(t, llm)

	_, err := g.Generate(context.Background(), Request{Task: "   "})
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
	assert.Empty(t, llm.prompts)
}

func TestGenerateProviderErrorPropagates(t *testing.T) {
	llm := &fakeLLM{responses: []fakeResponse{
		{err: types.NewProviderError("upstream 500")},
	}}
	g := newTestGenerator(t, llm)

	result, err := g.Generate(context.Background(), Request{Task: "do something"})
	require.Error(t, err)
	assert.Equal(t, types.KindProvider, types.KindOf(err))
	require.NotNil(t, result)
	assert.Equal(t, 1, result.LLMCalls)
}

func TestGenerateHistoryWindow(t *testing.T) {
	llm := &fakeLLM{responses: []fakeResponse{
		{content: planResponse},
		{content: codeResponse},
	}}
	g := newTestGenerator(t, llm)

	var history []types.ConversationTurn
	for i := 1; i <= 8; i++ {
		history = append(history, types.ConversationTurn{
			Role:      types.RoleUser,
			Content:   fmt.Sprintf("msg-%d", i),
			Timestamp: time.Now(),
		})
	}

	_, err := g.Generate(context.Background(), Request{Task: "continue", History: history})
	require.NoError(t, err)

	for _, prompt := range llm.prompts {
		assert.Contains(t, prompt, "<conversation_history>")
		assert.Contains(t, prompt, "msg-8")
		assert.Contains(t, prompt, "msg-4")
		assert.NotContains(t, prompt, "msg-3", "only the trailing window enters prompts")
	}
}

func TestGenerateVariablesSection(t *testing.T) {
	llm := &fakeLLM{responses: []fakeResponse{
		{content: planResponse},
		{content: codeResponse},
	}}
	g := newTestGenerator(t, llm)

	_, err := g.Generate(context.Background(), Request{
		Task:      "use what you know",
		Variables: map[string]any{"count": 2, "city": "Oslo"},
	})
	require.NoError(t, err)

	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[0], "<variables>")
	assert.Contains(t, llm.prompts[0], `city: "Oslo"`)
	assert.Contains(t, llm.prompts[0], "count: 2")
}

func TestGenerateOmitsEmptyContext(t *testing.T) {
	llm := &fakeLLM{responses: []fakeResponse{
		{content: planResponse},
		{content: codeResponse},
	}}
	g := newTestGenerator(t, llm)

	_, err := g.Generate(context.Background(), Request{Task: "first task"})
	require.NoError(t, err)

	assert.NotContains(t, llm.prompts[0], "<conversation_history>")
	assert.NotContains(t, llm.prompts[0], "<variables>")
}

func TestGenerateEmptySelection(t *testing.T) {
	llm := &fakeLLM{responses: []fakeResponse{
		{content: `<plan>{"selected_skills": [], "reasoning": "no skill applies"}</plan>`},
		{content: "```python\nprint('plain python')\n```"},
	}}
	g := newTestGenerator(t, llm)

	result, err := g.Generate(context.Background(), Request{Task: "say hello"})
	require.NoError(t, err)

	assert.Empty(t, result.SelectedSkills)
	assert.Contains(t, llm.prompts[1], "No skills were selected")
	assert.Equal(t, "print('plain python')", result.Code)
}

func TestGenerateStripsBoilerplate(t *testing.T) {
	llm := &fakeLLM{responses: []fakeResponse{
		{content: planResponse},
		{content: "```python\nimport asyncio\nasync def main():\n    print('hi')\nasyncio.run(main())\n```"},
	}}
	g := newTestGenerator(t, llm)

	result, err := g.Generate(context.Background(), Request{Task: "greet"})
	require.NoError(t, err)

	assert.NotContains(t, result.Code, "asyncio")
	assert.NotContains(t, result.Code, "def main")
	assert.Contains(t, result.Code, "print('hi')")
}

func TestNewGeneratorValidation(t *testing.T) {
	_, err := NewGenerator(Config{Registry: newTestRegistry(t)})
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	_, err = NewGenerator(Config{LLM: &fakeLLM{}})
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}
