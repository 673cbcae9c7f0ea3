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
	"encoding/json"
	"sort"
	"strings"

	"github.com/teradata-labs/heddle/pkg/skills"
	"github.com/teradata-labs/heddle/pkg/types"
)

// buildContext renders the shared context section: the trailing history
// window and the session variables. Empty inputs produce an empty section.
func (g *Generator) buildContext(history []types.ConversationTurn, variables map[string]any) string {
	var sb strings.Builder

	if len(history) > g.historyWindow {
		history = history[len(history)-g.historyWindow:]
	}
	if len(history) > 0 {
		sb.WriteString("<conversation_history>\n")
		for _, turn := range history {
			sb.WriteString(string(turn.Role))
			sb.WriteString(": ")
			sb.WriteString(turn.Content)
			sb.WriteString("\n")
		}
		sb.WriteString("</conversation_history>\n\n")
	}

	if len(variables) > 0 {
		names := make([]string, 0, len(variables))
		for name := range variables {
			names = append(names, name)
		}
		sort.Strings(names)

		sb.WriteString("<variables>\n")
		for _, name := range names {
			encoded, err := json.Marshal(variables[name])
			if err != nil {
				encoded = []byte(`"<unencodable>"`)
			}
			sb.WriteString(name)
			sb.WriteString(": ")
			sb.Write(encoded)
			sb.WriteString("\n")
		}
		sb.WriteString("</variables>\n\n")
	}

	return sb.String()
}

// buildPlanPrompt renders the phase-1 prompt: context, the full skill
// catalog, the task, and the expected <plan> response shape.
func (g *Generator) buildPlanPrompt(contextSection, task string) string {
	var sb strings.Builder
	sb.WriteString("You are a planning assistant for an automation system. ")
	sb.WriteString("Decide which skills are needed to complete the task.\n\n")
	sb.WriteString(contextSection)

	sb.WriteString("Available skills:\n")
	catalog := g.registry.List()
	if len(catalog) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, m := range catalog {
		sb.WriteString("- ")
		sb.WriteString(m.Name)
		sb.WriteString(": ")
		sb.WriteString(m.Description)
		sb.WriteString("\n")
	}
	sb.WriteString("\nTask: ")
	sb.WriteString(task)
	sb.WriteString("\n\n")

	sb.WriteString("Respond with exactly one plan block in this format:\n")
	sb.WriteString(`<plan>{"selected_skills": ["skill_name"], "reasoning": "one sentence"}</plan>`)
	sb.WriteString("\n\n")
	sb.WriteString("Select only skills from the list above, in the order they should run. ")
	sb.WriteString("Use an empty list when plain Python is enough.\n")
	return sb.String()
}

// buildCodePrompt renders the phase-2 prompt: context, expanded descriptions
// of the selected skills, the task, and the snippet rules.
func (g *Generator) buildCodePrompt(contextSection, task string, selected []*skills.Manifest) string {
	var sb strings.Builder
	sb.WriteString("You are a Python engineer. Write a short program that completes the task.\n\n")
	sb.WriteString(contextSection)

	if len(selected) > 0 {
		sb.WriteString("Selected skills:\n\n")
		for _, m := range selected {
			sb.WriteString("### ")
			sb.WriteString(m.Name)
			if m.Version != "" {
				sb.WriteString(" (v")
				sb.WriteString(m.Version)
				sb.WriteString(")")
			}
			sb.WriteString("\n")
			sb.WriteString(m.Description)
			sb.WriteString("\n")
			if len(m.Tags) > 0 {
				sb.WriteString("Tags: ")
				sb.WriteString(strings.Join(m.Tags, ", "))
				sb.WriteString("\n")
			}
			sb.WriteString("\n")
		}
		sb.WriteString("Call a skill with: result = await executor.execute('skill_name', {\"param\": value})\n")
	} else {
		sb.WriteString("No skills were selected; solve the task with plain Python.\n")
	}
	sb.WriteString("Expose values to later tasks with: set_variable('name', value)\n\n")

	sb.WriteString("Task: ")
	sb.WriteString(task)
	sb.WriteString("\n\n")

	sb.WriteString("Your code is inserted into an async entry point automatically, so:\n")
	sb.WriteString("- top-level await is allowed\n")
	sb.WriteString("- do not define a main function\n")
	sb.WriteString("- do not add an if __name__ == '__main__' guard\n")
	sb.WriteString("- do not import asyncio or call asyncio.run()\n")
	sb.WriteString("- use print() for user-visible output\n\n")

	sb.WriteString("Return only the program in a fenced code block:\n")
	sb.WriteString("```python\n# your code\n```\n")
	return sb.String()
}
