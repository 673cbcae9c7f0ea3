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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/heddle/pkg/types"
)

func TestExtractPlanFromPlanBlock(t *testing.T) {
	content := `Sure, here is my plan.
<plan>{"selected_skills": ["weather", "currency"], "reasoning": "need forecast and rates"}</plan>
Let me know if you want changes.`

	plan, err := extractPlan(content)
	require.NoError(t, err)
	assert.Equal(t, []string{"weather", "currency"}, plan.SelectedSkills)
	assert.Equal(t, "need forecast and rates", plan.Reasoning)
}

func TestExtractPlanFromBareObject(t *testing.T) {
	content := `I'd select these: {"selected_skills": ["weather"], "reasoning": "forecast only"} — done.`

	plan, err := extractPlan(content)
	require.NoError(t, err)
	assert.Equal(t, []string{"weather"}, plan.SelectedSkills)
}

func TestExtractPlanFromFencedJSONWithRepair(t *testing.T) {
	// Single-quoted keys force the fence candidate and the repair pass.
	content := "```json\n{'selected_skills': ['weather'], 'reasoning': 'forecast'}\n```"

	plan, err := extractPlan(content)
	require.NoError(t, err)
	assert.Equal(t, []string{"weather"}, plan.SelectedSkills)
	assert.Equal(t, "forecast", plan.Reasoning)
}

func TestExtractPlanRepairsTrailingComma(t *testing.T) {
	content := `<plan>{"selected_skills": ["weather",], "reasoning": "forecast",}</plan>`

	plan, err := extractPlan(content)
	require.NoError(t, err)
	assert.Equal(t, []string{"weather"}, plan.SelectedSkills)
}

func TestExtractPlanRepairsUnterminatedObject(t *testing.T) {
	content := `<plan>{"selected_skills": ["weather"], "reasoning": "cut off`

	plan, err := extractPlan(content)
	require.NoError(t, err)
	assert.Equal(t, []string{"weather"}, plan.SelectedSkills)
}

func TestExtractPlanEmptySelection(t *testing.T) {
	content := `<plan>{"selected_skills": [], "reasoning": "plain python suffices"}</plan>`

	plan, err := extractPlan(content)
	require.NoError(t, err)
	assert.Empty(t, plan.SelectedSkills)
}

func TestExtractPlanNoMatch(t *testing.T) {
	for name, content := range map[string]string{
		"prose":           "I cannot help with that request.",
		"unrelated json":  `{"answer": 42}`,
		"empty":           "",
		"fenced non-json": "```\nnot json at all\n```",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := extractPlan(content)
			require.Error(t, err)
			assert.Equal(t, types.KindParse, types.KindOf(err))
		})
	}
}

func TestExtractCodeVariants(t *testing.T) {
	cases := map[string]struct {
		content string
		want    string
	}{
		"python fence": {
			content: "Here you go:\n```python\nprint('hello world')\n```\nEnjoy.",
			want:    "print('hello world')",
		},
		"py fence": {
			content: "```py\nvalue = compute()\n```",
			want:    "value = compute()",
		},
		"generic fence": {
			content: "```\nresult = await executor.execute('weather', {})\n```",
			want:    "result = await executor.execute('weather', {})",
		},
		"code tag": {
			content: "<code>print('tagged block')</code>",
			want:    "print('tagged block')",
		},
		"marker": {
			content: "CODE: print('after marker')",
			want:    " print('after marker')",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			code, err := extractCode(tc.content)
			require.NoError(t, err)
			assert.Equal(t, tc.want, code)
		})
	}
}

func TestExtractCodePrefersTaggedFence(t *testing.T) {
	content := "```python\nprint('from fence')\n```\n<code>print('from tag')</code>"

	code, err := extractCode(content)
	require.NoError(t, err)
	assert.Equal(t, "print('from fence')", code)
}

func TestExtractCodeTooShort(t *testing.T) {
	_, err := extractCode("```python\nx=1\n```")
	require.Error(t, err)
	assert.Equal(t, types.KindParse, types.KindOf(err))
}

func TestExtractCodeMissing(t *testing.T) {
	_, err := extractCode("There is nothing to run here.")
	require.Error(t, err)
	assert.Equal(t, types.KindParse, types.KindOf(err))
}

func TestStripBoilerplate(t *testing.T) {
	code := `import asyncio
async def main():
    data = await executor.execute('weather', {'city': 'Oslo'})
    print(data)

if __name__ == '__main__':
    asyncio.run(main())`

	got := stripBoilerplate(code)

	assert.NotContains(t, got, "import asyncio")
	assert.NotContains(t, got, "def main")
	assert.NotContains(t, got, "__name__")
	assert.NotContains(t, got, "asyncio.run")
	// The body survives with its indentation; normalization dedents later.
	assert.Contains(t, got, "    data = await executor.execute('weather', {'city': 'Oslo'})")
	assert.Contains(t, got, "    print(data)")
}

func TestStripBoilerplateDropsBareMainCall(t *testing.T) {
	code := "def main():\n    print('x')\n\nmain()"

	got := stripBoilerplate(code)
	assert.NotContains(t, got, "main()")
	assert.Contains(t, got, "    print('x')")
}

func TestStripBoilerplateKeepsCleanCode(t *testing.T) {
	code := "rates = await executor.execute('currency', {})\nprint(rates)"
	assert.Equal(t, code, stripBoilerplate(code))
}
