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

package sandbox

import (
	"strconv"
	"strings"

	"github.com/teradata-labs/heddle/pkg/types"
)

// bodyIndent places the normalized program inside the async entry point.
const bodyIndent = "        " // 8 spaces

// variablesPrefix marks the stdout line carrying surfaced variables.
const variablesPrefix = "__HEDDLE_VARIABLES__"

// WrapOptions parameterizes Wrap.
type WrapOptions struct {
	// SkillsRoot is embedded in the prelude for module path extension and
	// executor construction. Empty disables path extension.
	SkillsRoot string
}

// Wrap normalizes source and embeds it in the sandbox runtime scaffold.
// It is a pure function: no filesystem or process access.
//
// Normalization strips the minimum leading whitespace shared by all
// non-empty lines, then indents the program to sit inside the generated
// async entry point. Blank lines pass through untouched. A program that is
// empty after normalization is rejected with a validation error before any
// subprocess is spawned.
func Wrap(source string, opts WrapOptions) (string, error) {
	body, err := normalize(source)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("import asyncio\n")
	b.WriteString("import glob\n")
	b.WriteString("import json\n")
	b.WriteString("import os\n")
	b.WriteString("import sys\n")
	b.WriteString("\n")
	b.WriteString("_SKILLS_ROOT = " + pyString(opts.SkillsRoot) + "\n")
	b.WriteString("if _SKILLS_ROOT:\n")
	b.WriteString("    sys.path.insert(0, _SKILLS_ROOT)\n")
	b.WriteString("    _src = os.path.join(os.path.dirname(_SKILLS_ROOT), \"src\")\n")
	b.WriteString("    if os.path.isdir(_src):\n")
	b.WriteString("        sys.path.insert(0, _src)\n")
	b.WriteString("    for _sp in glob.glob(os.path.join(_SKILLS_ROOT, \"python_modules\", \"lib\", \"python3.*\", \"site-packages\")):\n")
	b.WriteString("        sys.path.insert(0, _sp)\n")
	b.WriteString("\n")
	b.WriteString("try:\n")
	b.WriteString("    from skill_runtime import SkillExecutor\n")
	b.WriteString("    executor = SkillExecutor(_SKILLS_ROOT)\n")
	b.WriteString("except Exception:\n")
	b.WriteString("    class _StubExecutor:\n")
	b.WriteString("        async def execute(self, skill, params=None):\n")
	b.WriteString("            raise RuntimeError(f\"skill runtime is not installed; cannot execute {skill!r}\")\n")
	b.WriteString("    executor = _StubExecutor()\n")
	b.WriteString("\n")
	b.WriteString("_VARIABLES = {}\n")
	b.WriteString("\n")
	b.WriteString("def set_variable(name, value):\n")
	b.WriteString("    _VARIABLES[name] = value\n")
	b.WriteString("\n")
	b.WriteString("async def main():\n")
	b.WriteString("    try:\n")
	b.WriteString(body)
	b.WriteString("        if _VARIABLES:\n")
	b.WriteString("            print(\"" + variablesPrefix + " \" + json.dumps(_VARIABLES, default=str))\n")
	b.WriteString("    except Exception as e:\n")
	b.WriteString("        print(json.dumps({\"error\": str(e), \"success\": False, \"error_type\": type(e).__name__}))\n")
	b.WriteString("\n")
	b.WriteString("asyncio.run(main())\n")

	return b.String(), nil
}

// normalize dedents source and re-indents it for the entry point body.
func normalize(source string) (string, error) {
	lines := strings.Split(source, "\n")

	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if minIndent < 0 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent < 0 {
		// Only blank lines (or nothing at all).
		return "", types.NewValidationError("generated code is empty after normalization")
	}

	var b strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(bodyIndent)
		b.WriteString(line[minIndent:])
		b.WriteString("\n")
	}
	return b.String(), nil
}

// pyString renders s as a Python string literal. Go's quoted form uses only
// escapes Python also understands.
func pyString(s string) string {
	return strconv.Quote(s)
}
