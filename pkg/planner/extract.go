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
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/teradata-labs/heddle/pkg/types"
)

// minCodeLength rejects degenerate extractions like "ok" or "```".
const minCodeLength = 5

const codeMarker = "CODE:"

var (
	planBlockRe    = regexp.MustCompile(`(?s)<plan>(.*?)</plan>`)
	fencedJSONRe   = regexp.MustCompile("(?s)```(?:json)?[ \t]*\\r?\\n?(.*?)```")
	pythonFenceRe  = regexp.MustCompile("(?s)```(?:python|py)[ \t]*\\r?\\n(.*?)```")
	genericFenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\\r?\\n(.*?)```")
	codeTagRe      = regexp.MustCompile(`(?s)<code>(.*?)</code>`)
)

// skillPlan is the phase-1 response payload.
type skillPlan struct {
	SelectedSkills []string `json:"selected_skills"`
	Reasoning      string   `json:"reasoning"`
}

// extractPlan pulls the plan JSON out of model output. Candidates are tried
// in order: a <plan> block, any object containing the selection key, then a
// fenced block. Each candidate gets a strict parse and one repair attempt.
func extractPlan(content string) (*skillPlan, error) {
	var candidates []string
	if m := planBlockRe.FindStringSubmatch(content); m != nil {
		candidates = append(candidates, m[1])
	}
	if obj, ok := objectContaining(content, `"selected_skills"`); ok {
		candidates = append(candidates, obj)
	}
	if m := fencedJSONRe.FindStringSubmatch(content); m != nil {
		candidates = append(candidates, m[1])
	}

	for _, candidate := range candidates {
		obj, ok := firstJSONObject(candidate)
		if !ok {
			continue
		}
		if plan, ok := parsePlan(obj); ok {
			return plan, nil
		}
	}
	return nil, types.NewParseError("no skill plan found in model output")
}

// parsePlan unmarshals raw, retrying once through jsonrepair. The selection
// key must be present; an unrelated JSON object is not a plan.
func parsePlan(raw string) (*skillPlan, bool) {
	var p skillPlan
	if err := json.Unmarshal([]byte(raw), &p); err == nil {
		return &p, strings.Contains(raw, `"selected_skills"`)
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &p); err != nil {
		return nil, false
	}
	return &p, strings.Contains(repaired, `"selected_skills"`)
}

// extractCode pulls program source out of model output: a python-tagged
// fence, any fence, a <code> block, or everything after a CODE: marker.
func extractCode(content string) (string, error) {
	var raw string
	switch {
	case pythonFenceRe.MatchString(content):
		raw = pythonFenceRe.FindStringSubmatch(content)[1]
	case genericFenceRe.MatchString(content):
		raw = genericFenceRe.FindStringSubmatch(content)[1]
	case codeTagRe.MatchString(content):
		raw = codeTagRe.FindStringSubmatch(content)[1]
	case strings.Contains(content, codeMarker):
		raw = content[strings.Index(content, codeMarker)+len(codeMarker):]
	default:
		return "", types.NewParseError("no code block found in model output")
	}

	code := strings.Trim(raw, "\r\n")
	if len(strings.TrimSpace(code)) < minCodeLength {
		return "", types.NewParseError("extracted code is too short to be a program")
	}
	return code, nil
}

var boilerplateLineRes = []*regexp.Regexp{
	regexp.MustCompile(`^\s*(?:async\s+)?def\s+main\s*\(`),
	regexp.MustCompile(`^\s*if\s+__name__\s*==`),
	regexp.MustCompile(`^\s*asyncio\.run\s*\(`),
	regexp.MustCompile(`^\s*import\s+asyncio\s*$`),
	regexp.MustCompile(`^\s*(?:await\s+)?main\s*\(\s*\)\s*$`),
}

// stripBoilerplate drops scaffolding lines the model emitted despite the
// prompt rules: main declarations, module-main guards, asyncio runners and
// imports. Body lines under a removed declaration keep their indentation;
// sandbox normalization dedents them.
func stripBoilerplate(code string) string {
	lines := strings.Split(code, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		drop := false
		for _, re := range boilerplateLineRes {
			if re.MatchString(line) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// firstJSONObject returns the first balanced {...} span in s. An
// unterminated object returns the tail so the repair pass can close it.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return s[start:], true
}

// objectContaining finds the object whose body holds key, by walking back
// from the key to its enclosing brace.
func objectContaining(s, key string) (string, bool) {
	idx := strings.Index(s, key)
	if idx < 0 {
		return "", false
	}
	start := strings.LastIndexByte(s[:idx], '{')
	if start < 0 {
		return "", false
	}
	return firstJSONObject(s[start:])
}
