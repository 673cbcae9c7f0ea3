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

// Package skills discovers skill manifests from disk and exposes them
// through a read-mostly registry. A skill is a directory containing a
// manifest.yaml plus whatever implementation files the sandbox loads at
// run time; only the manifest metadata matters here.
package skills

// Skill type tags. Free-form in the manifest, but these are the values
// the catalog understands.
const (
	TypePurePrompt = "pure-prompt"
	TypePureScript = "pure-script"
	TypeHybrid     = "hybrid"
)

// Manifest describes one skill. Immutable after discovery.
type Manifest struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Tags        []string `yaml:"tags" json:"tags"`
	Version     string   `yaml:"version,omitempty" json:"version,omitempty"`
	Type        string   `yaml:"type,omitempty" json:"type,omitempty"` // pure-prompt, pure-script, hybrid

	// Declared parameter contracts. Validated as JSON Schema documents at
	// load time; cleared with a warning when they do not compile.
	InputSchema  map[string]interface{} `yaml:"input_schema,omitempty" json:"input_schema,omitempty"`
	OutputSchema map[string]interface{} `yaml:"output_schema,omitempty" json:"output_schema,omitempty"`

	// PromptTemplate carries instructions for pure-prompt and hybrid skills.
	PromptTemplate string `yaml:"prompt_template,omitempty" json:"prompt_template,omitempty"`

	// Execution describes how script-backed skills run inside the sandbox.
	Execution *Execution `yaml:"execution,omitempty" json:"execution,omitempty"`

	// Path is the directory the manifest was loaded from. Set during
	// discovery, never read from YAML.
	Path string `yaml:"-" json:"path"`
}

// Execution holds runtime hints for script-backed skills.
type Execution struct {
	Entrypoint string `yaml:"entrypoint,omitempty" json:"entrypoint,omitempty"`
	Runtime    string `yaml:"runtime,omitempty" json:"runtime,omitempty"`
	TimeoutMs  int    `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
}

// HasTag reports whether the manifest carries the given tag.
func (m *Manifest) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
