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
package skills

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Manifest file names, in lookup order.
var manifestFileNames = []string{"manifest.yaml", "manifest.yml"}

// discover scans root exactly one level deep and loads a manifest from
// each subdirectory. Subdirectories without a manifest are skipped
// silently; malformed manifests are skipped with a warning. The returned
// slice follows the lexical directory order, so on duplicate names the
// later entry wins when inserted into a map.
func discover(root string, logger *zap.Logger) ([]*Manifest, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var manifests []*Manifest
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(root, entry.Name())
		manifest, err := loadManifest(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			logger.Warn("skipping malformed skill manifest",
				zap.String("dir", dir),
				zap.Error(err))
			continue
		}

		applyDefaults(manifest, entry.Name(), dir)
		validateSchemas(manifest, logger)
		manifests = append(manifests, manifest)
	}

	return manifests, nil
}

// loadManifest reads and parses the first manifest file present in dir.
func loadManifest(dir string) (*Manifest, error) {
	for _, name := range manifestFileNames {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		var manifest Manifest
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		return &manifest, nil
	}
	return nil, os.ErrNotExist
}

// applyDefaults fills the fields the manifest may omit.
func applyDefaults(m *Manifest, dirName, dir string) {
	if m.Name == "" {
		m.Name = dirName
	}
	if m.Description == "" {
		m.Description = fmt.Sprintf("Skill loaded from %s", dirName)
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	m.Path = dir
}

// validateSchemas checks that declared input/output schemas compile as
// JSON Schema documents. A schema that does not compile is cleared; the
// manifest itself stays usable.
func validateSchemas(m *Manifest, logger *zap.Logger) {
	if m.InputSchema != nil {
		if err := compileSchema(m.InputSchema); err != nil {
			logger.Warn("skill declares invalid input_schema, ignoring it",
				zap.String("skill", m.Name),
				zap.Error(err))
			m.InputSchema = nil
		}
	}
	if m.OutputSchema != nil {
		if err := compileSchema(m.OutputSchema); err != nil {
			logger.Warn("skill declares invalid output_schema, ignoring it",
				zap.String("skill", m.Name),
				zap.Error(err))
			m.OutputSchema = nil
		}
	}
}

func compileSchema(schema map[string]interface{}) error {
	_, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	return err
}
