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
package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/heddle/internal/log"
	"github.com/teradata-labs/heddle/pkg/skills"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List discovered skills",
	Long: `Skills lists every manifest found under the skills directory, in the
form the planner sees them: name, version, type, tags, and description.`,
	RunE: listSkills,
}

func init() {
	rootCmd.AddCommand(skillsCmd)
}

func listSkills(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	registry, err := skills.NewRegistry(skills.Config{
		Dir:    cfg.Skills.Dir,
		Logger: log.Logger(),
	})
	if err != nil {
		return fmt.Errorf("skill discovery failed: %w", err)
	}

	manifests := registry.List()
	if len(manifests) == 0 {
		fmt.Printf("no skills found under %s\n", registry.Dir())
		return nil
	}

	nameStyle := lipgloss.NewStyle().Bold(true)
	for _, m := range manifests {
		details := []string{}
		if m.Version != "" {
			details = append(details, "v"+m.Version)
		}
		if m.Type != "" {
			details = append(details, m.Type)
		}
		if len(m.Tags) > 0 {
			details = append(details, strings.Join(m.Tags, ", "))
		}
		header := nameStyle.Render(m.Name)
		if len(details) > 0 {
			header += " " + faintStyle.Render("("+strings.Join(details, " · ")+")")
		}
		fmt.Println(header)
		if m.Description != "" {
			fmt.Printf("  %s\n", m.Description)
		}
	}

	fmt.Println(faintStyle.Render(fmt.Sprintf("%d skills in %s", registry.Count(), registry.Dir())))
	return nil
}
