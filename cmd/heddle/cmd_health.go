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
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/heddle/internal/log"
	"github.com/teradata-labs/heddle/pkg/llm/factory"
	"github.com/teradata-labs/heddle/pkg/observability"
	"github.com/teradata-labs/heddle/pkg/sandbox"
	"github.com/teradata-labs/heddle/pkg/skills"
	"github.com/teradata-labs/heddle/pkg/storage"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the interpreter, LLM configuration, storage, and skills",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	healthy := true
	report := func(component string, err error, okDetail string) {
		if err != nil {
			healthy = false
			fmt.Printf("%s %s: %v\n", errStyle.Render("✗"), component, err)
			return
		}
		if okDetail != "" {
			fmt.Printf("%s %s: %s\n", okStyle.Render("✓"), component, okDetail)
		} else {
			fmt.Printf("%s %s\n", okStyle.Render("✓"), component)
		}
	}

	// Interpreter
	adapter, err := sandbox.NewPythonAdapter(sandbox.Config{
		PythonPath: cfg.Sandbox.PythonPath,
		Workspace:  cfg.Sandbox.Workspace,
		Logger:     log.Logger(),
	})
	if err != nil {
		report("sandbox", err, "")
	} else {
		info := adapter.Info()
		report("sandbox", adapter.HealthCheck(ctx), info.Interpreter)
	}

	// LLM configuration (constructing the client validates provider + key)
	_, err = factory.NewCompleter(factory.Config{
		Provider:        cfg.LLM.Provider,
		Model:           cfg.LLM.Model,
		BaseURL:         cfg.LLM.BaseURL,
		AnthropicAPIKey: cfg.LLM.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.LLM.OpenAIAPIKey,
		Logger:          log.Logger(),
	})
	report("llm", err, cfg.LLM.Provider)

	// History store
	store, err := storage.Open(ctx, cfg.Storage, observability.NewNoOpTracer())
	if err != nil {
		report("storage", err, "")
	} else {
		_, pingErr := store.Get(ctx, "health", "ping")
		report("storage", pingErr, cfg.Storage.Backend)
		_ = store.Close()
	}

	// Skills
	registry, err := skills.NewRegistry(skills.Config{Dir: cfg.Skills.Dir, Logger: log.Logger()})
	if err != nil {
		report("skills", err, "")
	} else {
		report("skills", nil, fmt.Sprintf("%d discovered", registry.Count()))
	}

	if !healthy {
		return fmt.Errorf("one or more health checks failed")
	}
	return nil
}
