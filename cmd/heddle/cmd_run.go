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
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/heddle/internal/log"
	"github.com/teradata-labs/heddle/pkg/pipeline"
)

var (
	runSessionID string
	runTaskID    string
	runJSON      bool
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a natural-language task",
	Long: `Run submits one task to the orchestrator. The LLM plans which skills
apply, generates a Python program, and the sandbox executes it.

Pass --session to continue an earlier conversation; its history and
variables are available to the new task until the session times out.`,
	Example: `  heddle run "add 2 and 2"
  heddle run --session trip-planning "and how much is that in euros?"
  heddle run --json "list the files in the current directory"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVar(&runSessionID, "session", "", "session id to continue (default: fresh session)")
	runCmd.Flags().StringVar(&runTaskID, "task-id", "", "task id for idempotent resubmission (default: generated)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the full task result as JSON")
	rootCmd.AddCommand(runCmd)
}

func runTask(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	task := strings.Join(args, " ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	defer func() { _ = log.Sync() }()

	resp, err := rt.pipeline.Submit(ctx, pipeline.TaskRequest{
		TaskID:    runTaskID,
		Task:      task,
		SessionID: runSessionID,
		Continue:  runSessionID != "",
	})
	if err != nil {
		return err
	}

	if runJSON {
		out, err := json.MarshalIndent(resp.Result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Println(string(out))
	} else {
		printResult(resp)
	}

	if !resp.Success {
		rt.Close()
		_ = log.Sync()
		os.Exit(1)
	}
	return nil
}

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	faintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
)

func printResult(resp *pipeline.TaskResponse) {
	if resp.Success {
		fmt.Println(okStyle.Render("✓ completed"))
		if resp.Output != "" {
			fmt.Print(resp.Output)
			if !strings.HasSuffix(resp.Output, "\n") {
				fmt.Println()
			}
		}
	} else {
		fmt.Println(errStyle.Render("✗ failed"))
		fmt.Println(resp.Error)
	}

	meta := resp.Result.Metadata
	fmt.Println(faintStyle.Render(fmt.Sprintf(
		"session %s | %dms | %d llm calls | %d skill calls | %d tokens",
		resp.SessionID, resp.Result.DurationMs,
		meta.LLMCalls, meta.SkillCalls, meta.TotalTokens)))
}
