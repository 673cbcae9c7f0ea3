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
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teradata-labs/heddle/internal/log"
	"github.com/teradata-labs/heddle/internal/version"
	"github.com/teradata-labs/heddle/pkg/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "heddle",
	Short: "Heddle - session-scoped LLM task orchestrator",
	Long: `Heddle runs natural-language tasks by planning with an LLM, generating a
short Python program that calls local skills, and executing it in a
sandboxed interpreter. Sessions keep conversation history and variables
alive between tasks.`,
	Version: version.Get(),
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HEDDLE_DATA_DIR/heddle.yaml)")
	rootCmd.PersistentFlags().String("skills-dir", "", "skills root scanned for manifest.yaml files")
	rootCmd.PersistentFlags().String("workspace", "", "sandbox scratch directory for generated scripts")
	rootCmd.PersistentFlags().String("python", "", "Python interpreter executable")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("dev", false, "development mode: readable logs, stacks in failure events")

	// Bind flags to viper
	_ = viper.BindPFlag("skills.dir", rootCmd.PersistentFlags().Lookup("skills-dir"))
	_ = viper.BindPFlag("sandbox.workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("sandbox.python_path", rootCmd.PersistentFlags().Lookup("python"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("dev_mode", rootCmd.PersistentFlags().Lookup("dev"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := log.Setup(cfg.Log.Level, cfg.DevMode); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
		os.Exit(1)
	}
}
