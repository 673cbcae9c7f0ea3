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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootRegistersSubcommands(t *testing.T) {
	want := map[string]bool{
		"run":     false,
		"skills":  false,
		"health":  false,
		"version": false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		assert.True(t, found, "subcommand %q is registered", name)
	}
}

func TestRunRequiresATask(t *testing.T) {
	err := runCmd.Args(runCmd, nil)
	require.Error(t, err)

	err = runCmd.Args(runCmd, []string{"add 2 and 2"})
	require.NoError(t, err)
}

func TestGlobalFlags(t *testing.T) {
	for _, name := range []string{"config", "skills-dir", "workspace", "python", "log-level", "dev"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "flag --%s", name)
	}
}
