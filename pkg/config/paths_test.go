// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDataDir(t *testing.T) {
	t.Run("default to ~/.heddle", func(t *testing.T) {
		t.Setenv("HEDDLE_DATA_DIR", "")

		dataDir := GetDataDir()

		homeDir, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(homeDir, ".heddle"), dataDir)
	})

	t.Run("use HEDDLE_DATA_DIR when set", func(t *testing.T) {
		t.Setenv("HEDDLE_DATA_DIR", "/custom/heddle/data")

		assert.Equal(t, "/custom/heddle/data", GetDataDir())
	})

	t.Run("expand ~ in HEDDLE_DATA_DIR", func(t *testing.T) {
		t.Setenv("HEDDLE_DATA_DIR", "~/custom/.heddle")

		homeDir, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(homeDir, "custom", ".heddle"), GetDataDir())
	})

	t.Run("make relative path absolute", func(t *testing.T) {
		t.Setenv("HEDDLE_DATA_DIR", "relative/dir")

		dataDir := GetDataDir()
		assert.True(t, filepath.IsAbs(dataDir))
		assert.True(t, filepath.IsAbs(dataDir) && filepath.Base(dataDir) == "dir")
	})
}

func TestGetSubDir(t *testing.T) {
	t.Setenv("HEDDLE_DATA_DIR", "/data/heddle")

	assert.Equal(t, filepath.Join("/data/heddle", "skills"), GetSubDir("skills"))
}
