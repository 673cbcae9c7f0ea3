// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package config resolves heddle's filesystem locations.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// GetDataDir returns the heddle data directory.
//
// Priority:
// 1. HEDDLE_DATA_DIR environment variable (if set and non-empty)
// 2. ~/.heddle (default)
//
// The returned path is always absolute. Tilde (~) in HEDDLE_DATA_DIR is
// expanded to the user's home directory; relative paths are made absolute.
//
// This function reads directly from os.Getenv(), not from viper, because it
// is called during bootstrap to locate the config file itself.
func GetDataDir() string {
	if dataDir := os.Getenv("HEDDLE_DATA_DIR"); dataDir != "" {
		return expandPath(dataDir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir cannot be determined
		return ".heddle"
	}
	return filepath.Join(homeDir, ".heddle")
}

// GetSubDir returns a subdirectory within the heddle data directory.
// Example: GetSubDir("skills") returns ~/.heddle/skills.
func GetSubDir(subdir string) string {
	return filepath.Join(GetDataDir(), subdir)
}

// expandPath expands ~ and resolves to absolute path
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path // Return as-is if we can't get home dir
		}
		return filepath.Join(homeDir, path[2:])
	}

	// Make path absolute
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path // Return as-is if we can't make it absolute
	}
	return absPath
}
